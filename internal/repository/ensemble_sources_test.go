package repository

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flownetwork-platform/internal/models"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func sample(d time.Time, vector string, v float64) models.SummarySample {
	return models.SummarySample{Date: d, VectorName: vector, Value: floatPtr(v)}
}

func TestPivotSamples(t *testing.T) {
	samples := []models.SummarySample{
		sample(day(2020, 2, 1), "FOPR", 2),
		sample(day(2020, 1, 1), "FOPR", 1),
		sample(day(2020, 2, 1), "FWIR", 5),
		{Date: day(2020, 3, 1), VectorName: "FOPR"},
	}

	table := pivotSamples(samples)

	assert.Equal(t, []time.Time{day(2020, 1, 1), day(2020, 2, 1), day(2020, 3, 1)}, table.Dates)
	fopr, _ := table.Column("FOPR")
	assert.Equal(t, 1.0, fopr[0])
	assert.Equal(t, 2.0, fopr[1])
	assert.True(t, math.IsNaN(fopr[2]), "null sample becomes NaN")

	fwir, _ := table.Column("FWIR")
	assert.True(t, math.IsNaN(fwir[0]), "missing sample becomes NaN")
	assert.Equal(t, 5.0, fwir[1])
}

func TestResampleLast(t *testing.T) {
	samples := []models.SummarySample{
		sample(day(2020, 1, 1), "FOPR", 1),
		sample(day(2020, 1, 15), "FOPR", 2),
		sample(day(2020, 2, 1), "FOPR", 3),
		sample(day(2020, 4, 20), "FOPR", 4),
	}

	monthly, err := resampleLast(samples, models.FrequencyMonthly)
	require.NoError(t, err)
	assert.Equal(t, []models.SummarySample{
		sample(day(2020, 1, 1), "FOPR", 2),
		sample(day(2020, 2, 1), "FOPR", 3),
		sample(day(2020, 4, 1), "FOPR", 4),
	}, monthly)

	quarterly, err := resampleLast(samples, models.FrequencyQuarterly)
	require.NoError(t, err)
	assert.Equal(t, []models.SummarySample{
		sample(day(2020, 1, 1), "FOPR", 3),
		sample(day(2020, 4, 1), "FOPR", 4),
	}, quarterly)

	raw, err := resampleLast(samples, models.FrequencyRaw)
	require.NoError(t, err)
	assert.Equal(t, samples, raw)
}

func TestPeriodStart(t *testing.T) {
	// 2020-01-15 is a Wednesday
	tests := []struct {
		frequency models.Frequency
		want      time.Time
	}{
		{models.FrequencyDaily, day(2020, 1, 15)},
		{models.FrequencyWeekly, day(2020, 1, 13)},
		{models.FrequencyMonthly, day(2020, 1, 1)},
		{models.FrequencyQuarterly, day(2020, 1, 1)},
		{models.FrequencyYearly, day(2020, 1, 1)},
	}
	for _, tt := range tests {
		got, err := periodStart(time.Date(2020, 1, 15, 13, 30, 0, 0, time.UTC), tt.frequency)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "frequency %s", tt.frequency)
	}

	got, err := periodStart(day(2020, 11, 30), models.FrequencyQuarterly)
	require.NoError(t, err)
	assert.Equal(t, day(2020, 10, 1), got)

	_, err = periodStart(day(2020, 1, 1), models.Frequency("HOURLY"))
	assert.Error(t, err)
}

func TestEnsembleSources(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	d := day(2020, 1, 1)
	store.PutGroupTree(testKey, 0, &models.GroupTreeTable{
		Columns: models.RequiredGroupTreeColumns,
		Rows: []models.GroupTreeRow{
			{Date: d, Child: "FIELD", Keyword: models.KeywordGruptree},
			{Date: d, Child: "OP_1", Parent: "FIELD", Keyword: models.KeywordWelspecs},
		},
	})
	require.NoError(t, store.WriteSummarySamples(ctx, testKey, 0, []models.SummarySample{
		sample(day(2020, 1, 1), "FOPR", 10),
		sample(day(2020, 1, 20), "FOPR", 12),
		sample(day(2020, 1, 1), "WOPR:OP_1", 10),
	}))
	other := EnsembleKey{CaseUUID: testKey.CaseUUID, Ensemble: "iter-1"}
	require.NoError(t, store.WriteSummarySamples(ctx, other, 0, []models.SummarySample{sample(d, "FGPR", 1)}))

	sources := NewEnsembleSources(testKey, store, store)

	table, err := sources.GetGroupTreeTable(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"FIELD", "OP_1"}, table.NodeNames())

	names, err := sources.GetAvailableVectorNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"FOPR", "WOPR:OP_1"}, names)

	summary, err := sources.GetSingleRealVectorsTable(ctx, []string{"FOPR"}, models.FrequencyMonthly, 0)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{d}, summary.Dates)
	assert.Equal(t, []float64{12}, summary.Columns["FOPR"])
	assert.NotContains(t, summary.Columns, "WOPR:OP_1")

	_, err = sources.GetGroupTreeTable(ctx, 7)
	var noData *models.NoDataError
	assert.True(t, errors.As(err, &noData))

	_, err = sources.GetSingleRealVectorsTable(ctx, []string{"FOPR"}, models.FrequencyRaw, 7)
	assert.True(t, errors.As(err, &noData))
}

func TestMemoryStore_Realizations(t *testing.T) {
	store := NewMemoryStore()
	table := &models.GroupTreeTable{Columns: models.RequiredGroupTreeColumns, Rows: []models.GroupTreeRow{
		{Date: day(2020, 1, 1), Child: "FIELD", Keyword: models.KeywordGruptree},
	}}
	store.PutGroupTree(testKey, 2, table)
	store.PutGroupTree(testKey, 0, table)

	assert.Equal(t, []int{0, 2}, store.Realizations(testKey))
	assert.Empty(t, store.Realizations(EnsembleKey{CaseUUID: testKey.CaseUUID, Ensemble: "pred"}))
}

func TestMemoryStore_EnsembleExists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	exists, err := store.EnsembleExists(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.UpsertEnsemble(ctx, testKey))
	exists, err = store.EnsembleExists(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.EnsembleExists(ctx, EnsembleKey{CaseUUID: testKey.CaseUUID, Ensemble: "pred"})
	require.NoError(t, err)
	assert.False(t, exists)
}
