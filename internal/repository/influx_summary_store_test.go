package repository

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flownetwork-platform/internal/models"
	"flownetwork-platform/pkg/logging"
	"flownetwork-platform/pkg/metrics"
)

type mockWriteAPI struct {
	calls  int
	points []*write.Point
	err    error
}

func (m *mockWriteAPI) WritePoint(ctx context.Context, point ...*write.Point) error {
	m.calls++
	m.points = append(m.points, point...)
	return m.err
}

func (m *mockWriteAPI) WriteRecord(ctx context.Context, line ...string) error { return nil }
func (m *mockWriteAPI) EnableBatching()                                       {}
func (m *mockWriteAPI) Flush(ctx context.Context) error                       { return nil }

type mockQueryAPI struct {
	queries []string
	csv     string
	err     error
}

func (m *mockQueryAPI) Query(ctx context.Context, q string) (*api.QueryTableResult, error) {
	m.queries = append(m.queries, q)
	if m.err != nil {
		return nil, m.err
	}
	return api.NewQueryTableResult(io.NopCloser(strings.NewReader(m.csv))), nil
}

func (m *mockQueryAPI) QueryRaw(ctx context.Context, query string, dialect *domain.Dialect) (string, error) {
	return "", nil
}

func (m *mockQueryAPI) QueryRawWithParams(ctx context.Context, query string, dialect *domain.Dialect, params interface{}) (string, error) {
	return "", nil
}

func (m *mockQueryAPI) QueryWithParams(ctx context.Context, query string, params interface{}) (*api.QueryTableResult, error) {
	return nil, nil
}

var testKey = EnsembleKey{CaseUUID: "8c5a3f8e-2a3b-4a0e-9d63-3f1f7a0c1b2d", Ensemble: "iter-0"}

func newTestInfluxStore(q api.QueryAPI, w api.WriteAPIBlocking) *InfluxSummaryStore {
	logger := logging.NewStructuredLogger("repository-test", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)
	return NewInfluxSummaryStore(q, w, "summary", "summary_vectors", logger,
		metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry()))
}

func floatPtr(v float64) *float64 {
	return &v
}

func TestBuildSummaryQuery(t *testing.T) {
	query, err := buildSummaryQuery("summary", "summary_vectors", testKey, 3, []string{"FOPR", "WOPR:OP_1"}, models.FrequencyRaw)
	require.NoError(t, err)

	assert.Contains(t, query, `from(bucket: "summary")`)
	assert.Contains(t, query, `r.realization == "3"`)
	assert.Contains(t, query, `set: ["FOPR", "WOPR:OP_1"]`)
	assert.NotContains(t, query, "aggregateWindow")

	query, err = buildSummaryQuery("summary", "summary_vectors", testKey, 3, []string{"FOPR"}, models.FrequencyQuarterly)
	require.NoError(t, err)
	assert.Contains(t, query, `aggregateWindow(every: 3mo, fn: last`)
}

func TestBuildSummaryQuery_RejectsInjection(t *testing.T) {
	tests := []struct {
		name    string
		key     EnsembleKey
		vectors []string
	}{
		{"quote in vector", testKey, []string{`FOPR") |> drop(`}},
		{"space in ensemble", EnsembleKey{CaseUUID: testKey.CaseUUID, Ensemble: "iter 0"}, []string{"FOPR"}},
		{"empty vector", testKey, []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildSummaryQuery("summary", "summary_vectors", tt.key, 0, tt.vectors, models.FrequencyRaw)
			var validationErr *models.ValidationError
			assert.True(t, errors.As(err, &validationErr))
		})
	}
}

func TestInfluxSummaryStore_GetSummarySamples(t *testing.T) {
	q := &mockQueryAPI{csv: `#datatype,string,long,dateTime:RFC3339,string,double
#group,false,false,false,true,false
#default,_result,,,,
,result,table,_time,_field,_value
,,0,2020-01-01T00:00:00Z,FOPR,100
,,0,2020-02-01T00:00:00Z,FOPR,110.5

`}
	store := newTestInfluxStore(q, &mockWriteAPI{})

	samples, err := store.GetSummarySamples(context.Background(), testKey, 0, []string{"FOPR"}, models.FrequencyRaw)
	require.NoError(t, err)

	require.Len(t, samples, 2)
	assert.Equal(t, "FOPR", samples[1].VectorName)
	assert.Equal(t, time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC), samples[1].Date)
	require.NotNil(t, samples[1].Value)
	assert.Equal(t, 110.5, *samples[1].Value)
	assert.Len(t, q.queries, 1)
}

func TestInfluxSummaryStore_QueryError(t *testing.T) {
	store := newTestInfluxStore(&mockQueryAPI{err: errors.New("connection refused")}, &mockWriteAPI{})

	_, err := store.ListVectorNames(context.Background(), testKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestInfluxSummaryStore_NoVectorsSkipsQuery(t *testing.T) {
	q := &mockQueryAPI{}
	store := newTestInfluxStore(q, &mockWriteAPI{})

	samples, err := store.GetSummarySamples(context.Background(), testKey, 0, nil, models.FrequencyRaw)
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.Empty(t, q.queries)
}

func TestInfluxSummaryStore_WriteSummarySamples(t *testing.T) {
	w := &mockWriteAPI{}
	store := newTestInfluxStore(&mockQueryAPI{}, w)

	samples := make([]models.SummarySample, 0, influxWriteBatchSize+2)
	for i := 0; i < influxWriteBatchSize+1; i++ {
		samples = append(samples, models.SummarySample{
			Date:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			VectorName: "FOPR",
			Value:      floatPtr(float64(i)),
		})
	}
	samples = append(samples, models.SummarySample{Date: time.Now(), VectorName: "FWIR"})

	require.NoError(t, store.WriteSummarySamples(context.Background(), testKey, 2, samples))

	assert.Equal(t, 2, w.calls)
	require.Len(t, w.points, influxWriteBatchSize+1, "null samples are not written")
	assert.Equal(t, "summary_vectors", w.points[0].Name())
	tags := make(map[string]string)
	for _, tag := range w.points[0].TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"case_uuid": testKey.CaseUUID, "ensemble": "iter-0", "realization": "2"}, tags)
}

func TestInfluxSummaryStore_WriteError(t *testing.T) {
	w := &mockWriteAPI{err: errors.New("bucket not found")}
	store := newTestInfluxStore(&mockQueryAPI{}, w)

	err := store.WriteSummarySamples(context.Background(), testKey, 0, []models.SummarySample{
		{Date: time.Now(), VectorName: "FOPR", Value: floatPtr(1)},
	})
	assert.ErrorContains(t, err, "bucket not found")
}
