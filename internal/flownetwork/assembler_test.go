package flownetwork

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flownetwork-platform/internal/models"
)

func metadataKeys(entries []models.FlowNetworkMetadata) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

func assemble(t *testing.T, fake *fakeSources, opts Options) (*Assembler, *Result) {
	t.Helper()
	ctx := context.Background()
	a := NewAssembler(fake.sources(), opts, newTestLogger())
	require.NoError(t, a.FetchAndInitialize(ctx))
	result, err := a.CreateDatedNetworksAndMetadataLists(ctx)
	require.NoError(t, err)
	return a, result
}

func TestAssembler_ProducerAndInjector(t *testing.T) {
	fake := newFakeSources(platformTree(date(2020, 1), date(2020, 7)), monthlySummary(allMonths(), platformVectors()))

	a, result := assemble(t, fake, Options{})

	require.Len(t, result.DatedNetworks, 2)
	for _, dated := range result.DatedNetworks {
		assert.Len(t, dated.Dates, 6)
		assert.Equal(t, "FIELD", dated.Network.Label)
	}
	assert.Equal(t, "2020-07-01", result.DatedNetworks[1].Dates[0])

	classifications := a.Classifications()
	both := models.NodeClassification{IsProducer: true, IsInjector: true}
	assert.Equal(t, both, classifications["PLAT"])
	assert.Equal(t, both, classifications["FIELD"])

	network := a.NetworkClassification()
	assert.True(t, network.HasWaterInjection)
	assert.False(t, network.HasGasInjection)

	assert.Equal(t, []string{"oilrate", "gasrate", "waterrate", "waterinjrate"}, metadataKeys(result.EdgeMetadata))
	assert.Equal(t, []string{"pressure", "bhp", "wmctl"}, metadataKeys(result.NodeMetadata))
	assert.Equal(t, "Water Inj Rate", result.EdgeMetadata[3].Label)
}

func TestAssembler_ZeroInjectionHidesOption(t *testing.T) {
	vectors := platformVectors()
	vectors["FWIR"] = 0
	vectors["WWIR:WELL2"] = 0
	vectors["GWIR:PLAT"] = 0
	fake := newFakeSources(platformTree(date(2020, 1), date(2020, 7)), monthlySummary(allMonths(), vectors))

	a, result := assemble(t, fake, Options{})

	assert.Equal(t, models.NodeClassification{IsInjector: true}, a.Classifications()["WELL2"])
	assert.False(t, a.NetworkClassification().HasWaterInjection)
	assert.Equal(t, []string{"oilrate", "gasrate", "waterrate"}, metadataKeys(result.EdgeMetadata))

	well2 := result.DatedNetworks[0].Network.Children[0].Children[1]
	assert.Empty(t, well2.EdgeData)
}

func TestAssembler_TerminalMissingAtOneDate(t *testing.T) {
	d0, d1 := date(2020, 1), date(2020, 7)
	table := platformTree(d0)
	table.Rows = append(table.Rows,
		row(d1, "FIELD", "", models.KeywordGruptree),
		row(d1, "PLAT2", "FIELD", models.KeywordGruptree),
		wellRow(d1, "WELL1", "PLAT2", nil),
		wellRow(d1, "WELL2", "PLAT2", nil),
	)
	fake := newFakeSources(table, monthlySummary(allMonths(), platformVectors()))

	a := NewAssembler(fake.sources(), Options{TerminalNode: "PLAT"}, newTestLogger())
	require.NoError(t, a.FetchAndInitialize(context.Background()))
	_, err := a.CreateDatedNetworksAndMetadataLists(context.Background())

	var terminalErr *models.MissingTerminalNodeError
	require.True(t, errors.As(err, &terminalErr), "expected MissingTerminalNodeError, got %v", err)
	assert.Equal(t, "PLAT", terminalErr.Node)
	assert.Equal(t, d1, terminalErr.Date)
}

func TestAssembler_EmptyWindowSkipped(t *testing.T) {
	table := platformTree(date(2020, 1), date(2020, 2), date(2020, 3), date(2020, 7))
	summary := monthlySummary([]time.Month{time.January, time.April, time.July, time.October}, platformVectors())
	fake := newFakeSources(table, summary)

	_, result := assemble(t, fake, Options{})

	assert.Len(t, result.DatedNetworks, len(table.Dates())-1)
	assert.Equal(t, []time.Time{date(2020, 2)}, result.SkippedDates)
}

func TestAssembler_TerminalHasNoRates(t *testing.T) {
	fake := newFakeSources(platformTree(date(2020, 1)), monthlySummary(allMonths(), platformVectors()))

	_, result := assemble(t, fake, Options{})

	root := result.DatedNetworks[0].Network
	assert.Empty(t, root.EdgeData)
	plat := root.Children[0]
	for _, q := range []models.Quantity{models.QuantityOilRate, models.QuantityGasRate, models.QuantityWaterRate} {
		assert.Contains(t, plat.EdgeData, q, "producer edge must carry %s", q)
	}
}

func TestAssembler_NodeTypeFilter(t *testing.T) {
	fake := newFakeSources(platformTree(date(2020, 1)), monthlySummary(allMonths(), platformVectors()))

	_, result := assemble(t, fake, Options{NodeTypes: models.NodeTypeSet{models.NodeTypeInjector: true}})

	assert.Equal(t, []string{"waterinjrate"}, metadataKeys(result.EdgeMetadata))
	plat := result.DatedNetworks[0].Network.Children[0]
	require.Len(t, plat.Children, 1)
	assert.Equal(t, "WELL2", plat.Children[0].Label)
}

func TestAssembler_FetchesOnceWithFrequency(t *testing.T) {
	fake := newFakeSources(platformTree(date(2020, 1)), monthlySummary(allMonths(), platformVectors()))

	assemble(t, fake, Options{Frequency: models.FrequencyMonthly, Realization: 3})

	assert.Equal(t, models.FrequencyMonthly, fake.frequency)
	assert.Contains(t, fake.requested, "WSTAT:WELL1")
	assert.Contains(t, fake.requested, "FWIR")
	for _, name := range fake.requested {
		assert.Contains(t, fake.catalog, name, "requested vector %s is not in the catalog", name)
	}
}

func TestAssembler_ExcludedWellsLeaveNetwork(t *testing.T) {
	fake := newFakeSources(platformTree(date(2020, 1)), monthlySummary(allMonths(), platformVectors()))

	_, result := assemble(t, fake, Options{ExcludeWellPrefixes: []string{"WELL2"}})

	plat := result.DatedNetworks[0].Network.Children[0]
	require.Len(t, plat.Children, 1)
	assert.Equal(t, "WELL1", plat.Children[0].Label)
}

func TestAssembler_Idempotent(t *testing.T) {
	fake := newFakeSources(platformTree(date(2020, 1), date(2020, 7)), monthlySummary(allMonths(), platformVectors()))
	ctx := context.Background()

	a, first := assemble(t, fake, Options{})
	second, err := a.CreateDatedNetworksAndMetadataLists(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAssembler_StatisticsModeUnsupported(t *testing.T) {
	fake := newFakeSources(platformTree(date(2020, 1)), monthlySummary(allMonths(), platformVectors()))
	a := NewAssembler(fake.sources(), Options{Mode: models.ModeStatistics}, newTestLogger())

	err := a.FetchAndInitialize(context.Background())

	var modeErr *models.UnsupportedModeError
	require.True(t, errors.As(err, &modeErr))
	assert.Equal(t, models.ModeStatistics, modeErr.Mode)
	assert.Nil(t, fake.requested)
}

func TestAssembler_CreateBeforeInitialize(t *testing.T) {
	fake := newFakeSources(platformTree(date(2020, 1)), monthlySummary(allMonths(), platformVectors()))
	a := NewAssembler(fake.sources(), Options{}, newTestLogger())

	_, err := a.CreateDatedNetworksAndMetadataLists(context.Background())

	var initErr *models.NotInitializedError
	assert.True(t, errors.As(err, &initErr))
}

func TestAssembler_SourceErrorPropagates(t *testing.T) {
	fake := newFakeSources(platformTree(date(2020, 1)), monthlySummary(allMonths(), platformVectors()))
	fake.treeErr = &models.NoDataError{Resource: "group tree", ID: "realization 0"}
	a := NewAssembler(fake.sources(), Options{}, newTestLogger())

	err := a.FetchAndInitialize(context.Background())

	var noData *models.NoDataError
	require.True(t, errors.As(err, &noData), "expected NoDataError, got %v", err)
	assert.Nil(t, fake.requested)
}

func TestAssembler_MissingInjectionAggregate(t *testing.T) {
	vectors := platformVectors()
	delete(vectors, "FWIR")
	fake := newFakeSources(platformTree(date(2020, 1)), monthlySummary(allMonths(), vectors))
	a := NewAssembler(fake.sources(), Options{}, newTestLogger())

	err := a.FetchAndInitialize(context.Background())

	var missing *models.MissingVectorsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"FWIR"}, missing.Vectors)
}
