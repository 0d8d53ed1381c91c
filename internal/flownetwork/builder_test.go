package flownetwork

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flownetwork-platform/internal/models"
)

func platformWorkingData(t *testing.T) map[string]models.StaticNodeWorkingData {
	t.Helper()
	table := platformTree(date(2020, 1))
	network := models.NetworkClassification{TerminalNodeName: "FIELD", HasWaterInjection: true}
	available := availableSet(monthlySummary(nil, platformVectors()).VectorNames()...)

	binding, err := BindSummaryVectors(table, platformClassifications(), network, available)
	require.NoError(t, err)
	return binding.WorkingData
}

func TestBuildNetwork(t *testing.T) {
	table := platformTree(date(2020, 1))
	summary := monthlySummary([]time.Month{time.January, time.February}, platformVectors())

	root, err := BuildNetwork(table.Rows, platformWorkingData(t), summary, "FIELD", date(2020, 1))
	require.NoError(t, err)

	assert.Equal(t, "FIELD", root.Label)
	assert.Equal(t, models.NodeKindGroup, root.Kind)
	assert.Empty(t, root.EdgeData)
	assert.Equal(t, []float64{210.46, 210.46}, root.NodeData[models.QuantityPressure])

	require.Len(t, root.Children, 1)
	plat := root.Children[0]
	assert.Equal(t, "PLAT", plat.Label)
	assert.Equal(t, []float64{800, 800}, plat.EdgeData[models.QuantityWaterInjRate])

	require.Len(t, plat.Children, 2)
	well1, well2 := plat.Children[0], plat.Children[1]
	assert.Equal(t, "WELL1", well1.Label)
	assert.Equal(t, models.NodeKindWell, well1.Kind)
	assert.Equal(t, "VFP 3", well1.EdgeLabel)
	assert.Equal(t, []float64{1000, 1000}, well1.EdgeData[models.QuantityOilRate])
	assert.Equal(t, []float64{250, 250}, well1.NodeData[models.QuantityBHP])
	assert.NotNil(t, well1.Children)
	assert.Empty(t, well1.Children)

	assert.Equal(t, "WELL2", well2.Label)
	assert.Equal(t, "", well2.EdgeLabel)
	assert.NotContains(t, well2.EdgeData, models.QuantityOilRate)
}

func TestBuildNetwork_MissingVectorIsPlaceholder(t *testing.T) {
	table := platformTree(date(2020, 1))
	vectors := platformVectors()
	delete(vectors, "WMCTL:WELL2")
	summary := monthlySummary([]time.Month{time.January, time.February, time.March}, vectors)

	root, err := BuildNetwork(table.Rows, platformWorkingData(t), summary, "FIELD", date(2020, 1))
	require.NoError(t, err)

	values := root.Children[0].Children[1].NodeData[models.QuantityWMCTL]
	require.Len(t, values, 3)
	for _, v := range values {
		assert.True(t, math.IsNaN(v))
	}
}

func TestBuildNetwork_MissingTerminalNode(t *testing.T) {
	table := platformTree(date(2020, 1))
	summary := monthlySummary([]time.Month{time.January}, platformVectors())

	_, err := BuildNetwork(table.Rows, platformWorkingData(t), summary, "NOWHERE", date(2020, 1))

	var terminalErr *models.MissingTerminalNodeError
	require.True(t, errors.As(err, &terminalErr))
	assert.Equal(t, date(2020, 1), terminalErr.Date)
}

func TestBuildNetwork_SubtreeRoot(t *testing.T) {
	table := platformTree(date(2020, 1))
	summary := monthlySummary([]time.Month{time.January}, platformVectors())

	root, err := BuildNetwork(table.Rows, platformWorkingData(t), summary, "PLAT", date(2020, 1))
	require.NoError(t, err)

	assert.Equal(t, "PLAT", root.Label)
	assert.Len(t, root.Children, 2)
}

func TestRoundTo2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1000.004, 1000},
		{210.456, 210.46},
		{-1.236, -1.24},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roundTo2(tt.in), "roundTo2(%v)", tt.in)
	}
	assert.True(t, math.IsNaN(roundTo2(math.NaN())))
}
