package flownetwork

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentTimeWindows(t *testing.T) {
	table := platformTree(date(2020, 1), date(2020, 7))
	summary := monthlySummary(allMonths(), platformVectors())

	seg := SegmentTimeWindows(table, summary)

	require.Len(t, seg.Windows, 2)
	assert.Empty(t, seg.Skipped)
	assert.Equal(t, date(2020, 1), seg.Windows[0].TreeDate)
	assert.Equal(t, []string{"2020-01-01", "2020-02-01", "2020-03-01", "2020-04-01", "2020-05-01", "2020-06-01"},
		seg.Windows[0].DateStrings())
	assert.Equal(t, date(2020, 12), seg.Windows[1].Summary.Dates[5])
	assert.Len(t, seg.Windows[1].Rows, 4)
}

func TestSegmentTimeWindows_SkipsEmptyWindows(t *testing.T) {
	table := platformTree(date(2020, 1), date(2020, 2), date(2020, 3), date(2020, 7))
	summary := monthlySummary([]time.Month{time.January, time.April, time.July, time.October}, platformVectors())

	seg := SegmentTimeWindows(table, summary)

	require.Len(t, seg.Windows, 3)
	assert.Equal(t, []time.Time{date(2020, 2)}, seg.Skipped)
	assert.Equal(t, len(table.Dates())-len(seg.Skipped), len(seg.Windows))
	assert.Equal(t, []string{"2020-04-01"}, seg.Windows[1].DateStrings())
	assert.Equal(t, []string{"2020-07-01", "2020-10-01"}, seg.Windows[2].DateStrings())
}

// Windows are disjoint, ordered, and cover every sample at or after the first tree date.
func TestSegmentTimeWindows_Partition(t *testing.T) {
	table := platformTree(date(2020, 3), date(2020, 5), date(2020, 11))
	summary := monthlySummary(allMonths(), platformVectors())

	seg := SegmentTimeWindows(table, summary)

	var covered []time.Time
	for _, w := range seg.Windows {
		covered = append(covered, w.Summary.Dates...)
		for name, col := range w.Summary.Columns {
			assert.Len(t, col, w.Summary.Len(), "column %s length", name)
		}
	}
	assert.Equal(t, summary.Dates[2:], covered)
	assert.True(t, covered[0].Equal(date(2020, 3)), "samples before the first tree date belong to no window")
}

func TestSegmentTimeWindows_SliceIsIndependent(t *testing.T) {
	table := platformTree(date(2020, 1))
	summary := monthlySummary(allMonths(), map[string]float64{"FOPR": 1})

	seg := SegmentTimeWindows(table, summary)
	require.Len(t, seg.Windows, 1)
	seg.Windows[0].Summary.Columns["FOPR"][0] = 99

	assert.Equal(t, 1.0, summary.Columns["FOPR"][0])
}
