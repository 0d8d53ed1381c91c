package flownetwork

import (
	"sort"
	"time"

	"flownetwork-platform/internal/models"
)

// TimeWindow is the validity window of one tree snapshot together with the
// summary rows sampled inside it
type TimeWindow struct {
	TreeDate time.Time
	Rows     []models.GroupTreeRow
	Summary  *models.SummaryTable
}

// DateStrings formats the window's sample dates
func (w TimeWindow) DateStrings() []string {
	out := make([]string, len(w.Summary.Dates))
	for i, d := range w.Summary.Dates {
		out[i] = d.Format(models.DateLayout)
	}
	return out
}

// Segmentation is the ordered list of non-empty windows plus the tree dates
// whose windows held no samples
type Segmentation struct {
	Windows []TimeWindow
	Skipped []time.Time
}

// SegmentTimeWindows splits the time axis at every tree change date. Window i covers
// [d_i, d_i+1); the last window runs to the last sample date inclusive. Windows without
// samples are skipped, which happens when the tree changes more often than the summary
// is sampled.
func SegmentTimeWindows(table *models.GroupTreeTable, summary *models.SummaryTable) Segmentation {
	snapshots := make(map[time.Time][]models.GroupTreeRow)
	for _, row := range table.Rows {
		snapshots[row.Date] = append(snapshots[row.Date], row)
	}
	treeDates := table.Dates()

	var seg Segmentation
	for i, start := range treeDates {
		from := sort.Search(summary.Len(), func(k int) bool {
			return !summary.Dates[k].Before(start)
		})
		to := summary.Len()
		if i+1 < len(treeDates) {
			end := treeDates[i+1]
			to = sort.Search(summary.Len(), func(k int) bool {
				return !summary.Dates[k].Before(end)
			})
		}
		if from >= to {
			seg.Skipped = append(seg.Skipped, start)
			continue
		}
		seg.Windows = append(seg.Windows, TimeWindow{
			TreeDate: start,
			Rows:     snapshots[start],
			Summary:  summary.Slice(from, to),
		})
	}
	return seg
}
