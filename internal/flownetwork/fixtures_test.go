package flownetwork

import (
	"context"
	"io"
	"time"

	"flownetwork-platform/internal/models"
	"flownetwork-platform/pkg/logging"
)

var allColumns = []string{
	models.ColumnDate, models.ColumnChild, models.ColumnParent, models.ColumnKeyword, models.ColumnVFPTable,
}

func date(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int {
	return &v
}

func row(d time.Time, child, parent string, keyword models.Keyword) models.GroupTreeRow {
	return models.GroupTreeRow{Date: d, Child: child, Parent: parent, Keyword: keyword}
}

func wellRow(d time.Time, child, parent string, vfp *int) models.GroupTreeRow {
	r := row(d, child, parent, models.KeywordWelspecs)
	r.VFPTable = vfp
	return r
}

// platformTree is FIELD -> PLAT -> {WELL1, WELL2} at each of the given dates
func platformTree(dates ...time.Time) *models.GroupTreeTable {
	table := &models.GroupTreeTable{Columns: allColumns}
	for _, d := range dates {
		table.Rows = append(table.Rows,
			row(d, "FIELD", "", models.KeywordGruptree),
			row(d, "PLAT", "FIELD", models.KeywordGruptree),
			wellRow(d, "WELL1", "PLAT", intPtr(3)),
			wellRow(d, "WELL2", "PLAT", intPtr(models.VFPTableNone)),
		)
	}
	return table
}

// monthlySummary builds a summary table over the given months of 2020 where every
// column holds a constant value
func monthlySummary(months []time.Month, values map[string]float64) *models.SummaryTable {
	dates := make([]time.Time, len(months))
	for i, m := range months {
		dates[i] = date(2020, m)
	}
	table := models.NewSummaryTable(dates)
	for name, v := range values {
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = v
		}
		table.Columns[name] = col
	}
	return table
}

func allMonths() []time.Month {
	months := make([]time.Month, 0, 12)
	for m := time.January; m <= time.December; m++ {
		months = append(months, m)
	}
	return months
}

// platformVectors carries every vector the platform tree binds, with WELL1 producing
// and WELL2 injecting water
func platformVectors() map[string]float64 {
	return map[string]float64{
		"FOPR": 1000, "FGPR": 50000, "FWPR": 200, "FWIR": 800, "FGIR": 0,
		"GOPR:PLAT": 1000, "GGPR:PLAT": 50000, "GWPR:PLAT": 200, "GWIR:PLAT": 800, "GGIR:PLAT": 0,
		"GPR:FIELD": 210.456, "GPR:PLAT": 200.123,
		"WOPR:WELL1": 1000.004, "WGPR:WELL1": 50000, "WWPR:WELL1": 200, "WSTAT:WELL1": 1,
		"WTHP:WELL1": 60, "WBHP:WELL1": 250, "WMCTL:WELL1": 1,
		"WWIR:WELL2": 800, "WSTAT:WELL2": 2,
		"WTHP:WELL2": 90, "WBHP:WELL2": 300, "WMCTL:WELL2": 3,
	}
}

type fakeSources struct {
	table     *models.GroupTreeTable
	summary   *models.SummaryTable
	catalog   []string
	treeErr   error
	requested []string
	frequency models.Frequency
}

func newFakeSources(table *models.GroupTreeTable, summary *models.SummaryTable) *fakeSources {
	return &fakeSources{table: table, summary: summary, catalog: summary.VectorNames()}
}

func (f *fakeSources) sources() Sources {
	return Sources{GroupTrees: f, Catalog: f, Summaries: f}
}

func (f *fakeSources) GetGroupTreeTable(ctx context.Context, realization int) (*models.GroupTreeTable, error) {
	if f.treeErr != nil {
		return nil, f.treeErr
	}
	return f.table, nil
}

func (f *fakeSources) GetAvailableVectorNames(ctx context.Context) ([]string, error) {
	return f.catalog, nil
}

func (f *fakeSources) GetSingleRealVectorsTable(ctx context.Context, vectorNames []string, frequency models.Frequency, realization int) (*models.SummaryTable, error) {
	f.requested = vectorNames
	f.frequency = frequency
	out := models.NewSummaryTable(f.summary.Dates)
	for _, name := range vectorNames {
		if col, ok := f.summary.Column(name); ok {
			out.Columns[name] = col
		}
	}
	return out, nil
}

func newTestLogger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("flownetwork-test", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)
	return logger
}
