package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"flownetwork-platform/internal/models"
)

// EnsembleSources binds a group tree store and a summary store to one ensemble and
// serves the flow network assembler
type EnsembleSources struct {
	key       EnsembleKey
	trees     GroupTreeStore
	summaries SummaryStore
}

// NewEnsembleSources creates the sources of one ensemble
func NewEnsembleSources(key EnsembleKey, trees GroupTreeStore, summaries SummaryStore) *EnsembleSources {
	return &EnsembleSources{key: key, trees: trees, summaries: summaries}
}

// GetGroupTreeTable returns the group tree of a realization
func (s *EnsembleSources) GetGroupTreeTable(ctx context.Context, realization int) (*models.GroupTreeTable, error) {
	return s.trees.GetGroupTreeTable(ctx, s.key, realization)
}

// GetAvailableVectorNames returns the vector catalog of the ensemble
func (s *EnsembleSources) GetAvailableVectorNames(ctx context.Context) ([]string, error) {
	return s.summaries.ListVectorNames(ctx, s.key)
}

// GetSingleRealVectorsTable fetches the named vectors of a realization and pivots them
// to a wide table
func (s *EnsembleSources) GetSingleRealVectorsTable(ctx context.Context, vectorNames []string, frequency models.Frequency, realization int) (*models.SummaryTable, error) {
	samples, err := s.summaries.GetSummarySamples(ctx, s.key, realization, vectorNames, frequency)
	if err != nil {
		return nil, err
	}
	table := pivotSamples(samples)
	if table.Len() == 0 && len(vectorNames) > 0 {
		return nil, &models.NoDataError{
			Resource: "summary vectors",
			ID:       fmt.Sprintf("%s realization %d", s.key, realization),
		}
	}
	return table, nil
}

// pivotSamples turns long samples into a wide table over the sorted union of their dates.
// Missing and null samples become NaN.
func pivotSamples(samples []models.SummarySample) *models.SummaryTable {
	index := make(map[time.Time]int)
	var dates []time.Time
	for _, s := range samples {
		if _, ok := index[s.Date]; !ok {
			index[s.Date] = 0
			dates = append(dates, s.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	for i, d := range dates {
		index[d] = i
	}

	table := models.NewSummaryTable(dates)
	for _, s := range samples {
		col, ok := table.Columns[s.VectorName]
		if !ok {
			col = make([]float64, len(dates))
			for i := range col {
				col[i] = math.NaN()
			}
			table.Columns[s.VectorName] = col
		}
		if s.Value != nil {
			col[index[s.Date]] = *s.Value
		}
	}
	return table
}

// resampleLast keeps the last sample of every vector in every period, dated at the
// period start. Samples must be in ascending date order per vector.
func resampleLast(samples []models.SummarySample, frequency models.Frequency) ([]models.SummarySample, error) {
	if frequency == models.FrequencyRaw {
		return samples, nil
	}

	type periodKey struct {
		vector string
		period time.Time
	}
	last := make(map[periodKey]models.SummarySample)
	var order []periodKey
	for _, s := range samples {
		period, err := periodStart(s.Date, frequency)
		if err != nil {
			return nil, err
		}
		k := periodKey{s.VectorName, period}
		if _, ok := last[k]; !ok {
			order = append(order, k)
		}
		last[k] = models.SummarySample{Date: period, VectorName: s.VectorName, Value: s.Value}
	}

	out := make([]models.SummarySample, len(order))
	for i, k := range order {
		out[i] = last[k]
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].VectorName < out[j].VectorName
	})
	return out, nil
}

// periodStart truncates t the way PostgreSQL date_trunc does; weeks start on Monday
func periodStart(t time.Time, frequency models.Frequency) (time.Time, error) {
	y, m, d := t.Date()
	switch frequency {
	case models.FrequencyDaily:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case models.FrequencyWeekly:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, time.UTC), nil
	case models.FrequencyMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC), nil
	case models.FrequencyQuarterly:
		return time.Date(y, m-(m-1)%3, 1, 0, 0, 0, 0, time.UTC), nil
	case models.FrequencyYearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, &models.ValidationError{Field: "resampling_frequency", Value: string(frequency), Message: "unsupported frequency"}
}
