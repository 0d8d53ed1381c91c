package repository

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"flownetwork-platform/internal/models"
	"flownetwork-platform/pkg/logging"
	"flownetwork-platform/pkg/metrics"
)

const influxWriteBatchSize = 5000

var (
	// identifiers interpolated into Flux must not be able to close a string literal
	fluxIdentifierPattern = regexp.MustCompile(`^[A-Za-z0-9_:.\-]+$`)
)

// InfluxSummaryStore keeps summary vectors in InfluxDB. Every sample is a point of the
// configured measurement tagged with case_uuid, ensemble and realization, with one
// field per vector.
type InfluxSummaryStore struct {
	queryAPI    api.QueryAPI
	writeAPI    api.WriteAPIBlocking
	bucket      string
	measurement string
	logger      *logging.StructuredLogger
	metrics     *metrics.Collector
}

// NewInfluxSummaryStore creates a store on top of the given query and write APIs
func NewInfluxSummaryStore(
	queryAPI api.QueryAPI,
	writeAPI api.WriteAPIBlocking,
	bucket, measurement string,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *InfluxSummaryStore {
	return &InfluxSummaryStore{
		queryAPI:    queryAPI,
		writeAPI:    writeAPI,
		bucket:      bucket,
		measurement: measurement,
		logger:      logger,
		metrics:     metricsCollector,
	}
}

// ListVectorNames returns the field keys stored for the ensemble
func (s *InfluxSummaryStore) ListVectorNames(ctx context.Context, key EnsembleKey) ([]string, error) {
	if err := validateFluxIdentifiers(key.CaseUUID, key.Ensemble); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		import "influxdata/influxdb/schema"
		schema.fieldKeys(
		  bucket: %q,
		  predicate: (r) => r._measurement == %q and r.case_uuid == %q and r.ensemble == %q,
		  start: 0,
		)
		  |> sort()
	`, s.bucket, s.measurement, key.CaseUUID, key.Ensemble)

	timer := time.Now()
	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		s.metrics.RecordDBError("influx_query_error")
		return nil, fmt.Errorf("failed to list vector names from InfluxDB: %w", err)
	}
	defer result.Close()

	var names []string
	for result.Next() {
		if name, ok := result.Record().Value().(string); ok {
			names = append(names, name)
		}
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("failed to read InfluxDB field keys: %w", result.Err())
	}

	s.metrics.DBQueryDuration.WithLabelValues("influx_field_keys").Observe(time.Since(timer).Seconds())
	return names, nil
}

// GetSummarySamples returns the samples of the named vectors, resampled to the last
// value of every period when a frequency is given
func (s *InfluxSummaryStore) GetSummarySamples(
	ctx context.Context,
	key EnsembleKey,
	realization int,
	vectorNames []string,
	frequency models.Frequency,
) ([]models.SummarySample, error) {
	if len(vectorNames) == 0 {
		return nil, nil
	}

	query, err := buildSummaryQuery(s.bucket, s.measurement, key, realization, vectorNames, frequency)
	if err != nil {
		return nil, err
	}

	timer := time.Now()
	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		s.metrics.RecordDBError("influx_query_error")
		return nil, fmt.Errorf("failed to query summary samples from InfluxDB: %w", err)
	}
	defer result.Close()

	var samples []models.SummarySample
	for result.Next() {
		record := result.Record()
		sample := models.SummarySample{
			Date:       record.Time().UTC(),
			VectorName: record.Field(),
		}
		if v, ok := record.Value().(float64); ok {
			sample.Value = &v
		}
		samples = append(samples, sample)
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("failed to read InfluxDB summary samples: %w", result.Err())
	}

	s.metrics.DBQueryDuration.WithLabelValues("influx_summary_samples").Observe(time.Since(timer).Seconds())
	s.logger.Debug(ctx, "[INFLUX_QUERY] Summary samples fetched", logging.Fields{
		"case_uuid":   key.CaseUUID,
		"ensemble":    key.Ensemble,
		"realization": realization,
		"vectors":     len(vectorNames),
		"samples":     len(samples),
		"duration_ms": time.Since(timer).Milliseconds(),
	})
	return samples, nil
}

// WriteSummarySamples writes the samples as points, batched
func (s *InfluxSummaryStore) WriteSummarySamples(ctx context.Context, key EnsembleKey, realization int, samples []models.SummarySample) error {
	points := summaryPoints(s.measurement, key, realization, samples)

	for start := 0; start < len(points); start += influxWriteBatchSize {
		end := start + influxWriteBatchSize
		if end > len(points) {
			end = len(points)
		}
		if err := s.writeAPI.WritePoint(ctx, points[start:end]...); err != nil {
			s.metrics.RecordIngestionError("influx_write_error")
			return fmt.Errorf("failed to write summary samples to InfluxDB: %w", err)
		}
		s.metrics.IngestionBatchSize.Observe(float64(end - start))
	}

	s.metrics.RecordIngestedRecords("summary", len(points))
	return nil
}

// summaryPoints converts samples to points; samples without a value are skipped
func summaryPoints(measurement string, key EnsembleKey, realization int, samples []models.SummarySample) []*write.Point {
	tags := map[string]string{
		"case_uuid":   key.CaseUUID,
		"ensemble":    key.Ensemble,
		"realization": strconv.Itoa(realization),
	}

	points := make([]*write.Point, 0, len(samples))
	for _, sample := range samples {
		if sample.Value == nil {
			continue
		}
		points = append(points, influxdb2.NewPoint(
			measurement,
			tags,
			map[string]interface{}{sample.VectorName: *sample.Value},
			sample.Date,
		))
	}
	return points
}

func buildSummaryQuery(bucket, measurement string, key EnsembleKey, realization int, vectorNames []string, frequency models.Frequency) (string, error) {
	if err := validateFluxIdentifiers(key.CaseUUID, key.Ensemble); err != nil {
		return "", err
	}
	if err := validateFluxIdentifiers(vectorNames...); err != nil {
		return "", err
	}

	quoted := make([]string, len(vectorNames))
	for i, name := range vectorNames {
		quoted[i] = strconv.Quote(name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `from(bucket: %q)
  |> range(start: 0)
  |> filter(fn: (r) => r._measurement == %q)
  |> filter(fn: (r) => r.case_uuid == %q and r.ensemble == %q and r.realization == "%d")
  |> filter(fn: (r) => contains(value: r._field, set: [%s]))`,
		bucket, measurement, key.CaseUUID, key.Ensemble, realization, strings.Join(quoted, ", "))

	if frequency != models.FrequencyRaw {
		every, err := fluxWindow(frequency)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, `
  |> aggregateWindow(every: %s, fn: last, createEmpty: false, timeSrc: "_start")`, every)
	}

	b.WriteString(`
  |> keep(columns: ["_time", "_field", "_value"])
  |> sort(columns: ["_time"])`)
	return b.String(), nil
}

func fluxWindow(frequency models.Frequency) (string, error) {
	switch frequency {
	case models.FrequencyDaily:
		return "1d", nil
	case models.FrequencyWeekly:
		return "1w", nil
	case models.FrequencyMonthly:
		return "1mo", nil
	case models.FrequencyQuarterly:
		return "3mo", nil
	case models.FrequencyYearly:
		return "1y", nil
	}
	return "", &models.ValidationError{Field: "resampling_frequency", Value: string(frequency), Message: "unsupported frequency"}
}

func validateFluxIdentifiers(values ...string) error {
	for _, v := range values {
		if !fluxIdentifierPattern.MatchString(v) {
			return &models.ValidationError{Field: "identifier", Value: v, Message: "contains characters not allowed in a query"}
		}
	}
	return nil
}
