package services

import (
	"context"
	"fmt"
	"time"

	"flownetwork-platform/internal/models"
	"flownetwork-platform/internal/repository"
	"flownetwork-platform/pkg/logging"
	"flownetwork-platform/pkg/metrics"
)

// GroupTreeWriter registers ensembles and stores their group trees
type GroupTreeWriter interface {
	UpsertEnsemble(ctx context.Context, key repository.EnsembleKey) error
	ReplaceGroupTree(ctx context.Context, key repository.EnsembleKey, realization int, rows []models.GroupTreeRow) error
}

// IngestionService loads ensemble exports into the group tree and summary stores
type IngestionService struct {
	trees     GroupTreeWriter
	summaries repository.SummaryWriter
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalRealizations  int
	FailedRealizations int
	GroupTreeRows      int
	SummarySamples     int
	Duration           time.Duration
	Errors             []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	trees GroupTreeWriter,
	summaries repository.SummaryWriter,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *IngestionService {
	return &IngestionService{
		trees:     trees,
		summaries: summaries,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// IngestDirectory ingests every realization-<n> directory of dataDir into the ensemble.
// A failing realization is reported and skipped.
func (s *IngestionService) IngestDirectory(ctx context.Context, key repository.EnsembleKey, dataDir string, batchSize int) (*IngestionResult, error) {
	startTime := time.Now()
	if batchSize <= 0 {
		batchSize = 1000
	}

	s.logger.Info(ctx, "[INGEST_START] Starting ensemble ingestion", logging.Fields{
		"case_uuid":  key.CaseUUID,
		"ensemble":   key.Ensemble,
		"data_dir":   dataDir,
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	dirs, err := DiscoverRealizations(dataDir)
	if err != nil {
		return nil, err
	}
	if err := s.trees.UpsertEnsemble(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to register ensemble: %w", err)
	}

	result := &IngestionResult{
		TotalRealizations: len(dirs),
		Errors:            make([]string, 0),
	}

	for _, dir := range dirs {
		realLogger := s.logger.WithFields(logging.Fields{
			"realization": dir.Realization,
			"dir":         dir.Path,
		})

		rows, samples, err := s.ingestRealization(ctx, realLogger, key, dir, batchSize)
		if err != nil {
			result.FailedRealizations++
			result.Errors = append(result.Errors, fmt.Sprintf("failed to ingest realization %d: %v", dir.Realization, err))
			realLogger.Error(ctx, "[INGEST_REALIZATION_ERROR] Realization ingestion failed", logging.Fields{
				"stage": "REALIZATION_PROCESSING",
			}, err)
			s.metrics.RecordIngestionError("realization_error")
			continue
		}

		result.GroupTreeRows += rows
		result.SummarySamples += samples

		realLogger.Info(ctx, "[INGEST_REALIZATION_SUCCESS] Realization ingested", logging.Fields{
			"group_tree_rows": rows,
			"summary_samples": samples,
			"stage":           "REALIZATION_COMPLETE",
		})
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Ensemble ingestion completed", logging.Fields{
		"total_realizations":  result.TotalRealizations,
		"failed_realizations": result.FailedRealizations,
		"group_tree_rows":     result.GroupTreeRows,
		"summary_samples":     result.SummarySamples,
		"duration_seconds":    result.Duration.Seconds(),
		"error_count":         len(result.Errors),
		"stage":               "COMPLETE",
	})

	return result, nil
}

// ingestRealization stores one realization's group tree and summary samples
func (s *IngestionService) ingestRealization(ctx context.Context, log *logging.ContextLogger, key repository.EnsembleKey, dir RealizationDir, batchSize int) (int, int, error) {
	table, err := ReadGroupTreeFile(dir.Path)
	if err != nil {
		s.metrics.RecordIngestionError("parse_error")
		return 0, 0, err
	}
	samples, err := ReadSummaryFile(dir.Path)
	if err != nil {
		s.metrics.RecordIngestionError("parse_error")
		return 0, 0, err
	}

	log.Debug(ctx, "[INGEST_REALIZATION_PARSED] Realization files parsed", logging.Fields{
		"group_tree_rows": len(table.Rows),
		"summary_samples": len(samples),
	})

	if err := s.trees.ReplaceGroupTree(ctx, key, dir.Realization, table.Rows); err != nil {
		return 0, 0, fmt.Errorf("failed to store group tree: %w", err)
	}

	for start := 0; start < len(samples); start += batchSize {
		end := start + batchSize
		if end > len(samples) {
			end = len(samples)
		}
		if err := s.summaries.WriteSummarySamples(ctx, key, dir.Realization, samples[start:end]); err != nil {
			return 0, 0, fmt.Errorf("failed to store summary batch: %w", err)
		}
		log.Debug(ctx, "[INGEST_BATCH] Summary batch stored", logging.Fields{
			"batch_start": start,
			"batch_size":  end - start,
		})
	}

	return len(table.Rows), len(samples), nil
}
