package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"flownetwork-platform/internal/config"
	"flownetwork-platform/internal/repository"
	"flownetwork-platform/internal/services"
	"flownetwork-platform/pkg/logging"
	"flownetwork-platform/pkg/metrics"
)

func main() {
	// Parse command-line flags
	dataDir := flag.String("data-dir", "", "Ensemble export directory with realization-<n> subdirectories (default from config)")
	caseUUID := flag.String("case-uuid", "", "Case UUID to store the ensemble under (generated when empty)")
	ensemble := flag.String("ensemble", "iter-0", "Ensemble name")
	batchSize := flag.Int("batch-size", 0, "Number of summary samples to write in each batch (default from config)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *dataDir == "" {
		*dataDir = cfg.Ingestion.DataDir
	}
	if *batchSize <= 0 {
		*batchSize = cfg.Ingestion.BatchSize
	}
	if *caseUUID == "" {
		*caseUUID = uuid.NewString()
	} else if _, err := uuid.Parse(*caseUUID); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid case UUID %q: %v\n", *caseUUID, err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("flownetwork-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting ensemble ingestion", logging.Fields{
		"version":         "1.0.0",
		"data_dir":        *dataDir,
		"case_uuid":       *caseUUID,
		"ensemble":        *ensemble,
		"batch_size":      *batchSize,
		"summary_backend": cfg.Summary.Backend,
	})

	metricsCollector := metrics.NewCollector("flownetwork_ingester")

	stores, err := repository.OpenStores(ctx, cfg, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to open stores", logging.Fields{}, err)
	}
	defer stores.Close()

	ingestionService := services.NewIngestionService(stores.Flow, stores.Summaries, logger, metricsCollector)

	key := repository.EnsembleKey{CaseUUID: *caseUUID, Ensemble: *ensemble}
	result, err := ingestionService.IngestDirectory(ctx, key, *dataDir, *batchSize)
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"error": err.Error(),
		}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Case UUID:           %s\n", key.CaseUUID)
	fmt.Printf("Ensemble:            %s\n", key.Ensemble)
	fmt.Printf("Realizations:        %d\n", result.TotalRealizations)
	fmt.Printf("Failed Realizations: %d\n", result.FailedRealizations)
	fmt.Printf("Group Tree Rows:     %d\n", result.GroupTreeRows)
	fmt.Printf("Summary Samples:     %d\n", result.SummarySamples)
	fmt.Printf("Duration:            %v\n", result.Duration)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed", logging.Fields{
		"case_uuid":           key.CaseUUID,
		"realizations":        result.TotalRealizations,
		"failed_realizations": result.FailedRealizations,
		"duration_seconds":    result.Duration.Seconds(),
	})
}
