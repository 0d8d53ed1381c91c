package repository

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"flownetwork-platform/internal/config"
	"flownetwork-platform/pkg/database"
	"flownetwork-platform/pkg/logging"
	"flownetwork-platform/pkg/metrics"
)

// Stores bundles the stores a process reads and writes. Group trees and ensembles
// always live in PostgreSQL; summary vectors live in the configured backend.
type Stores struct {
	Flow      FlowDataRepository
	Summaries interface {
		SummaryStore
		SummaryWriter
	}

	db     *database.PostgresDB
	influx influxdb2.Client
}

// OpenStores connects to PostgreSQL and, for the influx backend, to InfluxDB
func OpenStores(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*Stores, error) {
	db, err := database.NewPostgresDB(&database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, logger, metricsCollector)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	flow := NewFlowDataRepository(db, logger, metricsCollector)
	stores := &Stores{Flow: flow, Summaries: flow, db: db}

	if cfg.Summary.Backend == "influx" {
		client := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
		if _, err := client.Health(ctx); err != nil {
			client.Close()
			db.Close()
			return nil, fmt.Errorf("failed to reach InfluxDB at %s: %w", cfg.Influx.URL, err)
		}
		stores.influx = client
		stores.Summaries = NewInfluxSummaryStore(
			client.QueryAPI(cfg.Influx.Org),
			client.WriteAPIBlocking(cfg.Influx.Org, cfg.Influx.Bucket),
			cfg.Influx.Bucket,
			cfg.Influx.Measurement,
			logger,
			metricsCollector,
		)
	}

	logger.Info(ctx, "[STORES_READY] Stores connected", logging.Fields{
		"summary_backend": cfg.Summary.Backend,
		"db_host":         cfg.Database.Host,
		"db_name":         cfg.Database.Database,
	})
	return stores, nil
}

// Close releases the database and InfluxDB connections
func (s *Stores) Close() {
	if s.influx != nil {
		s.influx.Close()
	}
	s.db.Close()
}
