package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flownetwork-platform/internal/config"
	"flownetwork-platform/internal/handlers"
	"flownetwork-platform/internal/models"
	"flownetwork-platform/internal/repository"
	"flownetwork-platform/internal/services"
	"flownetwork-platform/pkg/logging"
	"flownetwork-platform/pkg/metrics"
)

const version = "1.0.0"

func main() {
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

	logger := logging.NewStructuredLogger("flownetwork-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting flow network API server", logging.Fields{
		"version":         version,
		"server_host":     cfg.Server.Host,
		"server_port":     cfg.Server.Port,
		"summary_backend": cfg.Summary.Backend,
	})

	metricsCollector := metrics.NewCollector("flownetwork_platform")

	stores, err := repository.OpenStores(ctx, cfg, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to open stores", logging.Fields{}, err)
	}
	defer stores.Close()

	treeType, err := models.ParseTreeType(cfg.FlowNetwork.DefaultTreeType)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid default tree type", logging.Fields{}, err)
	}
	frequency, err := models.ParseFrequency(cfg.FlowNetwork.DefaultResamplingFrequency)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid default resampling frequency", logging.Fields{}, err)
	}

	flowService := services.NewFlowNetworkService(
		services.NewStoreSourceFactory(stores.Flow, stores.Flow, stores.Summaries),
		services.FlowNetworkDefaults{
			TerminalNode:        cfg.FlowNetwork.DefaultTerminalNode,
			TreeType:            treeType,
			Frequency:           frequency,
			ExcludeWellPrefixes: cfg.FlowNetwork.DefaultExcludeWellPrefixes,
			ExcludeWellSuffixes: cfg.FlowNetwork.DefaultExcludeWellSuffixes,
			RequestTimeout:      cfg.FlowNetwork.RequestTimeout,
		},
		logger,
		metricsCollector,
	)

	flowHandler := handlers.NewFlowNetworkHandler(flowService, stores.Flow, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()
	router.Use(handlers.RequestMiddleware(logger, metricsCollector))

	// Register routes
	flowHandler.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
