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

	"fallas-platform/internal/config"
	"fallas-platform/internal/handlers"
	"fallas-platform/internal/loader"
	"fallas-platform/internal/repository"
	"fallas-platform/internal/services"
	"fallas-platform/pkg/database"
	"fallas-platform/pkg/logging"
	"fallas-platform/pkg/metrics"
)

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

	// Initialize logger
	logLevel := logging.InfoLevel
	if cfg.Logging.Level == "debug" {
		logLevel = logging.DebugLevel
	}

	logger := logging.NewStructuredLogger("fallas-api", "1.0.0", logLevel)

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting Fallas air quality API server", logging.Fields{
		"version":     "1.0.0",
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"data_source": cfg.Data.Source,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("fallas_platform")

	// Initialize the observation source
	var source services.ObservationSource

	switch cfg.Data.Source {
	case "postgres":
		dbConfig := &database.Config{
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
		}

		db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
		}
		defer db.Close()

		pollutionRepo := repository.NewPollutionRepository(db, logger, metricsCollector)
		source = services.NewRepositorySource(pollutionRepo)

	default:
		cachedLoader := loader.NewCachedLoader(cfg.Data.CSVPath, logger, metricsCollector)

		// Fail at startup rather than serving an interface that can
		// never answer; a missing data file is a user-visible error
		if _, err := cachedLoader.Observations(ctx); err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load observation data", logging.Fields{
				"csv_path": cfg.Data.CSVPath,
			}, err)
		}

		source = services.NewCSVSource(cachedLoader)
	}

	// Initialize services
	analysisService := services.NewAnalysisService(
		source,
		cfg.Data.DefaultYears,
		cfg.Data.YearFilterMinimum,
		logger,
		metricsCollector,
	)

	// Initialize handlers
	pollutionHandler := handlers.NewPollutionHandler(analysisService, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()

	// Register routes
	pollutionHandler.RegisterRoutes(router)

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
