package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"fallas-platform/internal/config"
	"fallas-platform/internal/repository"
	"fallas-platform/internal/services"
	"fallas-platform/pkg/database"
	"fallas-platform/pkg/logging"
	"fallas-platform/pkg/metrics"
)

func main() {
	// Parse command-line flags
	csvPath := flag.String("csv", "data/all_pollution_data.csv", "Path to the pollution CSV file")
	batchSize := flag.Int("batch-size", 1000, "Number of records to process in each batch")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logLevel := logging.InfoLevel
	if cfg.Logging.Level == "debug" {
		logLevel = logging.DebugLevel
	}

	logger := logging.NewStructuredLogger("fallas-ingester", "1.0.0", logLevel)

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting pollution data ingestion", logging.Fields{
		"version":    "1.0.0",
		"csv_path":   *csvPath,
		"batch_size": *batchSize,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("fallas_ingester")

	// Initialize database
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
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository
	pollutionRepo := repository.NewPollutionRepository(db, logger, metricsCollector)

	// Initialize service
	ingestionService := services.NewIngestionService(pollutionRepo, logger, metricsCollector)

	// Ingest data
	result, err := ingestionService.IngestFile(ctx, *csvPath, *batchSize)
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"csv_path": *csvPath,
		}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if result.Duration.Seconds() > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/result.Duration.Seconds())
	}

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

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})
}
