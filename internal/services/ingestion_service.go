package services

import (
	"context"
	"fmt"
	"time"

	"fallas-platform/internal/loader"
	"fallas-platform/internal/models"
	"fallas-platform/internal/repository"
	"fallas-platform/pkg/logging"
	"fallas-platform/pkg/metrics"
)

// IngestionService loads the pollution CSV into the Postgres store
type IngestionService struct {
	repo    repository.PollutionRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Duration          time.Duration
	Errors            []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.PollutionRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestFile parses a pollution CSV file and writes its rows to the
// repository in batches
func (s *IngestionService) IngestFile(ctx context.Context, filePath string, batchSize int) (*IngestionResult, error) {
	startTime := time.Now()
	timer := s.metrics.NewTimer(s.metrics.IngestionDuration)

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"file_path":  filePath,
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	parsed, err := loader.LoadCSV(filePath)
	if err != nil {
		s.metrics.RecordIngestionError("file_error")
		return nil, fmt.Errorf("failed to load %s: %w", filePath, err)
	}

	result := &IngestionResult{
		TotalRecords:  parsed.TotalRows,
		FailedRecords: parsed.SkippedRows,
		Errors:        parsed.Errors,
	}

	for i := 0; i < parsed.SkippedRows; i++ {
		s.metrics.RecordIngestionError("parse_error")
	}

	batch := make([]*models.Observation, 0, batchSize)
	for _, obs := range parsed.Observations {
		batch = append(batch, obs)

		// Flush batch when full
		if len(batch) >= batchSize {
			if err := s.repo.CreateObservationsBatch(ctx, batch); err != nil {
				return nil, fmt.Errorf("failed to insert batch: %w", err)
			}
			result.SuccessfulRecords += len(batch)
			batch = batch[:0]
		}
	}

	// Flush remaining records
	if len(batch) > 0 {
		if err := s.repo.CreateObservationsBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to insert final batch: %w", err)
		}
		result.SuccessfulRecords += len(batch)
	}

	result.Duration = time.Since(startTime)
	timer.ObserveDuration()

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"error_count":        len(result.Errors),
		"stage":              "COMPLETE",
	})

	return result, nil
}
