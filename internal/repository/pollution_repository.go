package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"fallas-platform/internal/models"
	"fallas-platform/pkg/database"
	"fallas-platform/pkg/logging"
	"fallas-platform/pkg/metrics"
)

// PollutionRepository provides data access for air quality observations
type PollutionRepository interface {
	// Observation operations
	CreateObservation(ctx context.Context, obs *models.Observation) error
	CreateObservationsBatch(ctx context.Context, observations []*models.Observation) error
	GetObservations(ctx context.Context, filter ObservationFilter) ([]*models.Observation, int, error)
	GetAllObservations(ctx context.Context) ([]*models.Observation, error)
	GetObservationByDate(ctx context.Context, date time.Time) (*models.Observation, error)

	// Year operations
	ListYears(ctx context.Context, minYear int) ([]int, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// ObservationFilter defines filters for querying observations
type ObservationFilter struct {
	Years  []int
	Period *models.Period
	Month  *int
	Limit  int
	Offset int
}

// pollutionRepository implements PollutionRepository
type pollutionRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPollutionRepository creates a new pollution repository
func NewPollutionRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) PollutionRepository {
	return &pollutionRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CreateObservation creates a single observation, updating the row on
// date conflict
func (r *pollutionRepository) CreateObservation(ctx context.Context, obs *models.Observation) error {
	query := `
		INSERT INTO pollution_observations (
			observation_date, year, month, day, period,
			pm25, pm10, no2, nox, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (observation_date) DO UPDATE SET
			pm25 = EXCLUDED.pm25,
			pm10 = EXCLUDED.pm10,
			no2 = EXCLUDED.no2,
			nox = EXCLUDED.nox
		RETURNING id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		obs.Date,
		obs.Year,
		obs.Month,
		obs.Day,
		string(obs.Period),
		obs.PM25,
		obs.PM10,
		obs.NO2,
		obs.NOx,
		obs.CreatedAt,
	).Scan(&obs.ID)

	if err != nil {
		return fmt.Errorf("failed to create observation: %w", err)
	}

	return nil
}

// CreateObservationsBatch creates multiple observations in a single transaction
func (r *pollutionRepository) CreateObservationsBatch(ctx context.Context, observations []*models.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.IngestionBatchSize.Observe(float64(len(observations)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(observations),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	// Begin transaction
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Prepare statement
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pollution_observations (
			observation_date, year, month, day, period,
			pm25, pm10, no2, nox, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (observation_date) DO UPDATE SET
			pm25 = EXCLUDED.pm25,
			pm10 = EXCLUDED.pm10,
			no2 = EXCLUDED.no2,
			nox = EXCLUDED.nox
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	// Execute batch
	for _, obs := range observations {
		_, err := stmt.ExecContext(ctx,
			obs.Date,
			obs.Year,
			obs.Month,
			obs.Day,
			string(obs.Period),
			obs.PM25,
			obs.PM10,
			obs.NO2,
			obs.NOx,
			obs.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert observation: %w", err)
		}
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.Add(float64(len(observations)))

	return nil
}

// GetObservations retrieves observations with filtering and pagination
func (r *pollutionRepository) GetObservations(ctx context.Context, filter ObservationFilter) ([]*models.Observation, int, error) {
	// Build query with filters
	query := `
		SELECT id, observation_date, year, month, day, period,
		       pm25, pm10, no2, nox, created_at
		FROM pollution_observations
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if len(filter.Years) > 0 {
		query += fmt.Sprintf(" AND year = ANY($%d)", argNum)
		args = append(args, pq.Array(filter.Years))
		argNum++
	}

	if filter.Period != nil {
		query += fmt.Sprintf(" AND period = $%d", argNum)
		args = append(args, string(*filter.Period))
		argNum++
	}

	if filter.Month != nil {
		query += fmt.Sprintf(" AND month = $%d", argNum)
		args = append(args, *filter.Month)
		argNum++
	}

	// Get total count
	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := r.db.GetContext(ctx, "count_observations", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count observations: %w", err)
	}

	// Add ordering and pagination
	query += " ORDER BY observation_date"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	// Execute query
	var observations []*models.Observation
	err = r.db.SelectContext(ctx, "get_observations", &observations, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get observations: %w", err)
	}

	return observations, totalCount, nil
}

// GetAllObservations retrieves the full observation table in date order.
// The table is one row per day for a handful of years, so a full scan
// stays small enough to aggregate in memory.
func (r *pollutionRepository) GetAllObservations(ctx context.Context) ([]*models.Observation, error) {
	query := `
		SELECT id, observation_date, year, month, day, period,
		       pm25, pm10, no2, nox, created_at
		FROM pollution_observations
		ORDER BY observation_date
	`

	var observations []*models.Observation
	err := r.db.SelectContext(ctx, "get_all_observations", &observations, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get observations: %w", err)
	}

	return observations, nil
}

// GetObservationByDate retrieves a specific observation
func (r *pollutionRepository) GetObservationByDate(ctx context.Context, date time.Time) (*models.Observation, error) {
	query := `
		SELECT id, observation_date, year, month, day, period,
		       pm25, pm10, no2, nox, created_at
		FROM pollution_observations
		WHERE observation_date = $1
	`

	var obs models.Observation
	err := r.db.GetContext(ctx, "get_observation_by_date", &obs, query, date)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{
			Resource: "pollution_observation",
			ID:       date.Format("2006-01-02"),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get observation: %w", err)
	}

	return &obs, nil
}

// ListYears retrieves the distinct observation years at or above minYear
func (r *pollutionRepository) ListYears(ctx context.Context, minYear int) ([]int, error) {
	query := `
		SELECT DISTINCT year
		FROM pollution_observations
		WHERE year >= $1
		ORDER BY year
	`

	var years []int
	err := r.db.SelectContext(ctx, "list_years", &years, query, minYear)
	if err != nil {
		return nil, fmt.Errorf("failed to list years: %w", err)
	}

	return years, nil
}

// HealthCheck performs a repository health check
func (r *pollutionRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
