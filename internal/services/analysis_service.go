package services

import (
	"context"
	"fmt"
	"time"

	"fallas-platform/internal/analysis"
	"fallas-platform/internal/models"
	"fallas-platform/pkg/logging"
	"fallas-platform/pkg/metrics"
)

// ObservationSource abstracts where the observation table comes from:
// the memoized CSV loader or the Postgres repository. Aggregation is
// always computed in memory over the table the source returns.
type ObservationSource interface {
	// Observations returns the full observation table in date order.
	// Callers treat the returned slice as read-only.
	Observations(ctx context.Context) ([]*models.Observation, error)

	// ListObservations returns a filtered, paginated page of
	// observations plus the total match count
	ListObservations(ctx context.Context, filter ListFilter) ([]*models.Observation, int, error)

	// ObservationByDate returns the single observation for a date
	ObservationByDate(ctx context.Context, date time.Time) (*models.Observation, error)

	// Years returns the distinct observation years at or above minYear
	Years(ctx context.Context, minYear int) ([]int, error)
}

// ListFilter defines filters for listing observations
type ListFilter struct {
	Years  []int
	Period *models.Period
	Month  *int
	Limit  int
	Offset int
}

// AnalysisService binds an observation source to the aggregation
// engine and applies the configured dashboard defaults
type AnalysisService struct {
	source       ObservationSource
	defaultYears []int
	yearMinimum  int
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(source ObservationSource, defaultYears []int, yearMinimum int, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AnalysisService {
	return &AnalysisService{
		source:       source,
		defaultYears: defaultYears,
		yearMinimum:  yearMinimum,
		logger:       logger,
		metrics:      metricsCollector,
	}
}

// ListObservations retrieves observations with filtering and pagination
func (s *AnalysisService) ListObservations(ctx context.Context, filter ListFilter) ([]*models.Observation, int, error) {
	return s.source.ListObservations(ctx, filter)
}

// ObservationByDate retrieves the observation for a single date
func (s *AnalysisService) ObservationByDate(ctx context.Context, date time.Time) (*models.Observation, error) {
	return s.source.ObservationByDate(ctx, date)
}

// AvailableYears returns the selectable years, honoring the configured
// year floor
func (s *AnalysisService) AvailableYears(ctx context.Context) ([]int, error) {
	return s.source.Years(ctx, s.yearMinimum)
}

// PeriodSummary computes the per-period means for the year selection.
// An empty selection aggregates over the full table.
func (s *AnalysisService) PeriodSummary(ctx context.Context, years []int, pollutant models.Pollutant) (models.PeriodStats, error) {
	startTime := time.Now()
	defer func() { s.metrics.ObserveAggregation("period_summary", time.Since(startTime)) }()

	obs, err := s.source.Observations(ctx)
	if err != nil {
		return models.PeriodStats{}, err
	}

	filtered := analysis.FilterByYears(obs, years)
	stats := analysis.PeriodSummary(filtered, pollutant)

	s.logger.Debug(ctx, "[ANALYSIS_PERIODS] Period summary computed", logging.Fields{
		"years":     years,
		"pollutant": string(pollutant),
		"rows":      len(filtered),
	})

	return stats, nil
}

// YearlyComparison computes the March pre/during comparison for the
// selected years. An empty selection falls back to the configured
// default years when present in the data, otherwise to the three most
// recent available years.
func (s *AnalysisService) YearlyComparison(ctx context.Context, years []int, pollutant models.Pollutant) ([]models.YearlyStats, error) {
	startTime := time.Now()
	defer func() { s.metrics.ObserveAggregation("yearly_comparison", time.Since(startTime)) }()

	obs, err := s.source.Observations(ctx)
	if err != nil {
		return nil, err
	}

	if len(years) == 0 {
		years = s.resolveDefaultYears(obs)
	}

	filtered := analysis.FilterByYears(obs, years)
	return analysis.YearlyComparison(filtered, years, pollutant), nil
}

// Exceedance counts Fallas-period guideline exceedances for the year
// selection. Pollutants without a WHO guideline are an error the
// handler maps to a client failure.
func (s *AnalysisService) Exceedance(ctx context.Context, years []int, pollutant models.Pollutant) (models.ExceedanceResult, error) {
	startTime := time.Now()
	defer func() { s.metrics.ObserveAggregation("exceedance", time.Since(startTime)) }()

	limit, ok := models.WHOGuideline(pollutant)
	if !ok {
		return models.ExceedanceResult{}, &NoGuidelineError{Pollutant: pollutant}
	}

	obs, err := s.source.Observations(ctx)
	if err != nil {
		return models.ExceedanceResult{}, err
	}

	filtered := analysis.FilterByYears(obs, years)
	return analysis.Exceedance(filtered, pollutant, limit), nil
}

// MarchSeries returns the March daily values for the year selection
func (s *AnalysisService) MarchSeries(ctx context.Context, years []int, pollutant models.Pollutant) ([]models.SeriesPoint, error) {
	startTime := time.Now()
	defer func() { s.metrics.ObserveAggregation("march_series", time.Since(startTime)) }()

	obs, err := s.source.Observations(ctx)
	if err != nil {
		return nil, err
	}

	filtered := analysis.FilterByYears(obs, years)
	return analysis.MarchSeries(filtered, pollutant), nil
}

// Gauge summarizes the Fallas mean against the WHO guideline
func (s *AnalysisService) Gauge(ctx context.Context, years []int, pollutant models.Pollutant) (models.GaugeSummary, error) {
	startTime := time.Now()
	defer func() { s.metrics.ObserveAggregation("gauge", time.Since(startTime)) }()

	obs, err := s.source.Observations(ctx)
	if err != nil {
		return models.GaugeSummary{}, err
	}

	filtered := analysis.FilterByYears(obs, years)
	summary, ok := analysis.Gauge(filtered, pollutant)
	if !ok {
		return models.GaugeSummary{}, &NoGuidelineError{Pollutant: pollutant}
	}

	return summary, nil
}

/// resolveDefaultYears mirrors the dashboard's year preselection: the
// configured default years that exist in the data, or the three most
// recent available years when none of the defaults do
func (s *AnalysisService) resolveDefaultYears(obs []*models.Observation) []int {
	available := analysis.AvailableYears(obs, s.yearMinimum)

	inData := make(map[int]bool, len(available))
	for _, y := range available {
		inData[y] = true
	}

	years := make([]int, 0, len(s.defaultYears))
	for _, y := range s.defaultYears {
		if inData[y] {
			years = append(years, y)
		}
	}

	if len(years) == 0 && len(available) > 0 {
		start := len(available) - 3
		if start < 0 {
			start = 0
		}
		years = available[start:]
	}

	return years
}

// NoGuidelineError signals a request for guideline-based analysis of a
// pollutant that has no WHO guideline
type NoGuidelineError struct {
	Pollutant models.Pollutant
}

func (e *NoGuidelineError) Error() string {
	return fmt.Sprintf("no WHO guideline defined for pollutant %s", e.Pollutant)
}

// IsTransient returns false; retrying cannot produce a guideline
func (e *NoGuidelineError) IsTransient() bool {
	return false
}
