package services

import (
	"context"
	"time"

	"fallas-platform/internal/analysis"
	"fallas-platform/internal/loader"
	"fallas-platform/internal/models"
	"fallas-platform/internal/repository"
)

// CSVSource serves observations from the memoized CSV loader.
// Filtering and pagination happen in memory; the table is a few
// thousand rows at most.
type CSVSource struct {
	loader *loader.CachedLoader
}

// NewCSVSource creates an observation source backed by a cached CSV loader
func NewCSVSource(l *loader.CachedLoader) *CSVSource {
	return &CSVSource{loader: l}
}

// Observations returns the cached observation table
func (s *CSVSource) Observations(ctx context.Context) ([]*models.Observation, error) {
	return s.loader.Observations(ctx)
}

// ListObservations filters and paginates the cached table
func (s *CSVSource) ListObservations(ctx context.Context, filter ListFilter) ([]*models.Observation, int, error) {
	obs, err := s.loader.Observations(ctx)
	if err != nil {
		return nil, 0, err
	}

	matched := make([]*models.Observation, 0, len(obs))
	for _, o := range analysis.FilterByYears(obs, filter.Years) {
		if filter.Period != nil && o.Period != *filter.Period {
			continue
		}
		if filter.Month != nil && o.Month != *filter.Month {
			continue
		}
		matched = append(matched, o)
	}

	total := len(matched)

	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if filter.Limit <= 0 || end > total {
		end = total
	}

	return matched[start:end], total, nil
}

// ObservationByDate scans the cached table for a single date
func (s *CSVSource) ObservationByDate(ctx context.Context, date time.Time) (*models.Observation, error) {
	obs, err := s.loader.Observations(ctx)
	if err != nil {
		return nil, err
	}

	y, m, d := date.Date()
	for _, o := range obs {
		if o.Year == y && o.Month == int(m) && o.Day == d {
			return o, nil
		}
	}

	return nil, &repository.NotFoundError{
		Resource: "pollution_observation",
		ID:       date.Format("2006-01-02"),
	}
}

// Years returns the distinct years in the cached table at or above minYear
func (s *CSVSource) Years(ctx context.Context, minYear int) ([]int, error) {
	obs, err := s.loader.Observations(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.AvailableYears(obs, minYear), nil
}

// RepositorySource serves observations from the Postgres repository
type RepositorySource struct {
	repo repository.PollutionRepository
}

// NewRepositorySource creates an observation source backed by the repository
func NewRepositorySource(repo repository.PollutionRepository) *RepositorySource {
	return &RepositorySource{repo: repo}
}

// Observations returns the full observation table
func (s *RepositorySource) Observations(ctx context.Context) ([]*models.Observation, error) {
	return s.repo.GetAllObservations(ctx)
}

// ListObservations delegates filtering and pagination to the repository
func (s *RepositorySource) ListObservations(ctx context.Context, filter ListFilter) ([]*models.Observation, int, error) {
	return s.repo.GetObservations(ctx, repository.ObservationFilter{
		Years:  filter.Years,
		Period: filter.Period,
		Month:  filter.Month,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// ObservationByDate delegates to the repository
func (s *RepositorySource) ObservationByDate(ctx context.Context, date time.Time) (*models.Observation, error) {
	return s.repo.GetObservationByDate(ctx, date)
}

// Years delegates to the repository
func (s *RepositorySource) Years(ctx context.Context, minYear int) ([]int, error) {
	return s.repo.ListYears(ctx, minYear)
}
