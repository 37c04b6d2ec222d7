package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"fallas-platform/internal/models"
	"fallas-platform/internal/repository"
	"fallas-platform/pkg/logging"
	"fallas-platform/pkg/metrics"
)

// Shared across tests: prometheus collectors register globally and can
// only be created once per namespace
var testMetrics = metrics.NewCollector("services_test")

func fp(v float64) *float64 { return &v }

func testObs(year, month, day int, pm25 *float64) *models.Observation {
	return &models.Observation{
		Date:   time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC),
		Year:   year,
		Month:  month,
		Day:    day,
		Period: models.PeriodForDate(month, day),
		PM25:   pm25,
	}
}

type fixedSource struct {
	table []*models.Observation
}

func (s *fixedSource) Observations(ctx context.Context) ([]*models.Observation, error) {
	return s.table, nil
}

func (s *fixedSource) ListObservations(ctx context.Context, filter ListFilter) ([]*models.Observation, int, error) {
	return s.table, len(s.table), nil
}

func (s *fixedSource) ObservationByDate(ctx context.Context, date time.Time) (*models.Observation, error) {
	return nil, &repository.NotFoundError{Resource: "pollution_observation", ID: date.Format("2006-01-02")}
}

func (s *fixedSource) Years(ctx context.Context, minYear int) ([]int, error) {
	seen := map[int]bool{}
	years := []int{}
	for _, o := range s.table {
		if o.Year >= minYear && !seen[o.Year] {
			seen[o.Year] = true
			years = append(years, o.Year)
		}
	}
	return years, nil
}

func newTestService(table []*models.Observation, defaultYears []int) *AnalysisService {
	logger := logging.NewStructuredLogger("services-test", "test", logging.ErrorLevel)
	logger.SetOutput(os.Stderr)
	return NewAnalysisService(&fixedSource{table: table}, defaultYears, 2019, logger, testMetrics)
}

func marchPair(year int, pre, during float64) []*models.Observation {
	return []*models.Observation{
		testObs(year, 3, 2, fp(pre)),
		testObs(year, 3, 16, fp(during)),
	}
}

func TestYearlyComparison_EmptySelectionUsesDefaults(t *testing.T) {
	table := append(marchPair(2021, 10, 20), marchPair(2022, 10, 30)...)
	table = append(table, marchPair(2023, 10, 40)...)

	svc := newTestService(table, []int{2022, 2023})

	results, err := svc.YearlyComparison(context.Background(), nil, models.PollutantPM25)
	if err != nil {
		t.Fatalf("YearlyComparison() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("len = %d, want 2 (only configured defaults present in data)", len(results))
	}
	if results[0].Year != 2022 || results[1].Year != 2023 {
		t.Errorf("years = %d, %d, want 2022, 2023", results[0].Year, results[1].Year)
	}
}

func TestYearlyComparison_DefaultsAbsentFallsBackToRecent(t *testing.T) {
	table := append(marchPair(2019, 10, 20), marchPair(2020, 10, 30)...)
	table = append(table, marchPair(2021, 10, 40)...)

	// None of the configured defaults exist in the data
	svc := newTestService(table, []int{2024, 2025})

	results, err := svc.YearlyComparison(context.Background(), nil, models.PollutantPM25)
	if err != nil {
		t.Fatalf("YearlyComparison() error = %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("len = %d, want the 3 most recent available years", len(results))
	}
}

func TestYearlyComparison_ExplicitSelectionBypassesDefaults(t *testing.T) {
	table := append(marchPair(2021, 10, 20), marchPair(2022, 10, 30)...)

	svc := newTestService(table, []int{2022})

	results, err := svc.YearlyComparison(context.Background(), []int{2021}, models.PollutantPM25)
	if err != nil {
		t.Fatalf("YearlyComparison() error = %v", err)
	}

	if len(results) != 1 || results[0].Year != 2021 {
		t.Errorf("results = %+v, want only 2021", results)
	}
}

func TestExceedance_NoGuideline(t *testing.T) {
	svc := newTestService(nil, nil)

	_, err := svc.Exceedance(context.Background(), nil, models.PollutantNOx)

	var noGuideline *NoGuidelineError
	if !errors.As(err, &noGuideline) {
		t.Fatalf("error = %v, want NoGuidelineError", err)
	}
	if noGuideline.IsTransient() {
		t.Error("NoGuidelineError should not be transient")
	}
}

func TestPeriodSummary_EmptySelectionUsesFullTable(t *testing.T) {
	table := append(marchPair(2021, 10, 20), marchPair(2022, 20, 40)...)

	svc := newTestService(table, []int{2022})

	stats, err := svc.PeriodSummary(context.Background(), nil, models.PollutantPM25)
	if err != nil {
		t.Fatalf("PeriodSummary() error = %v", err)
	}

	// Means over both years, not just the default selection
	if stats.PreMean != 15 || stats.DuringMean != 30 {
		t.Errorf("means = %+v, want pre 15 during 30", stats)
	}
}
