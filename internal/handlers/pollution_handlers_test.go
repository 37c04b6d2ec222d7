package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"fallas-platform/internal/models"
	"fallas-platform/internal/repository"
	"fallas-platform/internal/services"
	"fallas-platform/pkg/logging"
	"fallas-platform/pkg/metrics"
)

// Shared across tests: prometheus collectors register globally and can
// only be created once per namespace
var testMetrics = metrics.NewCollector("handlers_test")

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

// stubSource serves a fixed observation table
type stubSource struct {
	table []*models.Observation
}

func (s *stubSource) Observations(ctx context.Context) ([]*models.Observation, error) {
	return s.table, nil
}

func (s *stubSource) ListObservations(ctx context.Context, filter services.ListFilter) ([]*models.Observation, int, error) {
	return s.table, len(s.table), nil
}

func (s *stubSource) ObservationByDate(ctx context.Context, date time.Time) (*models.Observation, error) {
	y, m, d := date.Date()
	for _, o := range s.table {
		if o.Year == y && o.Month == int(m) && o.Day == d {
			return o, nil
		}
	}
	return nil, &repository.NotFoundError{Resource: "pollution_observation", ID: date.Format("2006-01-02")}
}

func (s *stubSource) Years(ctx context.Context, minYear int) ([]int, error) {
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

func newTestRouter(table []*models.Observation) *mux.Router {
	logger := logging.NewStructuredLogger("handlers-test", "test", logging.ErrorLevel)
	logger.SetOutput(os.Stderr)

	svc := services.NewAnalysisService(&stubSource{table: table}, []int{2022, 2023}, 2019, logger, testMetrics)
	handler := NewPollutionHandler(svc, logger, testMetrics)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func doGet(t *testing.T, router *mux.Router, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func defaultTable() []*models.Observation {
	return []*models.Observation{
		testObs(2022, 3, 2, fp(10)),
		testObs(2022, 3, 16, fp(25)),
		testObs(2023, 3, 2, fp(12)),
		testObs(2023, 3, 16, fp(30)),
		testObs(2023, 3, 17, fp(10)),
		testObs(2023, 3, 25, fp(14)),
		testObs(2023, 8, 1, fp(7)),
	}
}

func TestGetPeriodSummary(t *testing.T) {
	rec := doGet(t, newTestRouter(defaultTable()), "/api/pollution/periods?years=2023&pollutant=PM2.5")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Years     []int              `json:"years"`
		Pollutant string             `json:"pollutant"`
		Data      models.PeriodStats `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Pollutant != "PM2.5" {
		t.Errorf("pollutant = %q, want PM2.5", resp.Pollutant)
	}
	if resp.Data.PreMean != 12 {
		t.Errorf("PreMean = %v, want 12", resp.Data.PreMean)
	}
	if resp.Data.DuringMean != 20 {
		t.Errorf("DuringMean = %v, want 20", resp.Data.DuringMean)
	}
	if resp.Data.RestMean != 7 {
		t.Errorf("RestMean = %v, want 7", resp.Data.RestMean)
	}
}

func TestGetYearlyComparison(t *testing.T) {
	rec := doGet(t, newTestRouter(defaultTable()), "/api/pollution/yearly?years=2022,2023")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data []models.YearlyStats `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(resp.Data) != 2 {
		t.Fatalf("years in result = %d, want 2", len(resp.Data))
	}
	if resp.Data[0].Year != 2022 || resp.Data[0].PctChange != 150 {
		t.Errorf("2022 = %+v, want pct_change 150", resp.Data[0])
	}
}

func TestGetExceedance(t *testing.T) {
	t.Run("computable rate", func(t *testing.T) {
		rec := doGet(t, newTestRouter(defaultTable()), "/api/pollution/exceedance?years=2023&pollutant=PM2.5")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Data models.ExceedanceResult `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		// 2023 Fallas values: 30 and 10 against the PM2.5 limit of 15
		if resp.Data.ExceedDays != 1 || resp.Data.TotalDays != 2 {
			t.Errorf("counts = %d/%d, want 1/2", resp.Data.ExceedDays, resp.Data.TotalDays)
		}
		if resp.Data.RatePct == nil || *resp.Data.RatePct != 50 {
			t.Errorf("RatePct = %v, want 50", resp.Data.RatePct)
		}
	})

	t.Run("not computable serializes as null", func(t *testing.T) {
		rec := doGet(t, newTestRouter(defaultTable()), "/api/pollution/exceedance?years=1999&pollutant=PM2.5")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Data struct {
				RatePct *float64 `json:"rate_pct"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Data.RatePct != nil {
			t.Errorf("rate_pct = %v, want null", *resp.Data.RatePct)
		}
	})

	t.Run("pollutant without guideline is a client error", func(t *testing.T) {
		rec := doGet(t, newTestRouter(defaultTable()), "/api/pollution/exceedance?pollutant=NOx")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestGetTimeSeries(t *testing.T) {
	rec := doGet(t, newTestRouter(defaultTable()), "/api/pollution/timeseries?years=2023")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data []models.SeriesPoint `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	// 2023 March rows with a value: days 2, 16, 17, 25
	if len(resp.Data) != 4 {
		t.Fatalf("points = %d, want 4", len(resp.Data))
	}
	for i := 1; i < len(resp.Data); i++ {
		if resp.Data[i].Day < resp.Data[i-1].Day {
			t.Error("series points must be ordered by day")
		}
	}
}

func TestGetYears(t *testing.T) {
	rec := doGet(t, newTestRouter(defaultTable()), "/api/pollution/years")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Years []int `json:"years"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Years) != 2 {
		t.Errorf("years = %v, want [2022 2023]", resp.Years)
	}
}

func TestGetGuidelines(t *testing.T) {
	rec := doGet(t, newTestRouter(nil), "/api/pollution/guidelines")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Guidelines map[string]float64 `json:"guidelines"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Guidelines["PM2.5"] != 15 || resp.Guidelines["PM10"] != 45 || resp.Guidelines["NO2"] != 25 {
		t.Errorf("guidelines = %v", resp.Guidelines)
	}
	if _, present := resp.Guidelines["NOx"]; present {
		t.Error("NOx must not appear in the guideline table")
	}
}

func TestGetObservationByDate(t *testing.T) {
	router := newTestRouter(defaultTable())

	t.Run("found", func(t *testing.T) {
		rec := doGet(t, router, "/api/pollution/day/2023-03-16")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("not found", func(t *testing.T) {
		rec := doGet(t, router, "/api/pollution/day/1990-01-01")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("bad date", func(t *testing.T) {
		rec := doGet(t, router, "/api/pollution/day/yesterday")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestBadSelections(t *testing.T) {
	router := newTestRouter(defaultTable())

	t.Run("unknown pollutant", func(t *testing.T) {
		rec := doGet(t, router, "/api/pollution/periods?pollutant=O3")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("malformed years", func(t *testing.T) {
		rec := doGet(t, router, "/api/pollution/periods?years=2022,soon")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHealthCheck(t *testing.T) {
	rec := doGet(t, newTestRouter(nil), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", resp["status"])
	}
}
