package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"fallas-platform/internal/models"
	"fallas-platform/internal/repository"
	"fallas-platform/internal/services"
	"fallas-platform/pkg/logging"
	"fallas-platform/pkg/metrics"
)

// PollutionHandler handles the air quality API endpoints
type PollutionHandler struct {
	analysisService *services.AnalysisService
	logger          *logging.StructuredLogger
	metrics         *metrics.Collector
}

// NewPollutionHandler creates a new pollution handler
func NewPollutionHandler(
	analysisService *services.AnalysisService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *PollutionHandler {
	return &PollutionHandler{
		analysisService: analysisService,
		logger:          logger,
		metrics:         metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// SelectionResponse wraps an aggregation result with the selection it
// was computed for
type SelectionResponse struct {
	Years     []int       `json:"years"`
	Pollutant string      `json:"pollutant"`
	Data      interface{} `json:"data"`
}

// GetObservations handles GET /api/pollution
func (h *PollutionHandler) GetObservations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/pollution").Observe(duration.Seconds())
	}()

	years, err := parseYears(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	// Default pagination
	page := 1
	limit := 100

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	filter := services.ListFilter{
		Years:  years,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if periodStr := r.URL.Query().Get("period"); periodStr != "" {
		period, ok := models.ParsePeriod(periodStr)
		if !ok {
			h.sendError(w, r, "unknown period label", http.StatusBadRequest)
			return
		}
		filter.Period = &period
	}

	if monthStr := r.URL.Query().Get("month"); monthStr != "" {
		month, err := strconv.Atoi(monthStr)
		if err != nil || month < 1 || month > 12 {
			h.sendError(w, r, "invalid month, expected integer between 1 and 12", http.StatusBadRequest)
			return
		}
		filter.Month = &month
	}

	observations, total, err := h.analysisService.ListObservations(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_OBSERVATIONS_ERROR] Failed to get observations", logging.Fields{
			"filter": filter,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/pollution")
		h.sendError(w, r, "failed to retrieve observations", http.StatusInternalServerError)
		return
	}

	totalPages := (total + limit - 1) / limit

	response := PaginatedResponse{
		Data:       observations,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}

	h.metrics.RecordAPIRequest("/api/pollution", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetObservationByDate handles GET /api/pollution/day/{date}
func (h *PollutionHandler) GetObservationByDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dateStr := mux.Vars(r)["date"]
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		h.sendError(w, r, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	obs, err := h.analysisService.ObservationByDate(ctx, date)
	if err != nil {
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			h.sendError(w, r, notFound.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error(ctx, "[API_GET_DAY_ERROR] Failed to get observation", logging.Fields{
			"date": dateStr,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/pollution/day")
		h.sendError(w, r, "failed to retrieve observation", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/pollution/day", "GET", "200")
	h.sendJSON(w, obs, http.StatusOK)
}

// GetPeriodSummary handles GET /api/pollution/periods
func (h *PollutionHandler) GetPeriodSummary(w http.ResponseWriter, r *http.Request) {
	h.handleAggregation(w, r, "/api/pollution/periods", func(ctx requestContext) (interface{}, error) {
		return h.analysisService.PeriodSummary(ctx.ctx, ctx.years, ctx.pollutant)
	})
}

// GetYearlyComparison handles GET /api/pollution/yearly
func (h *PollutionHandler) GetYearlyComparison(w http.ResponseWriter, r *http.Request) {
	h.handleAggregation(w, r, "/api/pollution/yearly", func(ctx requestContext) (interface{}, error) {
		return h.analysisService.YearlyComparison(ctx.ctx, ctx.years, ctx.pollutant)
	})
}

// GetExceedance handles GET /api/pollution/exceedance
func (h *PollutionHandler) GetExceedance(w http.ResponseWriter, r *http.Request) {
	h.handleAggregation(w, r, "/api/pollution/exceedance", func(ctx requestContext) (interface{}, error) {
		return h.analysisService.Exceedance(ctx.ctx, ctx.years, ctx.pollutant)
	})
}

// GetTimeSeries handles GET /api/pollution/timeseries
func (h *PollutionHandler) GetTimeSeries(w http.ResponseWriter, r *http.Request) {
	h.handleAggregation(w, r, "/api/pollution/timeseries", func(ctx requestContext) (interface{}, error) {
		return h.analysisService.MarchSeries(ctx.ctx, ctx.years, ctx.pollutant)
	})
}

// GetGauge handles GET /api/pollution/gauge
func (h *PollutionHandler) GetGauge(w http.ResponseWriter, r *http.Request) {
	h.handleAggregation(w, r, "/api/pollution/gauge", func(ctx requestContext) (interface{}, error) {
		return h.analysisService.Gauge(ctx.ctx, ctx.years, ctx.pollutant)
	})
}

// GetYears handles GET /api/pollution/years
func (h *PollutionHandler) GetYears(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	years, err := h.analysisService.AvailableYears(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_YEARS_ERROR] Failed to list years", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/pollution/years")
		h.sendError(w, r, "failed to retrieve years", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/pollution/years", "GET", "200")
	h.sendJSON(w, map[string]interface{}{"years": years}, http.StatusOK)
}

// GetGuidelines handles GET /api/pollution/guidelines
func (h *PollutionHandler) GetGuidelines(w http.ResponseWriter, r *http.Request) {
	guidelines := make(map[string]float64)
	for _, p := range models.AllPollutants {
		if limit, ok := models.WHOGuideline(p); ok {
			guidelines[string(p)] = limit
		}
	}

	h.metrics.RecordAPIRequest("/api/pollution/guidelines", "GET", "200")
	h.sendJSON(w, map[string]interface{}{"guidelines": guidelines}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *PollutionHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// requestContext carries the parsed selection for aggregation endpoints
type requestContext struct {
	ctx       context.Context
	years     []int
	pollutant models.Pollutant
}

// handleAggregation parses the common years/pollutant selection,
// invokes the aggregation, and maps errors to status codes
func (h *PollutionHandler) handleAggregation(w http.ResponseWriter, r *http.Request, endpoint string, compute func(requestContext) (interface{}, error)) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	}()

	years, err := parseYears(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	pollutant, err := parsePollutant(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := compute(requestContext{ctx: ctx, years: years, pollutant: pollutant})
	if err != nil {
		var noGuideline *services.NoGuidelineError
		if errors.As(err, &noGuideline) {
			h.sendError(w, r, noGuideline.Error(), http.StatusBadRequest)
			return
		}

		h.logger.Error(ctx, "[API_AGGREGATION_ERROR] Aggregation failed", logging.Fields{
			"endpoint":  endpoint,
			"years":     years,
			"pollutant": string(pollutant),
		}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.sendError(w, r, "failed to compute aggregation", http.StatusInternalServerError)
		return
	}

	response := SelectionResponse{
		Years:     years,
		Pollutant: string(pollutant),
		Data:      data,
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// parseYears parses the years query parameter as a comma-separated
// list. Absent or empty means "no selection" and is passed through to
// the aggregator's documented fallback.
func parseYears(r *http.Request) ([]int, error) {
	raw := r.URL.Query().Get("years")
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	years := make([]int, 0, len(parts))
	for _, p := range parts {
		year, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.New("invalid years, expected comma-separated integers")
		}
		years = append(years, year)
	}
	return years, nil
}

// parsePollutant parses the pollutant query parameter, defaulting to
// PM2.5 like the dashboard's initial selection
func parsePollutant(r *http.Request) (models.Pollutant, error) {
	raw := r.URL.Query().Get("pollutant")
	if raw == "" {
		return models.PollutantPM25, nil
	}

	pollutant, ok := models.ParsePollutant(raw)
	if !ok {
		return "", errors.New("unknown pollutant, expected one of PM2.5, PM10, NO2, NOx")
	}
	return pollutant, nil
}

// sendJSON sends a JSON response
func (h *PollutionHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *PollutionHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all pollution API routes
func (h *PollutionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/pollution", h.GetObservations).Methods("GET")
	router.HandleFunc("/api/pollution/day/{date}", h.GetObservationByDate).Methods("GET")
	router.HandleFunc("/api/pollution/periods", h.GetPeriodSummary).Methods("GET")
	router.HandleFunc("/api/pollution/yearly", h.GetYearlyComparison).Methods("GET")
	router.HandleFunc("/api/pollution/exceedance", h.GetExceedance).Methods("GET")
	router.HandleFunc("/api/pollution/timeseries", h.GetTimeSeries).Methods("GET")
	router.HandleFunc("/api/pollution/gauge", h.GetGauge).Methods("GET")
	router.HandleFunc("/api/pollution/years", h.GetYears).Methods("GET")
	router.HandleFunc("/api/pollution/guidelines", h.GetGuidelines).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
