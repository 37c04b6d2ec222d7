package handlers

import (
	"encoding/json"
	"net/http"
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the Fallas Air Quality API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	yearsParam := map[string]interface{}{
		"name":        "years",
		"in":          "query",
		"description": "Comma-separated year selection; empty means all years",
		"required":    false,
		"schema":      map[string]string{"type": "string", "example": "2022,2023,2024"},
	}

	pollutantParam := map[string]interface{}{
		"name":        "pollutant",
		"in":          "query",
		"description": "Pollutant to analyze (PM2.5, PM10, NO2, NOx); defaults to PM2.5",
		"required":    false,
		"schema":      map[string]string{"type": "string", "example": "PM2.5"},
	}

	selectionGet := func(summary, description string) map[string]interface{} {
		return map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     summary,
				"description": description,
				"parameters":  []map[string]interface{}{yearsParam, pollutantParam},
				"responses": map[string]interface{}{
					"200": map[string]interface{}{"description": "Successful response"},
					"400": map[string]interface{}{"description": "Invalid selection"},
				},
			},
		}
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Fallas Air Quality API",
			"description": "Period-based pollution aggregation around Valencia's Fallas festival: per-period means, year-over-year comparison, and WHO guideline exceedance",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/pollution": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List observations",
					"description": "Retrieve daily observations with filtering and pagination",
					"parameters": []map[string]interface{}{
						yearsParam,
						{
							"name":        "period",
							"in":          "query",
							"description": "Filter by period label",
							"required":    false,
							"schema":      map[string]string{"type": "string", "example": "Fallas (Mar 15-19)"},
						},
						{
							"name":        "month",
							"in":          "query",
							"description": "Filter by month (1-12)",
							"required":    false,
							"schema":      map[string]string{"type": "integer"},
						},
						{
							"name":     "page",
							"in":       "query",
							"required": false,
							"schema":   map[string]string{"type": "integer"},
						},
						{
							"name":     "limit",
							"in":       "query",
							"required": false,
							"schema":   map[string]string{"type": "integer"},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Paginated observations"},
					},
				},
			},
			"/api/pollution/day/{date}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Get the observation for a single date",
					"parameters": []map[string]interface{}{
						{
							"name":     "date",
							"in":       "path",
							"required": true,
							"schema":   map[string]string{"type": "string", "format": "date"},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "The observation"},
						"404": map[string]interface{}{"description": "No observation for that date"},
					},
				},
			},
			"/api/pollution/periods": selectionGet(
				"Period summary",
				"Mean concentration for the Pre-Fallas, Fallas, Post-Fallas, and Rest of Year periods, with the pre-to-during percentage change",
			),
			"/api/pollution/yearly": selectionGet(
				"Year-by-year comparison",
				"March-only pre/during means and percentage change per year; years missing either mean are omitted",
			),
			"/api/pollution/exceedance": selectionGet(
				"WHO guideline exceedance",
				"Fallas-period days above the WHO 24-hour guideline; rate_pct is null when no day has a measurement",
			),
			"/api/pollution/timeseries": selectionGet(
				"March time series",
				"Daily March values per year for the time-series chart",
			),
			"/api/pollution/gauge": selectionGet(
				"Guideline gauge",
				"Fallas-period mean against the WHO reference with a suggested axis ceiling",
			),
			"/api/pollution/years": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "List selectable years",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Available years at or above the configured floor"},
					},
				},
			},
			"/api/pollution/guidelines": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "WHO guideline table",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Pollutant to 24-hour guideline mapping"},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Service is healthy"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
