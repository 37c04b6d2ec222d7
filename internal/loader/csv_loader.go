// Package loader reads the exported pollution CSV into observation rows
// and provides a process-wide cached view of the file, reloaded when the
// file on disk changes.
package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"fallas-platform/internal/models"
	"fallas-platform/pkg/logging"
	"fallas-platform/pkg/metrics"
)

// Result contains per-file load statistics
type Result struct {
	Observations []*models.Observation
	TotalRows    int
	SkippedRows  int
	Errors       []string
}

// LoadCSV parses a pollution CSV file. Rows that fail validation are
// counted and skipped; the load only fails outright when the file is
// unreadable or the header is missing required columns.
func LoadCSV(path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer file.Close()

	return parseCSV(file)
}

func parseCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Observations: make([]*models.Observation, 0, 2048),
		Errors:       make([]string, 0),
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		result.TotalRows++

		obs, err := parseRow(row, cols)
		if err != nil {
			result.SkippedRows++
			if len(result.Errors) < 50 {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", result.TotalRows, err))
			}
			continue
		}

		result.Observations = append(result.Observations, obs)
	}

	return result, nil
}

// columnIndex maps the input contract columns to their positions.
// Period is optional; the label is derived from the date when absent.
type columnIndex struct {
	date   int
	period int // -1 when absent
	pm25   int // -1 when absent, likewise for the rest
	pm10   int
	no2    int
	nox    int
}

func mapColumns(header []string) (*columnIndex, error) {
	cols := &columnIndex{date: -1, period: -1, pm25: -1, pm10: -1, no2: -1, nox: -1}

	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "Fecha":
			cols.date = i
		case "Period":
			cols.period = i
		case models.PollutantPM25.Column():
			cols.pm25 = i
		case models.PollutantPM10.Column():
			cols.pm10 = i
		case models.PollutantNO2.Column():
			cols.no2 = i
		case models.PollutantNOx.Column():
			cols.nox = i
		}
	}

	if cols.date == -1 {
		return nil, fmt.Errorf("missing required column Fecha in header %v", header)
	}
	if cols.pm25 == -1 && cols.pm10 == -1 && cols.no2 == -1 && cols.nox == -1 {
		return nil, fmt.Errorf("no pollutant columns found in header %v", header)
	}

	return cols, nil
}

func parseRow(row []string, cols *columnIndex) (*models.Observation, error) {
	record := &models.RawObservationRecord{
		Date: cell(row, cols.date),
	}

	if cols.period >= 0 {
		record.Period = cell(row, cols.period)
	}

	var err error
	if record.PM25, err = parseConcentration(cell(row, cols.pm25)); err != nil {
		return nil, fmt.Errorf("invalid PM2.5 value: %w", err)
	}
	if record.PM10, err = parseConcentration(cell(row, cols.pm10)); err != nil {
		return nil, fmt.Errorf("invalid PM10 value: %w", err)
	}
	if record.NO2, err = parseConcentration(cell(row, cols.no2)); err != nil {
		return nil, fmt.Errorf("invalid NO2 value: %w", err)
	}
	if record.NOx, err = parseConcentration(cell(row, cols.nox)); err != nil {
		return nil, fmt.Errorf("invalid NOx value: %w", err)
	}

	return record.ToObservation()
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseConcentration converts a CSV cell into an optional concentration.
// Blank cells are missing values, not zeros.
func parseConcentration(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if v < 0 {
		return nil, fmt.Errorf("negative concentration %v", v)
	}
	return &v, nil
}

// CachedLoader memoizes a CSV load for the process lifetime, reloading
// when the file's modification time or size changes. The cached slice
// is shared by every caller and treated as read-only.
type CachedLoader struct {
	path    string
	logger  *logging.StructuredLogger
	metrics *metrics.Collector

	mu       sync.RWMutex
	loaded   bool
	modTime  time.Time
	size     int64
	observed []*models.Observation
}

// NewCachedLoader creates a cached loader for the given file
func NewCachedLoader(path string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *CachedLoader {
	return &CachedLoader{
		path:    path,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Observations returns the cached observation table, loading or
// reloading the file when the on-disk copy has changed
func (c *CachedLoader) Observations(ctx context.Context) ([]*models.Observation, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat data file: %w", err)
	}

	c.mu.RLock()
	if c.loaded && info.ModTime().Equal(c.modTime) && info.Size() == c.size {
		obs := c.observed
		c.mu.RUnlock()
		c.metrics.LoaderCacheHits.Inc()
		return obs, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have reloaded while we waited for the lock
	if c.loaded && info.ModTime().Equal(c.modTime) && info.Size() == c.size {
		c.metrics.LoaderCacheHits.Inc()
		return c.observed, nil
	}

	c.metrics.LoaderCacheMisses.Inc()
	startTime := time.Now()

	result, err := LoadCSV(c.path)
	if err != nil {
		return nil, err
	}

	c.loaded = true
	c.modTime = info.ModTime()
	c.size = info.Size()
	c.observed = result.Observations

	c.logger.Info(ctx, "[LOADER_RELOAD] Observation table loaded", logging.Fields{
		"path":         c.path,
		"total_rows":   result.TotalRows,
		"skipped_rows": result.SkippedRows,
		"duration_ms":  time.Since(startTime).Milliseconds(),
	})

	if result.SkippedRows > 0 {
		c.logger.Warn(ctx, "[LOADER_SKIPPED] Rows failed validation during load", logging.Fields{
			"skipped_rows": result.SkippedRows,
			"sample":       firstN(result.Errors, 5),
		})
	}

	return c.observed, nil
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
