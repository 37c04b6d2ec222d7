package models

import (
	"time"
)

// Pollutant identifies a measured pollutant species
type Pollutant string

const (
	PollutantPM25 Pollutant = "PM2.5"
	PollutantPM10 Pollutant = "PM10"
	PollutantNO2  Pollutant = "NO2"
	PollutantNOx  Pollutant = "NOx"
)

// AllPollutants lists every pollutant carried by an observation,
// in the column order of the source CSV
var AllPollutants = []Pollutant{PollutantPM25, PollutantPM10, PollutantNO2, PollutantNOx}

// Column returns the exact CSV column header for the pollutant
func (p Pollutant) Column() string {
	switch p {
	case PollutantPM25:
		return "PM2.5(µg/m³)"
	case PollutantPM10:
		return "PM10(µg/m³)"
	case PollutantNO2:
		return "NO2(µg/m³)"
	case PollutantNOx:
		return "NOx(µg/m³)"
	default:
		return string(p)
	}
}

// ParsePollutant resolves a user-supplied pollutant name.
// Accepts both the short name and the full CSV column header.
func ParsePollutant(s string) (Pollutant, bool) {
	for _, p := range AllPollutants {
		if s == string(p) || s == p.Column() {
			return p, true
		}
	}
	return "", false
}

// Period is one of four mutually exclusive date-range buckets
// relative to the Fallas festival dates
type Period string

const (
	PeriodPreFallas  Period = "Pre-Fallas (Mar 1-14)"
	PeriodFallas     Period = "Fallas (Mar 15-19)"
	PeriodPostFallas Period = "Post-Fallas (Mar 20-31)"
	PeriodRestOfYear Period = "Rest of Year"
)

// AllPeriods lists the periods in chronological display order
var AllPeriods = []Period{PeriodPreFallas, PeriodFallas, PeriodPostFallas, PeriodRestOfYear}

// PeriodForDate derives the period label from a calendar position.
// Every March date maps to exactly one of the three Fallas-relative
// periods; every other date is Rest of Year.
func PeriodForDate(month, day int) Period {
	if month != 3 {
		return PeriodRestOfYear
	}
	switch {
	case day <= 14:
		return PeriodPreFallas
	case day <= 19:
		return PeriodFallas
	default:
		return PeriodPostFallas
	}
}

// ParsePeriod validates a period label from the source data
func ParsePeriod(s string) (Period, bool) {
	for _, p := range AllPeriods {
		if s == string(p) {
			return p, true
		}
	}
	return "", false
}

// WHOGuideline returns the WHO 24-hour concentration limit in µg/m³
// for the pollutant. NOx has no guideline; ok is false.
func WHOGuideline(p Pollutant) (float64, bool) {
	switch p {
	case PollutantPM25:
		return 15, true
	case PollutantPM10:
		return 45, true
	case PollutantNO2:
		return 25, true
	default:
		return 0, false
	}
}

// Observation represents a single station-day measurement row.
// NULL/missing concentrations represented as pointers.
type Observation struct {
	ID        int64     `json:"id,omitempty" db:"id"`
	Date      time.Time `json:"date" db:"observation_date"`
	Year      int       `json:"year" db:"year"`
	Month     int       `json:"month" db:"month"`
	Day       int       `json:"day" db:"day"`
	Period    Period    `json:"period" db:"period"`
	PM25      *float64  `json:"pm25,omitempty" db:"pm25"`
	PM10      *float64  `json:"pm10,omitempty" db:"pm10"`
	NO2       *float64  `json:"no2,omitempty" db:"no2"`
	NOx       *float64  `json:"nox,omitempty" db:"nox"`
	CreatedAt time.Time `json:"created_at,omitempty" db:"created_at"`
}

// Value returns the concentration for the given pollutant,
// nil when the measurement is missing
func (o *Observation) Value(p Pollutant) *float64 {
	switch p {
	case PollutantPM25:
		return o.PM25
	case PollutantPM10:
		return o.PM10
	case PollutantNO2:
		return o.NO2
	case PollutantNOx:
		return o.NOx
	default:
		return nil
	}
}

// RawObservationRecord represents a single parsed CSV row before
// validation. Concentration fields hold the raw cell text so that
// blank cells can be distinguished from zero.
type RawObservationRecord struct {
	Date   string
	Period string // empty when the column is absent
	PM25   *float64
	PM10   *float64
	NO2    *float64
	NOx    *float64
}

// ToObservation converts a RawObservationRecord into an Observation.
// The period label is derived from the date when absent, and checked
// against the derivation when present.
func (r *RawObservationRecord) ToObservation() (*Observation, error) {
	date, err := parseObservationDate(r.Date)
	if err != nil {
		return nil, &ValidationError{
			Field:   "Fecha",
			Value:   r.Date,
			Message: "invalid date, expected YYYY-MM-DD",
		}
	}

	derived := PeriodForDate(int(date.Month()), date.Day())

	period := derived
	if r.Period != "" {
		p, ok := ParsePeriod(r.Period)
		if !ok {
			return nil, &ValidationError{
				Field:   "Period",
				Value:   r.Period,
				Message: "unknown period label",
			}
		}
		if p != derived {
			return nil, &ValidationError{
				Field:   "Period",
				Value:   r.Period,
				Message: "period label does not match observation date",
			}
		}
		period = p
	}

	return &Observation{
		Date:      date,
		Year:      date.Year(),
		Month:     int(date.Month()),
		Day:       date.Day(),
		Period:    period,
		PM25:      r.PM25,
		PM10:      r.PM10,
		NO2:       r.NO2,
		NOx:       r.NOx,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// parseObservationDate accepts the date formats seen in the exported
// data: ISO date with or without a time component
func parseObservationDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// PeriodStats holds the mean concentration per period for a filtered
// table, plus the pre-to-during percentage change.
// Missing periods report 0.0 rather than NaN so the display layer can
// always render a number.
type PeriodStats struct {
	Pollutant  Pollutant `json:"pollutant"`
	PreMean    float64   `json:"pre_mean"`
	DuringMean float64   `json:"during_mean"`
	PostMean   float64   `json:"post_mean"`
	RestMean   float64   `json:"rest_mean"`
	PctChange  float64   `json:"pct_change"`
}

// YearlyStats holds the March-only pre/during comparison for one year.
// Years missing either mean are never materialized.
type YearlyStats struct {
	Year       int     `json:"year"`
	PreMean    float64 `json:"pre_mean"`
	DuringMean float64 `json:"during_mean"`
	PctChange  float64 `json:"pct_change"`
}

// ExceedanceResult counts Fallas-period days above a guideline limit.
// RatePct is nil when no day had a measurement, signalling "not
// computable" as distinct from a genuine 0% rate.
type ExceedanceResult struct {
	Pollutant  Pollutant `json:"pollutant"`
	Limit      float64   `json:"limit"`
	ExceedDays int       `json:"exceed_days"`
	TotalDays  int       `json:"total_days"`
	RatePct    *float64  `json:"rate_pct"`
}

// SeriesPoint is one March daily value for the time-series view
type SeriesPoint struct {
	Year  int     `json:"year"`
	Day   int     `json:"day"`
	Value float64 `json:"value"`
}

// GaugeSummary feeds the guideline gauge: the Fallas-period mean
// against the WHO reference, with a suggested axis ceiling
type GaugeSummary struct {
	Pollutant Pollutant `json:"pollutant"`
	Value     float64   `json:"value"`
	Reference float64   `json:"reference"`
	AxisMax   float64   `json:"axis_max"`
}

// ValidationError represents a data validation error on a single row
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
