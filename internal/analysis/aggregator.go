// Package analysis implements the period-based pollution aggregation and
// comparison engine. All operations are pure functions over an observation
// table: no I/O, no shared state, deterministic for a given input.
//
// Two missing-data policies coexist intentionally. PeriodMean degrades to
// 0.0 when a period holds no measurements so the dashboard never renders
// NaN, while YearlyComparison omits a year entirely when either of its
// March means is undefined. The asymmetry mirrors the behavior the
// dashboard has always shown and is pinned by tests.
package analysis

import (
	"sort"

	"fallas-platform/internal/models"
)

// FilterByYears returns the rows whose year is in the selection.
// An empty selection returns the table unchanged; this is the
// documented fallback for "nothing selected", not an error.
func FilterByYears(obs []*models.Observation, years []int) []*models.Observation {
	if len(years) == 0 {
		return obs
	}

	selected := make(map[int]bool, len(years))
	for _, y := range years {
		selected[y] = true
	}

	filtered := make([]*models.Observation, 0, len(obs))
	for _, o := range obs {
		if selected[o.Year] {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

// PeriodMean computes the arithmetic mean of the pollutant over rows
// matching the period. Returns 0.0 when no row matches or every
// matching value is missing.
func PeriodMean(obs []*models.Observation, period models.Period, pollutant models.Pollutant) float64 {
	mean, ok := periodMean(obs, period, pollutant)
	if !ok {
		return 0.0
	}
	return mean
}

// periodMean reports whether the mean is defined at all; callers choose
// their own missing-data policy on top of it
func periodMean(obs []*models.Observation, period models.Period, pollutant models.Pollutant) (float64, bool) {
	var sum float64
	var count int

	for _, o := range obs {
		if o.Period != period {
			continue
		}
		if v := o.Value(pollutant); v != nil {
			sum += *v
			count++
		}
	}

	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// PeriodSummary computes the mean concentration for each of the four
// periods over the given table, plus the pre-to-during percentage
// change. The change is 0 when the pre mean is 0.
func PeriodSummary(obs []*models.Observation, pollutant models.Pollutant) models.PeriodStats {
	stats := models.PeriodStats{
		Pollutant:  pollutant,
		PreMean:    PeriodMean(obs, models.PeriodPreFallas, pollutant),
		DuringMean: PeriodMean(obs, models.PeriodFallas, pollutant),
		PostMean:   PeriodMean(obs, models.PeriodPostFallas, pollutant),
		RestMean:   PeriodMean(obs, models.PeriodRestOfYear, pollutant),
	}

	if stats.PreMean > 0 {
		stats.PctChange = (stats.DuringMean - stats.PreMean) / stats.PreMean * 100
	}

	return stats
}

// YearlyComparison computes per-year pre/during means and percentage
// change over March rows only. A year is excluded from the result when
// either its pre mean or its during mean is undefined; there is no
// fallback to 0 here. PctChange is 0 when the pre mean is 0.
func YearlyComparison(obs []*models.Observation, years []int, pollutant models.Pollutant) []models.YearlyStats {
	march := make([]*models.Observation, 0, len(obs))
	for _, o := range obs {
		if o.Month == 3 {
			march = append(march, o)
		}
	}

	results := make([]models.YearlyStats, 0, len(years))
	for _, year := range years {
		yearRows := make([]*models.Observation, 0, 31)
		for _, o := range march {
			if o.Year == year {
				yearRows = append(yearRows, o)
			}
		}

		pre, preOK := periodMean(yearRows, models.PeriodPreFallas, pollutant)
		during, duringOK := periodMean(yearRows, models.PeriodFallas, pollutant)
		if !preOK || !duringOK {
			continue
		}

		var pctChange float64
		if pre > 0 {
			pctChange = (during - pre) / pre * 100
		}

		results = append(results, models.YearlyStats{
			Year:       year,
			PreMean:    pre,
			DuringMean: during,
			PctChange:  pctChange,
		})
	}

	return results
}

// Exceedance counts Fallas-period days above the concentration limit.
// TotalDays counts only days with a measurement; RatePct is nil when
// no day qualifies, so the caller can distinguish "not computable"
// from a genuine 0% rate.
func Exceedance(obs []*models.Observation, pollutant models.Pollutant, limit float64) models.ExceedanceResult {
	result := models.ExceedanceResult{
		Pollutant: pollutant,
		Limit:     limit,
	}

	for _, o := range obs {
		if o.Period != models.PeriodFallas {
			continue
		}
		v := o.Value(pollutant)
		if v == nil {
			continue
		}
		result.TotalDays++
		if *v > limit {
			result.ExceedDays++
		}
	}

	if result.TotalDays > 0 {
		rate := float64(result.ExceedDays) / float64(result.TotalDays) * 100
		result.RatePct = &rate
	}

	return result
}

// MarchSeries extracts the March daily values for a pollutant, sorted
// by year then day. Days with a missing measurement are skipped so the
// plotted line can connect across gaps.
func MarchSeries(obs []*models.Observation, pollutant models.Pollutant) []models.SeriesPoint {
	points := make([]models.SeriesPoint, 0, len(obs))
	for _, o := range obs {
		if o.Month != 3 {
			continue
		}
		if v := o.Value(pollutant); v != nil {
			points = append(points, models.SeriesPoint{Year: o.Year, Day: o.Day, Value: *v})
		}
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].Year != points[j].Year {
			return points[i].Year < points[j].Year
		}
		return points[i].Day < points[j].Day
	})

	return points
}

// AvailableYears returns the distinct observation years at or above
// minYear, in ascending order
func AvailableYears(obs []*models.Observation, minYear int) []int {
	seen := make(map[int]bool)
	for _, o := range obs {
		if o.Year >= minYear {
			seen[o.Year] = true
		}
	}

	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Gauge summarizes the Fallas-period mean against the WHO guideline for
// pollutants that have one. The axis ceiling leaves headroom above both
// the observed value and the reference line.
func Gauge(obs []*models.Observation, pollutant models.Pollutant) (models.GaugeSummary, bool) {
	limit, ok := models.WHOGuideline(pollutant)
	if !ok {
		return models.GaugeSummary{}, false
	}

	value := PeriodMean(obs, models.PeriodFallas, pollutant)

	axisMax := value * 1.5
	if limit*2 > axisMax {
		axisMax = limit * 2
	}

	return models.GaugeSummary{
		Pollutant: pollutant,
		Value:     value,
		Reference: limit,
		AxisMax:   axisMax,
	}, true
}
