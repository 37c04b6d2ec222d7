package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"fallas-platform/internal/analysis"
	"fallas-platform/internal/loader"
	"fallas-platform/internal/models"
)

// Demonstrates CSV parsing and the aggregation engine without a database
func main() {
	csvPath := flag.String("csv", "data/all_pollution_data.csv", "Path to the pollution CSV file")
	flag.Parse()

	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("FALLAS PLATFORM - DATA PROCESSING DEMONSTRATION")
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println()

	result, err := loader.LoadCSV(*csvPath)
	if err != nil {
		fmt.Printf("Error loading %s: %v\n", *csvPath, err)
		os.Exit(1)
	}

	fmt.Printf("Loaded %s\n\n", *csvPath)
	fmt.Printf("  Total rows:        %d\n", result.TotalRows)
	fmt.Printf("  Valid conversions: %d\n", len(result.Observations))
	fmt.Printf("  Skipped rows:      %d\n", result.SkippedRows)
	if result.TotalRows > 0 {
		fmt.Printf("  Success rate:      %.2f%%\n", float64(len(result.Observations))/float64(result.TotalRows)*100)
	}
	fmt.Println()

	for i, errMsg := range result.Errors {
		if i >= 5 {
			fmt.Printf("  ... and %d more row errors\n", len(result.Errors)-5)
			break
		}
		fmt.Printf("  ⚠ %s\n", errMsg)
	}

	// Print the first few rows, plus any with missing measurements
	fmt.Println("─────────────────────────────────────────────────────────────")
	fmt.Println("Sample rows")
	fmt.Println("─────────────────────────────────────────────────────────────")
	printed := 0
	for i, obs := range result.Observations {
		hasMissing := obs.PM25 == nil || obs.PM10 == nil || obs.NO2 == nil || obs.NOx == nil
		if i >= 3 && !hasMissing {
			continue
		}
		if printed >= 10 {
			break
		}
		printed++

		fmt.Printf("  [%d] %s | %s", i+1, obs.Date.Format("2006-01-02"), obs.Period)
		for _, p := range models.AllPollutants {
			if v := obs.Value(p); v != nil {
				fmt.Printf(" | %s: %.1f", p, *v)
			} else {
				fmt.Printf(" | %s: NULL", p)
			}
		}
		if hasMissing {
			fmt.Printf(" ⚠ MISSING DATA")
		}
		fmt.Println()
	}
	fmt.Println()

	years := analysis.AvailableYears(result.Observations, 0)
	fmt.Printf("Years in file: %v\n\n", years)

	// Demonstrate the aggregation engine
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("AGGREGATION DEMONSTRATION")
	fmt.Println("════════════════════════════════════════════════════════════════")

	for _, p := range models.AllPollutants {
		fmt.Printf("\n%s\n%s\n", p, strings.Repeat("─", 61))

		stats := analysis.PeriodSummary(result.Observations, p)
		fmt.Printf("  Pre-Fallas mean:  %8.2f µg/m³\n", stats.PreMean)
		fmt.Printf("  Fallas mean:      %8.2f µg/m³\n", stats.DuringMean)
		fmt.Printf("  Post-Fallas mean: %8.2f µg/m³\n", stats.PostMean)
		fmt.Printf("  Rest of year:     %8.2f µg/m³\n", stats.RestMean)
		fmt.Printf("  Change pre→during: %+.1f%%\n", stats.PctChange)

		limit, ok := models.WHOGuideline(p)
		if !ok {
			fmt.Println("  No WHO guideline defined")
			continue
		}

		exc := analysis.Exceedance(result.Observations, p, limit)
		if exc.RatePct != nil {
			fmt.Printf("  Exceedance: %d of %d Fallas days above %.0f µg/m³ (%.1f%%)\n",
				exc.ExceedDays, exc.TotalDays, exc.Limit, *exc.RatePct)
		} else {
			fmt.Printf("  Exceedance: no measured Fallas days\n")
		}
	}

	fmt.Println()
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("YEARLY COMPARISON (March pre vs during)")
	fmt.Println("════════════════════════════════════════════════════════════════")

	for _, row := range analysis.YearlyComparison(result.Observations, years, models.PollutantPM25) {
		fmt.Printf("  %d: pre %.2f → during %.2f (%+.1f%%)\n",
			row.Year, row.PreMean, row.DuringMean, row.PctChange)
	}
}
