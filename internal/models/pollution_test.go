package models

import (
	"testing"
	"time"
)

func fp(v float64) *float64 { return &v }

// TestPeriodForDate verifies the period bucketing invariant: every
// March date maps to exactly one Fallas-relative period and every
// other date maps to Rest of Year.
func TestPeriodForDate(t *testing.T) {
	tests := []struct {
		name  string
		month int
		day   int
		want  Period
	}{
		{"march 1 starts pre-fallas", 3, 1, PeriodPreFallas},
		{"march 14 ends pre-fallas", 3, 14, PeriodPreFallas},
		{"march 15 starts fallas", 3, 15, PeriodFallas},
		{"march 19 ends fallas", 3, 19, PeriodFallas},
		{"march 20 starts post-fallas", 3, 20, PeriodPostFallas},
		{"march 31 ends post-fallas", 3, 31, PeriodPostFallas},
		{"february is rest of year", 2, 15, PeriodRestOfYear},
		{"april is rest of year", 4, 1, PeriodRestOfYear},
		{"december is rest of year", 12, 31, PeriodRestOfYear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeriodForDate(tt.month, tt.day); got != tt.want {
				t.Errorf("PeriodForDate(%d, %d) = %v, want %v", tt.month, tt.day, got, tt.want)
			}
		})
	}
}

// TestPeriodForDate_MarchExhaustive checks every March day lands in
// exactly one of the three festival-relative periods
func TestPeriodForDate_MarchExhaustive(t *testing.T) {
	for day := 1; day <= 31; day++ {
		p := PeriodForDate(3, day)
		if p == PeriodRestOfYear {
			t.Errorf("March %d classified as Rest of Year", day)
		}
	}
}

func TestParsePollutant(t *testing.T) {
	tests := []struct {
		input  string
		want   Pollutant
		wantOK bool
	}{
		{"PM2.5", PollutantPM25, true},
		{"PM2.5(µg/m³)", PollutantPM25, true},
		{"PM10", PollutantPM10, true},
		{"NO2", PollutantNO2, true},
		{"NOx", PollutantNOx, true},
		{"SO2", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParsePollutant(tt.input)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParsePollutant(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestWHOGuideline(t *testing.T) {
	tests := []struct {
		pollutant Pollutant
		want      float64
		wantOK    bool
	}{
		{PollutantPM25, 15, true},
		{PollutantPM10, 45, true},
		{PollutantNO2, 25, true},
		{PollutantNOx, 0, false},
	}

	for _, tt := range tests {
		got, ok := WHOGuideline(tt.pollutant)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("WHOGuideline(%v) = (%v, %v), want (%v, %v)", tt.pollutant, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRawObservationRecord_ToObservation(t *testing.T) {
	tests := []struct {
		name        string
		record      RawObservationRecord
		wantErr     bool
		checkValues func(*testing.T, *Observation)
	}{
		{
			name: "valid record with all values",
			record: RawObservationRecord{
				Date: "2023-03-17",
				PM25: fp(42.5),
				PM10: fp(60),
				NO2:  fp(30),
				NOx:  fp(55),
			},
			wantErr: false,
			checkValues: func(t *testing.T, obs *Observation) {
				if obs.Year != 2023 || obs.Month != 3 || obs.Day != 17 {
					t.Errorf("date parts = %d-%d-%d, want 2023-3-17", obs.Year, obs.Month, obs.Day)
				}
				if obs.Period != PeriodFallas {
					t.Errorf("Period = %v, want %v", obs.Period, PeriodFallas)
				}
				if obs.PM25 == nil || *obs.PM25 != 42.5 {
					t.Errorf("PM25 = %v, want 42.5", obs.PM25)
				}
				expectedDate := time.Date(2023, 3, 17, 0, 0, 0, 0, time.UTC)
				if !obs.Date.Equal(expectedDate) {
					t.Errorf("Date = %v, want %v", obs.Date, expectedDate)
				}
			},
		},
		{
			name: "missing concentrations stay nil",
			record: RawObservationRecord{
				Date: "2023-07-04",
				PM10: fp(12),
			},
			wantErr: false,
			checkValues: func(t *testing.T, obs *Observation) {
				if obs.PM25 != nil || obs.NO2 != nil || obs.NOx != nil {
					t.Error("missing concentrations should be nil")
				}
				if obs.Period != PeriodRestOfYear {
					t.Errorf("Period = %v, want %v", obs.Period, PeriodRestOfYear)
				}
			},
		},
		{
			name: "matching period label accepted",
			record: RawObservationRecord{
				Date:   "2024-03-02",
				Period: "Pre-Fallas (Mar 1-14)",
			},
			wantErr: false,
			checkValues: func(t *testing.T, obs *Observation) {
				if obs.Period != PeriodPreFallas {
					t.Errorf("Period = %v, want %v", obs.Period, PeriodPreFallas)
				}
			},
		},
		{
			name: "mismatching period label rejected",
			record: RawObservationRecord{
				Date:   "2024-03-02",
				Period: "Fallas (Mar 15-19)",
			},
			wantErr: true,
		},
		{
			name: "unknown period label rejected",
			record: RawObservationRecord{
				Date:   "2024-03-02",
				Period: "During Fallas",
			},
			wantErr: true,
		},
		{
			name: "invalid date rejected",
			record: RawObservationRecord{
				Date: "17/March/2023",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := tt.record.ToObservation()

			if (err != nil) != tt.wantErr {
				t.Errorf("ToObservation() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && tt.checkValues != nil {
				tt.checkValues(t, obs)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:   "Fecha",
		Value:   "invalid",
		Message: "invalid date",
	}

	if err.Error() != "invalid date" {
		t.Errorf("Error() = %v, want %v", err.Error(), "invalid date")
	}

	if err.IsTransient() {
		t.Error("ValidationError should not be transient")
	}
}
