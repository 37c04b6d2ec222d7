package config

import (
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Data.Source != "csv" {
		t.Errorf("Data.Source = %q, want csv", cfg.Data.Source)
	}
	if cfg.Data.YearFilterMinimum != 2019 {
		t.Errorf("YearFilterMinimum = %d, want 2019", cfg.Data.YearFilterMinimum)
	}
	if len(cfg.Data.DefaultYears) != 4 || cfg.Data.DefaultYears[0] != 2022 {
		t.Errorf("DefaultYears = %v, want [2022 2023 2024 2025]", cfg.Data.DefaultYears)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DATA_SOURCE", "postgres")
	t.Setenv("DATA_DEFAULT_YEARS", "2020, 2021")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Data.Source != "postgres" {
		t.Errorf("Data.Source = %q, want postgres", cfg.Data.Source)
	}
	if len(cfg.Data.DefaultYears) != 2 || cfg.Data.DefaultYears[1] != 2021 {
		t.Errorf("DefaultYears = %v, want [2020 2021]", cfg.Data.DefaultYears)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"bad source", func(c *Config) { c.Data.Source = "redis" }, true},
		{"csv without path", func(c *Config) { c.Data.Source = "csv"; c.Data.CSVPath = "" }, true},
		{"postgres without host", func(c *Config) { c.Data.Source = "postgres"; c.Database.Host = "" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig()
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			tt.mutate(cfg)

			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
