package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig verifies that DefaultConfig returns valid defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// OpenSky defaults
	if cfg.OpenSky.RetryAttempts != 3 {
		t.Errorf("Expected 3 retry attempts, got %d", cfg.OpenSky.RetryAttempts)
	}
	if cfg.OpenSky.RetryDelay() != 960*time.Second {
		t.Errorf("Expected retry delay 960s, got %v", cfg.OpenSky.RetryDelay())
	}
	if cfg.OpenSky.BaseURL != "https://opensky-network.org/api" {
		t.Errorf("Unexpected OpenSky base URL %s", cfg.OpenSky.BaseURL)
	}

	// Collector defaults
	if cfg.Collector.ArrivalThresholdKm != 10 {
		t.Errorf("Expected arrival threshold 10 km, got %f", cfg.Collector.ArrivalThresholdKm)
	}
	if cfg.Collector.MinSampleInterval() != time.Minute {
		t.Errorf("Expected 60s sample interval, got %v", cfg.Collector.MinSampleInterval())
	}
	if cfg.Collector.Window() != 2*time.Hour {
		t.Errorf("Expected 2h window, got %v", cfg.Collector.Window())
	}
	if cfg.Collector.DaysOffset != 29 || cfg.Collector.HoursOffset != 0 {
		t.Errorf("Expected offsets 29d/0h, got %dd/%dh", cfg.Collector.DaysOffset, cfg.Collector.HoursOffset)
	}
	if !cfg.Collector.IgnoreMinDistance {
		t.Error("Expected collector to ignore the minimum distance by default")
	}

	// Output defaults
	if cfg.Output.FilenameTemplate != "flights_{start}_to_{end}.csv" {
		t.Errorf("Unexpected filename template %s", cfg.Output.FilenameTemplate)
	}
	if !cfg.Output.HasSink("csv") || cfg.Output.HasSink("database") {
		t.Errorf("Expected only csv sink, got %v", cfg.Output.Sinks)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got: %v", err)
	}
}

// TestLoadNonExistentFile tests that Load returns default config when file doesn't exist.
func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("Expected no error for non-existent file, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config, got nil")
	}
	if cfg.Collector.WindowHours != 2 {
		t.Error("Did not get default config for non-existent file")
	}
}

// TestLoadValidConfig tests loading a valid JSON configuration file.
func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	testConfig := DefaultConfig()
	testConfig.OpenSky.RetryAttempts = 5
	testConfig.OpenSky.RequestsPerMinute = 10
	testConfig.Output.Sinks = []string{"csv", "database"}
	testConfig.Database.Driver = "postgres"
	testConfig.Database.Host = "db.example.com"

	data, err := json.Marshal(testConfig)
	if err != nil {
		t.Fatalf("Failed to marshal test config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.OpenSky.RetryAttempts != 5 {
		t.Errorf("Expected 5 retry attempts, got %d", cfg.OpenSky.RetryAttempts)
	}
	if cfg.OpenSky.RequestsPerMinute != 10 {
		t.Errorf("Expected 10 requests/minute, got %f", cfg.OpenSky.RequestsPerMinute)
	}
	if !cfg.Output.HasSink("database") {
		t.Error("Expected database sink enabled")
	}
	if cfg.Database.Host != "db.example.com" {
		t.Errorf("Expected host db.example.com, got %s", cfg.Database.Host)
	}
}

// TestLoadPartialConfig verifies unspecified fields keep their defaults.
func TestLoadPartialConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte(`{"collector": {"window_hours": 4}}`), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Collector.WindowHours != 4 {
		t.Errorf("Expected window 4h, got %d", cfg.Collector.WindowHours)
	}
	if cfg.Collector.ArrivalThresholdKm != 10 {
		t.Errorf("Expected default threshold preserved, got %f", cfg.Collector.ArrivalThresholdKm)
	}
}

// TestLoadTOML tests loading a TOML configuration file.
func TestLoadTOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[opensky]
base_url = "http://localhost:9000/api"
retry_attempts = 2
retry_delay_seconds = 1

[output]
dir = "out"
filename_template = "wx_{start}_{end}.csv"
sinks = ["csv"]

[log]
level = "debug"
format = "json"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.OpenSky.BaseURL != "http://localhost:9000/api" {
		t.Errorf("Expected TOML base URL, got %s", cfg.OpenSky.BaseURL)
	}
	if cfg.OpenSky.RetryAttempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", cfg.OpenSky.RetryAttempts)
	}
	if cfg.Output.FilenameTemplate != "wx_{start}_{end}.csv" {
		t.Errorf("Unexpected template %s", cfg.Output.FilenameTemplate)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Expected json log format, got %s", cfg.Log.Format)
	}
	// Untouched section keeps defaults
	if cfg.Weather.APIURL != "http://api.weatherapi.com/v1/history.json" {
		t.Errorf("Expected default weather URL, got %s", cfg.Weather.APIURL)
	}
}

// TestLoadInvalidJSON tests error handling for malformed JSON.
func TestLoadInvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.json")
	if err := os.WriteFile(configPath, []byte("{invalid json"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

// TestEnvironmentOverrides tests credential overrides from the environment.
func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("FLIGHTWX_OPENSKY_USERNAME", "pilot")
	t.Setenv("FLIGHTWX_OPENSKY_PASSWORD", "secret")
	t.Setenv("FLIGHTWX_WEATHER_API_KEY", "wx-key")
	t.Setenv("FLIGHTWX_DB_PASSWORD", "dbpass")
	t.Setenv("FLIGHTWX_LOG_LEVEL", "warn")
	t.Setenv("FLIGHTWX_STATUS_TOKEN_SECRET", "status-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.OpenSky.Username != "pilot" || cfg.OpenSky.Password != "secret" {
		t.Errorf("OpenSky credentials not overridden: %q/%q", cfg.OpenSky.Username, cfg.OpenSky.Password)
	}
	if cfg.Weather.APIKey != "wx-key" {
		t.Errorf("Expected weather key override, got %q", cfg.Weather.APIKey)
	}
	if cfg.Database.Password != "dbpass" {
		t.Errorf("Expected db password override, got %q", cfg.Database.Password)
	}
	if cfg.Status.TokenSecret != "status-secret" {
		t.Errorf("Expected status token secret override, got %q", cfg.Status.TokenSecret)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Expected log level override, got %q", cfg.Log.Level)
	}
}

// TestValidate tests rejection of unusable settings.
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero retry attempts", func(c *Config) { c.OpenSky.RetryAttempts = 0 }},
		{"negative retry delay", func(c *Config) { c.OpenSky.RetryDelaySeconds = -1 }},
		{"empty base url", func(c *Config) { c.OpenSky.BaseURL = "" }},
		{"zero window", func(c *Config) { c.Collector.WindowHours = 0 }},
		{"zero threshold", func(c *Config) { c.Collector.ArrivalThresholdKm = 0 }},
		{"template without placeholders", func(c *Config) { c.Output.FilenameTemplate = "flights.csv" }},
		{"no sinks", func(c *Config) { c.Output.Sinks = nil }},
		{"unknown sink", func(c *Config) { c.Output.Sinks = []string{"kafka"} }},
		{"unsupported driver", func(c *Config) {
			c.Output.Sinks = []string{"database"}
			c.Database.Driver = "mysql"
		}},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got: %v", err)
			}
		})
	}
}

// TestSaveConfig tests saving configuration to JSON and TOML files.
func TestSaveConfig(t *testing.T) {
	for _, name := range []string{"saved.json", "saved.toml"} {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "nested", name)

			cfg := DefaultConfig()
			cfg.Collector.WindowHours = 3
			cfg.Archive.Bucket = "flight-archive"

			if err := cfg.Save(configPath); err != nil {
				t.Fatalf("Failed to save config: %v", err)
			}

			loaded, err := Load(configPath)
			if err != nil {
				t.Fatalf("Failed to load saved config: %v", err)
			}
			if loaded.Collector.WindowHours != 3 {
				t.Errorf("Expected window 3h, got %d", loaded.Collector.WindowHours)
			}
			if loaded.Archive.Bucket != "flight-archive" {
				t.Errorf("Expected bucket flight-archive, got %s", loaded.Archive.Bucket)
			}
		})
	}
}
