package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrInvalidConfig is returned by Validate for any rejected setting.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the complete application configuration.
// It is loaded once at process start and treated as immutable afterwards.
type Config struct {
	OpenSky   OpenSkyConfig   `json:"opensky" toml:"opensky"`
	Weather   WeatherConfig   `json:"weather" toml:"weather"`
	Airports  AirportsConfig  `json:"airports" toml:"airports"`
	Collector CollectorConfig `json:"collector" toml:"collector"`
	Output    OutputConfig    `json:"output" toml:"output"`
	Database  DatabaseConfig  `json:"database" toml:"database"`
	Archive   ArchiveConfig   `json:"archive" toml:"archive"`
	Status    StatusConfig    `json:"status" toml:"status"`
	Log       LogConfig       `json:"log" toml:"log"`
}

// OpenSkyConfig contains the telemetry provider settings.
type OpenSkyConfig struct {
	// BaseURL is the REST API root (default: https://opensky-network.org/api)
	BaseURL string `json:"base_url" toml:"base_url"`

	// Username and Password enable authenticated access (higher quotas).
	// Prefer FLIGHTWX_OPENSKY_USERNAME / FLIGHTWX_OPENSKY_PASSWORD.
	Username string `json:"username,omitempty" toml:"username"`
	Password string `json:"password,omitempty" toml:"password"`

	// RequestsPerMinute paces calls to the provider. 0 disables pacing.
	RequestsPerMinute float64 `json:"requests_per_minute" toml:"requests_per_minute"`

	// TimeoutSeconds is the HTTP timeout per request
	TimeoutSeconds int `json:"timeout_seconds" toml:"timeout_seconds"`

	// RetryAttempts is the number of attempts per call (default: 3)
	RetryAttempts int `json:"retry_attempts" toml:"retry_attempts"`

	// RetryDelaySeconds is the fixed wait after a failed attempt.
	// 960 s keeps us outside the provider's blocking window.
	RetryDelaySeconds int `json:"retry_delay_seconds" toml:"retry_delay_seconds"`
}

// WeatherConfig contains the weather history provider settings.
type WeatherConfig struct {
	APIURL         string `json:"api_url" toml:"api_url"`
	APIKey         string `json:"api_key,omitempty" toml:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds" toml:"timeout_seconds"`
}

// AirportsConfig points at the static airport table.
type AirportsConfig struct {
	// DataPath is a CSV file with ident, latitude and longitude columns
	DataPath string `json:"data_path" toml:"data_path"`
}

// CollectorConfig controls the batch run.
type CollectorConfig struct {
	// DaysOffset and HoursOffset define how far back the run starts.
	// Command line flags override them.
	DaysOffset  int `json:"days_offset" toml:"days_offset"`
	HoursOffset int `json:"hours_offset" toml:"hours_offset"`

	// WindowHours is the size of each flight query window (default: 2)
	WindowHours int `json:"window_hours" toml:"window_hours"`

	// ArrivalThresholdKm is the distance to the destination that counts as arrived
	ArrivalThresholdKm float64 `json:"arrival_threshold_km" toml:"arrival_threshold_km"`

	// MinSampleIntervalSeconds is the minimum spacing between retained samples
	MinSampleIntervalSeconds int `json:"min_sample_interval_seconds" toml:"min_sample_interval_seconds"`

	// IgnoreMinDistance keeps flights that never reach the arrival threshold
	IgnoreMinDistance bool `json:"ignore_min_distance" toml:"ignore_min_distance"`
}

// OutputConfig selects where merged records go.
type OutputConfig struct {
	Dir string `json:"dir" toml:"dir"`

	// FilenameTemplate must contain {start} and {end}
	FilenameTemplate string `json:"filename_template" toml:"filename_template"`

	// Sinks lists enabled sinks: "csv", "database"
	Sinks []string `json:"sinks" toml:"sinks"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Driver is the database driver (postgres, sqlite)
	Driver string `json:"driver" toml:"driver"`

	// Path is the SQLite database file
	Path string `json:"path,omitempty" toml:"path"`

	Host     string `json:"host,omitempty" toml:"host"`
	Port     int    `json:"port,omitempty" toml:"port"`
	Database string `json:"database,omitempty" toml:"database"`
	Username string `json:"username,omitempty" toml:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password,omitempty" toml:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode,omitempty" toml:"ssl_mode"`

	MaxOpenConns int `json:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns int `json:"max_idle_conns" toml:"max_idle_conns"`
}

// ArchiveConfig configures weekly merging and bucket upload.
type ArchiveConfig struct {
	WeeklyDir string `json:"weekly_dir" toml:"weekly_dir"`
	Bucket    string `json:"bucket,omitempty" toml:"bucket"`
	Prefix    string `json:"prefix,omitempty" toml:"prefix"`
	Region    string `json:"region,omitempty" toml:"region"`
}

// StatusConfig configures the HTTP status endpoint.
type StatusConfig struct {
	Enabled bool   `json:"enabled" toml:"enabled"`
	Addr    string `json:"addr" toml:"addr"`

	// TokenSecret enables bearer token checks on /status when set.
	// Prefer FLIGHTWX_STATUS_TOKEN_SECRET.
	TokenSecret string `json:"token_secret,omitempty" toml:"token_secret"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `json:"level" toml:"level"`
	Format string `json:"format" toml:"format"`
}

// Load reads configuration from a JSON or TOML file (by extension).
// If the file doesn't exist, returns a default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if isTOML(path) {
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a JSON or TOML file (by extension).
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OpenSky: OpenSkyConfig{
			BaseURL:           "https://opensky-network.org/api",
			RequestsPerMinute: 4,
			TimeoutSeconds:    30,
			RetryAttempts:     3,
			RetryDelaySeconds: 960,
		},
		Weather: WeatherConfig{
			APIURL:         "http://api.weatherapi.com/v1/history.json",
			TimeoutSeconds: 15,
		},
		Airports: AirportsConfig{
			DataPath: filepath.Join("data", "static", "airports.csv"),
		},
		Collector: CollectorConfig{
			DaysOffset:               29,
			HoursOffset:              0,
			WindowHours:              2,
			ArrivalThresholdKm:       10,
			MinSampleIntervalSeconds: 60,
			IgnoreMinDistance:        true,
		},
		Output: OutputConfig{
			Dir:              filepath.Join("data", "downloaded_data"),
			FilenameTemplate: "flights_{start}_to_{end}.csv",
			Sinks:            []string{"csv"},
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Path:         filepath.Join("data", "flightwx.db"),
			Host:         "localhost",
			Port:         5432,
			Database:     "flightwx",
			Username:     "flightwx",
			SSLMode:      "disable",
			MaxOpenConns: 4,
			MaxIdleConns: 2,
		},
		Archive: ArchiveConfig{
			WeeklyDir: filepath.Join("data", "weekly"),
			Prefix:    "flights",
			Region:    "us-east-1",
		},
		Status: StatusConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8089",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate rejects settings the collector cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if c.OpenSky.BaseURL == "" {
		problems = append(problems, "opensky.base_url is required")
	}
	if c.OpenSky.RetryAttempts < 1 {
		problems = append(problems, "opensky.retry_attempts must be at least 1")
	}
	if c.OpenSky.RetryDelaySeconds < 0 {
		problems = append(problems, "opensky.retry_delay_seconds must not be negative")
	}
	if c.OpenSky.RequestsPerMinute < 0 {
		problems = append(problems, "opensky.requests_per_minute must not be negative")
	}
	if c.Weather.APIURL == "" {
		problems = append(problems, "weather.api_url is required")
	}
	if c.Collector.WindowHours <= 0 {
		problems = append(problems, "collector.window_hours must be positive")
	}
	if c.Collector.ArrivalThresholdKm <= 0 {
		problems = append(problems, "collector.arrival_threshold_km must be positive")
	}
	if c.Collector.MinSampleIntervalSeconds < 0 {
		problems = append(problems, "collector.min_sample_interval_seconds must not be negative")
	}
	if !strings.Contains(c.Output.FilenameTemplate, "{start}") || !strings.Contains(c.Output.FilenameTemplate, "{end}") {
		problems = append(problems, "output.filename_template must contain {start} and {end}")
	}
	if len(c.Output.Sinks) == 0 {
		problems = append(problems, "output.sinks must list at least one sink")
	}
	for _, s := range c.Output.Sinks {
		switch s {
		case "csv":
		case "database":
			if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
				problems = append(problems, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown sink %q", s))
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is not supported", c.Log.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// HasSink reports whether the named sink is enabled.
func (c *OutputConfig) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// RetryDelay returns the retry delay as a duration.
func (c *OpenSkyConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// Timeout returns the HTTP timeout as a duration.
func (c *OpenSkyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the HTTP timeout as a duration.
func (c *WeatherConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Window returns the flight query window size.
func (c *CollectorConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

// MinSampleInterval returns the resampling interval.
func (c *CollectorConfig) MinSampleInterval() time.Duration {
	return time.Duration(c.MinSampleIntervalSeconds) * time.Second
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows credentials to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if user := os.Getenv("FLIGHTWX_OPENSKY_USERNAME"); user != "" {
		c.OpenSky.Username = user
	}
	if pass := os.Getenv("FLIGHTWX_OPENSKY_PASSWORD"); pass != "" {
		c.OpenSky.Password = pass
	}
	if key := os.Getenv("FLIGHTWX_WEATHER_API_KEY"); key != "" {
		c.Weather.APIKey = key
	}
	if dbPassword := os.Getenv("FLIGHTWX_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if secret := os.Getenv("FLIGHTWX_STATUS_TOKEN_SECRET"); secret != "" {
		c.Status.TokenSecret = secret
	}
	if level := os.Getenv("FLIGHTWX_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
