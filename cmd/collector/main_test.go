package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/unklstewy/flightwx/internal/collector"
	"github.com/unklstewy/flightwx/internal/db"
	"github.com/unklstewy/flightwx/pkg/config"
	"github.com/unklstewy/flightwx/pkg/logger"
)

// TestApplyFlags tests that only flags given on the command line override config.
func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name      string
		set       map[string]bool
		days      int
		hours     int
		wantDays  int
		wantHours int
	}{
		{"nothing set", map[string]bool{}, 5, 5, 29, 0},
		{"days set", map[string]bool{"days": true}, 3, 7, 3, 0},
		{"zero days set", map[string]bool{"days": true}, 0, 0, 0, 0},
		{"both set", map[string]bool{"days": true, "hours": true}, 1, 12, 1, 12},
		{"negative days kept", map[string]bool{"days": true}, -3, 0, -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			applyFlags(cfg, tt.set, tt.days, tt.hours)
			if cfg.Collector.DaysOffset != tt.wantDays || cfg.Collector.HoursOffset != tt.wantHours {
				t.Errorf("Expected %dd/%dh, got %dd/%dh", tt.wantDays, tt.wantHours,
					cfg.Collector.DaysOffset, cfg.Collector.HoursOffset)
			}
		})
	}
}

// TestRunRejectsNegativeOffsets verifies bad offsets fail before the
// airports file is read.
func TestRunRejectsNegativeOffsets(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]bool
		days int
		hrs  int
	}{
		{"negative days", map[string]bool{"days": true}, -3, 0},
		{"negative hours", map[string]bool{"hours": true}, 0, -1},
		{"days too large", map[string]bool{"days": true}, 30, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Airports.DataPath = filepath.Join(t.TempDir(), "missing.csv")
			cfg.Output.Dir = t.TempDir()
			applyFlags(cfg, tt.set, tt.days, tt.hrs)

			err := run(cfg, logger.Nop())
			if !errors.Is(err, collector.ErrInvalidOffset) {
				t.Errorf("Expected ErrInvalidOffset before loading airports, got %v", err)
			}
		})
	}
}

// TestOpenSinksDatabase opens CSV and SQLite sinks and writes through both.
func TestOpenSinksDatabase(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Sinks = []string{"csv", "database"}
	cfg.Database.Driver = db.DriverSQLite
	cfg.Database.Path = filepath.Join(t.TempDir(), "flightwx.db")

	out, database, err := openSinks(context.Background(), cfg, "run-1", logger.Nop())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer out.Close()

	if database == nil {
		t.Fatal("Expected database handle for database sink")
	}
	if !db.HealthCheck(context.Background(), database) {
		t.Error("Expected healthy database")
	}
	stats, err := database.GetStats(context.Background())
	if err != nil {
		t.Fatalf("Expected schema to be initialized: %v", err)
	}
	if stats["datapoints"] != int64(0) {
		t.Errorf("Expected empty table, got %v", stats["datapoints"])
	}
}

// TestOpenSinksCSVOnly verifies no database is opened without the database sink.
func TestOpenSinksCSVOnly(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.Dir = t.TempDir()

	out, database, err := openSinks(context.Background(), cfg, "run-1", logger.Nop())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer out.Close()
	if database != nil {
		t.Error("Expected no database for csv-only output")
	}
}
