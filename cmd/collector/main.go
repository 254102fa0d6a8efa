// Flight weather collector
// Walks fixed time windows, fetches flight trajectories and matching weather
// and writes one combined dataset file per window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/unklstewy/flightwx/internal/auth"
	"github.com/unklstewy/flightwx/internal/collector"
	"github.com/unklstewy/flightwx/internal/db"
	"github.com/unklstewy/flightwx/internal/sink"
	"github.com/unklstewy/flightwx/internal/status"
	"github.com/unklstewy/flightwx/internal/trajectory"
	"github.com/unklstewy/flightwx/internal/weather"
	"github.com/unklstewy/flightwx/pkg/airports"
	"github.com/unklstewy/flightwx/pkg/config"
	"github.com/unklstewy/flightwx/pkg/logger"
	"github.com/unklstewy/flightwx/pkg/opensky"
	"github.com/unklstewy/flightwx/pkg/weatherapi"
)

var (
	configPath = flag.String("config", "configs/config.toml", "Path to configuration file")
	days       = flag.Int("days", 0, "Days back to start from (0-29); overrides config when set")
	hours      = flag.Int("hours", 0, "Additional hours back to start from (0-23); overrides config when set")
	issueToken = flag.String("issue-token", "", "Print a status endpoint token for the given name and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, setFlags(), *days, *hours)

	if *issueToken != "" {
		token, err := auth.NewService(auth.Config{Secret: cfg.Status.TokenSecret}).GenerateToken(*issueToken, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Collector failed", logger.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

// setFlags returns the names of the flags given on the command line.
func setFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// applyFlags copies explicitly set offsets into cfg. Values are not checked
// here; run rejects out of range offsets before any I/O.
func applyFlags(cfg *config.Config, set map[string]bool, days, hours int) {
	if set["days"] {
		cfg.Collector.DaysOffset = days
	}
	if set["hours"] {
		cfg.Collector.HoursOffset = hours
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := collector.ValidateOffsets(cfg.Collector.DaysOffset, cfg.Collector.HoursOffset); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	log = log.With(logger.String("run_id", runID))
	log.Info("Starting flight weather collector",
		logger.Int("days", cfg.Collector.DaysOffset),
		logger.Int("hours", cfg.Collector.HoursOffset),
		logger.Duration("window", cfg.Collector.Window()))

	registry, err := airports.Load(cfg.Airports.DataPath)
	if err != nil {
		return fmt.Errorf("failed to load airports: %w", err)
	}
	log.Info("Airports loaded", logger.Int("count", registry.Len()))

	out, database, err := openSinks(ctx, cfg, runID, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Warn("Failed to close sinks", logger.Error(err))
		}
	}()

	flights := trajectory.NewProcessor(
		opensky.NewClient(opensky.Config{
			BaseURL:           cfg.OpenSky.BaseURL,
			Username:          cfg.OpenSky.Username,
			Password:          cfg.OpenSky.Password,
			RequestsPerMinute: cfg.OpenSky.RequestsPerMinute,
			Timeout:           cfg.OpenSky.Timeout(),
		}),
		registry,
		trajectory.Config{
			Retry: opensky.RetryConfig{
				Attempts: cfg.OpenSky.RetryAttempts,
				Delay:    cfg.OpenSky.RetryDelay(),
			},
			ThresholdKm:       cfg.Collector.ArrivalThresholdKm,
			MinSampleInterval: cfg.Collector.MinSampleInterval(),
		},
		log)

	wx := weather.NewInterpolator(weatherapi.NewClient(weatherapi.Config{
		URL:     cfg.Weather.APIURL,
		APIKey:  cfg.Weather.APIKey,
		Timeout: cfg.Weather.Timeout(),
	}), log)

	stats := collector.NewStats(runID, time.Now().UTC())
	c := collector.New(flights, wx, out, collector.Config{
		Window:           cfg.Collector.Window(),
		FilenameTemplate: cfg.Output.FilenameTemplate,
		RequireArrival:   !cfg.Collector.IgnoreMinDistance,
	}, log, collector.WithStats(stats))

	if cfg.Status.Enabled {
		var tokens *auth.Service
		if cfg.Status.TokenSecret != "" {
			tokens = auth.NewService(auth.Config{Secret: cfg.Status.TokenSecret})
		}
		srv := status.New(cfg.Status.Addr, stats, tokens, log)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("Status server failed", logger.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("Status server forced to shutdown", logger.Error(err))
			}
		}()
	}

	runErr := safeRun(ctx, c, cfg.Collector.DaysOffset, cfg.Collector.HoursOffset)
	fmt.Println(renderSummary(stats.Snapshot(), runErr))

	if database != nil {
		if totals, err := database.GetStats(context.Background()); err == nil {
			log.Info("Database totals",
				logger.Any("datapoints", totals["datapoints"]),
				logger.Any("targets", totals["targets"]),
				logger.Any("runs", totals["runs"]))
		}
	}

	if errors.Is(runErr, context.Canceled) {
		log.Info("Collection interrupted")
		return nil
	}
	return runErr
}

// safeRun converts a panic in the pipeline into an error.
func safeRun(ctx context.Context, c *collector.Collector, days, hours int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in collector: %v", r)
		}
	}()
	return c.Run(ctx, days, hours)
}

// openSinks builds the configured sinks. The database is returned when the
// database sink is enabled; closing the sink closes it.
func openSinks(ctx context.Context, cfg *config.Config, runID string, log *logger.Logger) (sink.Sink, *db.DB, error) {
	var sinks []sink.Sink
	var database *db.DB

	if cfg.Output.HasSink("csv") {
		csvSink, err := sink.NewCSVSink(cfg.Output.Dir)
		if err != nil {
			return nil, nil, err
		}
		log.Info("CSV sink enabled", logger.String("dir", cfg.Output.Dir))
		sinks = append(sinks, csvSink)
	}

	if cfg.Output.HasSink("database") {
		var err error
		database, err = db.ReconnectWithRetry(ctx, cfg.Database, 5, 2*time.Second, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if !db.HealthCheck(ctx, database) {
			database.Close()
			return nil, nil, fmt.Errorf("database %s is not answering queries", database.Driver())
		}
		if err := database.InitSchema(ctx); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		log.Info("Database sink enabled", logger.String("driver", database.Driver()))
		sinks = append(sinks, sink.NewDBSink(database, runID))
	}

	return sink.Multi(sinks...), database, nil
}
