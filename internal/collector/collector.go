// Package collector walks fixed time windows and produces merged flight and
// weather records for each of them.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unklstewy/flightwx/internal/dataset"
	"github.com/unklstewy/flightwx/internal/sink"
	"github.com/unklstewy/flightwx/internal/trajectory"
	"github.com/unklstewy/flightwx/internal/weather"
	"github.com/unklstewy/flightwx/pkg/logger"
)

const (
	// MaxDaysOffset is the exclusive upper bound on how far back a run may
	// start; the telemetry provider keeps 30 days of history
	MaxDaysOffset = 30

	// DefaultWindow is the length of one collection window
	DefaultWindow = 2 * time.Hour
)

// ErrInvalidOffset is returned when the requested start offset is out of range.
var ErrInvalidOffset = errors.New("invalid offset")

// FlightSource provides flights and their datapoints.
type FlightSource interface {
	GetFlights(ctx context.Context, start, end int64) ([]trajectory.FlightInfo, error)
	GetFlightDatapoints(ctx context.Context, info trajectory.FlightInfo, ignoreMinDistance bool) ([]trajectory.FlightDatapoint, error)
}

// WeatherSource matches flight samples to weather.
type WeatherSource interface {
	DatapointForFlight(ctx context.Context, fdp trajectory.FlightDatapoint) (*weather.WeatherDatapoint, error)
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Config holds collector settings.
type Config struct {
	Window           time.Duration
	FilenameTemplate string

	// RequireArrival drops flights that never come within the arrival
	// threshold. Off by default: collection keeps them.
	RequireArrival bool
}

// Collector runs the collection pipeline.
type Collector struct {
	flights FlightSource
	weather WeatherSource
	sink    sink.Sink
	cfg     Config
	stats   *Stats
	log     *logger.Logger

	// now is replaceable in tests
	now func() time.Time
}

// Option customizes a Collector.
type Option func(*Collector)

// WithClock sets the clock used to anchor the run.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithStats shares a Stats instance, e.g. with the status server.
func WithStats(stats *Stats) Option {
	return func(c *Collector) { c.stats = stats }
}

// New creates a collector.
func New(flights FlightSource, wx WeatherSource, out sink.Sink, cfg Config, log *logger.Logger, opts ...Option) *Collector {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.FilenameTemplate == "" {
		cfg.FilenameTemplate = dataset.DefaultTemplate
	}
	if log == nil {
		log = logger.Nop()
	}

	c := &Collector{
		flights: flights,
		weather: wx,
		sink:    out,
		cfg:     cfg,
		log:     log.Named("collector"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.stats == nil {
		c.stats = NewStats("", c.now().UTC())
	}
	return c
}

// Stats returns the collector's statistics.
func (c *Collector) Stats() *Stats {
	return c.stats
}

// ValidateOffsets checks 0 <= days < 30 and 0 <= hours < 24.
func ValidateOffsets(days, hours int) error {
	if days < 0 || days >= MaxDaysOffset {
		return fmt.Errorf("%w: days offset must be between 0 and %d (excluded), got %d", ErrInvalidOffset, MaxDaysOffset, days)
	}
	if hours < 0 || hours >= 24 {
		return fmt.Errorf("%w: hours offset must be between 0 and 24 (excluded), got %d", ErrInvalidOffset, hours)
	}
	return nil
}

// Windows splits [start, now] into consecutive windows of size. A window
// is included only when it ends at or before now.
func Windows(start, now time.Time, size time.Duration) []Window {
	if size <= 0 {
		return nil
	}
	var windows []Window
	for s := start; !s.Add(size).After(now); s = s.Add(size) {
		windows = append(windows, Window{Start: s, End: s.Add(size)})
	}
	return windows
}

// Run collects every complete window from now-days-hours up to now.
// Windows and flights whose provider calls exhaust their retries are
// logged and skipped. Sink failures and cancellation stop the run.
func (c *Collector) Run(ctx context.Context, days, hours int) error {
	if err := ValidateOffsets(days, hours); err != nil {
		return err
	}

	now := c.now().UTC()
	start := now.Add(-time.Duration(days)*24*time.Hour - time.Duration(hours)*time.Hour)
	windows := Windows(start, now, c.cfg.Window)

	c.stats.update(func(s *Snapshot) { s.WindowsTotal = len(windows) })
	c.log.Info("Starting collection",
		logger.Time("start", start),
		logger.Time("now", now),
		logger.Int("windows", len(windows)))

	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.processWindow(ctx, w); err != nil {
			return err
		}
	}

	c.stats.update(func(s *Snapshot) { s.Finished = true })
	snap := c.stats.Snapshot()
	c.log.Info("Collection finished",
		logger.Int("windows_processed", snap.WindowsProcessed),
		logger.Int("windows_skipped", snap.WindowsSkipped),
		logger.Int("flights_processed", snap.FlightsProcessed),
		logger.Int("datapoints_written", snap.DatapointsWritten))
	return nil
}

// processWindow handles one window. Only fatal errors are returned.
func (c *Collector) processWindow(ctx context.Context, w Window) error {
	target := dataset.OutputName(c.cfg.FilenameTemplate, w.Start, w.End)
	log := c.log.With(logger.String("target", target))

	c.stats.update(func(s *Snapshot) {
		s.CurrentWindowStart, s.CurrentWindowEnd, s.CurrentTarget = w.Start, w.End, target
	})
	log.Info("Processing time window", logger.Time("start", w.Start), logger.Time("end", w.End))

	flights, err := c.flights.GetFlights(ctx, w.Start.Unix(), w.End.Unix())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("Failed to get flights, skipping window", logger.Error(err))
		c.stats.update(func(s *Snapshot) { s.WindowsSkipped++ })
		return nil
	}
	if len(flights) == 0 {
		log.Warn("No flights found in time window")
		c.stats.update(func(s *Snapshot) { s.WindowsSkipped++ })
		return nil
	}
	log.Info("Found flights", logger.Int("count", len(flights)))

	for _, flight := range flights {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.processFlight(ctx, log, target, flight); err != nil {
			return err
		}
	}

	c.stats.update(func(s *Snapshot) { s.WindowsProcessed++ })
	return nil
}

func (c *Collector) processFlight(ctx context.Context, log *logger.Logger, target string, flight trajectory.FlightInfo) error {
	log = log.With(logger.String("icao24", flight.ICAO24))

	datapoints, err := c.flights.GetFlightDatapoints(ctx, flight, !c.cfg.RequireArrival)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("Failed to get flight datapoints, skipping flight", logger.Error(err))
		c.stats.update(func(s *Snapshot) { s.FlightsSkipped++ })
		return nil
	}
	if len(datapoints) == 0 {
		log.Warn("Missing datapoints")
		c.stats.update(func(s *Snapshot) { s.FlightsSkipped++ })
		return nil
	}

	records := make([]dataset.CombinedDatapoint, 0, len(datapoints))
	missing := 0
	for _, dp := range datapoints {
		wdp, err := c.weather.DatapointForFlight(ctx, dp)
		if err != nil {
			log.Error("Failed to get weather", logger.Int64("timestamp", dp.Timestamp), logger.Error(err))
			wdp = nil
		}
		if wdp == nil {
			missing++
		}
		records = append(records, dataset.FromDatapoints(dp, wdp))
	}

	if err := c.sink.Write(ctx, target, records); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	log.Info("Saved flight data", logger.Int("datapoints", len(records)), logger.Int("missing_weather", missing))

	c.stats.update(func(s *Snapshot) {
		s.FlightsProcessed++
		s.DatapointsWritten += len(records)
		s.MissingWeather += missing
	})
	return nil
}
