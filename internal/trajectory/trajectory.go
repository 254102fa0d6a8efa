// Package trajectory turns provider flight tracks into resampled,
// speed-annotated datapoints relative to the arrival airport.
package trajectory

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/unklstewy/flightwx/pkg/airports"
	"github.com/unklstewy/flightwx/pkg/coordinates"
	"github.com/unklstewy/flightwx/pkg/logger"
	"github.com/unklstewy/flightwx/pkg/opensky"
)

const (
	// DefaultThresholdKm is the distance from the destination at which a
	// flight is considered arrived
	DefaultThresholdKm = 10.0

	// DefaultMinSampleInterval is the minimum spacing between retained samples
	DefaultMinSampleInterval = 60 * time.Second
)

// FlightInfo identifies a flight with a known arrival airport.
type FlightInfo struct {
	ICAO24         string
	LastSeen       int64
	ArrivalAirport string

	// CallSign is empty when the provider did not report one
	CallSign string
}

// FlightDatapoint is one retained trajectory sample with derived fields.
type FlightDatapoint struct {
	Location               coordinates.Location
	ArrivalAirport         string
	ArrivalAirportLocation coordinates.Location

	// Timestamp in Unix seconds
	Timestamp int64

	// HorizontalSpeed in km/h; nil when the time delta is zero
	HorizontalSpeed *float64

	// Altitude in meters
	Altitude float64

	// VerticalSpeed in km/h; nil when the time delta is zero
	VerticalSpeed *float64

	// Heading in degrees
	Heading float64

	// DistanceToDestination in kilometers
	DistanceToDestination float64

	// ArrivalTime is the timestamp of the first sample inside the arrival
	// threshold; nil when undefined
	ArrivalTime *int64

	// TimeToArrival in seconds, negative after arrival; nil when ArrivalTime is nil
	TimeToArrival *int64
}

// Config controls arrival detection and resampling.
type Config struct {
	Retry             opensky.RetryConfig
	ThresholdKm       float64
	MinSampleInterval time.Duration
}

// DefaultConfig returns the standard processing settings.
func DefaultConfig() Config {
	return Config{
		Retry:             opensky.DefaultRetryConfig(),
		ThresholdKm:       DefaultThresholdKm,
		MinSampleInterval: DefaultMinSampleInterval,
	}
}

// Processor fetches flights and tracks and derives datapoints.
type Processor struct {
	source   opensky.DataSource
	airports airports.Lookup
	cfg      Config
	log      *logger.Logger
}

// NewProcessor creates a trajectory processor.
func NewProcessor(source opensky.DataSource, lookup airports.Lookup, cfg Config, log *logger.Logger) *Processor {
	if cfg.ThresholdKm <= 0 {
		cfg.ThresholdKm = DefaultThresholdKm
	}
	if cfg.MinSampleInterval <= 0 {
		cfg.MinSampleInterval = DefaultMinSampleInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Processor{
		source:   source,
		airports: lookup,
		cfg:      cfg,
		log:      log.Named("trajectory"),
	}
}

// GetFlights returns the flights seen in [start, end] whose arrival airport
// is known. A nil slice with a nil error means the provider had no data,
// which is distinct from an empty result after filtering.
func (p *Processor) GetFlights(ctx context.Context, start, end int64) ([]FlightInfo, error) {
	raw, err := opensky.Retry(ctx, p.cfg.Retry, p.log, func() ([]opensky.RawFlight, error) {
		return p.source.FlightsInInterval(ctx, start, end)
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		p.log.Warn("No flights data returned", logger.Int64("start", start), logger.Int64("end", end))
		return nil, nil
	}

	flights := make([]FlightInfo, 0, len(raw))
	for _, f := range raw {
		airport := stripSpaces(f.EstArrivalAirport)
		if airport == "" || !p.airports.IsAirport(airport) {
			continue
		}
		flights = append(flights, FlightInfo{
			ICAO24:         f.ICAO24,
			LastSeen:       f.LastSeen,
			ArrivalAirport: airport,
			CallSign:       stripSpaces(f.Callsign),
		})
	}

	return flights, nil
}

// GetFlightDatapoints fetches the track of a flight and converts it into
// resampled datapoints. It returns nil when the provider has no track, or
// when the flight never came within the arrival threshold and
// ignoreMinDistance is false.
//
// ignoreMinDistance only lifts the requirement to reach the threshold. A
// detected arrival always truncates the track at the first sample inside
// the threshold; with ignoreMinDistance set ArrivalTime and TimeToArrival
// are nil.
func (p *Processor) GetFlightDatapoints(ctx context.Context, info FlightInfo, ignoreMinDistance bool) ([]FlightDatapoint, error) {
	track, err := opensky.Retry(ctx, p.cfg.Retry, p.log, func() (*opensky.Track, error) {
		return p.source.TrackByAircraft(ctx, info.ICAO24, info.LastSeen)
	})
	if err != nil {
		return nil, err
	}
	if track == nil || len(track.Path) == 0 {
		p.log.Info("No flight data found", logger.String("icao24", info.ICAO24))
		return nil, nil
	}

	destination, ok := p.airports.Location(info.ArrivalAirport)
	if !ok {
		p.log.Warn("Unknown arrival airport",
			logger.String("icao24", info.ICAO24),
			logger.String("airport", info.ArrivalAirport))
		return nil, nil
	}

	path := track.Path
	distances := make([]float64, len(path))
	for i, s := range path {
		distances[i] = coordinates.Location{Latitude: s.Latitude, Longitude: s.Longitude}.DistanceKm(destination)
	}

	idx, arrived := DetectArrival(distances, p.cfg.ThresholdKm)
	var arrivalTime *int64
	if arrived {
		path = path[:idx+1]
		distances = distances[:idx+1]
		t := path[idx].Time
		arrivalTime = &t
	} else if !ignoreMinDistance {
		p.log.Info("Flight never came within arrival threshold",
			logger.String("icao24", info.ICAO24),
			logger.Float64("threshold_km", p.cfg.ThresholdKm))
		return nil, nil
	}
	if ignoreMinDistance {
		arrivalTime = nil
	}

	minGap := int64(p.cfg.MinSampleInterval / time.Second)
	datapoints := make([]FlightDatapoint, 0, len(path))
	last := 0
	for i := 1; i < len(path); i++ {
		dt := path[i].Time - path[last].Time
		if dt < minGap {
			continue
		}

		dp := FlightDatapoint{
			Location:               coordinates.Location{Latitude: path[i].Latitude, Longitude: path[i].Longitude},
			ArrivalAirport:         info.ArrivalAirport,
			ArrivalAirportLocation: destination,
			Timestamp:              path[i].Time,
			HorizontalSpeed:        CalculateSpeed(distances[i]-distances[last], float64(dt)),
			Altitude:               path[i].BaroAltitude,
			VerticalSpeed:          CalculateSpeed((path[i].BaroAltitude-path[last].BaroAltitude)/1000, float64(dt)),
			Heading:                path[i].TrueTrack,
			DistanceToDestination:  distances[i],
		}
		if arrivalTime != nil {
			at := *arrivalTime
			tta := at - path[i].Time
			dp.ArrivalTime = &at
			dp.TimeToArrival = &tta
		}

		datapoints = append(datapoints, dp)
		last = i
	}

	return datapoints, nil
}

// DetectArrival returns the index of the first distance below thresholdKm.
func DetectArrival(distances []float64, thresholdKm float64) (int, bool) {
	for i, d := range distances {
		if d < thresholdKm {
			return i, true
		}
	}
	return -1, false
}

// CalculateSpeed returns |distanceKm| per hour over seconds, or nil when
// seconds is zero.
func CalculateSpeed(distanceKm, seconds float64) *float64 {
	if seconds == 0 {
		return nil
	}
	speed := math.Abs(distanceKm / (seconds / 3600))
	return &speed
}

// stripSpaces removes all whitespace from s.
func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
