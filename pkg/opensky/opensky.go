// Package opensky provides access to historical flight and track data from
// the OpenSky Network REST API.
package opensky

import "context"

// RawFlight is one flight record returned by an interval query.
// Airport codes and call sign are returned as the provider reports them and
// may be empty or padded with whitespace.
type RawFlight struct {
	// ICAO24 is the transponder address in lowercase hex (e.g., "3c6444")
	ICAO24 string `json:"icao24"`

	// FirstSeen and LastSeen are Unix seconds
	FirstSeen int64 `json:"firstSeen"`
	LastSeen  int64 `json:"lastSeen"`

	EstDepartureAirport string `json:"estDepartureAirport"`
	EstArrivalAirport   string `json:"estArrivalAirport"`
	Callsign            string `json:"callsign"`
}

// TrackSample is one waypoint of a track.
type TrackSample struct {
	// Time in Unix seconds
	Time int64

	// Latitude and Longitude in decimal degrees
	Latitude  float64
	Longitude float64

	// BaroAltitude in meters
	BaroAltitude float64

	// TrueTrack is the heading in degrees clockwise from north
	TrueTrack float64

	OnGround bool
}

// Track is the recorded path of a single aircraft.
type Track struct {
	ICAO24    string
	StartTime int64
	EndTime   int64
	Callsign  string
	Path      []TrackSample
}

// DataSource is the interface that telemetry providers must implement.
// Both methods report "no data" as a nil result with a nil error, which is
// distinct from a failed call.
type DataSource interface {
	// FlightsInInterval returns all flights seen between begin and end
	// (Unix seconds).
	FlightsInInterval(ctx context.Context, begin, end int64) ([]RawFlight, error)

	// TrackByAircraft returns the track of icao24 for the flight active at
	// time t (Unix seconds).
	TrackByAircraft(ctx context.Context, icao24 string, t int64) (*Track, error)
}
