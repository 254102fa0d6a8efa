// Package airports resolves ICAO airport identifiers to locations.
package airports

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/unklstewy/flightwx/pkg/coordinates"
)

// ErrMissingColumn is returned when the airport file lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// Lookup answers airport membership and location queries.
type Lookup interface {
	IsAirport(code string) bool
	Location(code string) (coordinates.Location, bool)
}

// Registry is an in-memory airport table keyed by ident.
type Registry struct {
	airports map[string]coordinates.Location
}

// New creates a registry from an ident to location map.
func New(airports map[string]coordinates.Location) *Registry {
	r := &Registry{airports: make(map[string]coordinates.Location, len(airports))}
	for code, loc := range airports {
		r.airports[code] = loc
	}
	return r
}

// Load reads a registry from a CSV file.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open airport data: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a CSV airport table. The header must contain "ident" and
// either "latitude"/"longitude" or the OurAirports "latitude_deg"/"longitude_deg".
// Rows with unparsable or out-of-range coordinates are skipped.
func Parse(r io.Reader) (*Registry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read airport header: %w", err)
	}

	identCol := columnIndex(header, "ident")
	latCol := columnIndex(header, "latitude", "latitude_deg")
	lonCol := columnIndex(header, "longitude", "longitude_deg")
	if identCol < 0 {
		return nil, fmt.Errorf("%w: ident", ErrMissingColumn)
	}
	if latCol < 0 || lonCol < 0 {
		return nil, fmt.Errorf("%w: latitude/longitude", ErrMissingColumn)
	}

	registry := &Registry{airports: make(map[string]coordinates.Location)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read airport row: %w", err)
		}
		if identCol >= len(record) || latCol >= len(record) || lonCol >= len(record) {
			continue
		}

		ident := strings.TrimSpace(record[identCol])
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(record[latCol]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(record[lonCol]), 64)
		if ident == "" || errLat != nil || errLon != nil {
			continue
		}
		loc, err := coordinates.NewLocation(lat, lon)
		if err != nil {
			continue
		}
		registry.airports[ident] = loc
	}

	return registry, nil
}

// IsAirport reports whether code is a known ident.
func (r *Registry) IsAirport(code string) bool {
	_, ok := r.airports[code]
	return ok
}

// Location returns the location of code.
func (r *Registry) Location(code string) (coordinates.Location, bool) {
	loc, ok := r.airports[code]
	return loc, ok
}

// Len returns the number of airports.
func (r *Registry) Len() int {
	return len(r.airports)
}

func columnIndex(header []string, names ...string) int {
	for _, name := range names {
		for i, col := range header {
			if strings.EqualFold(strings.TrimSpace(col), name) {
				return i
			}
		}
	}
	return -1
}
