// Package coordinates holds the geographic value types shared by the
// trajectory and weather packages.
package coordinates

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang/geo/s2"
)

const (
	// EarthRadiusKm is the mean Earth radius used for great-circle distances
	EarthRadiusKm = 6371.0
)

// ErrInvalidCoordinate is returned when a latitude or longitude is out of range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Location represents a position on Earth's surface in decimal degrees.
// Construct it with NewLocation; the zero value is (0, 0).
type Location struct {
	// Latitude in decimal degrees (-90 to +90)
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64
}

// NewLocation validates and returns a Location.
func NewLocation(latitude, longitude float64) (Location, error) {
	if !(latitude >= -90 && latitude <= 90) {
		return Location{}, fmt.Errorf("%w: latitude must be between -90 and 90 degrees, got %v", ErrInvalidCoordinate, latitude)
	}
	if !(longitude >= -180 && longitude <= 180) {
		return Location{}, fmt.Errorf("%w: longitude must be between -180 and 180 degrees, got %v", ErrInvalidCoordinate, longitude)
	}
	return Location{Latitude: latitude, Longitude: longitude}, nil
}

// MustLocation is like NewLocation but panics on invalid input.
func MustLocation(latitude, longitude float64) Location {
	loc, err := NewLocation(latitude, longitude)
	if err != nil {
		panic(err)
	}
	return loc
}

// LatLng converts the location to an s2 point.
func (l Location) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(l.Latitude, l.Longitude)
}

// DistanceKm returns the great-circle distance to other in kilometers.
func (l Location) DistanceKm(other Location) float64 {
	return DistanceKm(l, other)
}

// String renders "lat,lon", the query form weather providers accept.
func (l Location) String() string {
	return strconv.FormatFloat(l.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(l.Longitude, 'f', -1, 64)
}

// DistanceKm calculates the great-circle distance between two points
// using the Haversine formula. Returns distance in kilometers.
func DistanceKm(a, b Location) float64 {
	return a.LatLng().Distance(b.LatLng()).Radians() * EarthRadiusKm
}
