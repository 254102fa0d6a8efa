// Package dataset merges flight and weather datapoints into flat records.
package dataset

import (
	"strconv"

	"github.com/unklstewy/flightwx/internal/trajectory"
	"github.com/unklstewy/flightwx/internal/weather"
)

// CombinedDatapoint is one output record.
type CombinedDatapoint struct {
	Timestamp int64
	Flight    trajectory.FlightDatapoint
	Weather   weather.WeatherDatapoint
}

// FromDatapoints merges a flight sample with its weather. A nil weather
// datapoint is replaced by the empty sentinel at the flight's timestamp.
func FromDatapoints(f trajectory.FlightDatapoint, w *weather.WeatherDatapoint) CombinedDatapoint {
	wdp := weather.Empty(f.Timestamp)
	if w != nil {
		wdp = *w
	}
	return CombinedDatapoint{
		Timestamp: f.Timestamp,
		Flight:    f,
		Weather:   wdp,
	}
}

var flightColumns = []string{
	"location_latitude",
	"location_longitude",
	"arrival_airport",
	"arrival_airport_location_latitude",
	"arrival_airport_location_longitude",
	"timestamp",
	"horizontal_speed",
	"altitude",
	"vertical_speed",
	"heading",
	"distance_to_destination",
	"arrival_time",
	"time_to_arrival",
}

var weatherColumns = []string{
	"timestamp",
	"temperature_celsius",
	"feels_like_celsius",
	"condition_text",
	"wind_speed_kph",
	"humidity_percent",
	"precipitation_mm",
	"visibility_km",
	"pressure_mb",
	"uv_index",
}

// FlightColumns returns the flight field names in output order.
func FlightColumns() []string {
	return append([]string(nil), flightColumns...)
}

// WeatherColumns returns the weather field names in output order.
func WeatherColumns() []string {
	return append([]string(nil), weatherColumns...)
}

// Header returns the full column list: timestamp, then flight_ and
// weather_ prefixed fields.
func Header() []string {
	header := make([]string, 0, 1+len(flightColumns)+len(weatherColumns))
	header = append(header, "timestamp")
	for _, c := range flightColumns {
		header = append(header, "flight_"+c)
	}
	for _, c := range weatherColumns {
		header = append(header, "weather_"+c)
	}
	return header
}

// FlightValues renders f in FlightColumns order. Nil values are empty.
func FlightValues(f trajectory.FlightDatapoint) []string {
	return []string{
		formatFloat(f.Location.Latitude),
		formatFloat(f.Location.Longitude),
		f.ArrivalAirport,
		formatFloat(f.ArrivalAirportLocation.Latitude),
		formatFloat(f.ArrivalAirportLocation.Longitude),
		strconv.FormatInt(f.Timestamp, 10),
		formatFloatPtr(f.HorizontalSpeed),
		formatFloat(f.Altitude),
		formatFloatPtr(f.VerticalSpeed),
		formatFloat(f.Heading),
		formatFloat(f.DistanceToDestination),
		formatIntPtr(f.ArrivalTime),
		formatIntPtr(f.TimeToArrival),
	}
}

// WeatherValues renders w in WeatherColumns order.
func WeatherValues(w weather.WeatherDatapoint) []string {
	return []string{
		strconv.FormatInt(w.Timestamp, 10),
		formatFloat(w.TemperatureCelsius),
		formatFloat(w.FeelsLikeCelsius),
		w.ConditionText,
		formatFloat(w.WindSpeedKph),
		formatFloat(w.HumidityPercent),
		formatFloat(w.PrecipitationMm),
		formatFloat(w.VisibilityKm),
		formatFloat(w.PressureMb),
		formatFloat(w.UVIndex),
	}
}

// Row renders the record in Header order.
func (c CombinedDatapoint) Row() []string {
	row := make([]string, 0, 1+len(flightColumns)+len(weatherColumns))
	row = append(row, strconv.FormatInt(c.Timestamp, 10))
	row = append(row, FlightValues(c.Flight)...)
	row = append(row, WeatherValues(c.Weather)...)
	return row
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatIntPtr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
