// Package weather interpolates hourly weather history into a per-minute
// series and matches flight samples to the nearest minute.
package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/tidwall/gjson"

	"github.com/unklstewy/flightwx/internal/trajectory"
	"github.com/unklstewy/flightwx/pkg/coordinates"
	"github.com/unklstewy/flightwx/pkg/logger"
	"github.com/unklstewy/flightwx/pkg/weatherapi"
)

const (
	// DateLayout is the calendar date format used for history queries
	DateLayout = "2006-01-02"

	// HourLayout is the provider's local "time" field format
	HourLayout = "2006-01-02 15:04"

	// EmptyCondition marks a datapoint with no weather available
	EmptyCondition = "NA"
)

// ErrInvalidDateFormat is returned when a date is not YYYY-MM-DD.
var ErrInvalidDateFormat = errors.New("invalid date format, expected YYYY-MM-DD")

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// HourlyObservation is one hourly record from the provider.
type HourlyObservation struct {
	Time          time.Time
	TempC         float64
	FeelsLikeC    float64
	ConditionText string
	WindKph       float64
	Humidity      float64
	PrecipMm      float64
	VisKm         float64
	PressureMb    float64
	UV            float64
}

// WeatherDatapoint is the weather at one minute.
type WeatherDatapoint struct {
	// Timestamp in Unix seconds
	Timestamp          int64
	TemperatureCelsius float64
	FeelsLikeCelsius   float64
	ConditionText      string
	WindSpeedKph       float64
	HumidityPercent    float64
	PrecipitationMm    float64
	VisibilityKm       float64
	PressureMb         float64
	UVIndex            float64
}

// Empty returns the sentinel used when no weather is available at ts.
func Empty(ts int64) WeatherDatapoint {
	return WeatherDatapoint{Timestamp: ts, ConditionText: EmptyCondition}
}

// IsEmpty reports whether w is the no-weather sentinel.
func (w WeatherDatapoint) IsEmpty() bool {
	return w == Empty(w.Timestamp)
}

// ValidateDate checks date is in YYYY-MM-DD form.
func ValidateDate(date string) error {
	if !datePattern.MatchString(date) {
		return fmt.Errorf("%w: %q", ErrInvalidDateFormat, date)
	}
	return nil
}

// ParseHistory extracts the hourly observations of the first forecast day.
// It returns false when the body is not valid JSON or has no hours.
func ParseHistory(body []byte) ([]HourlyObservation, bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}

	hours := gjson.GetBytes(body, "forecast.forecastday.0.hour")
	if !hours.IsArray() {
		return nil, false
	}

	var observations []HourlyObservation
	ok := true
	hours.ForEach(func(_, hour gjson.Result) bool {
		var ts time.Time
		if epoch := hour.Get("time_epoch"); epoch.Exists() {
			ts = time.Unix(epoch.Int(), 0).UTC()
		} else {
			parsed, err := time.ParseInLocation(HourLayout, hour.Get("time").String(), time.UTC)
			if err != nil {
				ok = false
				return false
			}
			ts = parsed
		}

		observations = append(observations, HourlyObservation{
			Time:          ts,
			TempC:         hour.Get("temp_c").Float(),
			FeelsLikeC:    hour.Get("feelslike_c").Float(),
			ConditionText: hour.Get("condition.text").String(),
			WindKph:       hour.Get("wind_kph").Float(),
			Humidity:      hour.Get("humidity").Float(),
			PrecipMm:      hour.Get("precip_mm").Float(),
			VisKm:         hour.Get("vis_km").Float(),
			PressureMb:    hour.Get("pressure_mb").Float(),
			UV:            hour.Get("uv").Float(),
		})
		return true
	})

	if !ok || len(observations) == 0 {
		return nil, false
	}
	return observations, true
}

// InterpolateHourRange produces one datapoint per minute in [start, end).
// Numeric fields are linearly interpolated and rounded to two decimals;
// the condition text is carried over from start.
func InterpolateHourRange(start, end HourlyObservation) []WeatherDatapoint {
	delta := int(end.Time.Sub(start.Time) / time.Minute)
	if delta <= 0 {
		return nil
	}

	points := make([]WeatherDatapoint, 0, delta)
	for m := 0; m < delta; m++ {
		progress := float64(m) / float64(delta)
		points = append(points, WeatherDatapoint{
			Timestamp:          start.Time.Add(time.Duration(m) * time.Minute).Unix(),
			TemperatureCelsius: interpolate(start.TempC, end.TempC, progress),
			FeelsLikeCelsius:   interpolate(start.FeelsLikeC, end.FeelsLikeC, progress),
			ConditionText:      start.ConditionText,
			WindSpeedKph:       interpolate(start.WindKph, end.WindKph, progress),
			HumidityPercent:    interpolate(start.Humidity, end.Humidity, progress),
			PrecipitationMm:    interpolate(start.PrecipMm, end.PrecipMm, progress),
			VisibilityKm:       interpolate(start.VisKm, end.VisKm, progress),
			PressureMb:         interpolate(start.PressureMb, end.PressureMb, progress),
			UVIndex:            interpolate(start.UV, end.UV, progress),
		})
	}
	return points
}

// InterpolateDay concatenates InterpolateHourRange over consecutive hours.
// The final hour only serves as an end point.
func InterpolateDay(hours []HourlyObservation) []WeatherDatapoint {
	var series []WeatherDatapoint
	for i := 0; i+1 < len(hours); i++ {
		series = append(series, InterpolateHourRange(hours[i], hours[i+1])...)
	}
	return series
}

// Nearest returns the datapoint with the smallest absolute timestamp
// difference to ts. Ties keep the earlier entry in series order.
func Nearest(series []WeatherDatapoint, ts int64) (WeatherDatapoint, bool) {
	if len(series) == 0 {
		return WeatherDatapoint{}, false
	}

	best := 0
	bestDelta := absInt64(series[0].Timestamp - ts)
	for i := 1; i < len(series); i++ {
		if d := absInt64(series[i].Timestamp - ts); d < bestDelta {
			best, bestDelta = i, d
		}
	}
	return series[best], true
}

// Interpolator fetches daily history and serves per-minute weather.
type Interpolator struct {
	source weatherapi.Source
	log    *logger.Logger

	// last fetched day series. Reuse is best effort: the location must
	// match exactly, so it hits for repeated positions only.
	cached      bool
	cacheLoc    coordinates.Location
	cacheDate   string
	cacheSeries []WeatherDatapoint
}

// NewInterpolator creates an interpolator over source.
func NewInterpolator(source weatherapi.Source, log *logger.Logger) *Interpolator {
	if log == nil {
		log = logger.Nop()
	}
	return &Interpolator{source: source, log: log.Named("weather")}
}

// WeatherForDay returns the per-minute series for location on date. An
// invalid date is an error and no request is made. The last series is
// reused when location and date are identical to the previous call.
// Provider failures and malformed responses yield a nil series with a nil
// error.
func (i *Interpolator) WeatherForDay(ctx context.Context, location coordinates.Location, date string) ([]WeatherDatapoint, error) {
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	if i.cached && i.cacheLoc == location && i.cacheDate == date {
		return i.cacheSeries, nil
	}

	body, err := i.source.History(ctx, location, date)
	if err != nil {
		i.log.Error("Error fetching weather data",
			logger.String("location", location.String()),
			logger.String("date", date),
			logger.Error(err))
		return nil, nil
	}

	hours, ok := ParseHistory(body)
	if !ok {
		i.log.Error("Invalid weather data response",
			logger.String("location", location.String()),
			logger.String("date", date))
		return nil, nil
	}

	series := InterpolateDay(hours)
	i.cached, i.cacheLoc, i.cacheDate, i.cacheSeries = true, location, date, series
	return series, nil
}

// DatapointAt returns the weather nearest to ts at location, or nil when
// none is available for that UTC day.
func (i *Interpolator) DatapointAt(ctx context.Context, location coordinates.Location, ts int64) (*WeatherDatapoint, error) {
	date := time.Unix(ts, 0).UTC().Format(DateLayout)
	series, err := i.WeatherForDay(ctx, location, date)
	if err != nil {
		return nil, err
	}

	nearest, ok := Nearest(series, ts)
	if !ok {
		i.log.Warn("No weather data found",
			logger.String("location", location.String()),
			logger.String("date", date))
		return nil, nil
	}
	return &nearest, nil
}

// DatapointForFlight returns the weather nearest to a flight sample.
func (i *Interpolator) DatapointForFlight(ctx context.Context, fdp trajectory.FlightDatapoint) (*WeatherDatapoint, error) {
	return i.DatapointAt(ctx, fdp.Location, fdp.Timestamp)
}

func interpolate(start, end, progress float64) float64 {
	return math.Round((start+progress*(end-start))*100) / 100
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
