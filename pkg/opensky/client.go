package opensky

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the OpenSky Network REST API root
	BaseURL = "https://opensky-network.org/api"

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
)

// Config holds OpenSky client configuration.
type Config struct {
	BaseURL  string
	Username string
	Password string

	// RequestsPerMinute paces outgoing requests. Zero disables pacing.
	RequestsPerMinute float64

	Timeout time.Duration
}

// Client implements DataSource against the OpenSky REST API.
type Client struct {
	baseURL     string
	username    string
	password    string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a new OpenSky client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	// Requests per minute to a limiter with a burst of 1
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(cfg.RequestsPerMinute / 60.0)
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: rate.NewLimiter(limit, 1),
	}
}

// FlightsInInterval queries /flights/all for the [begin, end] interval.
func (c *Client) FlightsInInterval(ctx context.Context, begin, end int64) ([]RawFlight, error) {
	query := url.Values{}
	query.Set("begin", strconv.FormatInt(begin, 10))
	query.Set("end", strconv.FormatInt(end, 10))

	body, err := c.get(ctx, "/flights/all", query)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var flights []RawFlight
	if err := json.Unmarshal(body, &flights); err != nil {
		return nil, fmt.Errorf("failed to parse flights response: %w", err)
	}
	return flights, nil
}

// TrackByAircraft queries /tracks/all for a single aircraft.
func (c *Client) TrackByAircraft(ctx context.Context, icao24 string, t int64) (*Track, error) {
	query := url.Values{}
	query.Set("icao24", strings.ToLower(icao24))
	query.Set("time", strconv.FormatInt(t, 10))

	body, err := c.get(ctx, "/tracks/all", query)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var resp trackResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse track response: %w", err)
	}
	if resp.ICAO24 == "" && len(resp.Path) == 0 {
		return nil, nil
	}
	return resp.toTrack(), nil
}

// get performs a paced GET request. A nil body with a nil error means the
// provider has no data for the query.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	case http.StatusTooManyRequests:
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Message:    "Rate limit exceeded",
			Headers:    extractRateLimitHeaders(resp.Header),
		}
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// trackResponse is the JSON shape of /tracks/all.
type trackResponse struct {
	ICAO24    string `json:"icao24"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
	Callsign  string `json:"callsign"`

	// Path entries are [time, latitude, longitude, baro_altitude, true_track, on_ground]
	Path [][]interface{} `json:"path"`
}

func (r trackResponse) toTrack() *Track {
	track := &Track{
		ICAO24:    r.ICAO24,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Callsign:  r.Callsign,
		Path:      make([]TrackSample, 0, len(r.Path)),
	}

	for _, entry := range r.Path {
		if len(entry) < 6 {
			continue
		}
		ts := parseNumber(entry[0])
		lat := parseNumber(entry[1])
		lon := parseNumber(entry[2])
		// Waypoints without a position are useless for distance calculations
		if ts == nil || lat == nil || lon == nil {
			continue
		}

		sample := TrackSample{
			Time:      int64(*ts),
			Latitude:  *lat,
			Longitude: *lon,
		}
		if alt := parseNumber(entry[3]); alt != nil {
			sample.BaroAltitude = *alt
		}
		if heading := parseNumber(entry[4]); heading != nil {
			sample.TrueTrack = *heading
		}
		if onGround, ok := entry[5].(bool); ok {
			sample.OnGround = onGround
		}
		track.Path = append(track.Path, sample)
	}

	return track
}

// parseNumber extracts a float from a decoded JSON value.
// Returns nil for null or non-numeric values.
func parseNumber(val interface{}) *float64 {
	v, ok := val.(float64)
	if !ok {
		return nil
	}
	return &v
}

// RateLimitError represents an HTTP 429 rate limit error with retry information.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Headers    RateLimitHeaders
}

// RateLimitHeaders contains rate limit information from response headers.
type RateLimitHeaders struct {
	Limit     int       // X-Rate-Limit-Limit: Maximum requests allowed
	Remaining int       // X-Rate-Limit-Remaining: Requests remaining in current window
	Reset     time.Time // X-Rate-Limit-Reset: When the rate limit resets
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError checks if an error is (or wraps) a rate limit error.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// parseRetryAfter extracts the Retry-After header value.
// Supports both delay-seconds and HTTP-date formats; returns 0 when absent.
func parseRetryAfter(headers http.Header) time.Duration {
	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if retryTime, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(retryTime); d > 0 {
			return d
		}
	}

	return 0
}

// extractRateLimitHeaders reads the rate limit headers. OpenSky reports
// remaining credits in X-Rate-Limit-Remaining and the wait in
// X-Rate-Limit-Retry-After-Seconds.
func extractRateLimitHeaders(headers http.Header) RateLimitHeaders {
	rlh := RateLimitHeaders{
		Limit:     -1,
		Remaining: -1,
	}

	if val, ok := headerInt(headers, "X-Rate-Limit-Limit", "X-RateLimit-Limit"); ok {
		rlh.Limit = int(val)
	}
	if val, ok := headerInt(headers, "X-Rate-Limit-Remaining", "X-RateLimit-Remaining"); ok {
		rlh.Remaining = int(val)
	}
	if val, ok := headerInt(headers, "X-Rate-Limit-Reset", "X-RateLimit-Reset"); ok {
		rlh.Reset = time.Unix(val, 0)
	} else if val, ok := headerInt(headers, "X-Rate-Limit-Retry-After-Seconds"); ok {
		rlh.Reset = time.Now().Add(time.Duration(val) * time.Second)
	}

	return rlh
}

// headerInt returns the first header among names that parses as an integer.
func headerInt(headers http.Header, names ...string) (int64, bool) {
	for _, name := range names {
		if raw := headers.Get(name); raw != "" {
			if val, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return val, true
			}
		}
	}
	return 0, false
}
