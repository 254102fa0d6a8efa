// Package weatherapi is a minimal client for the WeatherAPI.com history
// endpoint.
package weatherapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unklstewy/flightwx/pkg/coordinates"
)

const (
	// HistoryURL is the WeatherAPI.com history endpoint
	HistoryURL = "http://api.weatherapi.com/v1/history.json"

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 15 * time.Second
)

// Source returns raw hourly history for one location and calendar day.
type Source interface {
	History(ctx context.Context, location coordinates.Location, date string) ([]byte, error)
}

// Config holds weather client configuration.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client fetches historical weather.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new weather history client.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = HistoryURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// History returns the raw JSON body for date (YYYY-MM-DD) at location.
func (c *Client) History(ctx context.Context, location coordinates.Location, date string) ([]byte, error) {
	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("q", location.String())
	query.Set("dt", date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weather data: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read weather response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
