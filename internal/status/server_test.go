package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/unklstewy/flightwx/internal/auth"
	"github.com/unklstewy/flightwx/internal/collector"
)

func newStats() *collector.Stats {
	return collector.NewStats("run-7", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
}

// TestHealth tests the liveness endpoint.
func TestHealth(t *testing.T) {
	srv := New(":0", newStats(), nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("Expected body ok, got %q", rec.Body.String())
	}
}

// TestStatus tests the snapshot endpoint.
func TestStatus(t *testing.T) {
	srv := New(":0", newStats(), nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %s", ct)
	}

	var snap collector.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snap.RunID != "run-7" || snap.Finished {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
}

// TestStatusWithoutStats tests the endpoint before a run is attached.
func TestStatusWithoutStats(t *testing.T) {
	srv := New(":0", nil, nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

// TestStatusRequiresToken tests bearer token enforcement.
func TestStatusRequiresToken(t *testing.T) {
	tokens := auth.NewService(auth.Config{Secret: "status-secret"})
	srv := New(":0", newStats(), tokens, nil)

	valid, err := tokens.GenerateToken("ops", "run-7")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	// Health stays open
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected open healthz, got %d", rec.Code)
	}
}

// TestCORSPreflight verifies the CORS middleware answers preflight requests.
func TestCORSPreflight(t *testing.T) {
	srv := New(":0", newStats(), nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/status", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected Access-Control-Allow-Origin *, got %q", got)
	}
}
