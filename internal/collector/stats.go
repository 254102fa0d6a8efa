package collector

import (
	"sync"
	"time"
)

// Stats tracks collection progress. It is safe for concurrent use so the
// status endpoint can read it while a run is in progress.
type Stats struct {
	mu sync.Mutex
	s  Snapshot
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Finished  bool      `json:"finished"`

	WindowsTotal     int `json:"windows_total"`
	WindowsProcessed int `json:"windows_processed"`
	WindowsSkipped   int `json:"windows_skipped"`

	FlightsProcessed int `json:"flights_processed"`
	FlightsSkipped   int `json:"flights_skipped"`

	DatapointsWritten int `json:"datapoints_written"`
	MissingWeather    int `json:"missing_weather"`

	CurrentWindowStart time.Time `json:"current_window_start,omitempty"`
	CurrentWindowEnd   time.Time `json:"current_window_end,omitempty"`
	CurrentTarget      string    `json:"current_target,omitempty"`
}

// NewStats creates stats for a run.
func NewStats(runID string, startedAt time.Time) *Stats {
	return &Stats{s: Snapshot{RunID: runID, StartedAt: startedAt}}
}

// Snapshot returns a copy of the current counters.
func (st *Stats) Snapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

func (st *Stats) update(fn func(s *Snapshot)) {
	st.mu.Lock()
	fn(&st.s)
	st.mu.Unlock()
}
