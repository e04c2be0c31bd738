package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker counts generation outcomes per intent ("reply", "post", ...).
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*IntentStats
}

// IntentStats holds counters for one generation intent.
// Fields are accessed atomically.
type IntentStats struct {
	Success     int64 `json:"success"`
	RateLimited int64 `json:"rate_limited"`
	ServerError int64 `json:"server_error"`
	Failure     int64 `json:"failure"`
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*IntentStats),
	}
}

// getStats returns the stats object for an intent, creating it if needed.
func (t *Tracker) getStats(intent string) *IntentStats {
	t.mu.RLock()
	s, ok := t.stats[intent]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[intent]; ok {
		return s
	}
	s = &IntentStats{}
	t.stats[intent] = s
	return s
}

// TrackSuccess records a completed generation.
func (t *Tracker) TrackSuccess(intent string) {
	atomic.AddInt64(&t.getStats(intent).Success, 1)
}

// TrackRateLimited records a generation rejected by backend quota.
func (t *Tracker) TrackRateLimited(intent string) {
	atomic.AddInt64(&t.getStats(intent).RateLimited, 1)
}

// TrackServerError records a transient backend failure.
func (t *Tracker) TrackServerError(intent string) {
	atomic.AddInt64(&t.getStats(intent).ServerError, 1)
}

// TrackFailure records a permanent generation failure.
func (t *Tracker) TrackFailure(intent string) {
	atomic.AddInt64(&t.getStats(intent).Failure, 1)
}

// Snapshot returns a copy of the current counters.
func (t *Tracker) Snapshot() map[string]IntentStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]IntentStats)
	for k, v := range t.stats {
		result[k] = IntentStats{
			Success:     atomic.LoadInt64(&v.Success),
			RateLimited: atomic.LoadInt64(&v.RateLimited),
			ServerError: atomic.LoadInt64(&v.ServerError),
			Failure:     atomic.LoadInt64(&v.Failure),
		}
	}
	return result
}
