package api

import (
	"net/http"

	"menagerie/pkg/tracker"
)

// StatsHandler exposes generation usage counters.
type StatsHandler struct {
	tracker *tracker.Tracker
}

func NewStatsHandler(t *tracker.Tracker) *StatsHandler {
	return &StatsHandler{tracker: t}
}

// StatsResponse is the payload of GET /api/stats.
type StatsResponse struct {
	Generation map[string]tracker.IntentStats `json:"generation"`
}

// HandleStats returns per-intent generation outcome counters.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{Generation: h.tracker.Snapshot()})
}
