package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"menagerie/pkg/model"
)

var (
	errNegativeInterval = errors.New("intervals must be non-negative")
	errChanceOutOfRange = errors.New("chances must be between 0 and 1")
)

// SchedulerController controls the autonomous content scheduler.
type SchedulerController interface {
	Start()
	Stop()
	Status(ctx context.Context) model.SchedulerStatus
	UpdateConfig(ctx context.Context, patch model.SchedulerConfigPatch) error
}

// SchedulerHandler serves scheduler control endpoints.
type SchedulerHandler struct {
	sched SchedulerController
}

func NewSchedulerHandler(sched SchedulerController) *SchedulerHandler {
	return &SchedulerHandler{sched: sched}
}

// HandleStart handles POST /api/scheduler/start
func (h *SchedulerHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, h.sched.Status(r.Context()))
}

// HandleStop handles POST /api/scheduler/stop
func (h *SchedulerHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, h.sched.Status(r.Context()))
}

// HandleStatus handles GET /api/scheduler/status
func (h *SchedulerHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Status(r.Context()))
}

// HandleUpdateConfig handles PATCH /api/scheduler/config.
// Accepts a partial config; omitted fields keep their current values.
func (h *SchedulerHandler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch model.SchedulerConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validatePatch(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.sched.UpdateConfig(r.Context(), patch); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sched.Status(r.Context()))
}

func validatePatch(p *model.SchedulerConfigPatch) error {
	checkInterval := func(v *int) error {
		if v != nil && *v < 0 {
			return errNegativeInterval
		}
		return nil
	}
	checkChance := func(v *float64) error {
		if v != nil && (*v < 0 || *v > 1) {
			return errChanceOutOfRange
		}
		return nil
	}

	for _, v := range []*int{
		p.MinPostIntervalMinutes, p.MaxPostIntervalMinutes,
		p.MinCommentIntervalMinutes, p.MaxCommentIntervalMinutes,
	} {
		if err := checkInterval(v); err != nil {
			return err
		}
	}
	for _, v := range []*float64{p.ImagePostChance, p.CommentChance} {
		if err := checkChance(v); err != nil {
			return err
		}
	}
	return nil
}
