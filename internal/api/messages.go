package api

import (
	"context"
	"net/http"

	"menagerie/pkg/model"
	"menagerie/pkg/store"
)

// VariationService produces new alternative contents for generated messages.
type VariationService interface {
	GenerateVariation(ctx context.Context, messageID string) (index, total int, err error)
	RegenerateMessage(ctx context.Context, messageID string) (*model.Message, error)
}

// MessagesHandler serves message variation endpoints.
type MessagesHandler struct {
	st  store.VariationStore
	svc VariationService
}

func NewMessagesHandler(st store.VariationStore, svc VariationService) *MessagesHandler {
	return &MessagesHandler{st: st, svc: svc}
}

// HandleListVariations handles GET /api/messages/{id}/variations
func (h *MessagesHandler) HandleListVariations(w http.ResponseWriter, r *http.Request) {
	vars, err := h.st.ListVariations(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vars)
}

// VariationResponse reports a freshly appended variation.
type VariationResponse struct {
	Index      int `json:"index"`
	TotalCount int `json:"total_count"`
}

// HandleGenerateVariation handles POST /api/messages/{id}/variations
func (h *MessagesHandler) HandleGenerateVariation(w http.ResponseWriter, r *http.Request) {
	index, total, err := h.svc.GenerateVariation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, VariationResponse{Index: index, TotalCount: total})
}

// HandleRegenerate handles POST /api/messages/{id}/regenerate.
// Replaces the message content and resets its variation set.
func (h *MessagesHandler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	msg, err := h.svc.RegenerateMessage(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
