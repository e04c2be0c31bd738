package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"menagerie/pkg/model"
	"menagerie/pkg/store"
)

// Responder triggers and cancels orchestrated character replies.
type Responder interface {
	HandleResponse(ctx context.Context, conversationID string) error
	Cancel(conversationID string) bool
}

// ConversationStore is the persistence surface of the conversation endpoints.
type ConversationStore interface {
	store.ConversationStore
	store.CharacterStore
	store.MessageStore
}

// ConversationsHandler serves direct-message conversations.
type ConversationsHandler struct {
	st        ConversationStore
	responder Responder
}

func NewConversationsHandler(st ConversationStore, responder Responder) *ConversationsHandler {
	return &ConversationsHandler{st: st, responder: responder}
}

// HandleList handles GET /api/conversations?user_id=...
func (h *ConversationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "missing user_id parameter", http.StatusBadRequest)
		return
	}

	convs, err := h.st.ListConversations(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

// CreateConversationRequest starts a new thread with a character.
type CreateConversationRequest struct {
	UserID      string `json:"user_id"`
	CharacterID string `json:"character_id"`
}

// HandleCreate handles POST /api/conversations
func (h *ConversationsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.CharacterID == "" {
		http.Error(w, "user_id and character_id are required", http.StatusBadRequest)
		return
	}

	ch, err := h.st.GetCharacter(r.Context(), req.CharacterID)
	if err != nil {
		writeError(w, err)
		return
	}
	if ch == nil {
		http.Error(w, "character not found", http.StatusNotFound)
		return
	}

	conv := &model.Conversation{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		CharacterID: req.CharacterID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.st.SaveConversation(r.Context(), conv); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// HandleMessages handles GET /api/conversations/{id}/messages?limit=N
func (h *ConversationsHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	msgs, err := h.st.ListMessages(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// SendMessageRequest is a user message to a conversation.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// HandleSend handles POST /api/conversations/{id}/messages.
// Persists the user's message and kicks off the character's reply.
func (h *ConversationsHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	conv, err := h.st.GetConversation(r.Context(), conversationID)
	if err != nil {
		writeError(w, err)
		return
	}
	if conv == nil {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	msg := &model.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderType:     model.SenderUser,
		Content:        req.Content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.st.SaveMessage(r.Context(), msg); err != nil {
		writeError(w, err)
		return
	}

	if err := h.responder.HandleResponse(r.Context(), conversationID); err != nil {
		// The user's message is saved either way; the reply just won't come.
		slog.Warn("API: failed to trigger response", "conversation", conversationID, "error", err)
	}

	writeJSON(w, http.StatusCreated, msg)
}

// HandleRespond handles POST /api/conversations/{id}/respond.
// Re-triggers a character reply without a new user message.
func (h *ConversationsHandler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	if err := h.responder.HandleResponse(r.Context(), conversationID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "responding"})
}

// HandleCancelResponse handles POST /api/conversations/{id}/cancel-response
func (h *ConversationsHandler) HandleCancelResponse(w http.ResponseWriter, r *http.Request) {
	cancelled := h.responder.Cancel(r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// DeleteFromResponse reports the outcome of a cascading delete.
type DeleteFromResponse struct {
	DeletedCount int      `json:"deleted_count"`
	DeletedIDs   []string `json:"deleted_ids"`
}

// HandleDeleteFrom handles DELETE /api/conversations/{id}/messages/{messageID}?user_id=...
// Deletes the anchor message and everything after it, with variation sets,
// atomically.
func (h *ConversationsHandler) HandleDeleteFrom(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "missing user_id parameter", http.StatusBadRequest)
		return
	}

	deleted, err := h.st.DeleteMessagesFrom(r.Context(), r.PathValue("id"), r.PathValue("messageID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteFromResponse{
		DeletedCount: len(deleted),
		DeletedIDs:   deleted,
	})
}
