package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"menagerie/pkg/store"
)

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleSend_SavesMessageAndTriggersReply(t *testing.T) {
	env := newTestEnv()
	env.seedConversation()

	rec := doRequest(t, env.handler, "POST", "/api/conversations/conv-1/messages",
		`{"content":"how are you?"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var msg struct {
		ID         string `json:"id"`
		SenderType string `json:"sender_type"`
		Content    string `json:"content"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.SenderType != "user" || msg.Content != "how are you?" {
		t.Errorf("message = %+v", msg)
	}

	if env.responder.triggerCount() != 1 {
		t.Errorf("responder triggered %d times, want 1", env.responder.triggerCount())
	}
}

func TestHandleSend_EmptyContent(t *testing.T) {
	env := newTestEnv()
	env.seedConversation()

	rec := doRequest(t, env.handler, "POST", "/api/conversations/conv-1/messages",
		`{"content":"   "}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if env.responder.triggerCount() != 0 {
		t.Error("responder must not fire for rejected messages")
	}
}

func TestHandleSend_UnknownConversation(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.handler, "POST", "/api/conversations/nope/messages",
		`{"content":"hi"}`)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleCancelResponse(t *testing.T) {
	env := newTestEnv()
	env.responder.cancelOK = true

	rec := doRequest(t, env.handler, "POST", "/api/conversations/conv-1/cancel-response", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp["cancelled"] {
		t.Error("cancelled = false, want true")
	}

	env.responder.cancelOK = false
	rec = doRequest(t, env.handler, "POST", "/api/conversations/conv-1/cancel-response", "")
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["cancelled"] {
		t.Error("cancelled = true with nothing in flight")
	}
}

func TestHandleDeleteFrom_Success(t *testing.T) {
	env := newTestEnv()
	env.seedConversation()

	rec := doRequest(t, env.handler, "DELETE",
		"/api/conversations/conv-1/messages/msg-1?user_id=user-1", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp DeleteFromResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.DeletedCount != 2 || len(resp.DeletedIDs) != 2 {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleDeleteFrom_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not authorized", store.ErrNotAuthorized, http.StatusForbidden},
		{"not found", store.ErrNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.store.deleteFromErr = tt.err

			rec := doRequest(t, env.handler, "DELETE",
				"/api/conversations/conv-1/messages/msg-1?user_id=user-2", "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandleDeleteFrom_RequiresUser(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.handler, "DELETE", "/api/conversations/conv-1/messages/msg-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCreate_Validation(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.handler, "POST", "/api/conversations", `{"user_id":"u"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing character_id: status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, env.handler, "POST", "/api/conversations",
		`{"user_id":"u","character_id":"ghost"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown character: status = %d, want 404", rec.Code)
	}
}
