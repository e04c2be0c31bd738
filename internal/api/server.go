package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"menagerie/pkg/store"
	"menagerie/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts handlers for all API endpoints and a shutdownFunc for graceful shutdown.
func NewServer(addr string, chars *CharactersHandler, convs *ConversationsHandler, msgs *MessagesHandler, sched *SchedulerHandler, feed *FeedHandler, stats *StatsHandler, images *ImagesHandler, ws http.Handler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health and version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	mux.HandleFunc("GET /api/log/recent", handleRecentLog)

	// 2. Characters
	mux.HandleFunc("GET /api/characters", chars.HandleList)
	mux.HandleFunc("GET /api/characters/{id}", chars.HandleGet)

	// 3. Conversations and direct messages
	mux.HandleFunc("GET /api/conversations", convs.HandleList)
	mux.HandleFunc("POST /api/conversations", convs.HandleCreate)
	mux.HandleFunc("GET /api/conversations/{id}/messages", convs.HandleMessages)
	mux.HandleFunc("POST /api/conversations/{id}/messages", convs.HandleSend)
	mux.HandleFunc("POST /api/conversations/{id}/respond", convs.HandleRespond)
	mux.HandleFunc("POST /api/conversations/{id}/cancel-response", convs.HandleCancelResponse)
	mux.HandleFunc("DELETE /api/conversations/{id}/messages/{messageID}", convs.HandleDeleteFrom)

	// 4. Message variations
	mux.HandleFunc("GET /api/messages/{id}/variations", msgs.HandleListVariations)
	mux.HandleFunc("POST /api/messages/{id}/variations", msgs.HandleGenerateVariation)
	mux.HandleFunc("POST /api/messages/{id}/regenerate", msgs.HandleRegenerate)

	// 5. Scheduler control
	mux.HandleFunc("POST /api/scheduler/start", sched.HandleStart)
	mux.HandleFunc("POST /api/scheduler/stop", sched.HandleStop)
	mux.HandleFunc("GET /api/scheduler/status", sched.HandleStatus)
	mux.HandleFunc("PATCH /api/scheduler/config", sched.HandleUpdateConfig)

	// 6. Feed
	mux.HandleFunc("GET /api/feed", feed.HandleFeed)
	mux.HandleFunc("GET /api/posts/{id}/comments", feed.HandleComments)

	// 7. Usage stats
	if stats != nil {
		mux.HandleFunc("GET /api/stats", stats.HandleStats)
	}

	// 8. Generated images
	if images != nil {
		mux.HandleFunc("GET /api/images/{file}", images.HandleGetImage)
	}

	// 9. Live updates
	if ws != nil {
		mux.Handle("GET /ws", ws)
	}

	// 10. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps store sentinels to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrNotAuthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, store.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("API: internal error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
