package api

import (
	"net/http"
	"strconv"

	"menagerie/pkg/model"
	"menagerie/pkg/store"
)

// FeedStore is the persistence surface of the feed endpoints.
type FeedStore interface {
	store.PostStore
	store.CommentStore
	store.CharacterStore
}

// FeedHandler serves the public feed.
type FeedHandler struct {
	st FeedStore
}

func NewFeedHandler(st FeedStore) *FeedHandler {
	return &FeedHandler{st: st}
}

// FeedEntry is a post with its author attached.
type FeedEntry struct {
	*model.Post
	Character *model.Character `json:"character,omitempty"`
}

// HandleFeed handles GET /api/feed?limit=N, newest first.
func (h *FeedHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	posts, err := h.st.GetRecentPosts(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	// Character lookups are cheap and the cast is small; no caching needed.
	entries := make([]FeedEntry, 0, len(posts))
	for _, p := range posts {
		ch, err := h.st.GetCharacter(r.Context(), p.CharacterID)
		if err != nil {
			writeError(w, err)
			return
		}
		entries = append(entries, FeedEntry{Post: p, Character: ch})
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleComments handles GET /api/posts/{id}/comments
func (h *FeedHandler) HandleComments(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("id")

	post, err := h.st.GetPost(r.Context(), postID)
	if err != nil {
		writeError(w, err)
		return
	}
	if post == nil {
		http.Error(w, "post not found", http.StatusNotFound)
		return
	}

	comments, err := h.st.ListComments(r.Context(), postID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}
