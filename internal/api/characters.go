package api

import (
	"net/http"

	"menagerie/pkg/store"
)

// CharactersHandler serves character lookups.
type CharactersHandler struct {
	st store.CharacterStore
}

func NewCharactersHandler(st store.CharacterStore) *CharactersHandler {
	return &CharactersHandler{st: st}
}

// HandleList handles GET /api/characters
func (h *CharactersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	chars, err := h.st.GetAllCharacters(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chars)
}

// HandleGet handles GET /api/characters/{id}
func (h *CharactersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ch, err := h.st.GetCharacter(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if ch == nil {
		http.Error(w, "character not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}
