package api

import (
	"net/http"
	"os"
	"path/filepath"
)

// ImagesHandler serves generated post images from the images directory.
type ImagesHandler struct {
	dir string
}

func NewImagesHandler(dir string) *ImagesHandler {
	return &ImagesHandler{dir: dir}
}

// HandleGetImage handles GET /api/images/{file}
func (h *ImagesHandler) HandleGetImage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if name == "" || name != filepath.Base(name) {
		http.Error(w, "invalid image name", http.StatusBadRequest)
		return
	}

	path := filepath.Join(h.dir, name)
	info, err := os.Stat(path)
	if os.IsNotExist(err) || (err == nil && info.IsDir()) {
		http.Error(w, "image not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal processing error", http.StatusInternalServerError)
		return
	}

	http.ServeFile(w, r, path)
}
