package api

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ServeMedia serves a stored PNG from the images or photos directory.
// Only plain file names are accepted.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	var dir string
	switch chi.URLParam(r, "kind") {
	case "images":
		dir = h.opts.ImagesDir
	case "photos":
		dir = h.opts.PhotosDir
	default:
		http.NotFound(w, r)
		return
	}

	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") ||
		strings.ContainsAny(name, `/\`) || strings.ToLower(filepath.Ext(name)) != ".png" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeFile(w, r, filepath.Join(dir, name))
}
