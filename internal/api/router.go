package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"limstreat/internal/logger"
	"limstreat/internal/middleware"
)

// NewRouter wires every route. mcpHandler may be nil.
func NewRouter(h *Handler, mcpHandler http.Handler, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Log(log))
	r.Use(middleware.Session(h.sessions))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/map", http.StatusFound)
	})
	r.Get("/healthz", h.Healthz)

	// Pages
	r.Get("/map", h.MapPage)
	r.Get("/reviews", h.ReviewsPage)
	r.Get("/album", h.AlbumPage)
	r.Get("/stats", h.StatsPage)

	// Form actions
	r.Post("/filter", h.SetFilter)
	r.Post("/bookmarks", h.AddBookmark)
	r.Post("/bookmarks/{id}/delete", h.DeleteBookmark)
	r.Post("/bookmarks/{id}/memo/{action}", h.MemoAction)
	r.Post("/album/photos", h.UploadPhotos)
	r.Post("/album/photos/{id}/delete", h.DeletePhoto)
	r.Post("/album/{direction}", h.StepAlbum)

	r.Get("/media/{kind}/{name}", h.ServeMedia)

	r.Route("/api", func(r chi.Router) {
		r.Get("/bookmarks", h.ListBookmarksJSON)
		r.Get("/photos", h.ListPhotosJSON)
		r.Get("/stats", h.StatsJSON)
	})

	if mcpHandler != nil {
		r.Handle("/mcp", mcpHandler)
	}

	return r
}
