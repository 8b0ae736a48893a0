// Package api is the web layer: HTML pages, form actions, stored media and a
// small JSON API over the service.
package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"limstreat/internal/apperr"
	"limstreat/internal/logger"
	"limstreat/internal/models"
	"limstreat/internal/service"
	"limstreat/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options are the presentation settings taken from config.
type Options struct {
	ImagesDir      string
	PhotosDir      string
	MaxUploadBytes int64
	MapCenter      models.Coordinates
	MapZoom        int
}

// Handler serves the pages, form actions and JSON endpoints.
type Handler struct {
	svc      *service.Service
	sessions *session.Manager
	log      logger.Logger
	opts     Options
	pages    map[string]*template.Template
	popup    *template.Template
	md       goldmark.Markdown
	now      func() time.Time
	started  time.Time
}

// NewHandler parses the embedded templates and fills in option defaults.
func NewHandler(svc *service.Service, sessions *session.Manager, opts Options, log logger.Logger) (*Handler, error) {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.MapZoom <= 0 {
		opts.MapZoom = 13
	}
	if log == nil {
		log = logger.Nop()
	}

	pages, popup, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	return &Handler{
		svc:      svc,
		sessions: sessions,
		log:      log,
		opts:     opts,
		pages:    pages,
		popup:    popup,
		md:       newMarkdown(),
		now:      time.Now,
		started:  time.Now(),
	}, nil
}

var pageFiles = []string{"map", "reviews", "album", "stats"}

func parseTemplates() (map[string]*template.Template, *template.Template, error) {
	base, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, nil, err
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		clone, err := base.Clone()
		if err != nil {
			return nil, nil, err
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, nil, err
		}
		pages[name] = clone
	}

	popup, err := template.ParseFS(templateFS, "templates/popup.html")
	if err != nil {
		return nil, nil, err
	}
	return pages, popup, nil
}

// layoutData is shared by every page.
type layoutData struct {
	Screen  session.Screen
	Title   string
	Filter  models.Filter
	Filters []models.Filter
	Counts  service.Counts
	Flashes []session.Flash
	Page    any
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, screen session.Screen, title string, page any) {
	counts, err := h.svc.Counts(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	st := h.sessions.Load(r.Context())

	data := layoutData{
		Screen:  screen,
		Title:   title,
		Filter:  st.Filter,
		Filters: models.Filters,
		Counts:  counts,
		Flashes: h.sessions.TakeFlashes(r.Context()),
		Page:    page,
	}

	tmpl, ok := h.pages[string(screen)]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		h.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) flash(r *http.Request, kind session.FlashKind, text string) {
	h.sessions.Update(r.Context(), func(s *session.State) { s.AddFlash(kind, text) })
}

// actionError turns a failed form action into a flash message and a redirect
// for user errors, or a 500 for anything else.
func (h *Handler) actionError(w http.ResponseWriter, r *http.Request, err error, redirect string) {
	if !service.IsUserError(err) {
		h.serverError(w, r, err)
		return
	}
	h.flash(r, session.FlashError, apperr.Message(err, "요청을 처리하지 못했어요."))
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error("request failed",
		logger.String("method", r.Method),
		logger.String("path", r.URL.Path),
		logger.Error(err))
	http.Error(w, "서버 오류가 발생했어요.", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) jsonError(w http.ResponseWriter, r *http.Request, err error) {
	if service.IsUserError(err) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": apperr.Message(err, err.Error())})
		return
	}
	h.log.Error("api request failed", logger.String("path", r.URL.Path), logger.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// safeRedirect only follows local paths.
func safeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return fallback
	}
	return target
}

func (h *Handler) today() string {
	return h.now().Format(models.DateLayout)
}
