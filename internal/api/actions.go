package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"limstreat/internal/apperr"
	"limstreat/internal/models"
	"limstreat/internal/service"
	"limstreat/internal/session"
)

// AddBookmark handles the registration form. User errors re-render the map
// with the typed values kept.
func (h *Handler) AddBookmark(w http.ResponseWriter, r *http.Request) {
	if err := h.parseUpload(w, r); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.uploadError(w, r, err, "/map")
		return
	}

	form := bookmarkForm{
		Name:        r.FormValue("name"),
		Address:     r.FormValue("address"),
		Rating:      r.FormValue("rating"),
		Recommended: r.FormValue("recommended") != "",
		Category:    r.FormValue("category"),
		Memo:        r.FormValue("memo"),
	}

	in := service.BookmarkInput{
		Name:          form.Name,
		Address:       form.Address,
		IsRecommended: form.Recommended,
		Category:      models.Category(form.Category),
		Memo:          form.Memo,
	}
	if form.Rating != "" {
		rating, err := strconv.Atoi(form.Rating)
		if err != nil {
			h.formError(w, r, form, apperr.New(apperr.Validation, "별점은 1~5 사이여야 합니다."))
			return
		}
		in.Rating = &rating
	}

	image, err := readOptionalFile(r, "image")
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	in.Image = image

	res, err := h.svc.AddBookmark(r.Context(), in)
	if err != nil {
		h.formError(w, r, form, err)
		return
	}

	b := res.Bookmark
	h.sessions.Update(r.Context(), func(s *session.State) {
		s.Center = &models.Coordinates{Lat: b.Lat, Lon: b.Lon}
		s.AddFlash(session.FlashSuccess, fmt.Sprintf("'%s' 저장 완료!", b.Name))
		if res.Warning != "" {
			s.AddFlash(session.FlashWarning, res.Warning)
		}
	})
	http.Redirect(w, r, "/map", http.StatusSeeOther)
}

func (h *Handler) formError(w http.ResponseWriter, r *http.Request, form bookmarkForm, err error) {
	if !service.IsUserError(err) {
		h.serverError(w, r, err)
		return
	}
	h.flash(r, session.FlashError, apperr.Message(err, "저장하지 못했어요."))
	h.renderMap(w, r, http.StatusBadRequest, form)
}

// parseUpload reads a multipart body of at most MaxUploadBytes.
func (h *Handler) parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	return r.ParseMultipartForm(h.opts.MaxUploadBytes)
}

func (h *Handler) uploadError(w http.ResponseWriter, r *http.Request, err error, redirect string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.log.Warnf("upload rejected: %d byte limit", tooLarge.Limit)
		h.flash(r, session.FlashError, "업로드한 파일이 너무 커요.")
	} else {
		h.log.Warnf("read upload: %v", err)
		h.flash(r, session.FlashError, "업로드를 읽지 못했어요. 다시 시도해 주세요.")
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func readOptionalFile(r *http.Request, field string) ([]byte, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (h *Handler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteBookmark(r.Context(), id); err != nil {
		h.actionError(w, r, err, "/reviews")
		return
	}
	h.sessions.Update(r.Context(), func(s *session.State) {
		delete(s.EditingMemo, id)
		s.AddFlash(session.FlashSuccess, "삭제했어요.")
	})
	http.Redirect(w, r, "/reviews", http.StatusSeeOther)
}

// MemoAction opens, saves or closes the memo editor of one bookmark.
func (h *Handler) MemoAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	back := "/reviews#b-" + id

	switch chi.URLParam(r, "action") {
	case "edit":
		h.sessions.Update(r.Context(), func(s *session.State) { s.EditingMemo[id] = true })
	case "cancel":
		h.sessions.Update(r.Context(), func(s *session.State) { delete(s.EditingMemo, id) })
	case "save":
		if err := h.svc.SaveMemo(r.Context(), id, r.FormValue("memo")); err != nil {
			h.actionError(w, r, err, back)
			return
		}
		h.sessions.Update(r.Context(), func(s *session.State) {
			delete(s.EditingMemo, id)
			s.AddFlash(session.FlashSuccess, "메모를 저장했어요.")
		})
	default:
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// SetFilter stores the sidebar filter and returns to the page it came from.
func (h *Handler) SetFilter(w http.ResponseWriter, r *http.Request) {
	filter := models.ParseFilter(r.FormValue("filter"))
	h.sessions.Update(r.Context(), func(s *session.State) { s.Filter = filter })
	http.Redirect(w, r, safeRedirect(r.FormValue("next"), "/map"), http.StatusSeeOther)
}

func (h *Handler) UploadPhotos(w http.ResponseWriter, r *http.Request) {
	if err := h.parseUpload(w, r); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			h.flash(r, session.FlashError, "업로드할 사진을 선택해 주세요.")
			http.Redirect(w, r, "/album", http.StatusSeeOther)
			return
		}
		h.uploadError(w, r, err, "/album")
		return
	}

	date := strings.TrimSpace(r.FormValue("date"))
	if date == "" {
		date = h.sessions.Load(r.Context()).AlbumDate
	}

	uploads, err := readFiles(r.MultipartForm.File["photos"])
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	res, err := h.svc.UploadPhotos(r.Context(), date, r.FormValue("store_name"), uploads)
	if err != nil {
		h.actionError(w, r, err, "/album")
		return
	}

	h.sessions.Update(r.Context(), func(s *session.State) {
		s.SetAlbumDate(date)
		if len(res.Stored) > 0 {
			s.AlbumIndex = 0
			s.AddFlash(session.FlashSuccess, fmt.Sprintf("사진 %d장을 저장했어요.", len(res.Stored)))
		}
		for _, f := range res.Failed {
			s.AddFlash(session.FlashWarning, fmt.Sprintf("%s: %s", f.Filename, apperr.Message(f.Err, "저장하지 못했어요.")))
		}
	})
	http.Redirect(w, r, "/album", http.StatusSeeOther)
}

func readFiles(headers []*multipart.FileHeader) ([]service.Upload, error) {
	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, service.Upload{Filename: fh.Filename, Data: data})
	}
	return uploads, nil
}

// DeletePhoto removes the shown photo once the confirmation box is ticked.
func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("confirm") == "" {
		h.flash(r, session.FlashError, "삭제하려면 확인란을 체크해 주세요.")
		http.Redirect(w, r, "/album", http.StatusSeeOther)
		return
	}

	if err := h.svc.DeletePhoto(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.actionError(w, r, err, "/album")
		return
	}

	st := h.sessions.Load(r.Context())
	album, err := h.svc.Album(r.Context(), st.AlbumDate, st.AlbumIndex)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.sessions.Update(r.Context(), func(s *session.State) {
		s.AlbumIndex = album.Index
		s.AddFlash(session.FlashSuccess, "사진을 삭제했어요.")
	})
	http.Redirect(w, r, "/album", http.StatusSeeOther)
}

// StepAlbum moves to the previous or next photo, wrapping around.
func (h *Handler) StepAlbum(w http.ResponseWriter, r *http.Request) {
	direction := chi.URLParam(r, "direction")
	if direction != "prev" && direction != "next" {
		http.NotFound(w, r)
		return
	}

	st := h.sessions.Load(r.Context())
	album, err := h.svc.Album(r.Context(), st.AlbumDate, st.AlbumIndex)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	n := len(album.Photos)
	h.sessions.Update(r.Context(), func(s *session.State) {
		s.AlbumIndex = album.Index
		if direction == "next" {
			s.NextPhoto(n)
		} else {
			s.PrevPhoto(n)
		}
	})
	http.Redirect(w, r, "/album", http.StatusSeeOther)
}

// JSON endpoints

func (h *Handler) ListBookmarksJSON(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bookmarks, err := h.svc.Bookmarks(r.Context(), models.ParseFilter(q.Get("filter")), q.Get("q"))
	if err != nil {
		h.jsonError(w, r, err)
		return
	}
	if bookmarks == nil {
		bookmarks = []models.Bookmark{}
	}
	writeJSON(w, http.StatusOK, bookmarks)
}

func (h *Handler) ListPhotosJSON(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.today()
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		h.jsonError(w, r, apperr.Wrap(apperr.Validation, "date must be YYYY-MM-DD", err))
		return
	}
	album, err := h.svc.Album(r.Context(), date, 0)
	if err != nil {
		h.jsonError(w, r, err)
		return
	}
	if album.Photos == nil {
		album.Photos = []models.Photo{}
	}
	writeJSON(w, http.StatusOK, album)
}

func (h *Handler) StatsJSON(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.CategoryStats(r.Context())
	if err != nil {
		h.jsonError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Sessions      int     `json:"sessions"`
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, healthzResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.started).Seconds(),
		Sessions:      h.sessions.Len(),
	})
}
