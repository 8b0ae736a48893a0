package api

import (
	"net/http"
	"time"

	"limstreat/internal/models"
	"limstreat/internal/service"
	"limstreat/internal/session"
)

// bookmarkForm keeps what the user typed when registration fails.
type bookmarkForm struct {
	Name        string
	Address     string
	Rating      string
	Recommended bool
	Category    string
	Memo        string
}

type mapPage struct {
	Markers    []marker
	Center     models.Coordinates
	Zoom       int
	Form       bookmarkForm
	Categories []models.Category
	Ratings    []int
}

func (h *Handler) MapPage(w http.ResponseWriter, r *http.Request) {
	h.renderMap(w, r, http.StatusOK, bookmarkForm{})
}

func (h *Handler) renderMap(w http.ResponseWriter, r *http.Request, status int, form bookmarkForm) {
	st := h.sessions.Update(r.Context(), func(s *session.State) { s.Screen = session.ScreenMap })

	bookmarks, err := h.svc.Bookmarks(r.Context(), st.Filter, "")
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	center := h.opts.MapCenter
	if st.Center != nil {
		center = *st.Center
	}

	h.render(w, r, status, session.ScreenMap, "지도", mapPage{
		Markers:    h.buildMarkers(bookmarks),
		Center:     center,
		Zoom:       h.opts.MapZoom,
		Form:       form,
		Categories: models.Categories,
		Ratings:    []int{1, 2, 3, 4, 5},
	})
}

type reviewsPage struct {
	Query     string
	Bookmarks []bookmarkView
}

func (h *Handler) ReviewsPage(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Update(r.Context(), func(s *session.State) {
		s.Screen = session.ScreenReviews
		if r.URL.Query().Has("q") {
			s.Query = r.URL.Query().Get("q")
		}
	})

	bookmarks, err := h.svc.Bookmarks(r.Context(), st.Filter, st.Query)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	views := make([]bookmarkView, 0, len(bookmarks))
	for _, b := range bookmarks {
		var memo string
		if b.Memo != nil {
			memo = *b.Memo
		}
		views = append(views, bookmarkView{
			Bookmark: b,
			ImageURL: mediaURL("images", b.ImagePath),
			Stars:    models.Stars(b.Rating),
			MemoText: memo,
			MemoHTML: renderMemo(h.md, b.Memo),
			Editing:  st.EditingMemo[b.ID],
		})
	}

	h.render(w, r, http.StatusOK, session.ScreenReviews, "리뷰", reviewsPage{
		Query:     st.Query,
		Bookmarks: views,
	})
}

type albumPage struct {
	Date     string
	Count    int
	Position int
	Photo    *models.Photo
	PhotoURL string
}

func (h *Handler) AlbumPage(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Update(r.Context(), func(s *session.State) {
		s.Screen = session.ScreenAlbum
		if d := r.URL.Query().Get("date"); d != "" {
			if _, err := time.Parse(models.DateLayout, d); err == nil {
				s.SetAlbumDate(d)
			}
		}
	})

	album, err := h.svc.Album(r.Context(), st.AlbumDate, st.AlbumIndex)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if album.Index != st.AlbumIndex {
		h.sessions.Update(r.Context(), func(s *session.State) { s.AlbumIndex = album.Index })
	}

	page := albumPage{Date: album.Date, Count: len(album.Photos)}
	if p, ok := album.Current(); ok {
		page.Photo = &p
		page.PhotoURL = mediaURL("photos", p.ImagePath)
		page.Position = album.Index + 1
	}
	h.render(w, r, http.StatusOK, session.ScreenAlbum, "앨범", page)
}

type statsPage struct {
	Stats []service.CategoryStat
	Chart chart
}

func (h *Handler) StatsPage(w http.ResponseWriter, r *http.Request) {
	h.sessions.Update(r.Context(), func(s *session.State) { s.Screen = session.ScreenStats })

	stats, err := h.svc.CategoryStats(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, session.ScreenStats, "통계", statsPage{
		Stats: stats,
		Chart: buildChart(stats),
	})
}
