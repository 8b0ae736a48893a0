// Package service holds the application flows that sit between the web layer
// and the store: bookmark registration, review filtering, album paging and
// category statistics.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"limstreat/internal/apperr"
	"limstreat/internal/imagestore"
	"limstreat/internal/logger"
	"limstreat/internal/models"
	"limstreat/internal/store"
)

// Geocoder turns a free-text address into coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (models.Coordinates, error)
}

// ImageSaver decodes, downsizes and writes an image as <dir>/<name>.png.
type ImageSaver func(data []byte, dir, name string, maxDim int) (string, error)

// Options configures where images go and how large they may be.
type Options struct {
	ImagesDir   string
	PhotosDir   string
	ImageMaxDim int
	PhotoMaxDim int
}

// Service holds the bookmark, album and stats operations.
type Service struct {
	store    store.Store
	geocoder Geocoder
	save     ImageSaver
	remove   func(path string)
	opts     Options
	log      logger.Logger
}

// New builds a Service. Zero max dimensions fall back to the image store
// defaults.
func New(st store.Store, geo Geocoder, opts Options, log logger.Logger) *Service {
	if opts.ImageMaxDim <= 0 {
		opts.ImageMaxDim = imagestore.RepresentativeMaxDim
	}
	if opts.PhotoMaxDim <= 0 {
		opts.PhotoMaxDim = imagestore.AlbumMaxDim
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:    st,
		geocoder: geo,
		save:     imagestore.SaveAs,
		remove:   imagestore.Delete,
		opts:     opts,
		log:      log,
	}
}

// WithImageSaver swaps the image writer; used by tests.
func (s *Service) WithImageSaver(save ImageSaver) *Service {
	s.save = save
	return s
}

// BookmarkInput is the raw content of the registration form.
type BookmarkInput struct {
	Name          string
	Address       string
	Rating        *int
	IsRecommended bool
	Category      models.Category
	Memo          string
	Image         []byte
}

// AddResult carries the stored bookmark and, when the image could not be
// used, a user-facing warning.
type AddResult struct {
	Bookmark models.Bookmark
	Warning  string
}

const imageWarning = "이미지를 처리하지 못해 이미지 없이 저장했어요."

// AddBookmark validates the input, geocodes the address, stores the
// representative image and inserts the bookmark. When geocoding fails nothing
// is written.
func (s *Service) AddBookmark(ctx context.Context, in BookmarkInput) (AddResult, error) {
	name := strings.TrimSpace(in.Name)
	address := strings.TrimSpace(in.Address)
	if name == "" || address == "" {
		return AddResult{}, apperr.New(apperr.Validation, "가게 이름과 주소는 필수입니다.")
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return AddResult{}, apperr.New(apperr.Validation, "별점은 1~5 사이여야 합니다.")
	}
	if !in.Category.Valid() {
		return AddResult{}, apperr.New(apperr.Validation, "알 수 없는 카테고리입니다.")
	}

	coords, err := s.geocoder.Resolve(ctx, address)
	if err != nil {
		return AddResult{}, err
	}

	b := models.Bookmark{
		ID:            uuid.New().String(),
		Name:          name,
		Address:       address,
		Lat:           coords.Lat,
		Lon:           coords.Lon,
		Rating:        in.Rating,
		IsRecommended: in.IsRecommended,
		Category:      in.Category,
		Memo:          normalizeMemo(in.Memo),
	}

	var res AddResult
	if len(in.Image) > 0 {
		path, err := s.save(in.Image, s.opts.ImagesDir, b.ID, s.opts.ImageMaxDim)
		if err != nil {
			s.log.Warn("representative image rejected", logger.String("bookmark", b.ID), logger.Error(err))
			res.Warning = imageWarning
		} else {
			b.ImagePath = path
		}
	}

	if err := s.store.CreateBookmark(ctx, &b); err != nil {
		s.remove(b.ImagePath)
		return AddResult{}, err
	}
	s.log.Info("bookmark added", logger.String("id", b.ID), logger.String("name", b.Name))

	res.Bookmark = b
	return res, nil
}

// Bookmarks applies the recommendation filter and then a case-insensitive
// substring match on name or address. An empty query matches everything.
func (s *Service) Bookmarks(ctx context.Context, filter models.Filter, query string) ([]models.Bookmark, error) {
	all, err := s.store.ListBookmarks(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))

	out := make([]models.Bookmark, 0, len(all))
	for _, b := range all {
		if !filter.Match(b) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(b.Name), q) && !strings.Contains(strings.ToLower(b.Address), q) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Counts is the sidebar summary.
type Counts struct {
	Total          int `json:"total"`
	Recommended    int `json:"recommended"`
	NotRecommended int `json:"not_recommended"`
}

func (s *Service) Counts(ctx context.Context) (Counts, error) {
	all, err := s.store.ListBookmarks(ctx)
	if err != nil {
		return Counts{}, err
	}
	c := Counts{Total: len(all)}
	for _, b := range all {
		if b.IsRecommended {
			c.Recommended++
		}
	}
	c.NotRecommended = c.Total - c.Recommended
	return c, nil
}

func (s *Service) DeleteBookmark(ctx context.Context, id string) error {
	if err := s.store.DeleteBookmark(ctx, id); err != nil {
		return err
	}
	s.log.Info("bookmark deleted", logger.String("id", id))
	return nil
}

// SaveMemo stores the trimmed memo; blank text clears it.
func (s *Service) SaveMemo(ctx context.Context, id, text string) error {
	return s.store.UpdateMemo(ctx, id, normalizeMemo(text))
}

func normalizeMemo(text string) *string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return &text
}

// Upload is one file of a multi-file form.
type Upload struct {
	Filename string
	Data     []byte
}

// UploadFailure names a file that could not be stored.
type UploadFailure struct {
	Filename string
	Err      error
}

// UploadResult lists what was stored and what was skipped.
type UploadResult struct {
	Stored []models.Photo
	Failed []UploadFailure
}

// UploadPhotos stores each file as its own photo of date. Files are handled
// independently: a bad file is reported and the rest still go through.
func (s *Service) UploadPhotos(ctx context.Context, date, storeName string, files []Upload) (UploadResult, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return UploadResult{}, apperr.Wrap(apperr.Validation, "날짜 형식이 올바르지 않습니다.", err)
	}
	if len(files) == 0 {
		return UploadResult{}, apperr.New(apperr.Validation, "업로드할 사진을 선택해 주세요.")
	}
	storeName = strings.TrimSpace(storeName)

	var res UploadResult
	for _, f := range files {
		p := models.Photo{
			ID:        uuid.New().String(),
			StoreName: storeName,
			Date:      date,
		}
		path, err := s.save(f.Data, s.opts.PhotosDir, date+"_"+p.ID, s.opts.PhotoMaxDim)
		if err != nil {
			res.Failed = append(res.Failed, UploadFailure{Filename: f.Filename, Err: err})
			continue
		}
		p.ImagePath = path
		if err := s.store.CreatePhoto(ctx, &p); err != nil {
			s.remove(path)
			if apperr.Is(err, apperr.Storage) {
				return res, err
			}
			res.Failed = append(res.Failed, UploadFailure{Filename: f.Filename, Err: err})
			continue
		}
		res.Stored = append(res.Stored, p)
	}
	s.log.Info("photos uploaded",
		logger.String("date", date),
		logger.Int("stored", len(res.Stored)),
		logger.Int("failed", len(res.Failed)))
	return res, nil
}

// Album is one day of photos with the currently shown position.
type Album struct {
	Date   string         `json:"date"`
	Photos []models.Photo `json:"photos"`
	Index  int            `json:"index"`
}

// Current returns the photo at Index, if any.
func (a Album) Current() (models.Photo, bool) {
	if len(a.Photos) == 0 {
		return models.Photo{}, false
	}
	return a.Photos[a.Index], true
}

// Album loads the photos of date and clamps index into range.
func (s *Service) Album(ctx context.Context, date string, index int) (Album, error) {
	photos, err := s.store.ListPhotosByDate(ctx, date)
	if err != nil {
		return Album{}, err
	}
	return Album{Date: date, Photos: photos, Index: ClampIndex(index, len(photos))}, nil
}

// ClampIndex keeps i inside [0, n) and returns 0 for an empty set.
func ClampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func (s *Service) DeletePhoto(ctx context.Context, id string) error {
	if err := s.store.DeletePhoto(ctx, id); err != nil {
		return err
	}
	s.log.Info("photo deleted", logger.String("id", id))
	return nil
}

// CategoryStat is one bar of the statistics chart.
type CategoryStat struct {
	Category models.Category `json:"category"`
	Label    string          `json:"label"`
	Color    string          `json:"color"`
	Count    int             `json:"count"`
}

// CategoryStats counts bookmarks for every category in display order, followed
// by the uncategorized bucket. Categories without bookmarks report zero.
// Stored values outside the known set are counted as uncategorized.
func (s *Service) CategoryStats(ctx context.Context) ([]CategoryStat, error) {
	counts, err := s.store.CategoryCounts(ctx)
	if err != nil {
		return nil, err
	}

	unset := 0
	for c, n := range counts {
		if c == models.CategoryUnset || !c.Valid() {
			unset += n
		}
	}

	stats := make([]CategoryStat, 0, len(models.Categories)+1)
	for _, c := range models.Categories {
		stats = append(stats, CategoryStat{Category: c, Label: c.Label(), Color: c.Color(), Count: counts[c]})
	}
	stats = append(stats, CategoryStat{
		Category: models.CategoryUnset,
		Label:    models.CategoryUnset.Label(),
		Color:    models.CategoryUnset.Color(),
		Count:    unset,
	})
	return stats, nil
}

// IsUserError reports whether err should be shown to the user as a message
// rather than treated as a server failure.
func IsUserError(err error) bool {
	var ae *apperr.AppError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.Code {
	case apperr.Validation, apperr.GeocodeNotFound, apperr.ImageDecode, apperr.NotFound:
		return true
	}
	return false
}
