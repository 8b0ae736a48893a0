package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limstreat/internal/apperr"
	"limstreat/internal/models"
	"limstreat/internal/service"
	"limstreat/internal/session"
	"limstreat/internal/store/sqlstore"
)

type fakeGeocoder struct {
	fail bool
}

func (f *fakeGeocoder) Resolve(_ context.Context, address string) (models.Coordinates, error) {
	if f.fail {
		return models.Coordinates{}, apperr.New(apperr.GeocodeNotFound, "주소를 찾지 못했어요. 더 구체적으로 입력해 주세요. (예: 도로명 + 건물번호)")
	}
	return models.Coordinates{Lat: 37.5, Lon: 127.0}, nil
}

type testApp struct {
	t      *testing.T
	router http.Handler
	store  *sqlstore.SQLStore
	geo    *fakeGeocoder
	opts   Options
	cookie *http.Cookie
}

func newTestApp(t *testing.T, configure ...func(*Options)) *testApp {
	t.Helper()
	dir := t.TempDir()
	st, err := sqlstore.New("sqlite3", filepath.Join(dir, "bookmarks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	opts := Options{
		ImagesDir: filepath.Join(dir, "images"),
		PhotosDir: filepath.Join(dir, "photos"),
		MapCenter: models.Coordinates{Lat: 37.5665, Lon: 126.9780},
		MapZoom:   13,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	geo := &fakeGeocoder{}
	svc := service.New(st, geo, service.Options{ImagesDir: opts.ImagesDir, PhotosDir: opts.PhotosDir}, nil)
	h, err := NewHandler(svc, session.NewManager(), opts, nil)
	require.NoError(t, err)

	return &testApp{t: t, router: NewRouter(h, nil, nil), store: st, geo: geo, opts: opts}
}

// do sends req carrying the session cookie and keeps any new one.
func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	if a.cookie != nil {
		req.AddCookie(a.cookie)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			a.cookie = c
		}
	}
	return rec
}

func (a *testApp) get(path string) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (a *testApp) postForm(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req)
}

type filePart struct {
	field, name string
	data        []byte
}

func (a *testApp) postMultipart(path string, values map[string]string, files ...filePart) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range values {
		require.NoError(a.t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(a.t, err)
		_, err = fw.Write(f.data)
		require.NoError(a.t, err)
	}
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.do(req)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func (a *testApp) bookmarks() []models.Bookmark {
	list, err := a.store.ListBookmarks(context.Background())
	require.NoError(a.t, err)
	return list
}

func TestRootRedirectsToMap(t *testing.T) {
	app := newTestApp(t)
	rec := app.get("/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/map", rec.Header().Get("Location"))
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)
	rec := app.get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthzResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Nil(t, app.cookie, "healthz must not start a session")
}

func TestAddBookmarkFlow(t *testing.T) {
	app := newTestApp(t)

	rec := app.postMultipart("/bookmarks", map[string]string{
		"name":        "Test Cafe",
		"address":     "서울특별시 중구 세종대로 110",
		"rating":      "4",
		"recommended": "1",
		"category":    "카페/디저트",
		"memo":        "**라떼** 맛집",
	}, filePart{"image", "cafe.png", pngBytes(t, 1600, 800)})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/map", rec.Header().Get("Location"))

	list := app.bookmarks()
	require.Len(t, list, 1)
	b := list[0]
	assert.Equal(t, "Test Cafe", b.Name)
	require.NotNil(t, b.Rating)
	assert.Equal(t, 4, *b.Rating)
	assert.True(t, b.IsRecommended)
	assert.Equal(t, models.CategoryCafe, b.Category)
	assert.FileExists(t, b.ImagePath)

	page := app.get("/map")
	require.Equal(t, http.StatusOK, page.Code)
	html := page.Body.String()
	assert.Contains(t, html, "&#39;Test Cafe&#39; 저장 완료!")
	assert.Contains(t, html, "#ff4fa3")
	assert.Contains(t, html, "data:image/png;base64,")

	// flash is shown once
	assert.NotContains(t, app.get("/map").Body.String(), "저장 완료!")

	reviews := app.get("/reviews").Body.String()
	assert.Contains(t, reviews, "<strong>라떼</strong> 맛집")
	assert.Contains(t, reviews, "⭐⭐⭐⭐☆")
	assert.Contains(t, reviews, "/media/images/"+b.ID+".png")

	media := app.get("/media/images/" + b.ID + ".png")
	require.Equal(t, http.StatusOK, media.Code)
	cfg, err := png.DecodeConfig(media.Body)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Width)
}

func TestAddBookmarkGeocodeFailureKeepsForm(t *testing.T) {
	app := newTestApp(t)
	app.geo.fail = true

	rec := app.postMultipart("/bookmarks", map[string]string{
		"name":    "Lost Diner",
		"address": "somewhere vague",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, "주소를 찾지 못했어요")
	assert.Contains(t, html, `value="Lost Diner"`)
	assert.Empty(t, app.bookmarks())
}

func TestAddBookmarkValidation(t *testing.T) {
	app := newTestApp(t)

	rec := app.postMultipart("/bookmarks", map[string]string{"name": "  ", "address": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "가게 이름과 주소는 필수입니다.")

	rec = app.postMultipart("/bookmarks", map[string]string{"name": "a", "address": "b", "rating": "five"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, app.bookmarks())
}

func TestUploadsOverLimitAreRejected(t *testing.T) {
	app := newTestApp(t, func(o *Options) { o.MaxUploadBytes = 1024 })
	big := bytes.Repeat([]byte{0x89}, 8192)

	rec := app.postMultipart("/bookmarks", map[string]string{"name": "Test Cafe", "address": "Seoul"},
		filePart{"image", "cafe.png", big})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/map", rec.Header().Get("Location"))
	assert.Empty(t, app.bookmarks())
	assert.NoDirExists(t, app.opts.ImagesDir)
	assert.Contains(t, app.get("/map").Body.String(), "업로드한 파일이 너무 커요.")

	rec = app.postMultipart("/album/photos", map[string]string{"date": "2024-05-01"},
		filePart{"photos", "1.png", big})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	photos, err := app.store.ListPhotosByDate(context.Background(), "2024-05-01")
	require.NoError(t, err)
	assert.Empty(t, photos)
	assert.NoDirExists(t, app.opts.PhotosDir)
	assert.Contains(t, app.get("/album").Body.String(), "업로드한 파일이 너무 커요.")

	// small forms still fit
	rec = app.postMultipart("/bookmarks", map[string]string{"name": "Test Cafe", "address": "Seoul"})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Len(t, app.bookmarks(), 1)
}

func TestAddBookmarkBadImageWarns(t *testing.T) {
	app := newTestApp(t)

	rec := app.postMultipart("/bookmarks", map[string]string{"name": "a", "address": "b"},
		filePart{"image", "x.png", []byte("garbage")})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	list := app.bookmarks()
	require.Len(t, list, 1)
	assert.Empty(t, list[0].ImagePath)
	assert.Contains(t, app.get("/map").Body.String(), "이미지 없이 저장했어요")
}

func TestFilterAndSearch(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, app.store.CreateBookmark(ctx, &models.Bookmark{Name: "Pink Place", Address: "Seoul", IsRecommended: true}))
	require.NoError(t, app.store.CreateBookmark(ctx, &models.Bookmark{Name: "Grey Place", Address: "Busan"}))

	page := app.get("/reviews").Body.String()
	assert.Contains(t, page, "Pink Place")
	assert.Contains(t, page, "Grey Place")
	assert.Contains(t, page, "전체 2곳")

	rec := app.postForm("/filter", url.Values{"filter": {"recommended"}, "next": {"/reviews"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/reviews", rec.Header().Get("Location"))

	page = app.get("/reviews").Body.String()
	assert.Contains(t, page, "Pink Place")
	assert.NotContains(t, page, "Grey Place")

	app.postForm("/filter", url.Values{"filter": {"all"}})
	page = app.get("/reviews?q=busan").Body.String()
	assert.Contains(t, page, "Grey Place")
	assert.NotContains(t, page, "Pink Place")

	// query sticks to the session
	page = app.get("/reviews").Body.String()
	assert.NotContains(t, page, "Pink Place")
}

func TestFilterRejectsForeignRedirect(t *testing.T) {
	app := newTestApp(t)
	rec := app.postForm("/filter", url.Values{"filter": {"all"}, "next": {"//evil.example"}})
	assert.Equal(t, "/map", rec.Header().Get("Location"))
}

func TestMemoEditSaveCancel(t *testing.T) {
	app := newTestApp(t)
	b := &models.Bookmark{Name: "n", Address: "a"}
	require.NoError(t, app.store.CreateBookmark(context.Background(), b))

	app.postForm("/bookmarks/"+b.ID+"/memo/edit", nil)
	page := app.get("/reviews").Body.String()
	assert.Contains(t, page, "/bookmarks/"+b.ID+"/memo/save")

	rec := app.postForm("/bookmarks/"+b.ID+"/memo/save", url.Values{"memo": {"  <script>x</script> 좋아요  "}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	list := app.bookmarks()
	require.NotNil(t, list[0].Memo)
	assert.Equal(t, "<script>x</script> 좋아요", *list[0].Memo)

	page = app.get("/reviews").Body.String()
	assert.NotContains(t, page, "/bookmarks/"+b.ID+"/memo/save")
	assert.NotContains(t, page, "<script>x</script>")

	app.postForm("/bookmarks/"+b.ID+"/memo/edit", nil)
	app.postForm("/bookmarks/"+b.ID+"/memo/cancel", nil)
	assert.NotContains(t, app.get("/reviews").Body.String(), "/memo/save")

	app.postForm("/bookmarks/"+b.ID+"/memo/save", url.Values{"memo": {"   "}})
	assert.Nil(t, app.bookmarks()[0].Memo)

	assert.Equal(t, http.StatusNotFound, app.postForm("/bookmarks/"+b.ID+"/memo/explode", nil).Code)
}

func TestDeleteBookmark(t *testing.T) {
	app := newTestApp(t)
	img := filepath.Join(app.opts.ImagesDir, "rep.png")
	require.NoError(t, os.MkdirAll(app.opts.ImagesDir, 0o755))
	require.NoError(t, os.WriteFile(img, pngBytes(t, 2, 2), 0o644))

	b := &models.Bookmark{Name: "n", Address: "a", ImagePath: img}
	require.NoError(t, app.store.CreateBookmark(context.Background(), b))

	rec := app.postForm("/bookmarks/"+b.ID+"/delete", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, app.bookmarks())
	assert.NoFileExists(t, img)
}

func TestAlbumFlow(t *testing.T) {
	app := newTestApp(t)

	rec := app.postMultipart("/album/photos", map[string]string{"date": "2024-05-01", "store_name": "Test Cafe"},
		filePart{"photos", "1.png", pngBytes(t, 4, 4)},
		filePart{"photos", "2.png", pngBytes(t, 4, 4)},
		filePart{"photos", "bad.png", []byte("nope")},
		filePart{"photos", "3.png", pngBytes(t, 4, 4)},
	)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	page := app.get("/album?date=2024-05-01").Body.String()
	assert.Contains(t, page, "사진 3장을 저장했어요.")
	assert.Contains(t, page, "bad.png")
	assert.Contains(t, page, "1 / 3")

	app.postForm("/album/prev", nil)
	assert.Contains(t, app.get("/album").Body.String(), "3 / 3")
	app.postForm("/album/next", nil)
	assert.Contains(t, app.get("/album").Body.String(), "1 / 3")
	app.postForm("/album/next", nil)
	app.postForm("/album/next", nil)
	assert.Contains(t, app.get("/album").Body.String(), "3 / 3")

	photos, err := app.store.ListPhotosByDate(context.Background(), "2024-05-01")
	require.NoError(t, err)
	require.Len(t, photos, 3)
	last := photos[2]

	// unconfirmed delete does nothing
	app.postForm("/album/photos/"+last.ID+"/delete", nil)
	assert.Contains(t, app.get("/album").Body.String(), "확인란을 체크해 주세요")
	assert.FileExists(t, last.ImagePath)

	app.postForm("/album/photos/"+last.ID+"/delete", url.Values{"confirm": {"1"}})
	assert.NoFileExists(t, last.ImagePath)
	assert.Contains(t, app.get("/album").Body.String(), "2 / 2")

	media := app.get("/media/photos/" + filepath.Base(photos[0].ImagePath))
	assert.Equal(t, http.StatusOK, media.Code)

	other := app.get("/album?date=2024-05-02").Body.String()
	assert.Contains(t, other, "2024-05-02에 저장된 사진이 없어요.")
}

func TestUploadRewindsAlbum(t *testing.T) {
	app := newTestApp(t)
	date := map[string]string{"date": "2024-05-01"}

	app.postMultipart("/album/photos", date,
		filePart{"photos", "1.png", pngBytes(t, 4, 4)},
		filePart{"photos", "2.png", pngBytes(t, 4, 4)},
		filePart{"photos", "3.png", pngBytes(t, 4, 4)},
	)
	app.postForm("/album/next", nil)
	app.postForm("/album/next", nil)
	assert.Contains(t, app.get("/album").Body.String(), "3 / 3")

	app.postMultipart("/album/photos", date, filePart{"photos", "4.png", pngBytes(t, 4, 4)})
	assert.Contains(t, app.get("/album").Body.String(), "1 / 4")

	// a batch where nothing was stored keeps the position
	app.postForm("/album/next", nil)
	app.postMultipart("/album/photos", date, filePart{"photos", "bad.png", []byte("nope")})
	assert.Contains(t, app.get("/album").Body.String(), "2 / 4")
}

func TestUploadWithoutFiles(t *testing.T) {
	app := newTestApp(t)
	rec := app.postMultipart("/album/photos", map[string]string{"date": "2024-05-01"})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, app.get("/album").Body.String(), "업로드할 사진을 선택해 주세요.")
}

func TestStatsPage(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, app.store.CreateBookmark(ctx, &models.Bookmark{Name: "a", Address: "a", Category: models.CategoryKorean}))
	require.NoError(t, app.store.CreateBookmark(ctx, &models.Bookmark{Name: "b", Address: "b"}))

	page := app.get("/stats").Body.String()
	assert.Contains(t, page, "<svg")
	assert.Contains(t, page, `fill="#4E79A7"`)
	assert.Contains(t, page, `fill="#BAB0AC"`)
	assert.NotContains(t, page, `fill="#F28E2B"`, "empty categories get no bar")
	assert.Contains(t, page, "미분류")
}

func TestServeMediaRejectsTraversal(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{
		"/media/images/..%2Fbookmarks.db",
		"/media/images/notes.txt",
		"/media/secrets/a.png",
		"/media/images/missing.png",
	} {
		assert.Equal(t, http.StatusNotFound, app.get(path).Code, path)
	}
}

func TestJSONEndpoints(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, app.store.CreateBookmark(ctx, &models.Bookmark{Name: "Pink", Address: "Seoul", IsRecommended: true, Category: models.CategoryBar}))
	require.NoError(t, app.store.CreateBookmark(ctx, &models.Bookmark{Name: "Grey", Address: "Busan"}))
	require.NoError(t, app.store.CreatePhoto(ctx, &models.Photo{Date: "2024-05-01", ImagePath: "x.png"}))

	rec := app.get("/api/bookmarks?filter=recommended")
	require.Equal(t, http.StatusOK, rec.Code)
	var bookmarks []models.Bookmark
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bookmarks))
	require.Len(t, bookmarks, 1)
	assert.Equal(t, "Pink", bookmarks[0].Name)

	rec = app.get("/api/bookmarks?q=nothing")
	body, _ := io.ReadAll(rec.Body)
	assert.JSONEq(t, `[]`, string(body))

	rec = app.get("/api/photos?date=2024-05-01")
	require.Equal(t, http.StatusOK, rec.Code)
	var album service.Album
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&album))
	assert.Len(t, album.Photos, 1)

	rec = app.get("/api/photos?date=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.get("/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats []service.CategoryStat
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	require.Len(t, stats, len(models.Categories)+1)
	assert.Equal(t, "미분류", stats[len(stats)-1].Label)
	assert.Equal(t, 1, stats[len(stats)-1].Count)
}

func TestPopupShowsCategoryOnlyWhenSet(t *testing.T) {
	h, err := NewHandler(nil, session.NewManager(), Options{}, nil)
	require.NoError(t, err)

	markers := h.buildMarkers([]models.Bookmark{
		{ID: "1", Name: "Test Cafe", Address: "Seoul", Category: models.CategoryCafe},
		{ID: "2", Name: "Noodle Bar", Address: "Busan"},
	})
	require.Len(t, markers, 2)
	assert.Contains(t, markers[0].Popup, "<span>카페/디저트</span>")
	assert.NotContains(t, markers[1].Popup, "미분류")
	assert.Contains(t, markers[1].Popup, "별점 없음")
}

func TestBuildChartSkipsEmptyBars(t *testing.T) {
	c := buildChart([]service.CategoryStat{
		{Label: "한식", Color: "#4E79A7", Count: 4},
		{Label: "중식", Color: "#F28E2B", Count: 0},
		{Label: "미분류", Color: "#BAB0AC", Count: 2},
	})
	require.Len(t, c.Bars, 3)
	assert.Equal(t, 6, c.Total)
	assert.Equal(t, chartBarWidth, c.Bars[0].Width)
	assert.False(t, c.Bars[1].ShowCount)
	assert.Zero(t, c.Bars[1].Width)
	assert.Equal(t, chartBarWidth/2, c.Bars[2].Width)
}

func TestSafeRedirect(t *testing.T) {
	assert.Equal(t, "/album", safeRedirect("/album", "/map"))
	assert.Equal(t, "/map", safeRedirect("https://evil.example", "/map"))
	assert.Equal(t, "/map", safeRedirect("//evil.example", "/map"))
	assert.Equal(t, "/map", safeRedirect("", "/map"))
}
