package mcp

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limstreat/internal/models"
	"limstreat/internal/service"
	"limstreat/internal/store/sqlstore"
)

type stubGeocoder struct{}

func (stubGeocoder) Resolve(context.Context, string) (models.Coordinates, error) {
	return models.Coordinates{Lat: 37.5, Lon: 127.0}, nil
}

func newTestServer(t *testing.T) (*MCPServer, *sqlstore.SQLStore) {
	t.Helper()
	dir := t.TempDir()
	st, err := sqlstore.New("sqlite3", filepath.Join(dir, "bookmarks.db"))
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { st.Close() })

	svc := service.New(st, stubGeocoder{}, service.Options{
		ImagesDir: filepath.Join(dir, "images"),
		PhotosDir: filepath.Join(dir, "photos"),
	}, nil)
	return NewMCPServer(svc), st
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent")
	return text.Text
}

func TestListBookmarksTool(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()

	rating := 5
	memo := "줄 서서\n먹는 곳"
	require.NoError(t, st.CreateBookmark(ctx, &models.Bookmark{Name: "Test Cafe", Address: "Seoul", Rating: &rating, IsRecommended: true, Category: models.CategoryCafe, Memo: &memo}))
	require.NoError(t, st.CreateBookmark(ctx, &models.Bookmark{Name: "Noodle Bar", Address: "Busan"}))

	result, err := s.listBookmarksHandler(ctx, callRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 bookmarks")
	assert.Contains(t, text, "Test Cafe | Seoul | 카페/디저트 | ⭐⭐⭐⭐⭐ | 추천 | memo: 줄 서서 먹는 곳")
	assert.Contains(t, text, "Noodle Bar | Busan | 미분류 | 별점 없음")

	result, err = s.listBookmarksHandler(ctx, callRequest(map[string]interface{}{"filter": "not_recommended"}))
	require.NoError(t, err)
	text = resultText(t, result)
	assert.Contains(t, text, "Noodle Bar")
	assert.NotContains(t, text, "Test Cafe")

	result, err = s.listBookmarksHandler(ctx, callRequest(map[string]interface{}{"query": "nothing-matches"}))
	require.NoError(t, err)
	assert.Equal(t, "No bookmarks found.", resultText(t, result))

	result, err = s.listBookmarksHandler(ctx, callRequest(map[string]interface{}{"filter": "favourites"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGetAlbumTool(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, st.CreatePhoto(ctx, &models.Photo{StoreName: "Test Cafe", Date: "2024-05-01", ImagePath: "a.png"}))
	require.NoError(t, st.CreatePhoto(ctx, &models.Photo{Date: "2024-05-01", ImagePath: "b.png"}))

	result, err := s.getAlbumHandler(ctx, callRequest(map[string]interface{}{"date": "2024-05-01"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 photos on 2024-05-01")
	assert.Contains(t, text, "1. Test Cafe")
	assert.Contains(t, text, "2. (no store)")

	result, err = s.getAlbumHandler(ctx, callRequest(map[string]interface{}{"date": "2024-05-02"}))
	require.NoError(t, err)
	assert.Equal(t, "No photos on 2024-05-02.", resultText(t, result))

	result, err = s.getAlbumHandler(ctx, callRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.getAlbumHandler(ctx, callRequest(map[string]interface{}{"date": "yesterday"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCategoryStatsTool(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, st.CreateBookmark(ctx, &models.Bookmark{Name: "a", Address: "a", Category: models.CategoryKorean}))
	require.NoError(t, st.CreateBookmark(ctx, &models.Bookmark{Name: "b", Address: "b"}))

	result, err := s.categoryStatsHandler(ctx, callRequest(nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "한식: 1")
	assert.Contains(t, text, "중식: 0")
	assert.Contains(t, text, "미분류: 1")
}

func TestNewServerBuilds(t *testing.T) {
	s, _ := newTestServer(t)
	assert.NotNil(t, s.NewServer("test"))
}
