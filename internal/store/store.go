package store

import (
	"context"

	"limstreat/internal/models"
)

// Store defines the interface for all database operations
type Store interface {
	// Schema
	Initialize(ctx context.Context) error
	Columns(ctx context.Context, table string) ([]string, error)

	// Bookmarks
	CreateBookmark(ctx context.Context, b *models.Bookmark) error
	ListBookmarks(ctx context.Context) ([]models.Bookmark, error)
	DeleteBookmark(ctx context.Context, id string) error
	UpdateMemo(ctx context.Context, id string, memo *string) error
	CategoryCounts(ctx context.Context) (map[models.Category]int, error)

	// Photos
	CreatePhoto(ctx context.Context, p *models.Photo) error
	ListPhotosByDate(ctx context.Context, date string) ([]models.Photo, error)
	DeletePhoto(ctx context.Context, id string) error

	Close() error
}
