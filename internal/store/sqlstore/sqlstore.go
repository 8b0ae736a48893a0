package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"limstreat/internal/apperr"
	"limstreat/internal/imagestore"
	"limstreat/internal/models"
	"limstreat/internal/store"
)

var _ store.Store = (*SQLStore)(nil)

// DBType represents the type of database
type DBType string

const (
	SQLite   DBType = "sqlite3"
	Postgres DBType = "postgres"
)

// SQLStore implements the Store interface for SQL databases
type SQLStore struct {
	db         *sql.DB
	dbType     DBType
	now        func() time.Time
	removeFile func(path string)
}

// Option customizes a SQLStore.
type Option func(*SQLStore)

// WithClock overrides the timestamp source used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) { s.now = now }
}

// WithFileRemover overrides how image files are removed on cascading deletes.
func WithFileRemover(remove func(path string)) Option {
	return func(s *SQLStore) { s.removeFile = remove }
}

// New opens the database, verifies it is reachable and runs Initialize.
func New(driver, connStr string, opts ...Option) (*SQLStore, error) {
	dbType := DBType(driver)
	if dbType != SQLite && dbType != Postgres {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, storageErr("open database", err)
	}

	if dbType == SQLite {
		db.SetMaxOpenConns(1)
		// A file-backed store holds no connection between operations; an
		// in-memory one would vanish with its last connection.
		if !isMemoryDSN(connStr) {
			db.SetMaxIdleConns(0)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, storageErr("ping database", err)
	}

	s := &SQLStore{
		db:         db,
		dbType:     dbType,
		now:        time.Now,
		removeFile: imagestore.Delete,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Initialize(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func isMemoryDSN(connStr string) bool {
	return connStr == ":memory:" || strings.Contains(connStr, "mode=memory")
}

func storageErr(op string, err error) error {
	return apperr.Wrap(apperr.Storage, op, err)
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL
func (s *SQLStore) rebind(query string) string {
	if s.dbType == SQLite {
		return query
	}
	var result strings.Builder
	argNum := 1
	for _, c := range query {
		if c == '?' {
			result.WriteString(fmt.Sprintf("$%d", argNum))
			argNum++
		} else {
			result.WriteRune(c)
		}
	}
	return result.String()
}

// insertionOrder is the column that reflects insert order.
func (s *SQLStore) insertionOrder() string {
	if s.dbType == Postgres {
		return "seq"
	}
	return "rowid"
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Bookmark functions

const bookmarkColumns = "id, name, address, lat, lon, image_path, rating, is_recommended, category, memo, created_at"

// CreateBookmark inserts b, assigning its ID when empty and its CreatedAt.
func (s *SQLStore) CreateBookmark(ctx context.Context, b *models.Bookmark) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	createdAt := s.now().Truncate(time.Second)

	_, err := s.db.ExecContext(ctx, s.rebind(
		"INSERT INTO bookmarks (id, name, address, lat, lon, image_path, rating, is_recommended, created_at, memo, category) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		b.ID, b.Name, b.Address, b.Lat, b.Lon,
		nullString(b.ImagePath), nullInt(b.Rating), boolToInt(b.IsRecommended),
		formatTimestamp(createdAt), nullStringPtr(b.Memo), nullString(string(b.Category)),
	)
	if err != nil {
		return storageErr("insert bookmark", err)
	}
	b.CreatedAt = createdAt
	return nil
}

// ListBookmarks returns every bookmark, most recently inserted first.
func (s *SQLStore) ListBookmarks(ctx context.Context) ([]models.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+bookmarkColumns+" FROM bookmarks ORDER BY "+s.insertionOrder()+" DESC")
	if err != nil {
		return nil, storageErr("list bookmarks", err)
	}
	defer rows.Close()

	var bookmarks []models.Bookmark
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, storageErr("scan bookmark", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list bookmarks", err)
	}
	return bookmarks, nil
}

func scanBookmark(rows *sql.Rows) (models.Bookmark, error) {
	var (
		b                  models.Bookmark
		name, address      sql.NullString
		lat, lon           sql.NullFloat64
		imagePath          sql.NullString
		rating, recommends sql.NullInt64
		category, memo     sql.NullString
		createdAt          sql.NullString
	)
	if err := rows.Scan(&b.ID, &name, &address, &lat, &lon, &imagePath, &rating, &recommends, &category, &memo, &createdAt); err != nil {
		return b, err
	}
	b.Name = name.String
	b.Address = address.String
	b.Lat = lat.Float64
	b.Lon = lon.Float64
	b.ImagePath = imagePath.String
	if rating.Valid {
		r := int(rating.Int64)
		b.Rating = &r
	}
	b.IsRecommended = recommends.Valid && recommends.Int64 != 0
	b.Category = models.Category(category.String)
	if memo.Valid {
		m := memo.String
		b.Memo = &m
	}
	if createdAt.Valid {
		b.CreatedAt = parseTimestamp(createdAt.String)
	}
	return b, nil
}

// DeleteBookmark removes the bookmark's image file (best effort) and then its row.
// Unknown ids are a no-op.
func (s *SQLStore) DeleteBookmark(ctx context.Context, id string) error {
	return s.deleteWithImage(ctx, "bookmarks", id)
}

// UpdateMemo overwrites only the memo column; nil clears it.
func (s *SQLStore) UpdateMemo(ctx context.Context, id string, memo *string) error {
	_, err := s.db.ExecContext(ctx, s.rebind("UPDATE bookmarks SET memo = ? WHERE id = ?"), nullStringPtr(memo), id)
	if err != nil {
		return storageErr("update memo", err)
	}
	return nil
}

// CategoryCounts counts bookmarks per category; NULL and empty categories are
// reported under models.CategoryUnset.
func (s *SQLStore) CategoryCounts(ctx context.Context) (map[models.Category]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT category, COUNT(*) FROM bookmarks GROUP BY category")
	if err != nil {
		return nil, storageErr("count categories", err)
	}
	defer rows.Close()

	counts := make(map[models.Category]int)
	for rows.Next() {
		var (
			category sql.NullString
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, storageErr("scan category count", err)
		}
		counts[models.Category(category.String)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("count categories", err)
	}
	return counts, nil
}

// Photo functions

// CreatePhoto inserts p, assigning its ID when empty. ImagePath is mandatory.
func (s *SQLStore) CreatePhoto(ctx context.Context, p *models.Photo) error {
	if p.ImagePath == "" {
		return apperr.New(apperr.Validation, "photo image path is required")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, s.rebind("INSERT INTO photos (id, store_name, date, image_path) VALUES (?, ?, ?, ?)"),
		p.ID, p.StoreName, p.Date, p.ImagePath)
	if err != nil {
		return storageErr("insert photo", err)
	}
	return nil
}

// ListPhotosByDate returns the photos of one exact date, oldest first.
func (s *SQLStore) ListPhotosByDate(ctx context.Context, date string) ([]models.Photo, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT id, store_name, date, image_path FROM photos WHERE date = ? ORDER BY "+s.insertionOrder()+" ASC"), date)
	if err != nil {
		return nil, storageErr("list photos", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var (
			p                          models.Photo
			storeName, day, imagePath sql.NullString
		)
		if err := rows.Scan(&p.ID, &storeName, &day, &imagePath); err != nil {
			return nil, storageErr("scan photo", err)
		}
		p.StoreName = storeName.String
		p.Date = day.String
		p.ImagePath = imagePath.String
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list photos", err)
	}
	return photos, nil
}

// DeletePhoto has the same cascade semantics as DeleteBookmark.
func (s *SQLStore) DeletePhoto(ctx context.Context, id string) error {
	return s.deleteWithImage(ctx, "photos", id)
}

func (s *SQLStore) deleteWithImage(ctx context.Context, table, id string) error {
	var imagePath sql.NullString
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT image_path FROM "+table+" WHERE id = ?"), id).Scan(&imagePath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return storageErr("lookup "+table+" image", err)
	}

	if imagePath.Valid && imagePath.String != "" {
		s.removeFile(imagePath.String)
	}

	if _, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM "+table+" WHERE id = ?"), id); err != nil {
		return storageErr("delete from "+table, err)
	}
	return nil
}

// helpers

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullStringPtr(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func formatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

// parseTimestamp accepts RFC3339 and the zone-less ISO form written by older versions.
func parseTimestamp(v string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
