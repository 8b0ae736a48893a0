// Package seed imports bookmark fixtures from YAML. Coordinates are taken
// from the file, so no geocoding happens.
package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"limstreat/internal/models"
	"limstreat/internal/store"
)

// File is the top-level fixture document.
type File struct {
	Bookmarks []Bookmark `yaml:"bookmarks"`
}

type Bookmark struct {
	Name        string  `yaml:"name"`
	Address     string  `yaml:"address"`
	Lat         float64 `yaml:"lat"`
	Lon         float64 `yaml:"lon"`
	Rating      *int    `yaml:"rating"`
	Recommended bool    `yaml:"recommended"`
	Category    string  `yaml:"category"`
	Memo        string  `yaml:"memo"`
}

// Load reads and validates a fixture file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i := range f.Bookmarks {
		if err := f.Bookmarks[i].validate(); err != nil {
			return nil, fmt.Errorf("bookmark %d: %w", i+1, err)
		}
	}
	return &f, nil
}

func (b *Bookmark) validate() error {
	b.Name = strings.TrimSpace(b.Name)
	b.Address = strings.TrimSpace(b.Address)
	b.Category = strings.TrimSpace(b.Category)
	b.Memo = strings.TrimSpace(b.Memo)

	if b.Name == "" || b.Address == "" {
		return fmt.Errorf("name and address are required")
	}
	if b.Rating != nil && (*b.Rating < 1 || *b.Rating > 5) {
		return fmt.Errorf("rating %d out of range 1..5", *b.Rating)
	}
	if !models.Category(b.Category).Valid() {
		return fmt.Errorf("unknown category %q", b.Category)
	}
	if b.Lat < -90 || b.Lat > 90 || b.Lon < -180 || b.Lon > 180 {
		return fmt.Errorf("coordinates %f,%f out of range", b.Lat, b.Lon)
	}
	return nil
}

func (b Bookmark) model() models.Bookmark {
	m := models.Bookmark{
		Name:          b.Name,
		Address:       b.Address,
		Lat:           b.Lat,
		Lon:           b.Lon,
		Rating:        b.Rating,
		IsRecommended: b.Recommended,
		Category:      models.Category(b.Category),
	}
	if b.Memo != "" {
		memo := b.Memo
		m.Memo = &memo
	}
	return m
}

// Apply inserts every fixture bookmark in file order and returns how many were
// written.
func Apply(ctx context.Context, st store.Store, f *File) (int, error) {
	inserted := 0
	for _, b := range f.Bookmarks {
		m := b.model()
		if err := st.CreateBookmark(ctx, &m); err != nil {
			return inserted, fmt.Errorf("insert %q: %w", b.Name, err)
		}
		inserted++
	}
	return inserted, nil
}
