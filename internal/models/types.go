package models

import "time"

// Bookmark is a saved restaurant with its resolved location.
type Bookmark struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	Lat           float64   `json:"lat"`
	Lon           float64   `json:"lon"`
	ImagePath     string    `json:"image_path,omitempty"` // empty means no representative image
	Rating        *int      `json:"rating,omitempty"`
	IsRecommended bool      `json:"is_recommended"`
	Category      Category  `json:"category,omitempty"`
	Memo          *string   `json:"memo,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasMemo reports whether the bookmark carries non-blank memo text.
func (b Bookmark) HasMemo() bool {
	return b.Memo != nil && *b.Memo != ""
}

// Photo is a daily album image. StoreName is free text, not a reference to a Bookmark.
type Photo struct {
	ID        string `json:"id"`
	StoreName string `json:"store_name"`
	Date      string `json:"date"`
	ImagePath string `json:"image_path"`
}

// Coordinates is a geocoded position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DateLayout is the album grouping key format.
const DateLayout = "2006-01-02"
