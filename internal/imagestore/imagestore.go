// Package imagestore persists uploaded images as downsized PNG files and loads them back
// for inline display.
package imagestore

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"limstreat/internal/apperr"
)

const (
	// RepresentativeMaxDim bounds the single image attached to a bookmark.
	RepresentativeMaxDim = 1024
	// AlbumMaxDim bounds daily album photos, which are viewed full-screen.
	AlbumMaxDim = 1920

	ext  = ".png"
	mime = "image/png"
)

// Save decodes data, downsizes it to fit maxDim, and writes it as PNG under a fresh
// unique name in dir. It returns the written path.
func Save(data []byte, dir string, maxDim int) (string, error) {
	return SaveAs(data, dir, uuid.New().String(), maxDim)
}

// SaveAs is Save with a caller-chosen base name; the .png extension is appended.
func SaveAs(data []byte, dir, name string, maxDim int) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", apperr.Wrap(apperr.ImageDecode, "지원하지 않는 이미지 형식입니다", err)
	}

	img = Fit(img, maxDim)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	path := filepath.Join(dir, name+ext)
	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("write image %s: %w", path, err)
	}
	return path, nil
}

// Fit shrinks img so neither side exceeds maxDim, keeping the aspect ratio.
// Images already within bounds are returned unchanged.
func Fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	if maxDim <= 0 || (b.Dx() <= maxDim && b.Dy() <= maxDim) {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}

// Delete removes the file at path. Every failure is ignored: the database row is the
// source of truth and a leftover file is acceptable.
func Delete(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}

// LoadDataURI reads path and returns it as a data URI. ok is false when the file is
// missing or unreadable.
func LoadDataURI(path string) (uri string, ok bool) {
	if path == "" {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return "", false
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), true
}
