package api

import (
	"bytes"
	"html/template"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"limstreat/internal/imagestore"
	"limstreat/internal/models"
	"limstreat/internal/service"
)

// Marker pin colors.
const (
	recommendedPin = "#ff4fa3"
	regularPin     = "#4a4a4a"
)

// newMarkdown renders memos. Raw HTML in a memo is dropped and single line
// breaks are kept.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
}

func renderMemo(md goldmark.Markdown, memo *string) template.HTML {
	if memo == nil || *memo == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(*memo), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(*memo))
	}
	return template.HTML(buf.String())
}

// mediaURL maps a stored image path to the URL it is served from.
func mediaURL(kind, path string) string {
	if path == "" {
		return ""
	}
	return "/media/" + kind + "/" + filepath.Base(path)
}

type bookmarkView struct {
	models.Bookmark
	ImageURL string
	Stars    string
	MemoText string
	MemoHTML template.HTML
	Editing  bool
}

// marker is serialized into the map page script.
type marker struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Color string  `json:"color"`
	Heart bool    `json:"heart"`
	Popup string  `json:"popup"`
}

type popupData struct {
	Name        string
	Address     string
	Category    string
	Stars       string
	Recommended bool
	ImageURI    template.URL
}

func (h *Handler) buildMarkers(bookmarks []models.Bookmark) []marker {
	markers := make([]marker, 0, len(bookmarks))
	for _, b := range bookmarks {
		data := popupData{
			Name:        b.Name,
			Address:     b.Address,
			Category:    string(b.Category),
			Stars:       models.Stars(b.Rating),
			Recommended: b.IsRecommended,
		}
		if uri, ok := imagestore.LoadDataURI(b.ImagePath); ok {
			data.ImageURI = template.URL(uri)
		}

		var buf bytes.Buffer
		if err := h.popup.Execute(&buf, data); err != nil {
			h.log.Warnf("render popup for %s: %v", b.ID, err)
			continue
		}

		m := marker{Lat: b.Lat, Lon: b.Lon, Color: regularPin, Popup: buf.String()}
		if b.IsRecommended {
			m.Color = recommendedPin
			m.Heart = true
		}
		markers = append(markers, m)
	}
	return markers
}

const (
	chartLabelWidth = 110
	chartBarWidth   = 420
	chartRowHeight  = 34
	chartBarHeight  = 22
	chartPadding    = 12
)

type chartBar struct {
	Label     string
	Color     string
	Count     int
	Y         int
	TextY     int
	Width     int
	ShowCount bool
	CountX    int
}

type chart struct {
	Width  int
	Height int
	BarX   int
	Bars   []chartBar
	Total  int
}

// buildChart lays out a horizontal bar chart. Empty buckets keep their row
// but get no bar and no count label.
func buildChart(stats []service.CategoryStat) chart {
	most := 0
	total := 0
	for _, s := range stats {
		total += s.Count
		if s.Count > most {
			most = s.Count
		}
	}

	c := chart{
		Width:  chartLabelWidth + chartBarWidth + 60,
		Height: len(stats)*chartRowHeight + 2*chartPadding,
		BarX:   chartLabelWidth,
		Total:  total,
	}
	for i, s := range stats {
		y := chartPadding + i*chartRowHeight
		bar := chartBar{
			Label: s.Label,
			Color: s.Color,
			Count: s.Count,
			Y:     y + (chartRowHeight-chartBarHeight)/2,
			TextY: y + chartRowHeight/2 + 5,
		}
		if s.Count > 0 && most > 0 {
			bar.Width = s.Count * chartBarWidth / most
			if bar.Width < 2 {
				bar.Width = 2
			}
			bar.ShowCount = true
			bar.CountX = chartLabelWidth + bar.Width + 6
		}
		c.Bars = append(c.Bars, bar)
	}
	return c
}
