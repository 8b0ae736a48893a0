package models

import "strings"

// Filter selects which bookmarks are displayed.
type Filter string

const (
	FilterAll            Filter = "all"
	FilterRecommended    Filter = "recommended"
	FilterNotRecommended Filter = "not_recommended"
)

// Filters lists the filter choices in sidebar order.
var Filters = []Filter{FilterAll, FilterRecommended, FilterNotRecommended}

// ParseFilter maps unknown values to FilterAll.
func ParseFilter(s string) Filter {
	switch Filter(s) {
	case FilterRecommended, FilterNotRecommended:
		return Filter(s)
	default:
		return FilterAll
	}
}

func (f Filter) Label() string {
	switch f {
	case FilterRecommended:
		return "추천 💗만"
	case FilterNotRecommended:
		return "비추천만"
	default:
		return "전체 보기"
	}
}

// Match reports whether b passes the filter.
func (f Filter) Match(b Bookmark) bool {
	switch f {
	case FilterRecommended:
		return b.IsRecommended
	case FilterNotRecommended:
		return !b.IsRecommended
	default:
		return true
	}
}

// Stars renders a rating as five filled/empty stars; nil renders a placeholder.
func Stars(rating *int) string {
	if rating == nil {
		return "별점 없음"
	}
	r := *rating
	if r < 0 {
		r = 0
	}
	if r > 5 {
		r = 5
	}
	return strings.Repeat("⭐", r) + strings.Repeat("☆", 5-r)
}
