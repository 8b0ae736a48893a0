package models

// Category is a cuisine/venue tag. The zero value means unset.
type Category string

const (
	CategoryKorean    Category = "한식"
	CategoryChinese   Category = "중식"
	CategoryJapanese  Category = "일식"
	CategoryAsian     Category = "아시안"
	CategoryWestern   Category = "양식"
	CategoryFastFood  Category = "패스트푸드"
	CategoryCafe      Category = "카페/디저트"
	CategoryBar       Category = "술집"
	CategoryOther     Category = "기타"
	CategoryUnset     Category = ""
	UncategorizedName          = "미분류"
)

// Categories lists the selectable categories in display order.
var Categories = []Category{
	CategoryKorean,
	CategoryChinese,
	CategoryJapanese,
	CategoryAsian,
	CategoryWestern,
	CategoryFastFood,
	CategoryCafe,
	CategoryBar,
	CategoryOther,
}

// categoryColors is the fixed chart palette. Unset bookmarks are charted as 미분류.
var categoryColors = map[Category]string{
	CategoryKorean:   "#4E79A7",
	CategoryChinese:  "#F28E2B",
	CategoryJapanese: "#59A14F",
	CategoryAsian:    "#E15759",
	CategoryWestern:  "#9C755F",
	CategoryFastFood: "#B07AA1",
	CategoryCafe:     "#FF4FA3",
	CategoryBar:      "#4A4A4A",
	CategoryOther:    "#76B7B2",
	CategoryUnset:    "#BAB0AC",
}

// Valid reports whether c is unset or one of Categories.
func (c Category) Valid() bool {
	if c == CategoryUnset {
		return true
	}
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Label is the name shown in statistics.
func (c Category) Label() string {
	if c == CategoryUnset {
		return UncategorizedName
	}
	return string(c)
}

// Color returns the chart color for c.
func (c Category) Color() string {
	if color, ok := categoryColors[c]; ok {
		return color
	}
	return categoryColors[CategoryUnset]
}
