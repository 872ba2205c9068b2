package domain

import "strings"

// CategoryAll and BrandAll disable the category and brand filters
const (
	CategoryAll = "all"
	BrandAll    = "all"
)

// SortKey selects the ordering applied to catalog results
type SortKey string

const (
	SortByName      SortKey = "name"
	SortByPrice     SortKey = "price"
	SortByRating    SortKey = "rating"
	SortByBrand     SortKey = "brand"
	SortByCreatedAt SortKey = "createdAt"
)

// SortDirection is either ascending or descending
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// QuerySpec describes one catalog query. It is recomputed per request and never persisted.
type QuerySpec struct {
	SearchText    string        `json:"searchText"`
	Category      string        `json:"category"`
	Brand         string        `json:"brand"`
	MinPrice      *float64      `json:"minPrice,omitempty"`
	MaxPrice      *float64      `json:"maxPrice,omitempty"`
	MinRating     *float64      `json:"minRating,omitempty"`
	MaxRating     *float64      `json:"maxRating,omitempty"`
	SortKey       SortKey       `json:"sortKey"`
	SortDirection SortDirection `json:"sortDirection"`
	Page          int           `json:"page"`
	PageSize      int           `json:"pageSize"`
}

// QueryResult is one page of a catalog query plus the unpaginated match count
type QueryResult struct {
	Items      []Product `json:"items"`
	TotalCount int       `json:"totalCount"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
}

// ValidSortKey reports whether k is one of the supported sort keys
func ValidSortKey(k SortKey) bool {
	switch k {
	case SortByName, SortByPrice, SortByRating, SortByBrand, SortByCreatedAt:
		return true
	}
	return false
}

// Normalize returns a copy of the query with defaults applied and out-of-range values clamped
func (s QuerySpec) Normalize(defaultPageSize, maxPageSize int) QuerySpec {
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	if s.Page < 1 {
		s.Page = 1
	}
	if s.PageSize <= 0 {
		s.PageSize = defaultPageSize
	}
	if maxPageSize > 0 && s.PageSize > maxPageSize {
		s.PageSize = maxPageSize
	}
	if !ValidSortKey(s.SortKey) {
		s.SortKey = SortByName
	}
	if s.SortDirection != SortDesc {
		s.SortDirection = SortAsc
	}
	s.Category = strings.TrimSpace(s.Category)
	if s.Category == "" || strings.EqualFold(s.Category, CategoryAll) {
		s.Category = CategoryAll
	}
	s.Brand = strings.TrimSpace(s.Brand)
	if s.Brand == "" || strings.EqualFold(s.Brand, BrandAll) {
		s.Brand = BrandAll
	}
	return s
}

// Offset returns the index of the first item on the requested page
func (s QuerySpec) Offset() int {
	if s.Page < 1 {
		return 0
	}
	return (s.Page - 1) * s.PageSize
}
