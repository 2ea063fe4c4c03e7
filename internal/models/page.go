package models

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page  int `form:"page" json:"page"`
	Limit int `form:"limit" json:"limit"`
	// All disables paging (exports). Never bound from requests.
	All bool `form:"-" json:"-"`
}

// Normalize clamps the page into range.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

func (p Page) Skip() int64 {
	if p.All {
		return 0
	}
	p = p.Normalize()
	return int64((p.Page - 1) * p.Limit)
}

// Slice applies the page to an in-memory result of length n and returns the bounds.
func (p Page) Slice(n int) (int, int) {
	if p.All {
		return 0, n
	}
	p = p.Normalize()
	start := (p.Page - 1) * p.Limit
	if start > n {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}

// List is the paginated response envelope.
type List[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func NewList[T any](items []T, total int64, p Page) List[T] {
	p = p.Normalize()
	if items == nil {
		items = []T{}
	}
	return List[T]{Items: items, Total: total, Page: p.Page, Limit: p.Limit}
}
