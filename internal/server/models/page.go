package models

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Page selects a window of a list. Page numbers start at 1.
type Page struct {
	Page  int
	Limit int
}

// NewPage clamps page to >= 1 and limit to [1, MaxPageLimit]; zero values
// fall back to the first page of DefaultPageLimit items.
func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Page: page, Limit: limit}
}

// Offset is the number of rows to skip.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Paginated is one page of results plus totals.
type Paginated[T any] struct {
	Data       []T
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

func NewPaginated[T any](data []T, total int, p Page) Paginated[T] {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Paginated[T]{Data: data, Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}
