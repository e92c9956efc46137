package service

import "math"

const maxPageSize = 100

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

// NewPage normalizes page and limit: page is at least 1, a missing limit
// falls back to def and any limit is clamped to 1..100. Page numbers past
// math.MaxInt/limit are cut down so Offset never overflows.
func NewPage(page, limit, def int) Page {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = def
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page > math.MaxInt/limit {
		page = math.MaxInt / limit
	}
	return Page{Number: page, Limit: limit}
}

func (p Page) Offset() int { return (p.Number - 1) * p.Limit }

// PageInfo is the pagination block of list responses.
type PageInfo struct {
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
	Total       int `json:"total"`
}

func (p Page) Info(total int) PageInfo {
	return PageInfo{
		TotalPages:  (total + p.Limit - 1) / p.Limit,
		CurrentPage: p.Number,
		Total:       total,
	}
}
