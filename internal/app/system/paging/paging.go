// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// DefaultLimit is the page size used when the request does not specify one.
const DefaultLimit = 20

// MaxLimit caps the per-page size a client may request.
const MaxLimit = 100

// Page holds the parsed pagination parameters of a list request.
type Page struct {
	Number int // 1-based page number
	Limit  int
}

// Skip returns the number of documents to skip, as int64 for Mongo
// Find().SetSkip().
func (p Page) Skip() int64 { return int64((p.Number - 1) * p.Limit) }

// Limit64 returns the page size as int64 for Mongo Find().SetLimit().
func (p Page) Limit64() int64 { return int64(p.Limit) }

// Parse extracts "page" and "limit" query parameters. Out-of-range or
// invalid values fall back to page 1 and DefaultLimit; limit is clamped
// to MaxLimit.
func Parse(r *http.Request) Page {
	p := Page{Number: 1, Limit: DefaultLimit}

	if s := query.Get(r, "page"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 1 {
			p.Number = n
		}
	}
	if s := query.Get(r, "limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 1 {
			p.Limit = n
			if p.Limit > MaxLimit {
				p.Limit = MaxLimit
			}
		}
	}
	return p
}

// Meta is the pagination envelope returned alongside list results.
type Meta struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	Total       int64 `json:"total"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
}

// BuildMeta computes the pagination envelope for a total row count.
func BuildMeta(p Page, total int64) Meta {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	if pages < 1 {
		pages = 1
	}
	return Meta{
		CurrentPage: p.Number,
		TotalPages:  pages,
		Total:       total,
		HasNext:     p.Number < pages,
		HasPrev:     p.Number > 1,
	}
}
