package shared

import (
	"net/url"
	"strconv"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Page holds parsed pagination parameters.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the SQL offset for the page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ParsePage reads page/limit query parameters, clamping to sane bounds.
func ParsePage(q url.Values) Page {
	p := Page{Page: 1, Limit: defaultLimit}
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		p.Limit = v
		if p.Limit > maxLimit {
			p.Limit = maxLimit
		}
	}
	return p
}

// ListResponse is the paginated listing envelope. HasMore is computed from
// the real row count, not from len(data) == limit.
type ListResponse struct {
	Data    any  `json:"data"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// NewListResponse builds the envelope for one page of results.
func NewListResponse(data any, p Page, total int) ListResponse {
	return ListResponse{
		Data:    data,
		Page:    p.Page,
		Limit:   p.Limit,
		Total:   total,
		HasMore: total > p.Page*p.Limit,
	}
}
