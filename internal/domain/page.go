package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest selects one page of a listing. Page is 1-based.
type PageRequest struct {
	Page  int
	Limit int
}

// NewPageRequest clamps page and limit into the supported range.
func NewPageRequest(page, limit int) PageRequest {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return PageRequest{Page: page, Limit: limit}
}

// Offset is the number of rows to skip.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one page of results with the total row count.
type Page[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// NewPage assembles a page, computing the page count.
func NewPage[T any](data []T, req PageRequest, total int64) Page[T] {
	if data == nil {
		data = []T{}
	}
	return Page[T]{
		Data:       data,
		Page:       req.Page,
		Limit:      req.Limit,
		Total:      total,
		TotalPages: (total + int64(req.Limit) - 1) / int64(req.Limit),
	}
}
