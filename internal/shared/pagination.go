package shared

import (
	"math"
	"net/http"
	"strconv"
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 10
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// PageQuery holds page/size listing parameters parsed from the query string.
type PageQuery struct {
	Page int
	Size int
}

// ParsePageQuery reads page and size from the request, falling back to
// page=1 size=10 on absent or malformed values.
func ParsePageQuery(r *http.Request) PageQuery {
	q := PageQuery{Page: 1, Size: 10}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		q.Page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && v > 0 && v <= 100 {
		q.Size = v
	}
	return q
}

// Offset returns the row offset for the query.
func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.Size
}

// ListResponse is the envelope returned by paginated list endpoints.
type ListResponse[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}
