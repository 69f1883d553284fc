package core

import "math"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageQuery holds the pagination query params of list endpoints.
type PageQuery struct {
	Page  int `json:"page" query:"page" validate:"omitempty,min=1"`
	Limit int `json:"limit" query:"limit" validate:"omitempty,min=1,max=100"`
}

// Clean sets defaults on zero values.
func (pq *PageQuery) Clean() {
	if pq.Page == 0 {
		pq.Page = DefaultPage
	}
	if pq.Limit == 0 {
		pq.Limit = DefaultLimit
	}
}

// Offset is the number of items before the page. It saturates at math.MaxInt64 for pages out of range.
func (pq PageQuery) Offset() int64 {
	if pq.Page < 1 || pq.Limit < 1 {
		return 0
	}
	skipped, limit := int64(pq.Page-1), int64(pq.Limit)
	if skipped > math.MaxInt64/limit {
		return math.MaxInt64
	}
	return skipped * limit
}

// Bounds returns the [start, end) slice bounds of the page within a collection of `total` items.
func (pq PageQuery) Bounds(total int) (int, int) {
	if total < 0 {
		total = 0
	}
	start := total
	if off := pq.Offset(); off < int64(total) {
		start = int(off)
	}
	end := start
	if pq.Limit > 0 {
		end = total
		if pq.Limit < total-start {
			end = start + pq.Limit
		}
	}
	return start, end
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func NewPagination(pq PageQuery, total int) Pagination {
	var pages int
	if pq.Limit > 0 {
		pages = (total + pq.Limit - 1) / pq.Limit
	}
	return Pagination{
		Page:       pq.Page,
		Limit:      pq.Limit,
		Total:      total,
		TotalPages: pages,
	}
}
