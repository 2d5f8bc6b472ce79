package service

const maxPageLimit = 100

// Pagination describes one page of a listing. Page is 1-based.
type Pagination struct {
	Page       int
	Limit      int
	Total      int64
	TotalPages int
}

// NewPagination normalizes page and limit. A page below 1 becomes 1, a limit
// below 1 becomes defaultLimit and limits are capped at 100. Pages further than
// one past the last page collapse to TotalPages+1, which is always empty.
func NewPagination(page, limit, defaultLimit int, total int64) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	if page > totalPages+1 {
		page = totalPages + 1
	}

	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Offset is the number of records skipped before this page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

func (p Pagination) HasNext() bool {
	return p.Page < p.TotalPages
}

func (p Pagination) HasPrev() bool {
	return p.Page > 1
}
