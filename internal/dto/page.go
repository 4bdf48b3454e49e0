package dto

// PageRequest is the common pagination input. Defaults: page 1, size 10.
type PageRequest struct {
	Page int `query:"page"`
	Size int `query:"limit"`
}

// Normalize clamps out-of-range values to the defaults.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = 10
	}
	return p
}

// Offset returns the row offset for the requested page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Size
}

// PageMeta reports listing totals alongside a page of results.
type PageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// NewPageMeta derives totals from a normalized request and a row count.
func NewPageMeta(req PageRequest, total int64) PageMeta {
	pages := total / int64(req.Size)
	if total%int64(req.Size) != 0 {
		pages++
	}
	return PageMeta{Page: req.Page, Size: req.Size, Total: total, TotalPages: pages}
}
