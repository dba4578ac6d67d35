package search

// Page describes one window over a result set. Start and End are
// half-open indices into the full result list and never exceed Total.
type Page struct {
	Number     int  `json:"page"`
	Size       int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	Start      int  `json:"start"`
	End        int  `json:"end"`
	HasPrev    bool `json:"has_prev"`
	HasNext    bool `json:"has_next"`
}

// Paginate clamps page into [1, max(pages, 1)] and derives the index window.
// A non-positive size is treated as 1.
func Paginate(total, page, size int) Page {
	if size <= 0 {
		size = 1
	}
	if total < 0 {
		total = 0
	}
	pages := (total + size - 1) / size
	last := max(pages, 1)
	page = min(max(page, 1), last)

	start := min((page-1)*size, total)
	end := min(start+size, total)
	return Page{
		Number:     page,
		Size:       size,
		Total:      total,
		TotalPages: pages,
		Start:      start,
		End:        end,
		HasPrev:    page > 1,
		HasNext:    page < pages,
	}
}
