package engine

const DefaultPageSize = 25

// PageWindow locates one page inside a sequence of Total items.
type PageWindow struct {
	PageIndex  int
	PageSize   int
	Total      int
	TotalPages int
	Start      int
	End        int
}

// NewPageWindow clamps pageIndex into [1, TotalPages]. A non-positive
// pageSize falls back to DefaultPageSize.
func NewPageWindow(total, pageIndex, pageSize int) PageWindow {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if total < 0 {
		total = 0
	}
	totalPages := max(1, (total+pageSize-1)/pageSize)
	pageIndex = min(max(pageIndex, 1), totalPages)
	start := (pageIndex - 1) * pageSize
	return PageWindow{
		PageIndex:  pageIndex,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		Start:      start,
		End:        min(start+pageSize, total),
	}
}

// Paginate slices out one page. The returned slice has its capacity capped
// so appending to it cannot write into items.
func Paginate[T any](items []T, pageIndex, pageSize int) ([]T, PageWindow) {
	w := NewPageWindow(len(items), pageIndex, pageSize)
	return items[w.Start:w.End:w.End], w
}
