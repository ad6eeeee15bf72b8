// Package paginate splits an ordered list into fixed-size pages.
package paginate

// Window returns the half-open range [start, end) of items shown on page
// and the number of pages for a list of length items. Pages start at 1.
func Window(length, pageSize, page int) (start, end, totalPages int) {
	if pageSize < 1 {
		pageSize = 1
	}
	if length < 0 {
		length = 0
	}
	totalPages = (length + pageSize - 1) / pageSize

	start = (page - 1) * pageSize
	if start < 0 {
		start = 0
	}
	if start > length {
		start = length
	}
	end = start + pageSize
	if end > length {
		end = length
	}
	return start, end, totalPages
}

// Paginator tracks the current page over a list of items.
// It is not safe for concurrent use.
type Paginator[T any] struct {
	items    []T
	pageSize int
	page     int
}

// New returns a paginator showing pageSize items per page, starting on page 1.
func New[T any](pageSize int) *Paginator[T] {
	if pageSize < 1 {
		pageSize = 1
	}
	return &Paginator[T]{pageSize: pageSize, page: 1}
}

// SetItems replaces the list. The current page is kept as is; callers that
// removed items should follow up with AdjustPageAfterDeletion.
func (p *Paginator[T]) SetItems(items []T) {
	p.items = items
}

func (p *Paginator[T]) PageSize() int    { return p.pageSize }
func (p *Paginator[T]) CurrentPage() int { return p.page }
func (p *Paginator[T]) Len() int         { return len(p.items) }

func (p *Paginator[T]) TotalPages() int {
	_, _, total := Window(len(p.items), p.pageSize, p.page)
	return total
}

// Items returns the slice of the list visible on the current page.
func (p *Paginator[T]) Items() []T {
	start, end, _ := Window(len(p.items), p.pageSize, p.page)
	return p.items[start:end]
}

// GoToPage moves to page. Pages outside [1, TotalPages] are ignored.
func (p *Paginator[T]) GoToPage(page int) bool {
	if page < 1 || page > p.TotalPages() {
		return false
	}
	p.page = page
	return true
}

func (p *Paginator[T]) Next() bool     { return p.GoToPage(p.page + 1) }
func (p *Paginator[T]) Previous() bool { return p.GoToPage(p.page - 1) }

func (p *Paginator[T]) CanGoNext() bool     { return p.page < p.TotalPages() }
func (p *Paginator[T]) CanGoPrevious() bool { return p.page > 1 }

func (p *Paginator[T]) ResetToFirstPage() { p.page = 1 }

// AdjustPageAfterDeletion moves to the last page when the current page no
// longer exists. With no pages left the current page is unchanged.
func (p *Paginator[T]) AdjustPageAfterDeletion() {
	total := p.TotalPages()
	if p.page > total && total > 0 {
		p.page = total
	}
}
