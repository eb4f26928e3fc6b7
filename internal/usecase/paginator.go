package usecase

// Paginator reveals a growing window over a sorted sequence.
// It is not safe for concurrent use; Session serializes access.
type Paginator[T any] struct {
	pageSize int
	source   []T
	visible  []T
	hasMore  bool
	ready    bool
}

// NewPaginator creates a paginator; pageSize below 1 is treated as 1
func NewPaginator[T any](pageSize int) *Paginator[T] {
	if pageSize < 1 {
		pageSize = 1
	}
	return &Paginator[T]{pageSize: pageSize}
}

// Reset replaces the underlying sequence and shows its first page.
// Call it whenever the sequence is re-sorted or re-filtered.
func (p *Paginator[T]) Reset(sorted []T) {
	p.source = sorted
	n := min(p.pageSize, len(sorted))
	p.visible = append(make([]T, 0, n), sorted[:n]...)
	p.hasMore = len(sorted) > p.pageSize
	p.ready = true
}

// LoadMore appends the next page. It is a no-op once everything is visible.
// Calling LoadMore before Reset is a programming error and panics.
func (p *Paginator[T]) LoadMore() {
	if !p.ready {
		panic("usecase: Paginator.LoadMore called before Reset")
	}
	if !p.hasMore {
		return
	}
	start := len(p.visible)
	end := min(start+p.pageSize, len(p.source))
	p.visible = append(p.visible, p.source[start:end]...)
	p.hasMore = end < len(p.source)
}

// Visible returns the revealed elements
func (p *Paginator[T]) Visible() []T {
	return p.visible
}

// HasMore reports whether LoadMore would reveal anything
func (p *Paginator[T]) HasMore() bool {
	return p.hasMore
}

// PageSize returns the page size
func (p *Paginator[T]) PageSize() int {
	return p.pageSize
}

// ProximityTrigger loads the next page when a sentinel nears the viewport
type ProximityTrigger[T any] struct {
	pager *Paginator[T]
}

// NewProximityTrigger wraps pager
func NewProximityTrigger[T any](pager *Paginator[T]) *ProximityTrigger[T] {
	return &ProximityTrigger[T]{pager: pager}
}

// Signal reports a sentinel visibility change and returns whether a page was loaded
func (t *ProximityTrigger[T]) Signal(nearViewport bool) bool {
	if !nearViewport || !t.pager.HasMore() {
		return false
	}
	t.pager.LoadMore()
	return true
}
