package flowpager

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
)

type windowPage[K comparable, T any] struct {
	page    Page[K, T]
	loadKey *K
}

// Window is the ordered concatenation of loaded pages.
//
// The window is bounded by maxRetainedItems. When a load pushes it over the
// bound, whole pages are dropped from the edge opposite to the one that just
// grew; the page that was just inserted is never dropped. Boundary keys are the
// outer keys of the edge pages, so after eviction the key of the newly exposed
// page automatically becomes the boundary key of that side.
//
// Loads applied with an anchor treat the bound as soft: a page is kept when
// dropping it would bring the anchor within the prefetch distance of the
// trimmed edge, since that edge would immediately be loaded again.
//
// Window is not safe for concurrent use. A Pager owns its window exclusively.
type Window[K comparable, T any] struct {
	pages            []windowPage[K, T]
	itemCount        int
	maxRetainedItems int
	// origin absolute position of the first retained item. Decreases on
	// prepend, increases when leading pages are evicted, zero after reset.
	origin int
}

func NewWindow[K comparable, T any](maxRetainedItems int) *Window[K, T] {
	return &Window[K, T]{
		maxRetainedItems: maxRetainedItems,
	}
}

// ApplyPage inserts page at the edge served by direction and enforces the
// retained items bound. DirectionRefresh resets the window. Returns the number
// of evicted items.
func (w *Window[K, T]) ApplyPage(direction LoadDirection, page Page[K, T]) int {
	return w.apply(direction, nil, page, retention{})
}

// retention protects the pages around an absolute anchor position from
// eviction. A nil anchor evicts down to the bound.
type retention struct {
	anchor   *int
	prefetch int
}

func (w *Window[K, T]) apply(direction LoadDirection, loadKey *K, page Page[K, T], keep retention) int {
	entry := windowPage[K, T]{page: page, loadKey: loadKey}

	switch direction {
	case DirectionRefresh:
		w.reset(entry)
		return 0
	case DirectionPrepend:
		w.pages = slices.Insert(w.pages, 0, entry)
		w.itemCount += len(page.Items)
		w.origin -= len(page.Items)
		return w.trimTrailing(keep)
	case DirectionAppend:
		w.pages = append(w.pages, entry)
		w.itemCount += len(page.Items)
		return w.trimLeading(keep)
	default:
		panic(fmt.Errorf("cannot apply page for load direction '%s'", direction))
	}
}

// Reset replaces the whole window with a single page.
func (w *Window[K, T]) Reset(page Page[K, T]) {
	w.reset(windowPage[K, T]{page: page})
}

func (w *Window[K, T]) reset(entry windowPage[K, T]) {
	w.pages = []windowPage[K, T]{entry}
	w.itemCount = len(entry.page.Items)
	w.origin = 0
}

func (w *Window[K, T]) overflows() bool {
	return w.maxRetainedItems != NoLimit && w.itemCount > w.maxRetainedItems && len(w.pages) > 1
}

// anchorIndex returns the anchor as an item index into the window.
func (w *Window[K, T]) anchorIndex(keep retention) (int, bool) {
	if keep.anchor == nil || w.itemCount == 0 {
		return 0, false
	}

	return lo.Clamp(*keep.anchor-w.origin, 0, w.itemCount-1), true
}

func (w *Window[K, T]) trimLeading(keep retention) int {
	evicted := 0
	for w.overflows() {
		dropped := len(w.pages[0].page.Items)
		if anchor, ok := w.anchorIndex(keep); ok && anchor-dropped <= keep.prefetch {
			break
		}
		w.pages = w.pages[1:]
		w.itemCount -= dropped
		w.origin += dropped
		evicted += dropped
	}

	return evicted
}

func (w *Window[K, T]) trimTrailing(keep retention) int {
	evicted := 0
	for w.overflows() {
		last := len(w.pages) - 1
		dropped := len(w.pages[last].page.Items)
		if anchor, ok := w.anchorIndex(keep); ok && w.itemCount-dropped-1-anchor <= keep.prefetch {
			break
		}
		w.pages = w.pages[:last]
		w.itemCount -= dropped
		evicted += dropped
	}

	return evicted
}

// Flatten returns the items of all retained pages in window order.
func (w *Window[K, T]) Flatten() []T {
	ret := make([]T, 0, w.itemCount)
	for _, p := range w.pages {
		ret = append(ret, p.page.Items...)
	}

	return ret
}

// Entries returns the flattened items wrapped as entries. With placeholders
// enabled, a marker entry stands before the items when the window has a
// leading key and after them when it has a trailing key.
func (w *Window[K, T]) Entries(placeholders bool) []Entry[T] {
	before, after := w.placeholders(placeholders)

	ret := make([]Entry[T], 0, w.itemCount+before+after)
	if before > 0 {
		ret = append(ret, Entry[T]{Placeholder: true})
	}
	for _, p := range w.pages {
		for _, item := range p.page.Items {
			ret = append(ret, Entry[T]{Item: item})
		}
	}
	if after > 0 {
		ret = append(ret, Entry[T]{Placeholder: true})
	}

	return ret
}

func (w *Window[K, T]) placeholders(enabled bool) (before, after int) {
	if !enabled {
		return 0, 0
	}

	return lo.Ternary(w.PrevKey() != nil, 1, 0), lo.Ternary(w.NextKey() != nil, 1, 0)
}

// PrevKey returns the leading boundary key, nil if the window is empty or the
// data starts at the first retained page.
func (w *Window[K, T]) PrevKey() *K {
	if len(w.pages) == 0 {
		return nil
	}

	return w.pages[0].page.PrevKey
}

// NextKey returns the trailing boundary key.
func (w *Window[K, T]) NextKey() *K {
	if len(w.pages) == 0 {
		return nil
	}

	return w.pages[len(w.pages)-1].page.NextKey
}

// Len returns the number of retained items.
func (w *Window[K, T]) Len() int {
	return w.itemCount
}

func (w *Window[K, T]) PageCount() int {
	return len(w.pages)
}

func (w *Window[K, T]) IsEmpty() bool {
	return len(w.pages) == 0
}

// Pages returns the retained pages in window order.
func (w *Window[K, T]) Pages() []Page[K, T] {
	return lo.Map(w.pages, func(p windowPage[K, T], _ int) Page[K, T] {
		return p.page
	})
}

// Origin returns the absolute position of the first retained item.
func (w *Window[K, T]) Origin() int {
	return w.origin
}

// ClosestPage returns the page covering the item at position.
func (w *Window[K, T]) ClosestPage(position int) (Page[K, T], bool) {
	return w.state(nil).ClosestPageToPosition(position)
}

// state copies the page items, so refresh key functions cannot mutate the
// window through it.
func (w *Window[K, T]) state(anchor *int) State[K, T] {
	return State[K, T]{
		Pages: lo.Map(w.pages, func(p windowPage[K, T], _ int) Page[K, T] {
			page := p.page
			page.Items = slices.Clone(page.Items)
			return page
		}),
		AnchorPosition: anchor,
		loadKeys: lo.Map(w.pages, func(p windowPage[K, T], _ int) *K {
			return p.loadKey
		}),
	}
}
