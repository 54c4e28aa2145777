package flowpager

import (
	"context"

	"github.com/samber/lo"
)

// Loader is the data source consumed by a Pager.
//
// For DirectionRefresh the key is the initial key or the refresh key, nil
// meaning "start of data". For DirectionPrepend it equals the window's leading
// PrevKey, for DirectionAppend the trailing NextKey.
//
// Implementations must be safe to call again with the same request. Failures
// are reported through the returned error; see KindOf for how they are
// classified. ctx is cancelled when the result is no longer wanted.
type Loader[K comparable, T any] interface {
	Load(ctx context.Context, req LoadRequest[K]) (Page[K, T], error)
}

// LoaderFunc adapts a plain function to Loader.
type LoaderFunc[K comparable, T any] func(ctx context.Context, req LoadRequest[K]) (Page[K, T], error)

// Load - implements Loader.
func (f LoaderFunc[K, T]) Load(ctx context.Context, req LoadRequest[K]) (Page[K, T], error) {
	return f(ctx, req)
}

// RefreshKeyer is implemented by loaders that know how to pick a refresh key
// from the current pager state.
type RefreshKeyer[K comparable, T any] interface {
	RefreshKey(state State[K, T]) *K
}

// RefreshKeyFunc computes the key used by a full reload. Returning nil
// restarts from the beginning of the data.
type RefreshKeyFunc[K comparable, T any] func(state State[K, T]) *K

// State is the view of the window handed to refresh key functions.
type State[K comparable, T any] struct {
	// Pages retained pages in window order. Items are copies of the window
	// contents.
	Pages []Page[K, T]
	// AnchorPosition item index most recently reported by the consumer,
	// placeholders excluded. nil when no anchor was reported.
	AnchorPosition *int

	loadKeys []*K
}

// ClosestPageToPosition returns the page covering the item at position.
// Positions before the first or after the last item map to the edge pages.
func (s State[K, T]) ClosestPageToPosition(position int) (Page[K, T], bool) {
	idx := closestPageIndex(s.Pages, position)
	if idx < 0 {
		return Page[K, T]{}, false
	}

	return s.Pages[idx], true
}

// LoadKeyOfPage returns the request key that loaded the page covering position.
func (s State[K, T]) LoadKeyOfPage(position int) *K {
	idx := closestPageIndex(s.Pages, position)
	if idx < 0 || idx >= len(s.loadKeys) {
		return nil
	}

	return s.loadKeys[idx]
}

func closestPageIndex[K comparable, T any](pages []Page[K, T], position int) int {
	if len(pages) == 0 {
		return -1
	}

	offset := 0
	for i, page := range pages {
		offset += len(page.Items)
		if position < offset {
			return i
		}
	}

	return len(pages) - 1
}

// IntKey is the constraint for integer page index keys.
type IntKey interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// IntRefreshKey is the refresh key policy for integer page indexes: the page
// covering the anchor is reloaded, addressed as prevKey+1 or, on the first page,
// nextKey-1. Without an anchor, or when the page has no neighbours, it returns
// nil.
func IntRefreshKey[K IntKey, T any](state State[K, T]) *K {
	if state.AnchorPosition == nil {
		return nil
	}

	page, ok := state.ClosestPageToPosition(*state.AnchorPosition)
	if !ok {
		return nil
	}

	switch {
	case page.PrevKey != nil:
		return lo.ToPtr(*page.PrevKey + 1)
	case page.NextKey != nil:
		return lo.ToPtr(*page.NextKey - 1)
	default:
		return nil
	}
}

// loadKeyRefreshKey reloads the page covering the anchor with the same key it
// was originally requested with. Used when neither an option nor the loader
// provides a policy.
func loadKeyRefreshKey[K comparable, T any](state State[K, T]) *K {
	if state.AnchorPosition == nil {
		return nil
	}

	return state.LoadKeyOfPage(*state.AnchorPosition)
}
