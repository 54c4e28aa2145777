// Package flowpager provides a generic, bidirectional incremental pager.
//
// Overview
//
// A Pager loads pages of items on demand from a caller-supplied Loader and
// stitches them into one logical window. Pages are addressed by opaque cursor
// keys: every loaded Page carries the key of the page before it and the key of
// the page after it, and a nil key means the data ends in that direction.
//
// Key concepts
//   - Loader: the data source. Answers "give me the page at key K" for one of
//     three directions: refresh, prepend or append.
//   - Window: the ordered concatenation of retained pages. Bounded by
//     Config.MaxRetainedItems; whole pages are evicted from the side opposite
//     to growth, except pages within Config.PrefetchDistance of the anchor.
//   - LoadState: per-direction progress (idle, loading, error).
//   - Snapshot: immutable view of the window plus load states, published after
//     every change.
//
// The consumer drives loading by reporting the anchor position it is
// displaying:
//
//	p, err := flowpager.New[int, string](loader, lo.ToPtr(1), flowpager.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//
//	updates, unsubscribe := p.Subscribe()
//	defer unsubscribe()
//
//	for snap := range updates {
//		render(snap)
//		_ = p.ReportAnchor(lastVisibleIndex())
//	}
//
// Refresh keys
//
// Refresh reloads the window around the anchor. The key it loads comes from,
// in order: the WithRefreshKey option, the Loader's own RefreshKey method when
// it implements RefreshKeyer, and finally the key that originally loaded the
// page under the anchor. A plain LoaderFunc therefore depends on that original
// key, and a page first loaded with a nil key refreshes from the start of the
// data. For integer page indexes pass IntRefreshKey, which derives the key
// from the neighbouring keys instead:
//
//	p, err := flowpager.New[int, string](loader, lo.ToPtr(1), cfg,
//		flowpager.WithRefreshKey(flowpager.IntRefreshKey[int, string]))
//
// See the gormsource package for Loaders backed by gorm queries.
package flowpager
