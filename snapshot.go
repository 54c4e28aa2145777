package flowpager

import "github.com/samber/lo"

// Entry is one position of a Snapshot: either a loaded item or a placeholder
// standing in for data that exists but is not loaded.
type Entry[T any] struct {
	Item        T
	Placeholder bool
}

// Snapshot is an immutable view of the pager published after every change.
// Consumers must treat it as read-only; it stays valid after newer snapshots
// are published.
type Snapshot[T any] struct {
	// Version grows by one with every published snapshot.
	Version uint64
	// Entries items in window order, with placeholder markers at the
	// boundaries when placeholders are enabled.
	Entries []Entry[T]
	// LoadState per-direction load states.
	LoadState CombinedLoadStates

	placeholdersBefore int
	placeholdersAfter  int
}

// Len returns the number of entries, placeholders included. Anchor positions
// reported to the pager index this sequence.
func (s Snapshot[T]) Len() int {
	return len(s.Entries)
}

// Items returns the loaded items without placeholders.
func (s Snapshot[T]) Items() []T {
	return lo.FilterMap(s.Entries, func(e Entry[T], _ int) (T, bool) {
		return e.Item, !e.Placeholder
	})
}

// ItemCount returns the number of loaded items.
func (s Snapshot[T]) ItemCount() int {
	return lo.CountBy(s.Entries, func(e Entry[T]) bool {
		return !e.Placeholder
	})
}

func (s Snapshot[T]) PlaceholdersBefore() int {
	return s.placeholdersBefore
}

func (s Snapshot[T]) PlaceholdersAfter() int {
	return s.placeholdersAfter
}

// subscriber is a conflating mailbox: it holds at most the latest undelivered
// snapshot. Only the pager run loop sends, so replacing the pending value
// cannot reorder deliveries.
type subscriber[T any] struct {
	ch chan Snapshot[T]
}

func newSubscriber[T any]() *subscriber[T] {
	return &subscriber[T]{ch: make(chan Snapshot[T], 1)}
}

func (s *subscriber[T]) offer(snap Snapshot[T]) {
	select {
	case <-s.ch:
	default:
	}

	s.ch <- snap
}
