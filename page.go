package flowpager

import (
	"fmt"
	"slices"
)

// LoadDirection defines which edge of the window a load request serves.
type LoadDirection string

const (
	// DirectionRefresh replaces the whole window with a freshly loaded page.
	DirectionRefresh LoadDirection = "refresh"
	// DirectionPrepend loads the page before the leading page of the window.
	DirectionPrepend LoadDirection = "prepend"
	// DirectionAppend loads the page after the trailing page of the window.
	DirectionAppend LoadDirection = "append"
)

var _directions = []LoadDirection{DirectionRefresh, DirectionPrepend, DirectionAppend}

func (d LoadDirection) Valid() bool {
	return slices.Contains(_directions, d)
}

func (d LoadDirection) String() string {
	return string(d)
}

// index maps the direction onto a slot of per-direction arrays.
func (d LoadDirection) index() int {
	switch d {
	case DirectionRefresh:
		return 0
	case DirectionPrepend:
		return 1
	case DirectionAppend:
		return 2
	default:
		panic(fmt.Errorf("unknown load direction '%s'", d))
	}
}

// Page is one loaded batch of items.
//
// PrevKey and NextKey address the neighbouring pages. A nil key means that no
// further page exists in that direction; a non-nil key must be usable as-is in
// a subsequent LoadRequest.
type Page[K comparable, T any] struct {
	// Items page elements, in domain order.
	Items []T
	// PrevKey key of the page before this one.
	PrevKey *K
	// NextKey key of the page after this one.
	NextKey *K
}

// LoadRequest describes a single call to Loader.Load.
type LoadRequest[K comparable] struct {
	// Direction edge of the window the page is loaded for.
	Direction LoadDirection
	// Key cursor of the requested page. nil on refresh means "start of data".
	Key *K
	// RequestedSize number of items the pager would like to receive.
	RequestedSize int
}

func (r LoadRequest[K]) String() string {
	if r.Key == nil {
		return fmt.Sprintf("%s(key=<nil>, size=%d)", r.Direction, r.RequestedSize)
	}

	return fmt.Sprintf("%s(key=%v, size=%d)", r.Direction, *r.Key, r.RequestedSize)
}

// keysEqual compares two optional keys.
func keysEqual[K comparable](a, b *K) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}
