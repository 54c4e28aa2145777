package flowpager

import "fmt"

// LoadStatus is the progress of loads in one direction.
type LoadStatus string

const (
	StatusIdle    LoadStatus = "idle"
	StatusLoading LoadStatus = "loading"
	StatusError   LoadStatus = "error"
)

// LoadState is the state of one load direction.
//
// A successful load settles straight back to idle; there is no separate
// "loaded" status visible to consumers.
type LoadState struct {
	Status LoadStatus
	// EndOfPagination is set on an idle prepend or append state when the
	// window boundary in that direction has no key.
	EndOfPagination bool
	// ErrorKind and Err are set only when Status is StatusError.
	ErrorKind ErrorKind
	Err       error
}

func (s LoadState) IsIdle() bool {
	return s.Status == StatusIdle
}

func (s LoadState) IsLoading() bool {
	return s.Status == StatusLoading
}

func (s LoadState) IsError() bool {
	return s.Status == StatusError
}

func (s LoadState) String() string {
	switch s.Status {
	case StatusError:
		return fmt.Sprintf("error(%s)", s.ErrorKind)
	case StatusIdle:
		if s.EndOfPagination {
			return "idle(end)"
		}
	}

	return string(s.Status)
}

// CombinedLoadStates groups the state of all three directions.
type CombinedLoadStates struct {
	Refresh LoadState
	Prepend LoadState
	Append  LoadState
}

func (c CombinedLoadStates) Get(direction LoadDirection) LoadState {
	switch direction {
	case DirectionRefresh:
		return c.Refresh
	case DirectionPrepend:
		return c.Prepend
	case DirectionAppend:
		return c.Append
	default:
		panic(fmt.Errorf("unknown load direction '%s'", direction))
	}
}

// IsIdle reports whether no direction is loading or failed.
func (c CombinedLoadStates) IsIdle() bool {
	return c.Refresh.IsIdle() && c.Prepend.IsIdle() && c.Append.IsIdle()
}

type trackedDirection[K comparable] struct {
	status LoadStatus
	// request in flight or, in error status, the request that failed.
	request LoadRequest[K]
	err     error
}

// loadStateTracker holds the per-direction state machine:
//
//	idle -> loading -> idle
//	idle -> loading -> error -> loading (retry)
//
// Only one load per direction may be in flight.
type loadStateTracker[K comparable] struct {
	directions [3]trackedDirection[K]
}

func newLoadStateTracker[K comparable]() *loadStateTracker[K] {
	t := new(loadStateTracker[K])
	for i := range t.directions {
		t.directions[i].status = StatusIdle
	}

	return t
}

func (t *loadStateTracker[K]) status(direction LoadDirection) LoadStatus {
	return t.directions[direction.index()].status
}

// begin moves the direction to loading. Returns false when a load for the
// direction is already in flight.
func (t *loadStateTracker[K]) begin(req LoadRequest[K]) bool {
	d := &t.directions[req.Direction.index()]
	if d.status == StatusLoading {
		return false
	}

	d.status = StatusLoading
	d.request = req
	d.err = nil

	return true
}

// succeed settles a load back to idle.
func (t *loadStateTracker[K]) succeed(direction LoadDirection) {
	t.directions[direction.index()] = trackedDirection[K]{status: StatusIdle}
}

// fail moves a loading direction to error, keeping the failed request for a
// retry.
func (t *loadStateTracker[K]) fail(direction LoadDirection, err error) {
	d := &t.directions[direction.index()]
	d.status = StatusError
	d.err = err
}

// failedRequest returns the request to re-issue on retry.
func (t *loadStateTracker[K]) failedRequest(direction LoadDirection) (LoadRequest[K], bool) {
	d := t.directions[direction.index()]
	if d.status != StatusError {
		return LoadRequest[K]{}, false
	}

	return d.request, true
}

// inFlight returns the request currently loading for direction.
func (t *loadStateTracker[K]) inFlight(direction LoadDirection) (LoadRequest[K], bool) {
	d := t.directions[direction.index()]
	if d.status != StatusLoading {
		return LoadRequest[K]{}, false
	}

	return d.request, true
}

func (t *loadStateTracker[K]) state(direction LoadDirection, endOfPagination bool) LoadState {
	d := t.directions[direction.index()]
	ret := LoadState{Status: d.status}

	switch d.status {
	case StatusError:
		ret.ErrorKind = KindOf(d.err)
		ret.Err = d.err
	case StatusIdle:
		ret.EndOfPagination = endOfPagination
	}

	return ret
}
