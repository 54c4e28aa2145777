package flowpager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type commandKind int

const (
	commandRetry commandKind = iota
	commandRefresh
)

type command struct {
	kind      commandKind
	direction LoadDirection
}

type loadResult[K comparable, T any] struct {
	request    LoadRequest[K]
	generation uint64
	page       Page[K, T]
	err        error
	duration   time.Duration
}

// Pager loads pages from a Loader on demand and publishes the assembled window
// as immutable snapshots.
//
// All state mutations happen on a single run loop goroutine. Loads run in their
// own goroutines and report back to the run loop, so refresh, prepend and
// append may be in flight at the same time while at most one load per
// direction is outstanding.
type Pager[K comparable, T any] struct {
	cfg        Config
	loader     Loader[K, T]
	initialKey *K
	refreshKey RefreshKeyFunc[K, T]
	logger     *zap.Logger
	metrics    *Metrics

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	anchorSignal  chan struct{}
	anchorMu      sync.Mutex
	pendingAnchor int

	commands chan command
	results  chan loadResult[K, T]

	// Owned by the run loop.
	window  *Window[K, T]
	tracker *loadStateTracker[K]
	// anchor absolute item position, see Window.Origin.
	anchor     *int
	generation uint64
	cancels    [3]context.CancelFunc

	mu          sync.RWMutex
	snapshot    Snapshot[T]
	subscribers map[uint64]*subscriber[T]
	nextSubID   uint64
	closed      bool
}

// New creates a pager and immediately issues the initial refresh load with
// initialKey. A nil initialKey lets the loader start from the beginning.
func New[K comparable, T any](
	loader Loader[K, T],
	initialKey *K,
	cfg Config,
	opts ...Option[K, T],
) (*Pager[K, T], error) {
	if loader == nil {
		return nil, fmt.Errorf("%w: loader is nil", ErrInvalidConfig)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	o := options[K, T]{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	refreshKey := o.refreshKey
	if refreshKey == nil {
		if keyer, ok := loader.(RefreshKeyer[K, T]); ok {
			refreshKey = keyer.RefreshKey
		} else {
			refreshKey = loadKeyRefreshKey[K, T]
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pager[K, T]{
		cfg:          cfg,
		loader:       loader,
		initialKey:   initialKey,
		refreshKey:   refreshKey,
		logger:       o.logger,
		metrics:      o.metrics,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		anchorSignal: make(chan struct{}, 1),
		commands:     make(chan command),
		results:      make(chan loadResult[K, T]),
		window:       NewWindow[K, T](cfg.MaxRetainedItems),
		tracker:      newLoadStateTracker[K](),
		subscribers:  make(map[uint64]*subscriber[T]),
	}

	// The run loop is not started yet, so the initial load can be issued from
	// here without racing it.
	p.startLoad(p.request(DirectionRefresh, initialKey))
	p.publish()

	go p.run()

	return p, nil
}

// Snapshot returns the most recently published snapshot.
func (p *Pager[K, T]) Snapshot() Snapshot[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.snapshot
}

// Subscribe returns a channel delivering snapshots and a function that stops
// the subscription. The channel holds at most one pending snapshot: a slow
// consumer skips intermediate versions but never sees an older snapshot after
// a newer one. The current snapshot is delivered immediately. The channel is
// closed on unsubscribe or when the pager closes.
func (p *Pager[K, T]) Subscribe() (<-chan Snapshot[T], func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub := newSubscriber[T]()
	if p.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}

	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = sub
	sub.offer(p.snapshot)

	return sub.ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if s, ok := p.subscribers[id]; ok {
			delete(p.subscribers, id)
			close(s.ch)
		}
	}
}

// ReportAnchor tells the pager which entry of the latest snapshot the consumer
// is looking at. Reports are coalesced: if several arrive before the run loop
// handles them, only the latest one is used.
func (p *Pager[K, T]) ReportAnchor(position int) error {
	if p.ctx.Err() != nil {
		return ErrPagerClosed
	}
	if position < 0 {
		return fmt.Errorf("anchor position must be non-negative, got %d", position)
	}

	p.anchorMu.Lock()
	p.pendingAnchor = position
	p.anchorMu.Unlock()

	select {
	case p.anchorSignal <- struct{}{}:
	default:
	}

	return nil
}

// Retry re-issues the failed request of direction. It is a no-op when the
// direction is not in error state.
func (p *Pager[K, T]) Retry(direction LoadDirection) error {
	if !direction.Valid() {
		return fmt.Errorf("invalid load direction '%s'", direction)
	}

	return p.send(command{kind: commandRetry, direction: direction})
}

// Refresh reloads the data around the last reported anchor, discarding the
// window once the new page arrives. In-flight prepend and append loads are
// cancelled.
func (p *Pager[K, T]) Refresh() error {
	return p.send(command{kind: commandRefresh})
}

// Close cancels outstanding loads, stops the run loop and closes subscriber
// channels. It does not wait for loaders that ignore context cancellation.
func (p *Pager[K, T]) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		<-p.done

		p.mu.Lock()
		for id, sub := range p.subscribers {
			delete(p.subscribers, id)
			close(sub.ch)
		}
		p.closed = true
		p.mu.Unlock()

		p.logger.Info("pager closed")
	})

	return nil
}

func (p *Pager[K, T]) send(cmd command) error {
	if p.ctx.Err() != nil {
		return ErrPagerClosed
	}

	select {
	case p.commands <- cmd:
		return nil
	case <-p.done:
		return ErrPagerClosed
	}
}

func (p *Pager[K, T]) run() {
	defer close(p.done)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.anchorSignal:
			p.handleAnchor()
		case cmd := <-p.commands:
			switch cmd.kind {
			case commandRetry:
				p.handleRetry(cmd.direction)
			case commandRefresh:
				p.handleRefresh()
			}
		case res := <-p.results:
			p.handleResult(res)
		}
	}
}

func (p *Pager[K, T]) request(direction LoadDirection, key *K) LoadRequest[K] {
	return LoadRequest[K]{
		Direction:     direction,
		Key:           key,
		RequestedSize: p.cfg.PageSize,
	}
}

// startLoad marks the direction loading and runs the loader in the background.
// Returns false when the direction already has a load in flight.
func (p *Pager[K, T]) startLoad(req LoadRequest[K]) bool {
	if !p.tracker.begin(req) {
		return false
	}

	ctx, cancel := context.WithCancel(p.ctx)
	p.cancels[req.Direction.index()] = cancel
	generation := p.generation

	p.logger.Debug("issuing load", zap.Stringer("request", req), zap.Uint64("generation", generation))

	go func() {
		defer cancel()

		start := time.Now()
		page, err := p.loader.Load(ctx, req)
		res := loadResult[K, T]{
			request:    req,
			generation: generation,
			page:       page,
			err:        err,
			duration:   time.Since(start),
		}

		select {
		case p.results <- res:
		case <-p.ctx.Done():
		}
	}()

	return true
}

func (p *Pager[K, T]) handleResult(res loadResult[K, T]) {
	if p.ctx.Err() != nil {
		return
	}

	req := res.request
	direction := req.Direction

	if res.generation != p.generation {
		p.logger.Debug("dropping stale load result",
			zap.Stringer("request", req),
			zap.Uint64("generation", res.generation),
			zap.Uint64("current_generation", p.generation),
		)
		p.metrics.RecordLoad(direction, resultDropped, res.duration)
		return
	}

	p.cancels[direction.index()] = nil

	if res.err != nil {
		kind := KindOf(res.err)
		if kind == ErrorKindCancelled {
			p.logger.Debug("load cancelled", zap.Stringer("request", req))
			p.metrics.RecordLoad(direction, resultCancelled, res.duration)
			p.tracker.succeed(direction)
			p.publish()
			return
		}

		p.logger.Warn("load failed",
			zap.Stringer("request", req),
			zap.String("kind", string(kind)),
			zap.Error(res.err),
		)
		p.metrics.RecordLoad(direction, resultError, res.duration)
		p.tracker.fail(direction, res.err)
		p.publish()
		return
	}

	// Eviction on the opposite edge may have moved the boundary this page was
	// requested for.
	if direction != DirectionRefresh && !keysEqual(req.Key, p.boundaryKey(direction)) {
		p.logger.Debug("dropping load result for a moved boundary", zap.Stringer("request", req))
		p.metrics.RecordLoad(direction, resultDropped, res.duration)
		p.tracker.succeed(direction)
		p.publish()
		p.triggerGrowth()
		return
	}

	evicted := p.window.apply(direction, req.Key, res.page, retention{anchor: p.anchor, prefetch: p.cfg.PrefetchDistance})
	p.tracker.succeed(direction)
	if direction == DirectionRefresh {
		p.anchor = nil
	}

	p.logger.Debug("load completed",
		zap.Stringer("request", req),
		zap.Int("items", len(res.page.Items)),
		zap.Int("evicted", evicted),
		zap.Int("window_items", p.window.Len()),
		zap.Duration("duration", res.duration),
	)
	p.metrics.RecordLoad(direction, resultSuccess, res.duration)
	p.metrics.RecordEviction(direction, evicted)

	p.publish()
	p.triggerGrowth()
}

func (p *Pager[K, T]) handleAnchor() {
	if p.takeAnchor() {
		p.triggerGrowth()
	}
}

// takeAnchor converts the latest reported position into window-absolute
// coordinates.
func (p *Pager[K, T]) takeAnchor() bool {
	p.anchorMu.Lock()
	position := p.pendingAnchor
	p.anchorMu.Unlock()

	if p.window.Len() == 0 {
		p.logger.Debug("ignoring anchor on empty window", zap.Int("position", position))
		return false
	}

	before, _ := p.window.placeholders(p.cfg.EnablePlaceholders)
	abs := p.window.Origin() + p.clampToWindow(position-before)
	p.anchor = &abs

	return true
}

// relativeAnchor returns the anchor as an item index into the current window.
func (p *Pager[K, T]) relativeAnchor() (int, bool) {
	if p.anchor == nil || p.window.Len() == 0 {
		return 0, false
	}

	return p.clampToWindow(*p.anchor - p.window.Origin()), true
}

func (p *Pager[K, T]) clampToWindow(position int) int {
	return max(0, min(position, p.window.Len()-1))
}

// triggerGrowth issues prepend and append loads the current anchor asks for.
func (p *Pager[K, T]) triggerGrowth() {
	if p.tracker.status(DirectionRefresh) != StatusIdle {
		return
	}

	anchor, ok := p.relativeAnchor()
	if !ok {
		return
	}

	issued := false
	if anchor <= p.cfg.PrefetchDistance {
		issued = p.grow(DirectionPrepend) || issued
	}
	if p.window.Len()-1-anchor <= p.cfg.PrefetchDistance {
		issued = p.grow(DirectionAppend) || issued
	}

	if issued {
		p.publish()
	}
}

func (p *Pager[K, T]) boundaryKey(direction LoadDirection) *K {
	if direction == DirectionPrepend {
		return p.window.PrevKey()
	}

	return p.window.NextKey()
}

func (p *Pager[K, T]) grow(direction LoadDirection) bool {
	key := p.boundaryKey(direction)
	if key == nil || p.tracker.status(direction) != StatusIdle {
		return false
	}

	return p.startLoad(p.request(direction, key))
}

func (p *Pager[K, T]) handleRetry(direction LoadDirection) {
	req, ok := p.tracker.failedRequest(direction)
	if !ok {
		p.logger.Debug("nothing to retry", zap.String("direction", direction.String()))
		return
	}

	p.logger.Info("retrying load", zap.Stringer("request", req))
	p.startLoad(req)
	p.publish()
}

func (p *Pager[K, T]) handleRefresh() {
	if req, ok := p.tracker.inFlight(DirectionRefresh); ok {
		p.logger.Debug("refresh already in flight", zap.Stringer("request", req))
		return
	}

	// A report that raced the refresh command still counts.
	select {
	case <-p.anchorSignal:
		p.takeAnchor()
	default:
	}

	key := p.computeRefreshKey()

	p.generation++
	for _, direction := range []LoadDirection{DirectionPrepend, DirectionAppend} {
		if cancel := p.cancels[direction.index()]; cancel != nil {
			cancel()
			p.cancels[direction.index()] = nil
		}
		p.tracker.succeed(direction)
	}

	req := p.request(DirectionRefresh, key)
	p.logger.Info("refreshing", zap.Stringer("request", req))
	p.startLoad(req)
	p.publish()
}

func (p *Pager[K, T]) computeRefreshKey() *K {
	if p.window.IsEmpty() {
		return p.initialKey
	}

	var anchor *int
	if rel, ok := p.relativeAnchor(); ok {
		anchor = &rel
	}

	return p.refreshKey(p.window.state(anchor))
}

func (p *Pager[K, T]) loadStates() CombinedLoadStates {
	started := !p.window.IsEmpty()

	return CombinedLoadStates{
		Refresh: p.tracker.state(DirectionRefresh, false),
		Prepend: p.tracker.state(DirectionPrepend, started && p.window.PrevKey() == nil),
		Append:  p.tracker.state(DirectionAppend, started && p.window.NextKey() == nil),
	}
}

// publish builds a snapshot from the current state and hands it to
// subscribers. Called only from the run loop or before it starts.
func (p *Pager[K, T]) publish() {
	before, after := p.window.placeholders(p.cfg.EnablePlaceholders)
	snap := Snapshot[T]{
		Entries:            p.window.Entries(p.cfg.EnablePlaceholders),
		LoadState:          p.loadStates(),
		placeholdersBefore: before,
		placeholdersAfter:  after,
	}

	p.mu.Lock()
	snap.Version = p.snapshot.Version + 1
	p.snapshot = snap
	for _, sub := range p.subscribers {
		sub.offer(snap)
	}
	p.mu.Unlock()

	p.metrics.SetWindowItems(p.window.Len())
}
