package flowpager

import "go.uber.org/zap"

type options[K comparable, T any] struct {
	logger     *zap.Logger
	metrics    *Metrics
	refreshKey RefreshKeyFunc[K, T]
}

// Option customizes a Pager.
type Option[K comparable, T any] func(*options[K, T])

// WithLogger sets the logger. Defaults to zap.NewNop().
func WithLogger[K comparable, T any](logger *zap.Logger) Option[K, T] {
	return func(o *options[K, T]) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables metrics recording.
func WithMetrics[K comparable, T any](metrics *Metrics) Option[K, T] {
	return func(o *options[K, T]) {
		o.metrics = metrics
	}
}

// WithRefreshKey overrides the refresh key policy. Takes precedence over a
// loader implementing RefreshKeyer.
func WithRefreshKey[K comparable, T any](fn RefreshKeyFunc[K, T]) Option[K, T] {
	return func(o *options[K, T]) {
		o.refreshKey = fn
	}
}
