package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Alp4ka/flowpager"
)

var errPagerStopped = errors.New("pager stopped publishing snapshots")

// scroll simulates a reader: it moves the anchor forward for the first half of
// the steps and backward for the second half, then refreshes.
func scroll(ctx context.Context, pager usersPager, cfg ScrollConfig, logger *zap.Logger) error {
	updates, unsubscribe := pager.Subscribe()
	defer unsubscribe()

	snap, err := settle(ctx, pager, updates, logger)
	if err != nil {
		return err
	}
	logSnapshot(logger, "initial load", snap)

	position := snap.PlaceholdersBefore()
	var (
		anchored user
		ok       bool
	)

	for step := 0; step < cfg.Steps; step++ {
		stride := lo.Ternary(step < cfg.Steps/2, cfg.Stride, -cfg.Stride)
		position = clamp(position+stride, snap.Len())
		anchored, ok = entryAt(snap, position)

		if err := pager.ReportAnchor(position); err != nil {
			return fmt.Errorf("report anchor: %w", err)
		}
		if err := sleep(ctx, cfg.Interval); err != nil {
			return err
		}

		if snap, err = settle(ctx, pager, updates, logger); err != nil {
			return err
		}
		if ok {
			position = reanchor(snap, anchored, position)
		}

		logSnapshot(logger, "scrolled", snap,
			zap.Int("step", step+1),
			zap.Int("anchor", position),
			zap.String("anchored", anchored.Name),
		)
	}

	if err := pager.Refresh(); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	if err := sleep(ctx, cfg.Interval); err != nil {
		return err
	}
	if snap, err = settle(ctx, pager, updates, logger); err != nil {
		return err
	}
	logSnapshot(logger, "refreshed", snap)

	return nil
}

// settle waits for a snapshot with no load in progress. Retryable failures are
// retried; a failed refresh or an invalid cursor ends the simulation.
func settle(ctx context.Context, pager usersPager, updates <-chan flowpager.Snapshot[user], logger *zap.Logger) (flowpager.Snapshot[user], error) {
	current := pager.Snapshot()
	for {
		if failed, ok := failedDirection(current.LoadState); ok {
			state := current.LoadState.Get(failed)
			if !state.ErrorKind.Retryable() {
				return current, fmt.Errorf("%s load failed: %w", failed, state.Err)
			}

			logger.Warn("Retrying failed load", zap.Stringer("direction", failed), zap.Error(state.Err))
			if err := pager.Retry(failed); err != nil {
				return current, fmt.Errorf("retry %s: %w", failed, err)
			}
		} else if current.LoadState.IsIdle() {
			return current, nil
		}

		select {
		case snap, ok := <-updates:
			if !ok {
				return current, errPagerStopped
			}
			if snap.Version > current.Version {
				current = snap
			}
		case <-ctx.Done():
			return current, ctx.Err()
		}
	}
}

func failedDirection(states flowpager.CombinedLoadStates) (flowpager.LoadDirection, bool) {
	return lo.Find([]flowpager.LoadDirection{
		flowpager.DirectionRefresh,
		flowpager.DirectionPrepend,
		flowpager.DirectionAppend,
	}, func(d flowpager.LoadDirection) bool {
		return states.Get(d).IsError()
	})
}

// reanchor finds the anchored user in a newer snapshot. Prepends shift
// positions, so the index alone is not stable across loads.
func reanchor(snap flowpager.Snapshot[user], anchored user, fallback int) int {
	_, idx, ok := lo.FindIndexOf(snap.Entries, func(e flowpager.Entry[user]) bool {
		return !e.Placeholder && e.Item.ID == anchored.ID
	})
	if !ok {
		return clamp(fallback, snap.Len())
	}

	return idx
}

func entryAt(snap flowpager.Snapshot[user], position int) (user, bool) {
	if position < 0 || position >= snap.Len() || snap.Entries[position].Placeholder {
		return user{}, false
	}

	return snap.Entries[position].Item, true
}

func clamp(position, length int) int {
	return lo.Clamp(position, 0, max(length-1, 0))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func logSnapshot(logger *zap.Logger, msg string, snap flowpager.Snapshot[user], fields ...zap.Field) {
	items := snap.Items()
	fields = append(fields,
		zap.Uint64("version", snap.Version),
		zap.Int("items", len(items)),
		zap.Int("placeholders_before", snap.PlaceholdersBefore()),
		zap.Int("placeholders_after", snap.PlaceholdersAfter()),
		zap.Stringer("refresh", snap.LoadState.Refresh),
		zap.Stringer("prepend", snap.LoadState.Prepend),
		zap.Stringer("append", snap.LoadState.Append),
	)
	if len(items) > 0 {
		fields = append(fields,
			zap.String("first", items[0].Name),
			zap.String("last", items[len(items)-1].Name),
		)
	}

	logger.Info(msg, fields...)
}
