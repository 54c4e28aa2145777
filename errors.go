package flowpager

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is a stable classification of a Loader failure.
type ErrorKind string

const (
	// ErrorKindTransient backend hiccup. Retrying the same request is safe.
	ErrorKindTransient ErrorKind = "transient"
	// ErrorKindInvalidCursor the loader rejected the cursor. Retrying the same
	// request will fail again; a refresh is needed.
	ErrorKindInvalidCursor ErrorKind = "invalid_cursor"
	// ErrorKindCancelled the load was abandoned. Never surfaced to consumers.
	ErrorKindCancelled ErrorKind = "cancelled"
)

func (k ErrorKind) Retryable() bool {
	return k == ErrorKindTransient
}

var (
	ErrTransient     = errors.New("transient load failure")
	ErrInvalidCursor = errors.New("invalid cursor")
	ErrCancelled     = errors.New("load cancelled")

	ErrPagerClosed   = errors.New("pager is closed")
	ErrInvalidConfig = errors.New("invalid pager config")
)

// LoadError is a Loader failure annotated with its ErrorKind.
type LoadError struct {
	Kind  ErrorKind
	Cause error
}

func NewTransientError(cause error) error {
	return &LoadError{Kind: ErrorKindTransient, Cause: cause}
}

func NewInvalidCursorError(cause error) error {
	return &LoadError{Kind: ErrorKindInvalidCursor, Cause: cause}
}

// Error - implements error.
func (e *LoadError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s load error", e.Kind)
	}

	return fmt.Sprintf("%s load error: %v", e.Kind, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match a LoadError against the kind sentinels.
func (e *LoadError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Kind == ErrorKindTransient
	case ErrInvalidCursor:
		return e.Kind == ErrorKindInvalidCursor
	case ErrCancelled:
		return e.Kind == ErrorKindCancelled
	default:
		return false
	}
}

// KindOf classifies an arbitrary Loader error. Unknown errors are treated as
// transient so the consumer is offered a retry.
func KindOf(err error) ErrorKind {
	var loadErr *LoadError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &loadErr):
		return loadErr.Kind
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancelled):
		return ErrorKindCancelled
	case errors.Is(err, ErrInvalidCursor):
		return ErrorKindInvalidCursor
	default:
		return ErrorKindTransient
	}
}
