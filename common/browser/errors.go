package browser

import (
	"context"
	"errors"
)

var (
	// ErrStaleHandle is returned when an element handle was invalidated by navigation
	ErrStaleHandle = errors.New("stale element handle")

	// ErrStaleContext is returned when the document or frame behind a handle is gone
	ErrStaleContext = errors.New("stale rendering context")

	// ErrContextNotFound is returned when a named embedded document does not exist
	ErrContextNotFound = errors.New("rendering context not found")

	// ErrUnsupportedScript is returned by sessions that cannot evaluate a script
	ErrUnsupportedScript = errors.New("script evaluation not supported")
)

// IsStale reports whether err means a handle or context must be re-acquired
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleHandle) || errors.Is(err, ErrStaleContext)
}

// IsCanceled reports whether err came from the caller's context
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
