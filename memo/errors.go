package memo

import "errors"

// Sentinel errors for decoration and shared computations.
var (
	// Decoration errors, surfaced synchronously by New.
	ErrNilFunc         = errors.New("memo: nil function")
	ErrNilKeyer        = errors.New("memo: nil keyer")
	ErrUnsupportedLock = errors.New("memo: external locks are not supported")
	ErrUnsupportedInfo = errors.New("memo: hit-rate info is not supported")

	// ErrCancelled marks a computation that was cancelled by its own
	// runtime rather than failing. Every joiner of that computation
	// observes it; a joiner's local cancellation surfaces as the joiner's
	// own ctx.Err() instead.
	ErrCancelled = errors.New("memo: computation cancelled")
)
