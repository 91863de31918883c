package store

import (
	"errors"
	"time"
)

// Sentinel errors for store admission.
var (
	// ErrValueTooLarge rejects a single entry whose cost exceeds the
	// store's total capacity. Callers that treat caching as optional
	// should swallow it; the computed value is still theirs to return.
	ErrValueTooLarge = errors.New("store: value exceeds capacity")
)

// TTU computes the absolute timestamp after which an entry must not be
// served (time-to-use). The zero time means the entry never expires.
//
// Contract:
// - Determinism is not required; the result is captured once per write.
// - Must not retain or mutate value.
type TTU func(key string, value any, now time.Time) time.Time

// TTL returns a TTU that expires every entry a fixed duration after it was
// written. A non-positive duration yields entries that never expire.
func TTL(d time.Duration) TTU {
	return func(_ string, _ any, now time.Time) time.Time {
		if d <= 0 {
			return time.Time{}
		}
		return now.Add(d)
	}
}

// Store is a mapping from key to value with store-internal freshness.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Get returns (nil, false) for absent and for expired entries; expired
//   entries are removed lazily on read.
// - Set returns ErrValueTooLarge when the entry is refused by the
//   admission policy; any other write simply succeeds, evicting older
//   entries as needed.
// - Delete is idempotent.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any) error
	Delete(key string)
	Keys() []string
	Clear()
}
