package store

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// GoCacheConfig configures a GoCache store.
type GoCacheConfig struct {
	// TTU computes each entry's absolute expiry at write time. Nil means
	// entries never expire.
	TTU TTU

	// CleanupInterval is how often expired entries are purged in the
	// background, default 1 minute.
	CleanupInterval time.Duration

	// Clock overrides time.Now when converting the TTU result to an entry
	// duration at write time. Reads are checked against the wall clock by
	// go-cache itself, so an injected clock cannot fake expiry on Get; use
	// TLRU when tests need to control read-side expiry.
	Clock func() time.Time
}

// GoCache adapts patrickmn/go-cache to the Store contract. The TTU result
// is converted to a per-entry duration at write time. There is no capacity
// admission policy, so Set never rejects.
type GoCache struct {
	c     *gocache.Cache
	ttu   TTU
	clock func() time.Time
}

// NewGoCache creates a go-cache backed store.
func NewGoCache(cfg GoCacheConfig) *GoCache {
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &GoCache{
		c:     gocache.New(gocache.NoExpiration, cfg.CleanupInterval),
		ttu:   cfg.TTU,
		clock: cfg.Clock,
	}
}

// Get returns the fresh value for key, or (nil, false) on miss or expiry.
func (s *GoCache) Get(key string) (any, bool) {
	return s.c.Get(key)
}

// Set stores value under key with an expiry computed from the TTU.
// An entry whose TTU is already in the past is not stored.
func (s *GoCache) Set(key string, value any) error {
	d := gocache.NoExpiration
	if s.ttu != nil {
		now := s.clock()
		if expiresAt := s.ttu(key, value, now); !expiresAt.IsZero() {
			d = expiresAt.Sub(now)
			if d <= 0 {
				s.c.Delete(key)
				return nil
			}
		}
	}
	s.c.Set(key, value, d)
	return nil
}

// Delete removes key. Idempotent.
func (s *GoCache) Delete(key string) {
	s.c.Delete(key)
}

// Keys returns the keys of all fresh entries.
func (s *GoCache) Keys() []string {
	items := s.c.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	return keys
}

// Clear removes all entries.
func (s *GoCache) Clear() {
	s.c.Flush()
}

// Ensure GoCache implements Store.
var _ Store = (*GoCache)(nil)
