package store

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/bool64/ctxd"
	"github.com/puzpuzpuz/xsync/v3"
)

// TLRUConfig configures a TLRU store.
type TLRUConfig struct {
	// Name is added to log messages.
	Name string

	// MaxCost is the total capacity of the store, default 1024. Each
	// entry's cost comes from SizeOf.
	MaxCost int

	// SizeOf computes the cost of one value. Default: every entry costs 1,
	// making MaxCost a plain entry count.
	SizeOf func(value any) int

	// TTU computes each entry's absolute expiry at write time. Nil means
	// entries never expire.
	TTU TTU

	// Clock overrides time.Now, for tests.
	Clock func() time.Time

	// Logger collects messages with context.
	Logger ctxd.Logger
}

// TLRUStats is a snapshot of store counters.
type TLRUStats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
	Rejections  int64
}

type tlruEntry struct {
	key       string
	value     any
	cost      int
	expiresAt time.Time
}

// TLRU is a time-aware least-recently-used store. Expiry is lazy: an
// expired entry is dropped on the read or write that finds it. Writes that
// exceed capacity evict expired entries first, then least-recently-used
// ones.
type TLRU struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	ll      *list.List // front = most recently used
	used    int
	cfg     TLRUConfig
	log     ctxd.Logger

	hits        *xsync.Counter
	misses      *xsync.Counter
	evictions   *xsync.Counter
	expirations *xsync.Counter
	rejections  *xsync.Counter
}

// NewTLRU creates a TLRU store.
func NewTLRU(cfg TLRUConfig) *TLRU {
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = 1024
	}
	if cfg.SizeOf == nil {
		cfg.SizeOf = func(any) int { return 1 }
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = ctxd.NoOpLogger{}
	}

	return &TLRU{
		entries:     make(map[string]*list.Element),
		ll:          list.New(),
		cfg:         cfg,
		log:         cfg.Logger,
		hits:        xsync.NewCounter(),
		misses:      xsync.NewCounter(),
		evictions:   xsync.NewCounter(),
		expirations: xsync.NewCounter(),
		rejections:  xsync.NewCounter(),
	}
}

// Get returns the fresh value for key, or (nil, false) on miss or expiry.
func (s *TLRU) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		s.misses.Inc()
		return nil, false
	}
	en := el.Value.(*tlruEntry)
	if s.expired(en) {
		s.removeElement(el)
		s.expirations.Inc()
		s.misses.Inc()
		return nil, false
	}
	s.ll.MoveToFront(el)
	s.hits.Inc()
	return en.value, true
}

// Set stores value under key, evicting as needed. A value whose cost
// exceeds the whole capacity is rejected with ErrValueTooLarge and the
// store is left unchanged.
func (s *TLRU) Set(key string, value any) error {
	cost := s.cfg.SizeOf(value)
	if cost > s.cfg.MaxCost {
		s.rejections.Inc()
		s.log.Warn(context.Background(), "value rejected by admission policy",
			"name", s.cfg.Name, "key", key, "cost", cost, "maxCost", s.cfg.MaxCost)
		return ErrValueTooLarge
	}

	now := s.cfg.Clock()
	var expiresAt time.Time
	if s.cfg.TTU != nil {
		expiresAt = s.cfg.TTU(key, value, now)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.removeElement(el)
	}
	for s.used+cost > s.cfg.MaxCost {
		s.evictOne()
	}
	el := s.ll.PushFront(&tlruEntry{key: key, value: value, cost: cost, expiresAt: expiresAt})
	s.entries[key] = el
	s.used += cost

	return nil
}

// Delete removes key. Idempotent.
func (s *TLRU) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.removeElement(el)
	}
}

// Keys returns the keys of all fresh entries, most recently used first.
func (s *TLRU) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for el := s.ll.Front(); el != nil; el = el.Next() {
		en := el.Value.(*tlruEntry)
		if s.expired(en) {
			continue
		}
		keys = append(keys, en.key)
	}
	return keys
}

// Clear removes all entries.
func (s *TLRU) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*list.Element)
	s.ll.Init()
	s.used = 0
}

// Len returns the number of stored entries, counting not-yet-collected
// expired ones.
func (s *TLRU) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Stats returns a snapshot of the store counters.
func (s *TLRU) Stats() TLRUStats {
	return TLRUStats{
		Hits:        s.hits.Value(),
		Misses:      s.misses.Value(),
		Evictions:   s.evictions.Value(),
		Expirations: s.expirations.Value(),
		Rejections:  s.rejections.Value(),
	}
}

func (s *TLRU) expired(en *tlruEntry) bool {
	return !en.expiresAt.IsZero() && !s.cfg.Clock().Before(en.expiresAt)
}

// evictOne drops one entry to reclaim capacity: the first expired entry
// scanning from the LRU end, or the LRU entry when none has expired.
// Callers hold s.mu.
func (s *TLRU) evictOne() {
	for el := s.ll.Back(); el != nil; el = el.Prev() {
		if s.expired(el.Value.(*tlruEntry)) {
			s.removeElement(el)
			s.expirations.Inc()
			return
		}
	}
	if el := s.ll.Back(); el != nil {
		s.removeElement(el)
		s.evictions.Inc()
	}
}

// removeElement unlinks an entry. Callers hold s.mu.
func (s *TLRU) removeElement(el *list.Element) {
	en := el.Value.(*tlruEntry)
	s.ll.Remove(el)
	delete(s.entries, en.key)
	s.used -= en.cost
}

// Ensure TLRU implements Store.
var _ Store = (*TLRU)(nil)
