// Package store provides keyed expiring storage for memoized values.
//
// Entries expire per a caller-supplied time-to-use function that maps
// (key, value, now) to an absolute expiry timestamp. TLRU is the primary
// implementation with cost-based capacity and LRU eviction; GoCache adapts
// patrickmn/go-cache to the same contract.
package store
