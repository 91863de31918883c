// Package memo turns an asynchronous computation into a cached,
// call-coalescing value producer.
//
// Concurrent callers that derive the same key share a single in-flight
// computation instead of racing redundant executions (singleflight). The
// shared computation runs detached from any one caller, so a caller that
// gives up waiting never corrupts the outcome observed by the others or by
// the cache. Results live in a keyed expiring store and are dropped once
// its time-to-use function marks them stale.
package memo
