package memo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bool64/ctxd"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/memoflight/keyer"
	"github.com/jonwraymond/memoflight/store"
)

// Func is the computation being memoized. It receives the call's arguments
// bound against the declared signature. For memoization to be meaningful it
// must be safe to run at most once per unique argument key; that is the
// caller's responsibility and is not enforced.
type Func[T any] func(ctx context.Context, call keyer.Bound) (T, error)

// Config configures a Cached function.
type Config[T any] struct {
	// Name is added to logs and events.
	Name string

	// Store holds completed and in-flight computations. Nil disables
	// caching entirely: calls bind their arguments and execute directly.
	Store store.Store

	// Keyer derives cache keys from call arguments. Required.
	Keyer *keyer.Deriver

	// Observer receives hit/miss/join/error events, default no-op.
	Observer Observer

	// Tracer wraps each producer execution in a span, default no-op.
	// Hits and joins are not traced.
	Tracer trace.Tracer

	// Logger collects messages with context.
	Logger ctxd.Logger

	// CacheErrors retains failed and cancelled computations in the store
	// until eviction, replaying the same error to every later lookup.
	// Default false: a terminal failure is removed immediately so the
	// next call retries.
	CacheErrors bool

	// Lock is accepted for interface compatibility only. Per-key
	// serialization inside the coordinator is the only concurrency
	// control; supplying a lock fails with ErrUnsupportedLock.
	Lock sync.Locker

	// Info is accepted for interface compatibility only. Hit-rate
	// accounting is not part of the contract; requesting it fails with
	// ErrUnsupportedInfo.
	Info bool
}

// Cached memoizes an asynchronous function with call coalescing.
//
// Lookup, join and publish for one key are atomic with respect to other
// callers of the same Cached instance, so between two states where the
// store holds nothing for a key at most one producer runs.
type Cached[T any] struct {
	fn    Func[T]
	cfg   Config[T]
	log   ctxd.Logger
	obs   Observer
	trace tracing

	// mu makes check-then-publish atomic. The store is only written by
	// this Cached instance.
	mu sync.Mutex
}

// New decorates fn with caching per cfg.
//
// Unsupported options (Lock, Info) are rejected here, at decoration time,
// never deferred to call time.
func New[T any](fn Func[T], cfg Config[T]) (*Cached[T], error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	if cfg.Lock != nil {
		return nil, ErrUnsupportedLock
	}
	if cfg.Info {
		return nil, ErrUnsupportedInfo
	}
	if cfg.Keyer == nil {
		return nil, ErrNilKeyer
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = ctxd.NoOpLogger{}
	}

	return &Cached[T]{
		fn:    fn,
		cfg:   cfg,
		log:   cfg.Logger,
		obs:   cfg.Observer,
		trace: newTracing(cfg.Name, cfg.Tracer),
	}, nil
}

// Call invokes the cached function with positional arguments.
func (c *Cached[T]) Call(ctx context.Context, args ...any) (T, error) {
	return c.CallKw(ctx, args, nil)
}

// CallKw invokes the cached function with positional and keyword arguments.
//
// The result is a completed cached value, the outcome of an in-flight
// computation started by another caller, or the outcome of a computation
// started here. Cancelling ctx abandons this caller's wait only; a
// computation in flight keeps running for its other waiters and for the
// cache. Binding errors always propagate.
func (c *Cached[T]) CallKw(ctx context.Context, args []any, kwargs map[string]any) (T, error) {
	var zero T

	bound, err := c.cfg.Keyer.Bind(args, kwargs)
	if err != nil {
		return zero, err
	}

	if c.cfg.Store == nil {
		return c.fn(ctx, bound)
	}

	key, err := c.cfg.Keyer.Key(bound)
	if err != nil {
		return zero, err
	}

	c.mu.Lock()
	if v, ok := c.cfg.Store.Get(string(key)); ok {
		if f, ok := v.(*flight[T]); ok {
			switch {
			case !f.terminal():
				c.mu.Unlock()
				c.emit(EventJoin, key, nil)
				return f.wait(ctx)
			case f.err == nil:
				c.mu.Unlock()
				c.emit(EventHit, key, nil)
				return f.value, nil
			case c.cfg.CacheErrors:
				// Terminal failure retained until eviction: replay it.
				c.mu.Unlock()
				c.emit(EventError, key, f.err)
				return zero, f.err
			}
		}
		// Terminal failure pending removal, or a value this instance did
		// not write. Treat as absent.
		c.cfg.Store.Delete(string(key))
	}

	f := newFlight[T]()
	// Published before the producer completes so concurrent callers join
	// instead of re-executing.
	if err := c.cfg.Store.Set(string(key), f); err != nil {
		if !errors.Is(err, store.ErrValueTooLarge) {
			c.mu.Unlock()
			return zero, err
		}
		// Admission rejected: the computation proceeds and its result is
		// still returned, it is just not retained.
		c.emit(EventRejected, key, err)
		c.log.Warn(ctx, "cache admission rejected in-flight computation",
			"name", c.cfg.Name, "key", key, "error", err)
	}
	c.mu.Unlock()

	c.emit(EventMiss, key, nil)
	go c.produce(context.WithoutCancel(ctx), key, f, bound)

	return f.wait(ctx)
}

// produce runs the computation on a context detached from the originating
// caller and propagates the terminal outcome into the shared flight.
func (c *Cached[T]) produce(ctx context.Context, key keyer.Key, f *flight[T], bound keyer.Bound) {
	ctx, span := c.trace.start(ctx, key)

	value, err := c.fn(ctx, bound)
	if err == nil {
		c.trace.end(span, nil)
		f.complete(value, nil)
		return
	}

	event := EventError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", ErrCancelled, err)
		event = EventCancelled
	}
	c.trace.end(span, err)

	if !c.cfg.CacheErrors {
		// Drop the failed flight before completing it so a caller racing
		// this removal either joins the failure or starts a fresh run,
		// never both.
		c.mu.Lock()
		c.cfg.Store.Delete(string(key))
		c.mu.Unlock()
	}

	var zero T
	f.complete(zero, err)
	c.emit(event, key, err)
	c.log.Warn(ctx, "cached computation failed",
		"name", c.cfg.Name, "key", key, "error", err)
}

// CacheClear removes all entries synchronously. Calls issued after it
// returns re-execute; computations already joined still observe their
// original outcome.
func (c *Cached[T]) CacheClear() {
	if c.cfg.Store == nil {
		return
	}
	c.mu.Lock()
	c.cfg.Store.Clear()
	c.mu.Unlock()
}

// Store exposes the associated store for diagnostics.
func (c *Cached[T]) Store() store.Store { return c.cfg.Store }

// Keyer exposes the associated key deriver for diagnostics.
func (c *Cached[T]) Keyer() *keyer.Deriver { return c.cfg.Keyer }

func (c *Cached[T]) emit(event Event, key keyer.Key, err error) {
	c.obs.On(EventData{Event: event, Name: c.cfg.Name, Key: key, Err: err})
}
