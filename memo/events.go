package memo

import "github.com/jonwraymond/memoflight/keyer"

// Event classifies one cache lookup outcome.
type Event int

const (
	// EventHit is emitted when a call returns a completed cached value.
	EventHit Event = iota
	// EventMiss is emitted when a call starts a new computation.
	EventMiss
	// EventJoin is emitted when a call attaches to a computation already
	// in flight.
	EventJoin
	// EventError is emitted when a computation fails.
	EventError
	// EventCancelled is emitted when a computation is cancelled by its
	// own runtime.
	EventCancelled
	// EventRejected is emitted when the store's admission policy refuses
	// a computed value. The caller still receives the value.
	EventRejected
)

func (e Event) String() string {
	switch e {
	case EventHit:
		return "hit"
	case EventMiss:
		return "miss"
	case EventJoin:
		return "join"
	case EventError:
		return "error"
	case EventCancelled:
		return "cancelled"
	case EventRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// EventData carries the details of one event.
type EventData struct {
	Event Event
	Name  string
	Key   keyer.Key
	Err   error
}

// Observer receives cache lifecycle events. Implementations must be safe
// for concurrent use and must not block.
type Observer interface {
	On(e EventData)
}

// NopObserver discards all events. It is the default sink.
type NopObserver struct{}

// On implements Observer.
func (NopObserver) On(EventData) {}
