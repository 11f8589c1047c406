package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(PoolFailedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case WorkerStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case PoolFailedEvent:
		event.Publish(b.dispatcher, e)
	case FrameRenderedEvent:
		event.Publish(b.dispatcher, e)
	case ViewportChangedEvent:
		event.Publish(b.dispatcher, e)
	case PlaybackStateEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects the events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(WorkerStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PoolFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameRenderedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ViewportChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PlaybackStateEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// SubscribeToChannel bridges callback subscriptions to a channel for the SSE
// select loop. Events are dropped when the channel is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
