package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. kelindar/event is generic over the
// event type, so Publish and Subscribe switch on the concrete types.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish delivers ev to the subscribers of its concrete type.
// A nil Bus drops the event.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case CameraStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case CameraRegisteredEvent:
		event.Publish(b.dispatcher, e)
	case CameraStoppedEvent:
		event.Publish(b.dispatcher, e)
	case ViewerChangedEvent:
		event.Publish(b.dispatcher, e)
	case CameraMetricsEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type in its signature and
// returns the unsubscribe function.
//
//	unsub := bus.Subscribe(func(e CameraStateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(CameraStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CameraRegisteredEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CameraStoppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ViewerChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CameraMetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
