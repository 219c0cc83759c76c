package events

import "github.com/kelindar/event"

// SSETypes maps the event names sent on the events stream to their payloads.
func SSETypes() map[string]any {
	return map[string]any{
		"camera-state-changed": CameraStateChangedEvent{},
		"camera-registered":    CameraRegisteredEvent{},
		"camera-stopped":       CameraStoppedEvent{},
		"viewer-changed":       ViewerChangedEvent{},
		"camera-metrics":       CameraMetricsEvent{},
	}
}

// Feed subscribes to every camera event type and merges them into one
// channel of the given capacity. The publisher never blocks: events are
// dropped while the channel is full. Call the returned function to
// unsubscribe; the channel is not closed. A nil Bus yields a silent feed.
func (b *Bus) Feed(size int) (<-chan Event, func()) {
	ch := make(chan Event, size)
	if b == nil {
		return ch, func() {}
	}
	unsubs := []func(){
		forward[CameraStateChangedEvent](b, ch),
		forward[CameraRegisteredEvent](b, ch),
		forward[CameraStoppedEvent](b, ch),
		forward[ViewerChangedEvent](b, ch),
		forward[CameraMetricsEvent](b, ch),
	}
	return ch, func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func forward[T Event](b *Bus, ch chan<- Event) func() {
	return event.Subscribe(b.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
