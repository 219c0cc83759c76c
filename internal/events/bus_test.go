package events

import (
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan CameraStateChangedEvent, 1)

	unsub := bus.Subscribe(func(e CameraStateChangedEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(CameraStateChangedEvent{
		CameraID: "front",
		OldState: "connecting",
		NewState: "streaming",
	})

	select {
	case got := <-received:
		if got.CameraID != "front" || got.NewState != "streaming" {
			t.Errorf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := New()
	r1 := make(chan ViewerChangedEvent, 1)
	r2 := make(chan ViewerChangedEvent, 1)

	defer bus.Subscribe(func(e ViewerChangedEvent) { r1 <- e })()
	defer bus.Subscribe(func(e ViewerChangedEvent) { r2 <- e })()

	bus.Publish(ViewerChangedEvent{CameraID: "yard", Action: "attached", Viewers: 1})

	for i, ch := range []chan ViewerChangedEvent{r1, r2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive event", i+1)
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan CameraStoppedEvent, 1)

	unsub := bus.Subscribe(func(e CameraStoppedEvent) { received <- e })
	bus.Publish(CameraStoppedEvent{CameraID: "a"})
	<-received

	unsub()

	bus.Publish(CameraStoppedEvent{CameraID: "b"})
	select {
	case <-received:
		t.Fatal("should not receive events after unsubscribe")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()
	stateCh := make(chan struct{}, 1)
	regCh := make(chan struct{}, 1)

	defer bus.Subscribe(func(CameraStateChangedEvent) { stateCh <- struct{}{} })()
	defer bus.Subscribe(func(CameraRegisteredEvent) { regCh <- struct{}{} })()

	bus.Publish(CameraRegisteredEvent{CameraID: "front"})
	<-regCh

	select {
	case <-stateCh:
		t.Fatal("state subscriber received a registration event")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_UnknownHandlerIsNoop(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestBus_NilPublish(t *testing.T) {
	var bus *Bus
	bus.Publish(CameraStoppedEvent{CameraID: "x"})
}

func TestFeed_DropsWhenFull(t *testing.T) {
	bus := New()
	feed, unsubscribe := bus.Feed(1)
	defer unsubscribe()

	bus.Publish(CameraMetricsEvent{CameraID: "1"})
	deadline := time.After(time.Second)
	for len(feed) == 0 {
		select {
		case <-deadline:
			t.Fatal("first event not delivered")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	bus.Publish(CameraStoppedEvent{CameraID: "2"})
	time.Sleep(20 * time.Millisecond)

	got, ok := (<-feed).(CameraMetricsEvent)
	if !ok || got.CameraID != "1" {
		t.Errorf("got %+v, want the first event", got)
	}
}

func TestFeed_MergesTypesUntilUnsubscribed(t *testing.T) {
	bus := New()
	feed, unsubscribe := bus.Feed(8)

	bus.Publish(CameraRegisteredEvent{CameraID: "front"})
	bus.Publish(ViewerChangedEvent{CameraID: "front", Viewers: 1})

	seen := map[uint32]bool{}
	timeout := time.After(time.Second)
	for len(seen) < 2 {
		select {
		case ev := <-feed:
			seen[ev.Type()] = true
		case <-timeout:
			t.Fatalf("received %v, want registered and viewer events", seen)
		}
	}

	unsubscribe()
	bus.Publish(CameraStoppedEvent{CameraID: "front"})
	time.Sleep(20 * time.Millisecond)
	if len(feed) != 0 {
		t.Error("event delivered after unsubscribe")
	}
}

func TestSSETypesCoverEveryEvent(t *testing.T) {
	types := map[uint32]bool{}
	for name, payload := range SSETypes() {
		ev, ok := payload.(Event)
		if !ok {
			t.Fatalf("%s payload %T is not an Event", name, payload)
		}
		types[ev.Type()] = true
	}
	for typ := TypeCameraStateChanged; typ <= TypeCameraMetrics; typ++ {
		if !types[typ] {
			t.Errorf("event type %d has no SSE name", typ)
		}
	}
}
