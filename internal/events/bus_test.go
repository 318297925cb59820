package events

import (
	"testing"
	"time"
)

func waitFor(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
		return Event{}
	}
}

func TestPublishToTypeSubscriber(t *testing.T) {
	bus := NewEventBus()
	got := make(chan Event, 1)
	bus.Subscribe(EventTradeOpened, func(ev Event) { got <- ev })

	bus.PublishTradeOpened("linear", "BTCUSDT", "BUY", 100, 1)

	ev := waitFor(t, got)
	if ev.Market != "linear" || ev.Data["symbol"] != "BTCUSDT" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestPublishSkipsOtherTypes(t *testing.T) {
	bus := NewEventBus()
	got := make(chan Event, 1)
	bus.Subscribe(EventTradeClosed, func(ev Event) { got <- ev })

	bus.PublishTradeOpened("spot", "BTCUSDT", "BUY", 100, 1)

	select {
	case ev := <-got:
		t.Errorf("subscriber received foreign event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAllSeesEverything(t *testing.T) {
	bus := NewEventBus()
	got := make(chan Event, 2)
	bus.SubscribeAll(func(ev Event) { got <- ev })

	bus.PublishTradeOpened("linear", "BTCUSDT", "BUY", 100, 1)
	bus.PublishReconcileConflict("spot", "BTCUSDT", "stale record")

	seen := map[EventType]bool{}
	seen[waitFor(t, got).Type] = true
	seen[waitFor(t, got).Type] = true

	if !seen[EventTradeOpened] || !seen[EventReconcile] {
		t.Errorf("seen = %v", seen)
	}
}
