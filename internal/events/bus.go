// Package events carries trading lifecycle notifications from the decision
// loops to the API layer without an import cycle.
package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTradeOpened     EventType = "TRADE_OPENED"
	EventTradeClosed     EventType = "TRADE_CLOSED"
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventPositionUpdate  EventType = "POSITION_UPDATE"
	EventReconcile       EventType = "RECONCILE_CONFLICT"
	EventBotStarted      EventType = "BOT_STARTED"
	EventBotStopped      EventType = "BOT_STOPPED"
	EventError           EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Market    string                 `json:"market"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Delivery is asynchronous so a
// slow subscriber cannot stall a trading loop.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishTradeOpened publishes a trade opened event
func (eb *EventBus) PublishTradeOpened(market, symbol, side string, entryPrice, quantity float64) {
	eb.Publish(Event{
		Type:   EventTradeOpened,
		Market: market,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"side":        side,
			"entry_price": entryPrice,
			"quantity":    quantity,
		},
	})
}

// PublishTradeClosed publishes a trade closed event
func (eb *EventBus) PublishTradeClosed(market, symbol, reason string, entryPrice, exitPrice, quantity float64) {
	eb.Publish(Event{
		Type:   EventTradeClosed,
		Market: market,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"reason":      reason,
			"entry_price": entryPrice,
			"exit_price":  exitPrice,
			"quantity":    quantity,
		},
	})
}

// PublishSignal publishes a signal generated event
func (eb *EventBus) PublishSignal(market, symbol, signalType string, satisfied, total int, reasons []string) {
	eb.Publish(Event{
		Type:   EventSignalGenerated,
		Market: market,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"signal_type": signalType,
			"satisfied":   satisfied,
			"total":       total,
			"reasons":     reasons,
		},
	})
}

// PublishReconcileConflict publishes a reconciliation conflict event
func (eb *EventBus) PublishReconcileConflict(market, symbol, conflict string) {
	eb.Publish(Event{
		Type:   EventReconcile,
		Market: market,
		Data: map[string]interface{}{
			"symbol":   symbol,
			"conflict": conflict,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(market, source string, err error) {
	data := map[string]interface{}{
		"source": source,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type:   EventError,
		Market: market,
		Data:   data,
	})
}
