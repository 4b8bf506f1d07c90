package events

import (
	"log"
	"sync"
	"time"

	"gamekey-market-api/pkg/uid"
)

// EventType labels what happened.
type EventType string

const (
	EventKeyListed        EventType = "key_listed"
	EventListingUpdated   EventType = "listing_updated"
	EventListingCancelled EventType = "listing_cancelled"
	EventKeySold          EventType = "key_sold"
	EventPayoutSent       EventType = "payout_sent"
	EventPayoutFailed     EventType = "payout_failed"
)

// Event carries a typed payload emitted after a completed market operation.
// Delivered keys are never included in event payloads.
type Event struct {
	Type      EventType      `json:"type"`
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// Emit assigns the event an ID and timestamp and delivers it to all
// subscribers for its type synchronously. Each handler is guarded by
// panic recovery so a misbehaving subscriber cannot take down a market
// operation that already committed.
func (e *Emitter) Emit(ev Event) {
	if ev.ID == "" {
		ev.ID = uid.New()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[events] handler panicked for %s: %v", ev.Type, r)
				}
			}()
			h(ev)
		}()
	}
}
