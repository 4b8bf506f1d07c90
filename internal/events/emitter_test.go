package events

import "testing"

func TestEmitterDeliversToSubscribers(t *testing.T) {
	e := NewEmitter()

	var got []Event
	e.Subscribe(EventKeySold, func(ev Event) { got = append(got, ev) })
	e.Subscribe(EventKeySold, func(ev Event) { got = append(got, ev) })
	e.Subscribe(EventKeyListed, func(ev Event) {
		t.Error("handler for a different type must not fire")
	})

	e.Emit(Event{Type: EventKeySold, Data: map[string]any{"game_id": int64(1)}})

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	if got[0].ID == "" || got[0].Timestamp.IsZero() {
		t.Fatalf("emit must assign id and timestamp: %+v", got[0])
	}
	if got[0].Data["game_id"].(int64) != 1 {
		t.Fatalf("payload lost: %+v", got[0].Data)
	}
}

func TestEmitterRecoversPanickingHandler(t *testing.T) {
	e := NewEmitter()

	fired := false
	e.Subscribe(EventPayoutSent, func(Event) { panic("bad subscriber") })
	e.Subscribe(EventPayoutSent, func(Event) { fired = true })

	e.Emit(Event{Type: EventPayoutSent})

	if !fired {
		t.Fatal("panic in one handler must not stop delivery to the next")
	}
}

func TestEmitterNoSubscribers(t *testing.T) {
	e := NewEmitter()
	// Must not panic.
	e.Emit(Event{Type: EventListingCancelled})
}
