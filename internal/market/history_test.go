package market

import (
	"testing"

	"gamekey-market-api/internal/model"
)

func TestHistoryAppendOrder(t *testing.T) {
	h := NewHistory()
	h.Append(model.Purchase{ID: 1, Buyer: "bob", GameID: 7, Key: "K1", Price: 100})
	h.Append(model.Purchase{ID: 2, Buyer: "bob", GameID: 9, Key: "K2", Price: 200})
	h.Append(model.Purchase{ID: 3, Buyer: "carol", GameID: 7, Key: "K3", Price: 100})

	got := h.For("bob")
	if len(got) != 2 {
		t.Fatalf("expected 2 purchases for bob, got %d", len(got))
	}
	if got[0].Key != "K1" || got[1].Key != "K2" {
		t.Fatalf("delivery order broken: %q, %q", got[0].Key, got[1].Key)
	}
	if h.Len() != 3 {
		t.Fatalf("expected 3 total, got %d", h.Len())
	}
}

func TestHistoryForReturnsCopy(t *testing.T) {
	h := NewHistory()
	h.Append(model.Purchase{ID: 1, Buyer: "bob", GameID: 7, Key: "K1", Price: 100})

	first := h.For("bob")
	first[0].Key = "tampered"

	if got := h.For("bob")[0].Key; got != "K1" {
		t.Fatalf("internal record mutated through returned slice: %q", got)
	}
}

func TestHistoryUnknownBuyerEmpty(t *testing.T) {
	h := NewHistory()
	if got := h.For("nobody"); len(got) != 0 {
		t.Fatalf("expected empty history, got %d records", len(got))
	}
}
