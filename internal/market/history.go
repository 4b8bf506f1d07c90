package market

import "gamekey-market-api/internal/model"

// History is the per-buyer record of delivered game keys, append-only and
// in delivery order. Not goroutine-safe: the engine serializes all access.
type History struct {
	purchases map[string][]model.Purchase
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{purchases: make(map[string][]model.Purchase)}
}

// Append records a delivered purchase for its buyer.
func (h *History) Append(p model.Purchase) {
	h.purchases[p.Buyer] = append(h.purchases[p.Buyer], p)
}

// For returns buyer's purchases in delivery order. The returned slice is
// a copy.
func (h *History) For(buyer string) []model.Purchase {
	records := h.purchases[buyer]
	out := make([]model.Purchase, len(records))
	copy(out, records)
	return out
}

// Len returns the total number of recorded purchases.
func (h *History) Len() int {
	n := 0
	for _, records := range h.purchases {
		n += len(records)
	}
	return n
}
