package repository

import (
	"context"

	"gamekey-market-api/internal/model"
)

// PayoutStatus resolves a pending payout row.
type PayoutStatus struct {
	ID     string
	Status string
}

// ChangeSet is the set of writes produced by one engine operation. A
// backend applies the whole set atomically or not at all; partial
// application would break value conservation. Listing relocations are
// expressed as remove+add under a fresh ID so that persisted ID order
// always equals live queue order.
type ChangeSet struct {
	AddListings    []model.ListingUnit
	RemoveListings []uint64
	SetBalances    []model.Balance
	AddPurchases   []model.Purchase
	AddPayouts     []model.Payout
	SetPayouts     []PayoutStatus
}

// Empty reports whether the change set contains no writes.
func (cs ChangeSet) Empty() bool {
	return len(cs.AddListings) == 0 && len(cs.RemoveListings) == 0 &&
		len(cs.SetBalances) == 0 && len(cs.AddPurchases) == 0 &&
		len(cs.AddPayouts) == 0 && len(cs.SetPayouts) == 0
}

// MarketRepository persists the market engine's state.
type MarketRepository interface {
	// Load returns the full persisted state, listings and purchases
	// ordered by ID.
	Load(ctx context.Context) (model.MarketState, error)

	// Apply commits a change set atomically.
	Apply(ctx context.Context, cs ChangeSet) error

	// Stats returns statistics about the backing store.
	Stats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the repository connection.
	Close() error
}
