package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gamekey-market-api/internal/model"
)

// MemoryMarketRepository implements MarketRepository with in-process maps.
// Used in tests and for throwaway development runs; nothing survives the
// process.
type MemoryMarketRepository struct {
	mu        sync.Mutex
	listings  map[uint64]model.ListingUnit
	balances  map[string]int64
	purchases map[uint64]model.Purchase
	payouts   map[string]model.Payout
}

// NewMemoryMarketRepository creates an empty in-memory repository.
func NewMemoryMarketRepository() *MemoryMarketRepository {
	return &MemoryMarketRepository{
		listings:  make(map[uint64]model.ListingUnit),
		balances:  make(map[string]int64),
		purchases: make(map[uint64]model.Purchase),
		payouts:   make(map[string]model.Payout),
	}
}

// Load returns the full state, listings and purchases ordered by ID.
func (r *MemoryMarketRepository) Load(ctx context.Context) (model.MarketState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var state model.MarketState
	for _, unit := range r.listings {
		state.Listings = append(state.Listings, unit)
	}
	sort.Slice(state.Listings, func(i, j int) bool {
		return state.Listings[i].ID < state.Listings[j].ID
	})

	for account, amount := range r.balances {
		state.Balances = append(state.Balances, model.Balance{Account: account, Amount: amount})
	}
	sort.Slice(state.Balances, func(i, j int) bool {
		return state.Balances[i].Account < state.Balances[j].Account
	})

	for _, p := range r.purchases {
		state.Purchases = append(state.Purchases, p)
	}
	sort.Slice(state.Purchases, func(i, j int) bool {
		return state.Purchases[i].ID < state.Purchases[j].ID
	})

	return state, nil
}

// Apply commits a change set. The mutex makes the whole set atomic with
// respect to Load.
func (r *MemoryMarketRepository) Apply(ctx context.Context, cs ChangeSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range cs.RemoveListings {
		if _, ok := r.listings[id]; !ok {
			return fmt.Errorf("remove listing %d: not found", id)
		}
		delete(r.listings, id)
	}
	for _, unit := range cs.AddListings {
		r.listings[unit.ID] = unit
	}
	for _, b := range cs.SetBalances {
		if b.Amount == 0 {
			delete(r.balances, b.Account)
		} else {
			r.balances[b.Account] = b.Amount
		}
	}
	for _, p := range cs.AddPurchases {
		r.purchases[p.ID] = p
	}
	for _, p := range cs.AddPayouts {
		r.payouts[p.ID] = p
	}
	for _, ps := range cs.SetPayouts {
		payout, ok := r.payouts[ps.ID]
		if !ok {
			return fmt.Errorf("set payout %s: not found", ps.ID)
		}
		payout.Status = ps.Status
		r.payouts[ps.ID] = payout
	}
	return nil
}

// Stats returns record counts.
func (r *MemoryMarketRepository) Stats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]interface{}{
		"listings":  len(r.listings),
		"balances":  len(r.balances),
		"purchases": len(r.purchases),
		"payouts":   len(r.payouts),
	}, nil
}

// Close is a no-op.
func (r *MemoryMarketRepository) Close() error { return nil }

// Payout returns a stored payout row, for tests.
func (r *MemoryMarketRepository) Payout(id string) (model.Payout, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[id]
	return p, ok
}

// Ensure MemoryMarketRepository implements MarketRepository
var _ MarketRepository = (*MemoryMarketRepository)(nil)
