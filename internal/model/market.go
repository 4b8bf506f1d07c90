package model

import "time"

// ListingUnit is one game key pending sale under a (game_id, price) group.
// The ID is assigned by the market engine and is strictly increasing, so
// FIFO order within a group survives a restart regardless of backend.
type ListingUnit struct {
	ID       uint64    `json:"id"`
	GameID   int64     `json:"game_id"`
	Price    int64     `json:"price"`
	Seller   string    `json:"seller"`
	Key      string    `json:"key"`
	ListedAt time.Time `json:"listed_at"`
}

// ListingGroup summarizes the pending units at one (game_id, price). The
// keys themselves are never exposed through queries.
type ListingGroup struct {
	GameID int64 `json:"game_id"`
	Price  int64 `json:"price"`
	Count  int   `json:"count"`
}

// Purchase is one delivered game key in a buyer's history.
type Purchase struct {
	ID       uint64    `json:"id"`
	Buyer    string    `json:"buyer"`
	GameID   int64     `json:"game_id"`
	Key      string    `json:"game_key"`
	Price    int64     `json:"price"`
	BoughtAt time.Time `json:"bought_at"`
}

// Balance is one seller's withdrawable escrow amount, in the smallest
// currency unit.
type Balance struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// Payout statuses. A payout row is written as pending while the escrow
// balance is zeroed, then resolved to sent or failed.
const (
	PayoutPending = "pending"
	PayoutSent    = "sent"
	PayoutFailed  = "failed"
)

// Payout records one withdrawal attempt.
type Payout struct {
	ID        string    `json:"id"`
	Account   string    `json:"account"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// MarketState is the full persisted engine state loaded at startup.
// Listings and Purchases are ordered by ID.
type MarketState struct {
	Listings  []ListingUnit
	Balances  []Balance
	Purchases []Purchase
}
