package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"gamekey-market-api/internal/events"
	"gamekey-market-api/internal/market"
	"gamekey-market-api/internal/model"
	"gamekey-market-api/internal/payout"
	"gamekey-market-api/internal/repository"
	"gamekey-market-api/pkg/uid"
)

// MarketService is the marketplace engine. It owns all market state
// (listing book, escrow ledger, purchase history) and serializes every
// operation behind one mutex, so each public call is observed as
// indivisible. Mutating operations persist a change set through the
// repository before touching in-memory state; a failed persist leaves
// both untouched.
type MarketService struct {
	repo    repository.MarketRepository
	emitter *events.Emitter
	payer   payout.Provider

	mu      sync.Mutex
	book    *market.ListingBook
	ledger  *market.Ledger
	history *market.History
	nextID  uint64
}

// NewMarketService creates the engine and restores persisted state.
// payer may be nil, in which case withdrawals use the no-op provider.
func NewMarketService(
	ctx context.Context,
	repo repository.MarketRepository,
	emitter *events.Emitter,
	payer payout.Provider,
) (*MarketService, error) {
	if repo == nil {
		return nil, fmt.Errorf("market repository is required")
	}
	if emitter == nil {
		emitter = events.NewEmitter()
	}
	if payer == nil {
		payer = payout.Noop{}
	}

	s := &MarketService{
		repo:    repo,
		emitter: emitter,
		payer:   payer,
		book:    market.NewListingBook(),
		ledger:  market.NewLedger(),
		history: market.NewHistory(),
		nextID:  1,
	}

	state, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load market state: %w", err)
	}
	for _, unit := range state.Listings {
		s.book.Add(unit)
		if unit.ID >= s.nextID {
			s.nextID = unit.ID + 1
		}
	}
	for _, b := range state.Balances {
		s.ledger.Set(b.Account, b.Amount)
	}
	for _, p := range state.Purchases {
		s.history.Append(p)
		if p.ID >= s.nextID {
			s.nextID = p.ID + 1
		}
	}

	log.Printf("[MarketService] Restored %d listings, %d balances, %d purchases",
		len(state.Listings), len(state.Balances), len(state.Purchases))
	return s, nil
}

// ListGameKey lists one key under (gameID, price) for seller. The key
// content is accepted verbatim. Listing involves no payment.
func (s *MarketService) ListGameKey(ctx context.Context, seller, key string, gameID, price int64) error {
	if price <= 0 {
		return market.ErrInvalidPrice
	}

	s.mu.Lock()
	unit := model.ListingUnit{
		ID:       s.nextID,
		GameID:   gameID,
		Price:    price,
		Seller:   seller,
		Key:      key,
		ListedAt: time.Now().UTC(),
	}
	cs := repository.ChangeSet{AddListings: []model.ListingUnit{unit}}
	if err := s.repo.Apply(ctx, cs); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to persist listing: %w", err)
	}
	s.book.Add(unit)
	s.nextID++
	s.mu.Unlock()

	// Subscribers may block on I/O, so events go out after the lock is
	// released.
	s.emitter.Emit(events.Event{
		Type: events.EventKeyListed,
		Data: map[string]any{"game_id": gameID, "price": price, "seller": seller},
	})
	return nil
}

// UpdateListing moves the oldest unit at (gameID, oldPrice) to the
// newPrice group. The unit's seller and key are preserved; only one unit
// moves per call. Caller identity is not checked against the unit's
// seller.
func (s *MarketService) UpdateListing(ctx context.Context, gameID, oldPrice, newPrice int64) error {
	if newPrice <= 0 {
		return market.ErrInvalidPrice
	}

	s.mu.Lock()
	unit, ok := s.book.Peek(gameID, oldPrice)
	if !ok {
		s.mu.Unlock()
		return market.ErrNoListingFound
	}

	// The relocated unit takes a fresh ID so it persists behind every
	// unit already waiting at the new price. Backends restore queues in
	// ID order; reusing the old ID would put the unit back at its
	// original position after a restart.
	moved := unit
	moved.ID = s.nextID
	moved.Price = newPrice
	cs := repository.ChangeSet{
		RemoveListings: []uint64{unit.ID},
		AddListings:    []model.ListingUnit{moved},
	}
	if err := s.repo.Apply(ctx, cs); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to persist price update: %w", err)
	}
	s.book.Remove(gameID, oldPrice)
	s.book.Add(moved)
	s.nextID++
	s.mu.Unlock()

	s.emitter.Emit(events.Event{
		Type: events.EventListingUpdated,
		Data: map[string]any{"game_id": gameID, "old_price": oldPrice, "new_price": newPrice, "seller": unit.Seller},
	})
	return nil
}

// CancelListing removes the oldest unit at (gameID, price) without
// payment or delivery.
func (s *MarketService) CancelListing(ctx context.Context, gameID, price int64) error {
	s.mu.Lock()
	unit, ok := s.book.Peek(gameID, price)
	if !ok {
		s.mu.Unlock()
		return market.ErrNoListingFound
	}

	cs := repository.ChangeSet{RemoveListings: []uint64{unit.ID}}
	if err := s.repo.Apply(ctx, cs); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to persist cancellation: %w", err)
	}
	s.book.Remove(gameID, price)
	s.mu.Unlock()

	s.emitter.Emit(events.Event{
		Type: events.EventListingCancelled,
		Data: map[string]any{"game_id": gameID, "price": price, "seller": unit.Seller},
	})
	return nil
}

// BuyGameKey consumes the oldest unit at (gameID, price), credits the
// recorded seller's escrow and delivers the key to buyer. payment must
// equal price exactly. seller is defense-in-depth: it must match the
// consumed unit's recorded seller, which is the one actually credited.
func (s *MarketService) BuyGameKey(ctx context.Context, buyer, seller string, gameID, price, payment int64) (model.Purchase, error) {
	if payment != price {
		return model.Purchase{}, market.ErrIncorrectPayment
	}

	s.mu.Lock()
	unit, ok := s.book.Peek(gameID, price)
	if !ok {
		s.mu.Unlock()
		return model.Purchase{}, market.ErrNoListingFound
	}
	if seller != "" && seller != unit.Seller {
		s.mu.Unlock()
		return model.Purchase{}, market.ErrSellerMismatch
	}

	purchase := model.Purchase{
		ID:       s.nextID,
		Buyer:    buyer,
		GameID:   gameID,
		Key:      unit.Key,
		Price:    price,
		BoughtAt: time.Now().UTC(),
	}
	cs := repository.ChangeSet{
		RemoveListings: []uint64{unit.ID},
		SetBalances:    []model.Balance{{Account: unit.Seller, Amount: s.ledger.BalanceOf(unit.Seller) + price}},
		AddPurchases:   []model.Purchase{purchase},
	}
	if err := s.repo.Apply(ctx, cs); err != nil {
		s.mu.Unlock()
		return model.Purchase{}, fmt.Errorf("failed to persist sale: %w", err)
	}
	s.book.Remove(gameID, price)
	s.ledger.Credit(unit.Seller, price)
	s.history.Append(purchase)
	s.nextID++
	s.mu.Unlock()

	s.emitter.Emit(events.Event{
		Type: events.EventKeySold,
		Data: map[string]any{"game_id": gameID, "price": price, "buyer": buyer, "seller": unit.Seller},
	})
	return purchase, nil
}

// Withdraw transfers account's full escrow balance out through the payout
// provider. The balance is zeroed before the provider is invoked, so a
// re-entrant withdrawal triggered by the transfer observes an empty
// balance. If the provider fails the balance is restored in full.
func (s *MarketService) Withdraw(ctx context.Context, account string) (int64, error) {
	s.mu.Lock()
	amount := s.ledger.BalanceOf(account)
	if amount == 0 {
		s.mu.Unlock()
		return 0, market.ErrNoFundsAvailable
	}

	payoutID := uid.New()
	cs := repository.ChangeSet{
		SetBalances: []model.Balance{{Account: account, Amount: 0}},
		AddPayouts: []model.Payout{{
			ID:        payoutID,
			Account:   account,
			Amount:    amount,
			Status:    model.PayoutPending,
			CreatedAt: time.Now().UTC(),
		}},
	}
	if err := s.repo.Apply(ctx, cs); err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("failed to persist withdrawal: %w", err)
	}
	s.ledger.Debit(account)
	s.mu.Unlock()

	// Funds move outside the lock; concurrent sales may credit the
	// account meanwhile, so a restore adds onto the current balance
	// rather than overwriting it.
	if err := s.payer.Send(ctx, payoutID, account, amount); err != nil {
		s.mu.Lock()
		restored := s.ledger.BalanceOf(account) + amount
		rcs := repository.ChangeSet{
			SetBalances: []model.Balance{{Account: account, Amount: restored}},
			SetPayouts:  []repository.PayoutStatus{{ID: payoutID, Status: model.PayoutFailed}},
		}
		if aerr := s.repo.Apply(ctx, rcs); aerr != nil {
			s.mu.Unlock()
			log.Printf("[MarketService] CRITICAL: failed to restore balance for %s after payout failure: %v", account, aerr)
			return 0, fmt.Errorf("failed to restore balance: %w", aerr)
		}
		s.ledger.Set(account, restored)
		s.mu.Unlock()

		s.emitter.Emit(events.Event{
			Type: events.EventPayoutFailed,
			Data: map[string]any{"payout_id": payoutID, "account": account, "amount": amount},
		})
		return 0, fmt.Errorf("%w: %v", market.ErrPayoutFailed, err)
	}

	s.mu.Lock()
	scs := repository.ChangeSet{SetPayouts: []repository.PayoutStatus{{ID: payoutID, Status: model.PayoutSent}}}
	if err := s.repo.Apply(ctx, scs); err != nil {
		// Funds already moved; the pending row is resolved manually.
		log.Printf("[MarketService] failed to mark payout %s sent: %v", payoutID, err)
	}
	s.mu.Unlock()

	s.emitter.Emit(events.Event{
		Type: events.EventPayoutSent,
		Data: map[string]any{"payout_id": payoutID, "account": account, "amount": amount},
	})
	return amount, nil
}

// Balance returns account's withdrawable escrow balance.
func (s *MarketService) Balance(account string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.BalanceOf(account)
}

// GamesBought returns buyer's delivered keys in delivery order.
func (s *MarketService) GamesBought(buyer string) []model.Purchase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.For(buyer)
}

// Listings returns gameID's pending listing groups. Counts only; keys
// stay private.
func (s *MarketService) Listings(gameID int64) []model.ListingGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Groups(gameID)
}

// AllListings returns the pending listing groups for every game.
func (s *MarketService) AllListings() []model.ListingGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.AllGroups()
}
