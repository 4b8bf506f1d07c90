package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gamekey-market-api/internal/events"
	"gamekey-market-api/internal/market"
	"gamekey-market-api/internal/repository"
)

func newTestService(t *testing.T) (*MarketService, *repository.MemoryMarketRepository) {
	t.Helper()
	repo := repository.NewMemoryMarketRepository()
	svc, err := NewMarketService(context.Background(), repo, nil, nil)
	if err != nil {
		t.Fatalf("failed to create market service: %v", err)
	}
	return svc, repo
}

// failingPayer rejects every transfer.
type failingPayer struct{}

func (failingPayer) Send(ctx context.Context, payoutID, account string, amount int64) error {
	return errors.New("transfer rejected")
}

func TestListAndBuy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.ListGameKey(ctx, "seller", "K1", 1, 100); err != nil {
		t.Fatalf("list failed: %v", err)
	}

	purchase, err := svc.BuyGameKey(ctx, "buyer", "seller", 1, 100, 100)
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if purchase.Key != "K1" {
		t.Fatalf("expected key K1, got %q", purchase.Key)
	}
	if got := svc.Balance("seller"); got != 100 {
		t.Fatalf("expected seller balance 100, got %d", got)
	}

	bought := svc.GamesBought("buyer")
	if len(bought) != 1 || bought[0].GameID != 1 || bought[0].Key != "K1" {
		t.Fatalf("unexpected purchase history: %+v", bought)
	}
}

func TestListRejectsInvalidPrice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, price := range []int64{0, -5} {
		if err := svc.ListGameKey(ctx, "seller", "K1", 1, price); !errors.Is(err, market.ErrInvalidPrice) {
			t.Fatalf("price %d: expected ErrInvalidPrice, got %v", price, err)
		}
	}
	if got := len(svc.AllListings()); got != 0 {
		t.Fatalf("rejected listing must not be stored, got %d groups", got)
	}
}

func TestBuyFIFOAmongDuplicates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.ListGameKey(ctx, "alice", "K1", 1, 100); err != nil {
		t.Fatalf("list K1: %v", err)
	}
	if err := svc.ListGameKey(ctx, "bob", "K2", 1, 100); err != nil {
		t.Fatalf("list K2: %v", err)
	}

	first, err := svc.BuyGameKey(ctx, "buyer1", "alice", 1, 100, 100)
	if err != nil {
		t.Fatalf("first buy: %v", err)
	}
	if first.Key != "K1" {
		t.Fatalf("expected oldest listing first, got %q", first.Key)
	}

	second, err := svc.BuyGameKey(ctx, "buyer2", "bob", 1, 100, 100)
	if err != nil {
		t.Fatalf("second buy: %v", err)
	}
	if second.Key != "K2" {
		t.Fatalf("expected K2 second, got %q", second.Key)
	}

	if _, err := svc.BuyGameKey(ctx, "buyer3", "", 1, 100, 100); !errors.Is(err, market.ErrNoListingFound) {
		t.Fatalf("third buy: expected ErrNoListingFound, got %v", err)
	}

	if svc.Balance("alice") != 100 || svc.Balance("bob") != 100 {
		t.Fatalf("each seller credited once: alice=%d bob=%d", svc.Balance("alice"), svc.Balance("bob"))
	}
}

func TestBuyRejectsWrongPayment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.ListGameKey(ctx, "seller", "K1", 1, 100); err != nil {
		t.Fatalf("list: %v", err)
	}

	for _, payment := range []int64{99, 101, 0} {
		if _, err := svc.BuyGameKey(ctx, "buyer", "seller", 1, 100, payment); !errors.Is(err, market.ErrIncorrectPayment) {
			t.Fatalf("payment %d: expected ErrIncorrectPayment, got %v", payment, err)
		}
	}

	// The listing survives every rejected attempt.
	if _, err := svc.BuyGameKey(ctx, "buyer", "seller", 1, 100, 100); err != nil {
		t.Fatalf("exact payment after rejections: %v", err)
	}
}

func TestBuyRejectsSellerMismatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.ListGameKey(ctx, "alice", "K1", 1, 100); err != nil {
		t.Fatalf("list: %v", err)
	}

	if _, err := svc.BuyGameKey(ctx, "buyer", "mallory", 1, 100, 100); !errors.Is(err, market.ErrSellerMismatch) {
		t.Fatalf("expected ErrSellerMismatch, got %v", err)
	}
	if got := svc.Balance("mallory"); got != 0 {
		t.Fatalf("no funds may move on mismatch, got %d", got)
	}

	// Empty seller skips the check; payment still lands with the
	// recorded seller.
	if _, err := svc.BuyGameKey(ctx, "buyer", "", 1, 100, 100); err != nil {
		t.Fatalf("buy without seller hint: %v", err)
	}
	if got := svc.Balance("alice"); got != 100 {
		t.Fatalf("expected recorded seller credited, got %d", got)
	}
}

func TestBuyMissingListing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.ListGameKey(ctx, "seller", "K1", 1, 100); err != nil {
		t.Fatalf("list: %v", err)
	}

	// Same game at a different price is a different group.
	if _, err := svc.BuyGameKey(ctx, "buyer", "", 1, 200, 200); !errors.Is(err, market.ErrNoListingFound) {
		t.Fatalf("wrong price: expected ErrNoListingFound, got %v", err)
	}
	if _, err := svc.BuyGameKey(ctx, "buyer", "", 2, 100, 100); !errors.Is(err, market.ErrNoListingFound) {
		t.Fatalf("wrong game: expected ErrNoListingFound, got %v", err)
	}
}

func TestUpdateListingMovesOneUnit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.ListGameKey(ctx, "alice", "K1", 1, 100); err != nil {
		t.Fatalf("list K1: %v", err)
	}
	if err := svc.ListGameKey(ctx, "bob", "K2", 1, 100); err != nil {
		t.Fatalf("list K2: %v", err)
	}

	if err := svc.UpdateListing(ctx, 1, 100, 150); err != nil {
		t.Fatalf("update: %v", err)
	}

	groups := svc.Listings(1)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups after move, got %+v", groups)
	}
	if groups[0].Price != 100 || groups[0].Count != 1 {
		t.Fatalf("old group must keep one unit: %+v", groups[0])
	}
	if groups[1].Price != 150 || groups[1].Count != 1 {
		t.Fatalf("new group must hold one unit: %+v", groups[1])
	}

	// The oldest unit moved; its seller and key travel with it.
	moved, err := svc.BuyGameKey(ctx, "buyer", "", 1, 150, 150)
	if err != nil {
		t.Fatalf("buy moved unit: %v", err)
	}
	if moved.Key != "K1" {
		t.Fatalf("expected oldest unit moved, got %q", moved.Key)
	}
	if got := svc.Balance("alice"); got != 150 {
		t.Fatalf("seller credited at new price, got %d", got)
	}
}

func TestRelocatedUnitJoinsTail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.ListGameKey(ctx, "alice", "K1", 1, 100); err != nil {
		t.Fatalf("list K1: %v", err)
	}
	if err := svc.ListGameKey(ctx, "bob", "K2", 1, 200); err != nil {
		t.Fatalf("list K2: %v", err)
	}
	if err := svc.UpdateListing(ctx, 1, 100, 200); err != nil {
		t.Fatalf("update: %v", err)
	}

	// K1 joins behind K2, which was already waiting at 200.
	first, err := svc.BuyGameKey(ctx, "buyer", "", 1, 200, 200)
	if err != nil {
		t.Fatalf("first buy: %v", err)
	}
	if first.Key != "K2" {
		t.Fatalf("expected K2 at the head, got %q", first.Key)
	}
	second, err := svc.BuyGameKey(ctx, "buyer", "", 1, 200, 200)
	if err != nil || second.Key != "K1" {
		t.Fatalf("expected relocated K1 second, got %q err %v", second.Key, err)
	}
}

func TestRelocatedUnitStaysAtTailAfterRestart(t *testing.T) {
	repo := repository.NewMemoryMarketRepository()
	ctx := context.Background()

	svc, err := NewMarketService(ctx, repo, nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.ListGameKey(ctx, "alice", "K1", 1, 100); err != nil {
		t.Fatalf("list K1: %v", err)
	}
	if err := svc.ListGameKey(ctx, "bob", "K2", 1, 200); err != nil {
		t.Fatalf("list K2: %v", err)
	}
	if err := svc.UpdateListing(ctx, 1, 100, 200); err != nil {
		t.Fatalf("update: %v", err)
	}

	// The restored queue must match the live one: K2 first, the
	// relocated K1 behind it.
	restored, err := NewMarketService(ctx, repo, nil, nil)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	first, err := restored.BuyGameKey(ctx, "buyer", "", 1, 200, 200)
	if err != nil {
		t.Fatalf("first buy: %v", err)
	}
	if first.Key != "K2" {
		t.Fatalf("queue order changed across restart: expected K2 first, got %q", first.Key)
	}
	second, err := restored.BuyGameKey(ctx, "buyer", "", 1, 200, 200)
	if err != nil || second.Key != "K1" {
		t.Fatalf("expected relocated K1 second after restart, got %q err %v", second.Key, err)
	}
}

func TestUpdateListingErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.UpdateListing(ctx, 1, 100, 150); !errors.Is(err, market.ErrNoListingFound) {
		t.Fatalf("expected ErrNoListingFound, got %v", err)
	}

	if err := svc.ListGameKey(ctx, "seller", "K1", 1, 100); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := svc.UpdateListing(ctx, 1, 100, 0); !errors.Is(err, market.ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if got := svc.Listings(1); len(got) != 1 || got[0].Price != 100 {
		t.Fatalf("failed update must not touch the book: %+v", got)
	}
}

func TestCancelListing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.ListGameKey(ctx, "seller", "K1", 1, 100); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := svc.CancelListing(ctx, 1, 100); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := svc.BuyGameKey(ctx, "buyer", "", 1, 100, 100); !errors.Is(err, market.ErrNoListingFound) {
		t.Fatalf("cancelled key must not sell, got %v", err)
	}
	if err := svc.CancelListing(ctx, 1, 100); !errors.Is(err, market.ErrNoListingFound) {
		t.Fatalf("repeat cancel: expected ErrNoListingFound, got %v", err)
	}
}

func TestWithdrawDrainsBalance(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	if err := svc.ListGameKey(ctx, "seller", "K1", 1, 100); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := svc.BuyGameKey(ctx, "buyer", "", 1, 100, 100); err != nil {
		t.Fatalf("buy: %v", err)
	}

	amount, err := svc.Withdraw(ctx, "seller")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount != 100 {
		t.Fatalf("expected 100 withdrawn, got %d", amount)
	}
	if got := svc.Balance("seller"); got != 0 {
		t.Fatalf("expected zero balance after withdrawal, got %d", got)
	}

	if _, err := svc.Withdraw(ctx, "seller"); !errors.Is(err, market.ErrNoFundsAvailable) {
		t.Fatalf("repeat withdraw: expected ErrNoFundsAvailable, got %v", err)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got := stats["payouts"].(int); got != 1 {
		t.Fatalf("expected one payout row, got %d", got)
	}
}

func TestWithdrawRestoresBalanceOnPayoutFailure(t *testing.T) {
	repo := repository.NewMemoryMarketRepository()
	svc, err := NewMarketService(context.Background(), repo, nil, failingPayer{})
	if err != nil {
		t.Fatalf("failed to create market service: %v", err)
	}
	ctx := context.Background()

	if err := svc.ListGameKey(ctx, "seller", "K1", 1, 100); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := svc.BuyGameKey(ctx, "buyer", "", 1, 100, 100); err != nil {
		t.Fatalf("buy: %v", err)
	}

	if _, err := svc.Withdraw(ctx, "seller"); !errors.Is(err, market.ErrPayoutFailed) {
		t.Fatalf("expected ErrPayoutFailed, got %v", err)
	}
	if got := svc.Balance("seller"); got != 100 {
		t.Fatalf("balance must be restored after failed transfer, got %d", got)
	}
}

func TestFundsConservation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sellers := []string{"alice", "bob", "alice", "carol", "bob"}
	var total int64
	for i, seller := range sellers {
		price := int64(100 * (i + 1))
		key := fmt.Sprintf("K%d", i+1)
		if err := svc.ListGameKey(ctx, seller, key, int64(i%2+1), price); err != nil {
			t.Fatalf("list %s: %v", key, err)
		}
		if _, err := svc.BuyGameKey(ctx, "buyer", "", int64(i%2+1), price, price); err != nil {
			t.Fatalf("buy %s: %v", key, err)
		}
		total += price
	}

	var held int64
	for _, account := range []string{"alice", "bob", "carol"} {
		held += svc.Balance(account)
	}
	if held != total {
		t.Fatalf("escrow must equal payments in: held %d, paid %d", held, total)
	}
}

func TestStateSurvivesRestart(t *testing.T) {
	repo := repository.NewMemoryMarketRepository()
	ctx := context.Background()

	svc, err := NewMarketService(ctx, repo, nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.ListGameKey(ctx, "alice", "K1", 1, 100); err != nil {
		t.Fatalf("list K1: %v", err)
	}
	if err := svc.ListGameKey(ctx, "bob", "K2", 1, 100); err != nil {
		t.Fatalf("list K2: %v", err)
	}
	if err := svc.ListGameKey(ctx, "carol", "K3", 2, 300); err != nil {
		t.Fatalf("list K3: %v", err)
	}
	if _, err := svc.BuyGameKey(ctx, "buyer", "", 2, 300, 300); err != nil {
		t.Fatalf("buy K3: %v", err)
	}

	// A fresh engine on the same repository sees identical state.
	restored, err := NewMarketService(ctx, repo, nil, nil)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	if got := restored.Balance("carol"); got != 300 {
		t.Fatalf("expected carol balance 300 after restart, got %d", got)
	}
	bought := restored.GamesBought("buyer")
	if len(bought) != 1 || bought[0].Key != "K3" {
		t.Fatalf("purchase history lost across restart: %+v", bought)
	}

	// FIFO order among equal listings is preserved.
	first, err := restored.BuyGameKey(ctx, "buyer2", "", 1, 100, 100)
	if err != nil {
		t.Fatalf("buy after restart: %v", err)
	}
	if first.Key != "K1" {
		t.Fatalf("expected K1 first after restart, got %q", first.Key)
	}

	// New listings must not collide with restored IDs.
	if err := restored.ListGameKey(ctx, "dave", "K4", 1, 100); err != nil {
		t.Fatalf("list after restart: %v", err)
	}
	next, err := restored.BuyGameKey(ctx, "buyer2", "", 1, 100, 100)
	if err != nil || next.Key != "K2" {
		t.Fatalf("expected K2 before K4, got %q err %v", next.Key, err)
	}
}

func TestGameZeroFilterable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.ListGameKey(ctx, "alice", "K0", 0, 100); err != nil {
		t.Fatalf("list game 0: %v", err)
	}
	if err := svc.ListGameKey(ctx, "bob", "K1", 1, 100); err != nil {
		t.Fatalf("list game 1: %v", err)
	}

	// Game ID 0 is a real game, not a wildcard.
	groups := svc.Listings(0)
	if len(groups) != 1 || groups[0].GameID != 0 {
		t.Fatalf("expected only game 0's group, got %+v", groups)
	}
	if got := svc.AllListings(); len(got) != 2 {
		t.Fatalf("expected both groups from AllListings, got %+v", got)
	}
}

func TestEventsEmittedOutsideEngineLock(t *testing.T) {
	repo := repository.NewMemoryMarketRepository()
	emitter := events.NewEmitter()
	ctx := context.Background()

	svc, err := NewMarketService(ctx, repo, emitter, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// A subscriber calling back into the engine deadlocks if events are
	// delivered while the engine mutex is held.
	var observed int64 = -1
	emitter.Subscribe(events.EventKeySold, func(events.Event) {
		observed = svc.Balance("alice")
	})

	if err := svc.ListGameKey(ctx, "alice", "K1", 1, 100); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := svc.BuyGameKey(ctx, "buyer", "", 1, 100, 100); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if observed != 100 {
		t.Fatalf("subscriber must observe the committed sale, got %d", observed)
	}
}
