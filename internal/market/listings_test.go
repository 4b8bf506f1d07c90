package market

import (
	"testing"

	"gamekey-market-api/internal/model"
)

func unit(id uint64, gameID, price int64, seller, key string) model.ListingUnit {
	return model.ListingUnit{ID: id, GameID: gameID, Price: price, Seller: seller, Key: key}
}

func TestListingBookFIFO(t *testing.T) {
	book := NewListingBook()
	book.Add(unit(1, 7, 100, "alice", "K1"))
	book.Add(unit(2, 7, 100, "bob", "K2"))

	first, ok := book.Remove(7, 100)
	if !ok {
		t.Fatal("expected first unit")
	}
	if first.Key != "K1" || first.Seller != "alice" {
		t.Fatalf("expected K1 from alice first, got %q from %q", first.Key, first.Seller)
	}

	second, ok := book.Remove(7, 100)
	if !ok {
		t.Fatal("expected second unit")
	}
	if second.Key != "K2" {
		t.Fatalf("expected K2 second, got %q", second.Key)
	}

	if _, ok := book.Remove(7, 100); ok {
		t.Fatal("expected empty group after two removals")
	}
}

func TestListingBookEmptyGroupDeleted(t *testing.T) {
	book := NewListingBook()
	book.Add(unit(1, 7, 100, "alice", "K1"))

	if _, ok := book.Remove(7, 100); !ok {
		t.Fatal("expected removal to succeed")
	}

	// An exhausted group behaves exactly like one that never existed.
	if _, ok := book.Peek(7, 100); ok {
		t.Fatal("expected no unit after group exhausted")
	}
	if got := len(book.AllGroups()); got != 0 {
		t.Fatalf("expected no groups in index, got %d", got)
	}
}

func TestListingBookGroupsByPrice(t *testing.T) {
	book := NewListingBook()
	book.Add(unit(1, 7, 100, "alice", "K1"))
	book.Add(unit(2, 7, 200, "alice", "K2"))
	book.Add(unit(3, 7, 100, "bob", "K3"))
	book.Add(unit(4, 9, 100, "bob", "K4"))

	if got := book.Count(7, 100); got != 2 {
		t.Fatalf("expected 2 units at (7,100), got %d", got)
	}
	if got := book.CountGame(7); got != 3 {
		t.Fatalf("expected 3 units for game 7, got %d", got)
	}
	if got := book.Len(); got != 4 {
		t.Fatalf("expected 4 units total, got %d", got)
	}

	groups := book.Groups(7)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups for game 7, got %d", len(groups))
	}
	if groups[0].Price != 100 || groups[0].Count != 2 {
		t.Fatalf("unexpected first group: %+v", groups[0])
	}
	if groups[1].Price != 200 || groups[1].Count != 1 {
		t.Fatalf("unexpected second group: %+v", groups[1])
	}
}

func TestListingBookPeekDoesNotRemove(t *testing.T) {
	book := NewListingBook()
	book.Add(unit(1, 7, 100, "alice", "K1"))

	for i := 0; i < 2; i++ {
		got, ok := book.Peek(7, 100)
		if !ok || got.Key != "K1" {
			t.Fatalf("peek %d: got %+v ok=%v", i, got, ok)
		}
	}
	if book.Count(7, 100) != 1 {
		t.Fatal("peek must not consume the unit")
	}
}
