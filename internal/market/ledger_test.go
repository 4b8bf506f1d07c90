package market

import "testing"

func TestLedgerCreditAccumulates(t *testing.T) {
	ledger := NewLedger()
	ledger.Credit("alice", 100)
	ledger.Credit("alice", 250)

	if got := ledger.BalanceOf("alice"); got != 350 {
		t.Fatalf("expected 350, got %d", got)
	}
	if got := ledger.BalanceOf("bob"); got != 0 {
		t.Fatalf("expected zero for unknown account, got %d", got)
	}
}

func TestLedgerDebitDrainsOnce(t *testing.T) {
	ledger := NewLedger()
	ledger.Credit("alice", 400)

	amount, ok := ledger.Debit("alice")
	if !ok || amount != 400 {
		t.Fatalf("expected (400, true), got (%d, %v)", amount, ok)
	}
	if got := ledger.BalanceOf("alice"); got != 0 {
		t.Fatalf("expected zero after debit, got %d", got)
	}

	if amount, ok := ledger.Debit("alice"); ok || amount != 0 {
		t.Fatalf("repeat debit must find nothing, got (%d, %v)", amount, ok)
	}
}

func TestLedgerSet(t *testing.T) {
	ledger := NewLedger()
	ledger.Set("alice", 500)
	if got := ledger.BalanceOf("alice"); got != 500 {
		t.Fatalf("expected 500, got %d", got)
	}

	ledger.Set("alice", 0)
	if got := ledger.BalanceOf("alice"); got != 0 {
		t.Fatalf("expected zero after clearing, got %d", got)
	}
	if got := ledger.Total(); got != 0 {
		t.Fatalf("expected empty total, got %d", got)
	}
}

func TestLedgerTotal(t *testing.T) {
	ledger := NewLedger()
	ledger.Credit("alice", 100)
	ledger.Credit("bob", 200)
	ledger.Credit("carol", 50)

	if got := ledger.Total(); got != 350 {
		t.Fatalf("expected 350, got %d", got)
	}
}
