package market

// Ledger tracks per-account withdrawable escrow balances. Balances only
// grow by completed sales and only shrink to zero by withdrawal. Not
// goroutine-safe: the engine serializes all access.
type Ledger struct {
	balances map[string]int64
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]int64)}
}

// Credit adds amount to account's balance. amount must be positive; the
// engine validates before calling.
func (l *Ledger) Credit(account string, amount int64) {
	l.balances[account] += amount
}

// Debit resets account's balance to zero and returns the prior amount.
// ok is false when the balance is already zero. The balance reaches zero
// before any funds move, so a re-entrant withdrawal observes nothing to
// drain.
func (l *Ledger) Debit(account string) (int64, bool) {
	amount := l.balances[account]
	if amount == 0 {
		return 0, false
	}
	delete(l.balances, account)
	return amount, true
}

// BalanceOf returns account's current balance. Never fails.
func (l *Ledger) BalanceOf(account string) int64 {
	return l.balances[account]
}

// Set overwrites account's balance, removing the entry at zero. Used
// when restoring persisted state.
func (l *Ledger) Set(account string, amount int64) {
	if amount == 0 {
		delete(l.balances, account)
		return
	}
	l.balances[account] = amount
}

// Total returns the sum of all balances.
func (l *Ledger) Total() int64 {
	var sum int64
	for _, amount := range l.balances {
		sum += amount
	}
	return sum
}
