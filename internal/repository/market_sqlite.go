package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"

	"gamekey-market-api/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteMarketRepository implements MarketRepository using SQLite.
// Thread-safe with WAL mode; the single-writer pool setting matches
// SQLite's own write model.
type SQLiteMarketRepository struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteMarketRepository creates a new SQLite market repository.
// dbPath is the path to the SQLite database file (e.g., "./data/market.db")
func NewSQLiteMarketRepository(dbPath string) (*SQLiteMarketRepository, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSQLiteTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteMarketRepository] Initialized with database: %s", dbPath)
	return &SQLiteMarketRepository{db: db}, nil
}

func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS listings (
		id INTEGER PRIMARY KEY,
		game_id INTEGER NOT NULL,
		price INTEGER NOT NULL,
		seller TEXT NOT NULL,
		game_key TEXT NOT NULL,
		listed_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_listings_group ON listings(game_id, price);
	CREATE TABLE IF NOT EXISTS balances (
		account TEXT PRIMARY KEY,
		amount INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY,
		buyer TEXT NOT NULL,
		game_id INTEGER NOT NULL,
		game_key TEXT NOT NULL,
		price INTEGER NOT NULL,
		bought_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_purchases_buyer ON purchases(buyer);
	CREATE TABLE IF NOT EXISTS payouts (
		id TEXT PRIMARY KEY,
		account TEXT NOT NULL,
		amount INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	_, err := db.Exec(query)
	return err
}

// Load returns the full persisted state.
func (r *SQLiteMarketRepository) Load(ctx context.Context) (model.MarketState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var state model.MarketState

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, price, seller, game_key, listed_at FROM listings ORDER BY id`)
	if err != nil {
		return state, fmt.Errorf("failed to load listings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u model.ListingUnit
		if err := rows.Scan(&u.ID, &u.GameID, &u.Price, &u.Seller, &u.Key, &u.ListedAt); err != nil {
			return state, fmt.Errorf("failed to scan listing: %w", err)
		}
		state.Listings = append(state.Listings, u)
	}
	if err := rows.Err(); err != nil {
		return state, err
	}

	balRows, err := r.db.QueryContext(ctx, `SELECT account, amount FROM balances`)
	if err != nil {
		return state, fmt.Errorf("failed to load balances: %w", err)
	}
	defer balRows.Close()
	for balRows.Next() {
		var b model.Balance
		if err := balRows.Scan(&b.Account, &b.Amount); err != nil {
			return state, fmt.Errorf("failed to scan balance: %w", err)
		}
		state.Balances = append(state.Balances, b)
	}
	if err := balRows.Err(); err != nil {
		return state, err
	}

	purRows, err := r.db.QueryContext(ctx,
		`SELECT id, buyer, game_id, game_key, price, bought_at FROM purchases ORDER BY id`)
	if err != nil {
		return state, fmt.Errorf("failed to load purchases: %w", err)
	}
	defer purRows.Close()
	for purRows.Next() {
		var p model.Purchase
		if err := purRows.Scan(&p.ID, &p.Buyer, &p.GameID, &p.Key, &p.Price, &p.BoughtAt); err != nil {
			return state, fmt.Errorf("failed to scan purchase: %w", err)
		}
		state.Purchases = append(state.Purchases, p)
	}
	return state, purRows.Err()
}

// Apply commits a change set in a single transaction.
func (r *SQLiteMarketRepository) Apply(ctx context.Context, cs ChangeSet) error {
	if cs.Empty() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range cs.RemoveListings {
		res, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to remove listing %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("remove listing %d: not found", id)
		}
	}
	for _, u := range cs.AddListings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO listings (id, game_id, price, seller, game_key, listed_at) VALUES (?, ?, ?, ?, ?, ?)`,
			u.ID, u.GameID, u.Price, u.Seller, u.Key, u.ListedAt)
		if err != nil {
			return fmt.Errorf("failed to add listing %d: %w", u.ID, err)
		}
	}
	for _, b := range cs.SetBalances {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO balances (account, amount) VALUES (?, ?)
			ON CONFLICT(account) DO UPDATE SET amount = excluded.amount`,
			b.Account, b.Amount)
		if err != nil {
			return fmt.Errorf("failed to set balance for %s: %w", b.Account, err)
		}
	}
	for _, p := range cs.AddPurchases {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO purchases (id, buyer, game_id, game_key, price, bought_at) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.Buyer, p.GameID, p.Key, p.Price, p.BoughtAt)
		if err != nil {
			return fmt.Errorf("failed to add purchase %d: %w", p.ID, err)
		}
	}
	for _, p := range cs.AddPayouts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO payouts (id, account, amount, status, created_at) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.Account, p.Amount, p.Status, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to add payout %s: %w", p.ID, err)
		}
	}
	for _, ps := range cs.SetPayouts {
		res, err := tx.ExecContext(ctx, `UPDATE payouts SET status = ? WHERE id = ?`, ps.Status, ps.ID)
		if err != nil {
			return fmt.Errorf("failed to set payout %s: %w", ps.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("set payout %s: not found", ps.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Stats returns statistics about the market database.
func (r *SQLiteMarketRepository) Stats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make(map[string]interface{})
	for name, query := range map[string]string{
		"listings":  "SELECT COUNT(*) FROM listings",
		"balances":  "SELECT COUNT(*) FROM balances",
		"purchases": "SELECT COUNT(*) FROM purchases",
		"payouts":   "SELECT COUNT(*) FROM payouts",
	} {
		var count int64
		if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return nil, err
		}
		stats[name] = count
	}

	var escrow sql.NullInt64
	if err := r.db.QueryRowContext(ctx, "SELECT SUM(amount) FROM balances").Scan(&escrow); err == nil && escrow.Valid {
		stats["escrow_total"] = escrow.Int64
	}

	// Database file size (approximate from page count)
	var pageCount, pageSize int64
	r.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	r.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	return stats, nil
}

// Close closes the database connection.
func (r *SQLiteMarketRepository) Close() error {
	return r.db.Close()
}

// Ensure SQLiteMarketRepository implements MarketRepository
var _ MarketRepository = (*SQLiteMarketRepository)(nil)
