package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"gamekey-market-api/internal/model"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLMarketRepository implements MarketRepository using MySQL.
type MySQLMarketRepository struct {
	db *sql.DB
}

// NewMySQLMarketRepository creates a new MySQL market repository.
// dsn format: "user:password@tcp(host:port)/dbname?parseTime=true"
func NewMySQLMarketRepository(dsn string) (*MySQLMarketRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := createMySQLTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[MySQLMarketRepository] Initialized")
	return &MySQLMarketRepository{db: db}, nil
}

func createMySQLTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id BIGINT UNSIGNED PRIMARY KEY,
			game_id BIGINT NOT NULL,
			price BIGINT NOT NULL,
			seller VARCHAR(128) NOT NULL,
			game_key TEXT NOT NULL,
			listed_at DATETIME NOT NULL,
			INDEX idx_listings_group (game_id, price)
		)`,
		`CREATE TABLE IF NOT EXISTS balances (
			account VARCHAR(128) PRIMARY KEY,
			amount BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			id BIGINT UNSIGNED PRIMARY KEY,
			buyer VARCHAR(128) NOT NULL,
			game_id BIGINT NOT NULL,
			game_key TEXT NOT NULL,
			price BIGINT NOT NULL,
			bought_at DATETIME NOT NULL,
			INDEX idx_purchases_buyer (buyer)
		)`,
		`CREATE TABLE IF NOT EXISTS payouts (
			id VARCHAR(64) PRIMARY KEY,
			account VARCHAR(128) NOT NULL,
			amount BIGINT NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at DATETIME NOT NULL
		)`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the full persisted state.
func (r *MySQLMarketRepository) Load(ctx context.Context) (model.MarketState, error) {
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
func (r *MySQLMarketRepository) Apply(ctx context.Context, cs ChangeSet) error {
	if cs.Empty() {
		return nil
	}

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
			ON DUPLICATE KEY UPDATE amount = VALUES(amount)`,
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
		if _, err := tx.ExecContext(ctx, `UPDATE payouts SET status = ? WHERE id = ?`, ps.Status, ps.ID); err != nil {
			return fmt.Errorf("failed to set payout %s: %w", ps.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Stats returns statistics about the market database.
func (r *MySQLMarketRepository) Stats(ctx context.Context) (map[string]interface{}, error) {
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
	return stats, nil
}

// Close closes the database connection.
func (r *MySQLMarketRepository) Close() error {
	return r.db.Close()
}

// Ensure MySQLMarketRepository implements MarketRepository
var _ MarketRepository = (*MySQLMarketRepository)(nil)
