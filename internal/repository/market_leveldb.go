package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"gamekey-market-api/internal/model"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key prefixes. Listing and purchase IDs are zero-padded so lexicographic
// iteration order equals numeric order.
const (
	ldbListingPrefix  = "listing:"
	ldbBalancePrefix  = "balance:"
	ldbPurchasePrefix = "purchase:"
	ldbPayoutPrefix   = "payout:"
)

// LevelDBMarketRepository implements MarketRepository on LevelDB, storing
// each record as JSON under a prefixed key and applying change sets with
// write batches.
type LevelDBMarketRepository struct {
	db *leveldb.DB
	mu sync.Mutex
}

// NewLevelDBMarketRepository opens (or creates) a LevelDB database at path.
func NewLevelDBMarketRepository(path string) (*LevelDBMarketRepository, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb %q: %w", path, err)
	}
	log.Printf("[LevelDBMarketRepository] Initialized with database: %s", path)
	return &LevelDBMarketRepository{db: db}, nil
}

func ldbListingKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", ldbListingPrefix, id))
}

func ldbPurchaseKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", ldbPurchasePrefix, id))
}

// Load returns the full persisted state.
func (r *LevelDBMarketRepository) Load(ctx context.Context) (model.MarketState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var state model.MarketState

	it := r.db.NewIterator(util.BytesPrefix([]byte(ldbListingPrefix)), nil)
	for it.Next() {
		var u model.ListingUnit
		if err := json.Unmarshal(it.Value(), &u); err != nil {
			it.Release()
			return state, fmt.Errorf("failed to decode listing %s: %w", it.Key(), err)
		}
		state.Listings = append(state.Listings, u)
	}
	it.Release()
	if err := it.Error(); err != nil {
		return state, err
	}

	it = r.db.NewIterator(util.BytesPrefix([]byte(ldbBalancePrefix)), nil)
	for it.Next() {
		var b model.Balance
		if err := json.Unmarshal(it.Value(), &b); err != nil {
			it.Release()
			return state, fmt.Errorf("failed to decode balance %s: %w", it.Key(), err)
		}
		state.Balances = append(state.Balances, b)
	}
	it.Release()
	if err := it.Error(); err != nil {
		return state, err
	}

	it = r.db.NewIterator(util.BytesPrefix([]byte(ldbPurchasePrefix)), nil)
	for it.Next() {
		var p model.Purchase
		if err := json.Unmarshal(it.Value(), &p); err != nil {
			it.Release()
			return state, fmt.Errorf("failed to decode purchase %s: %w", it.Key(), err)
		}
		state.Purchases = append(state.Purchases, p)
	}
	it.Release()
	return state, it.Error()
}

// Apply commits a change set with a single write batch.
func (r *LevelDBMarketRepository) Apply(ctx context.Context, cs ChangeSet) error {
	if cs.Empty() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	batch := new(leveldb.Batch)

	for _, id := range cs.RemoveListings {
		key := ldbListingKey(id)
		if _, err := r.db.Get(key, nil); err == leveldb.ErrNotFound {
			return fmt.Errorf("remove listing %d: not found", id)
		} else if err != nil {
			return err
		}
		batch.Delete(key)
	}
	for _, u := range cs.AddListings {
		data, err := json.Marshal(u)
		if err != nil {
			return err
		}
		batch.Put(ldbListingKey(u.ID), data)
	}
	for _, b := range cs.SetBalances {
		key := []byte(ldbBalancePrefix + b.Account)
		if b.Amount == 0 {
			batch.Delete(key)
			continue
		}
		data, err := json.Marshal(b)
		if err != nil {
			return err
		}
		batch.Put(key, data)
	}
	for _, p := range cs.AddPurchases {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		batch.Put(ldbPurchaseKey(p.ID), data)
	}
	for _, p := range cs.AddPayouts {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		batch.Put([]byte(ldbPayoutPrefix+p.ID), data)
	}
	for _, ps := range cs.SetPayouts {
		key := []byte(ldbPayoutPrefix + ps.ID)
		raw, err := r.db.Get(key, nil)
		if err == leveldb.ErrNotFound {
			return fmt.Errorf("set payout %s: not found", ps.ID)
		} else if err != nil {
			return err
		}
		var p model.Payout
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("failed to decode payout %s: %w", ps.ID, err)
		}
		p.Status = ps.Status
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		batch.Put(key, data)
	}

	return r.db.Write(batch, nil)
}

// Stats returns record counts per prefix.
func (r *LevelDBMarketRepository) Stats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make(map[string]interface{})
	for name, prefix := range map[string]string{
		"listings":  ldbListingPrefix,
		"balances":  ldbBalancePrefix,
		"purchases": ldbPurchasePrefix,
		"payouts":   ldbPayoutPrefix,
	} {
		it := r.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
		count := 0
		for it.Next() {
			count++
		}
		it.Release()
		if err := it.Error(); err != nil {
			return nil, err
		}
		stats[name] = count
	}
	return stats, nil
}

// Close closes the database.
func (r *LevelDBMarketRepository) Close() error {
	return r.db.Close()
}

// Ensure LevelDBMarketRepository implements MarketRepository
var _ MarketRepository = (*LevelDBMarketRepository)(nil)
