package market

import (
	"sort"

	"gamekey-market-api/internal/model"
)

// groupKey identifies one listing group. Price is part of the key so a
// single buy/cancel/update call can select among units of the same game
// posted at different prices.
type groupKey struct {
	gameID int64
	price  int64
}

// ListingBook tracks pending listing units grouped by (game_id, price).
// Units within a group are ordered oldest-first; a group whose queue
// empties is removed from the index immediately. The book is not
// goroutine-safe: the engine serializes all access.
type ListingBook struct {
	groups map[groupKey][]model.ListingUnit
}

// NewListingBook creates an empty book.
func NewListingBook() *ListingBook {
	return &ListingBook{groups: make(map[groupKey][]model.ListingUnit)}
}

// Add appends unit to the tail of its (game_id, price) group, creating
// the group if absent.
func (b *ListingBook) Add(unit model.ListingUnit) {
	k := groupKey{unit.GameID, unit.Price}
	b.groups[k] = append(b.groups[k], unit)
}

// Peek returns the unit at the head of the (gameID, price) group without
// removing it. ok is false if the group is absent.
func (b *ListingBook) Peek(gameID, price int64) (model.ListingUnit, bool) {
	units := b.groups[groupKey{gameID, price}]
	if len(units) == 0 {
		return model.ListingUnit{}, false
	}
	return units[0], true
}

// Remove pops the unit at the head of the (gameID, price) group. The
// group is deleted from the index when its last unit is removed.
func (b *ListingBook) Remove(gameID, price int64) (model.ListingUnit, bool) {
	k := groupKey{gameID, price}
	units := b.groups[k]
	if len(units) == 0 {
		return model.ListingUnit{}, false
	}
	head := units[0]
	if len(units) == 1 {
		delete(b.groups, k)
	} else {
		b.groups[k] = units[1:]
	}
	return head, true
}

// Count returns the number of pending units at (gameID, price).
func (b *ListingBook) Count(gameID, price int64) int {
	return len(b.groups[groupKey{gameID, price}])
}

// CountGame returns the number of pending units for gameID across all
// price groups.
func (b *ListingBook) CountGame(gameID int64) int {
	n := 0
	for k, units := range b.groups {
		if k.gameID == gameID {
			n += len(units)
		}
	}
	return n
}

// Len returns the total number of pending units in the book.
func (b *ListingBook) Len() int {
	n := 0
	for _, units := range b.groups {
		n += len(units)
	}
	return n
}

// Groups returns a summary of gameID's non-empty groups ordered by price.
func (b *ListingBook) Groups(gameID int64) []model.ListingGroup {
	out := make([]model.ListingGroup, 0, len(b.groups))
	for k, units := range b.groups {
		if k.gameID != gameID {
			continue
		}
		out = append(out, model.ListingGroup{GameID: k.gameID, Price: k.price, Count: len(units)})
	}
	sortGroups(out)
	return out
}

// AllGroups returns a summary of every non-empty group, ordered by
// game_id then price.
func (b *ListingBook) AllGroups() []model.ListingGroup {
	out := make([]model.ListingGroup, 0, len(b.groups))
	for k, units := range b.groups {
		out = append(out, model.ListingGroup{GameID: k.gameID, Price: k.price, Count: len(units)})
	}
	sortGroups(out)
	return out
}

func sortGroups(groups []model.ListingGroup) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].GameID != groups[j].GameID {
			return groups[i].GameID < groups[j].GameID
		}
		return groups[i].Price < groups[j].Price
	})
}
