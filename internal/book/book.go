// Package book implements the price-indexed, per-level FIFO structure
// that backs one side (bids or asks) of a symbol's order book.
package book

import (
	"container/list"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
	"ironbook/internal/domain"
)

// Book is one side of an order book: a balanced ordered map from price
// to Level, ordered so that the best price for this side always sorts
// first. Insert, Remove, and Best are O(log L) in the number of
// distinct price levels; FIFO enqueue/dequeue within a level is O(1).
type Book struct {
	levels *btree.BTreeG[*Level]
}

// NewBidBook returns a side book ordered highest price first, for the
// buy side.
func NewBidBook() *Book {
	return &Book{levels: btree.NewBTreeG(func(a, b *Level) bool {
		return a.Price.GreaterThan(b.Price)
	})}
}

// NewAskBook returns a side book ordered lowest price first, for the
// sell side.
func NewAskBook() *Book {
	return &Book{levels: btree.NewBTreeG(func(a, b *Level) bool {
		return a.Price.LessThan(b.Price)
	})}
}

// Handle locates a specific resting order within its level, letting the
// engine's order_id index do an O(1) cancel/modify without re-walking
// the book.
type Handle struct {
	Price   decimal.Decimal
	Level   *Level
	Element *list.Element
}

// Insert places order at the tail of the FIFO queue for its price,
// creating the level if this is the first order at that price.
func (b *Book) Insert(o *domain.Order) Handle {
	probe := &Level{Price: o.Price}
	lvl, ok := b.levels.Get(probe)
	if !ok {
		lvl = newLevel(o.Price)
		b.levels.Set(lvl)
	}
	el := lvl.pushBack(o)
	return Handle{Price: o.Price, Level: lvl, Element: el}
}

// Remove removes the order identified by h from its level. If that was
// the last order at the level, the level (and its price) is removed
// from the book entirely — no empty level is ever reachable.
func (b *Book) Remove(h Handle) {
	h.Level.remove(h.Element)
	if h.Level.Empty() {
		b.levels.Delete(&Level{Price: h.Price})
	}
}

// Best returns the level at the best price for this side, or false if
// the book is empty.
func (b *Book) Best() (*Level, bool) {
	return b.levels.Min()
}

// LevelAt returns the level at an exact price, or false if none rests
// there.
func (b *Book) LevelAt(price decimal.Decimal) (*Level, bool) {
	return b.levels.Get(&Level{Price: price})
}

// Len returns the number of distinct price levels on this side.
func (b *Book) Len() int {
	return b.levels.Len()
}

// DeleteLevel removes lvl's price from the book directly, whatever
// orders it still holds. Remove already drops a level once its last
// order leaves, so the matching loop does not call this.
func (b *Book) DeleteLevel(lvl *Level) {
	b.levels.Delete(&Level{Price: lvl.Price})
}

// Ascend visits every level in matching order (best price first) and
// stops early if visit returns false.
func (b *Book) Ascend(visit func(lvl *Level) bool) {
	b.levels.Scan(visit)
}

// Levels returns every level, best price first. Used for snapshots and
// tests; callers should prefer Ascend for early exit.
func (b *Book) Levels() []*Level {
	out := make([]*Level, 0, b.levels.Len())
	b.levels.Scan(func(lvl *Level) bool {
		out = append(out, lvl)
		return true
	})
	return out
}
