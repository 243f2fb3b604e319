package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ironbook/internal/domain"
)

func order(id string, price, qty int64) *domain.Order {
	return &domain.Order{
		OrderID:  id,
		Price:    decimal.NewFromInt(price),
		Quantity: decimal.NewFromInt(qty),
	}
}

func TestBidBookOrdersHighestFirst(t *testing.T) {
	b := NewBidBook()
	b.Insert(order("1", 100, 1))
	b.Insert(order("2", 105, 1))
	b.Insert(order("3", 95, 1))

	lvl, ok := b.Best()
	require.True(t, ok)
	assert.True(t, lvl.Price.Equal(decimal.NewFromInt(105)))
}

func TestAskBookOrdersLowestFirst(t *testing.T) {
	b := NewAskBook()
	b.Insert(order("1", 100, 1))
	b.Insert(order("2", 105, 1))
	b.Insert(order("3", 95, 1))

	lvl, ok := b.Best()
	require.True(t, ok)
	assert.True(t, lvl.Price.Equal(decimal.NewFromInt(95)))
}

func TestInsertAtSamePriceIsFIFO(t *testing.T) {
	b := NewBidBook()
	b.Insert(order("first", 100, 1))
	b.Insert(order("second", 100, 1))

	lvl, ok := b.Best()
	require.True(t, ok)
	assert.Equal(t, "first", lvl.Front().OrderID)
	assert.Equal(t, 2, lvl.Len())
}

func TestRemoveDeletesEmptiedLevel(t *testing.T) {
	b := NewBidBook()
	h := b.Insert(order("1", 100, 1))

	assert.Equal(t, 1, b.Len())
	b.Remove(h)
	assert.Equal(t, 0, b.Len())
	_, ok := b.LevelAt(decimal.NewFromInt(100))
	assert.False(t, ok)
}

func TestRemoveOneOfManyLeavesLevel(t *testing.T) {
	b := NewBidBook()
	h1 := b.Insert(order("1", 100, 1))
	b.Insert(order("2", 100, 1))

	b.Remove(h1)
	lvl, ok := b.LevelAt(decimal.NewFromInt(100))
	require.True(t, ok)
	assert.Equal(t, 1, lvl.Len())
	assert.Equal(t, "2", lvl.Front().OrderID)
}

func TestAscendVisitsBestFirstAndStopsEarly(t *testing.T) {
	b := NewAskBook()
	b.Insert(order("1", 100, 1))
	b.Insert(order("2", 101, 1))
	b.Insert(order("3", 102, 1))

	var seen []string
	b.Ascend(func(lvl *Level) bool {
		seen = append(seen, lvl.Price.String())
		return lvl.Price.LessThan(decimal.NewFromInt(101))
	})
	assert.Equal(t, []string{"100", "101"}, seen)
}

func TestLevelAggregateQuantity(t *testing.T) {
	b := NewBidBook()
	b.Insert(order("1", 100, 3))
	b.Insert(order("2", 100, 7))

	lvl, ok := b.LevelAt(decimal.NewFromInt(100))
	require.True(t, ok)
	assert.True(t, lvl.AggregateQuantity().Equal(decimal.NewFromInt(10)))
}
