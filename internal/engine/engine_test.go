package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ironbook/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	seq := 0
	e := New(Options{
		Symbol: "TEST",
		NewOrderID: func() string {
			seq++
			return "id" + decimal.NewFromInt(int64(seq)).String()
		},
	})
	t.Cleanup(e.Close)
	return e
}

func price(v int64) decimal.Decimal    { return decimal.NewFromInt(v) }
func quantity(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func mustAdd(t *testing.T, e *Engine, side domain.Side, p, q int64) string {
	t.Helper()
	id, err := e.AddOrder(AddOrderRequest{Side: side, Price: price(p), Quantity: quantity(q)})
	require.NoError(t, err)
	return id
}

// a taker crosses only the best ask level, filling fully against it
// and leaving the 101 ask and both bid levels untouched.
func TestSimpleCross(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, domain.Buy, 100, 1)
	mustAdd(t, e, domain.Buy, 99, 1)
	mustAdd(t, e, domain.Sell, 101, 1)
	a2 := mustAdd(t, e, domain.Sell, 100, 2)

	takerID := mustAdd(t, e, domain.Buy, 100, 2)

	trades := e.GetTradeHistory(0)
	require.Len(t, trades, 1)
	assert.Equal(t, a2, trades[0].MakerOrderID)
	assert.Equal(t, takerID, trades[0].TakerOrderID)
	assert.True(t, trades[0].Price.Equal(price(100)))
	assert.True(t, trades[0].Quantity.Equal(quantity(2)))

	_, resting := e.GetOrder(takerID)
	assert.False(t, resting)

	snap := e.GetSnapshot(0)
	require.Len(t, snap.Asks, 1)
	assert.True(t, snap.Asks[0].Price.Equal(price(101)))
	require.Len(t, snap.Bids, 2)
}

// at equal price, earlier arrival fills first.
func TestFIFOAtLevel(t *testing.T) {
	e := newTestEngine(t)
	a1 := mustAdd(t, e, domain.Sell, 100, 1)
	a2 := mustAdd(t, e, domain.Sell, 100, 1)

	mustAdd(t, e, domain.Buy, 100, 1)

	trades := e.GetTradeHistory(0)
	require.Len(t, trades, 1)
	assert.Equal(t, a1, trades[0].MakerOrderID)

	view, resting := e.GetOrder(a2)
	require.True(t, resting)
	assert.True(t, view.Quantity.Equal(quantity(1)))
}

// an FOK order with no route to full fill produces zero trades and
// never rests.
func TestFOKKillsWithoutPartialFill(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, domain.Sell, 100, 1)
	mustAdd(t, e, domain.Sell, 101, 1)

	id, err := e.AddOrder(AddOrderRequest{
		Side: domain.Buy, Price: price(101), Quantity: quantity(3), TimeInForce: domain.FOK,
	})
	require.NoError(t, err)

	assert.Empty(t, e.GetTradeHistory(0))
	_, resting := e.GetOrder(id)
	assert.False(t, resting)

	snap := e.GetSnapshot(0)
	assert.Len(t, snap.Asks, 2)
}

// Boundary: FOK of exactly the available quantity fully fills.
func TestFOKFillsExactQuantity(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, domain.Sell, 100, 1)
	mustAdd(t, e, domain.Sell, 101, 1)

	id, err := e.AddOrder(AddOrderRequest{
		Side: domain.Buy, Price: price(101), Quantity: quantity(2), TimeInForce: domain.FOK,
	})
	require.NoError(t, err)

	trades := e.GetTradeHistory(0)
	assert.Len(t, trades, 2)
	_, resting := e.GetOrder(id)
	assert.False(t, resting)
}

// IOC fills whatever it can and discards the remainder.
func TestIOCPartialFill(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, domain.Sell, 100, 1)
	mustAdd(t, e, domain.Sell, 102, 1)

	id, err := e.AddOrder(AddOrderRequest{
		Side: domain.Buy, Price: price(101), Quantity: quantity(3), TimeInForce: domain.IOC,
	})
	require.NoError(t, err)

	trades := e.GetTradeHistory(0)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Quantity.Equal(quantity(1)))
	assert.True(t, trades[0].Price.Equal(price(100)))

	_, resting := e.GetOrder(id)
	assert.False(t, resting)

	snap := e.GetSnapshot(0)
	require.Len(t, snap.Asks, 1)
	assert.True(t, snap.Asks[0].Price.Equal(price(102)))
}

// the expiry reaper cancels a GTD order once its expiry has
// passed, bumping num_orders_cancelled.
func TestGTDExpiryReaper(t *testing.T) {
	now := time.Now()
	var clock time.Time = now
	e := New(Options{
		Symbol:              "TEST",
		CheckExpiryInterval: 5 * time.Millisecond,
		Now:                 func() time.Time { return clock },
	})
	defer e.Close()

	expiry := now.Add(10 * time.Millisecond)
	id, err := e.AddOrder(AddOrderRequest{
		Side: domain.Buy, Price: price(100), Quantity: quantity(1),
		TimeInForce: domain.GTD, ExpiryTime: &expiry,
	})
	require.NoError(t, err)

	clock = now.Add(20 * time.Millisecond)

	require.Eventually(t, func() bool {
		_, resting := e.GetOrder(id)
		return !resting
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, uint64(1), e.GetStatistics().NumOrdersCancelled)
}

// modifying price cancel-and-replaces the order at the new price,
// where it then trades as the maker against an incoming sell.
func TestModifyPriceMatchesAtNewPrice(t *testing.T) {
	e := newTestEngine(t)
	x := mustAdd(t, e, domain.Buy, 100, 1)

	newPrice := price(101)
	ok, err := e.ModifyOrder(x, &newPrice, nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	mustAdd(t, e, domain.Sell, 101, 1)

	trades := e.GetTradeHistory(0)
	require.Len(t, trades, 1)
	assert.Equal(t, x, trades[0].MakerOrderID)
	assert.True(t, trades[0].Price.Equal(price(101)))
}

// price improvement lets a taker cross beyond its own limit.
func TestPriceImprovement(t *testing.T) {
	e := New(Options{Symbol: "TEST", EnablePriceImprovement: true})
	defer e.Close()

	mustAdd(t, e, domain.Sell, 100, 1)

	id, err := e.AddOrder(AddOrderRequest{Side: domain.Buy, Price: price(90), Quantity: quantity(1)})
	require.NoError(t, err)

	trades := e.GetTradeHistory(0)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(price(100)))
	_, resting := e.GetOrder(id)
	assert.False(t, resting)
}

// two orders submitted in the same batch never cross each other;
// both rest against the pre-batch (empty) book.
func TestBatchSelfCrossProtection(t *testing.T) {
	e := newTestEngine(t)

	ids, err := e.BatchAddOrders([]AddOrderRequest{
		{Side: domain.Sell, Price: price(100), Quantity: quantity(1)},
		{Side: domain.Buy, Price: price(100), Quantity: quantity(1)},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	assert.Empty(t, e.GetTradeHistory(0))

	for _, id := range ids {
		_, resting := e.GetOrder(id)
		assert.True(t, resting)
	}
}

func TestCancelOrderIdempotence(t *testing.T) {
	e := newTestEngine(t)
	id := mustAdd(t, e, domain.Buy, 100, 1)

	assert.True(t, e.CancelOrder(id))
	assert.False(t, e.CancelOrder(id))
}

func TestAddingAtExistingLevelAggregates(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, domain.Buy, 100, 3)
	mustAdd(t, e, domain.Buy, 100, 7)

	depth, ok := e.GetOrderDepthAtPrice(domain.Buy, price(100))
	require.True(t, ok)
	assert.Equal(t, 2, depth.OrderCount)
	assert.True(t, depth.Quantity.Equal(quantity(10)))
}

func TestInvalidArgumentsRejected(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.AddOrder(AddOrderRequest{Side: domain.Buy, Price: decimal.Zero, Quantity: quantity(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = e.AddOrder(AddOrderRequest{Side: domain.Buy, Price: price(1), Quantity: decimal.Zero})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = e.AddOrder(AddOrderRequest{Side: domain.Buy, Price: price(1), Quantity: quantity(1), TimeInForce: domain.GTD})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestModifyUnknownOrderReturnsFalse(t *testing.T) {
	e := newTestEngine(t)
	ok, err := e.ModifyOrder("nope", nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotBoundedThenUnboundedWithoutMutation(t *testing.T) {
	e := newTestEngine(t)
	for i := int64(0); i < 10; i++ {
		mustAdd(t, e, domain.Buy, 100-i, 1)
	}

	bounded := e.GetSnapshot(3)
	require.Len(t, bounded.Bids, 3)

	full := e.GetSnapshot(0)
	assert.Len(t, full.Bids, 10)
}

func TestClearResetsEverything(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, domain.Buy, 100, 1)
	mustAdd(t, e, domain.Sell, 101, 1)

	e.Clear()

	stats := e.GetStatistics()
	assert.Zero(t, stats.TotalOrders)
	assert.Zero(t, stats.NumOrdersAdded)
	snap := e.GetSnapshot(0)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
}
