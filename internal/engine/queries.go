package engine

import (
	"ironbook/internal/book"
	"ironbook/internal/domain"
	"ironbook/internal/latency"

	"github.com/shopspring/decimal"
)

// GetSnapshot returns the aggregated top depth levels of both sides,
// best price first, serving from the memoized cache when it already
// covers the requested depth.
func (e *Engine) GetSnapshot(depth int) Snapshot {
	defer e.meter.Track("get_snapshot")()
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cache.satisfies(depth) {
		e.rebuildCacheLocked(depth)
	}

	bids := e.cache.bids
	if depth > 0 && depth < len(bids) {
		bids = bids[:depth]
	}
	asks := e.cache.asks
	if depth > 0 && depth < len(asks) {
		asks = asks[:depth]
	}
	return Snapshot{Symbol: e.symbol, Bids: bids, Asks: asks}
}

func (e *Engine) rebuildCacheLocked(depth int) {
	e.cache.set(aggregateLevels(e.bids, depth), aggregateLevels(e.asks, depth), depth)
}

func aggregateLevels(bk *book.Book, depth int) []DepthLevel {
	levels := bk.Levels()
	if depth > 0 && depth < len(levels) {
		levels = levels[:depth]
	}
	out := make([]DepthLevel, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, DepthLevel{
			Price:      lvl.Price,
			Quantity:   lvl.AggregateQuantity(),
			OrderCount: lvl.Len(),
		})
	}
	return out
}

// GetOrderDepthAtPrice returns the aggregated quantity and order count
// resting at an exact price on side, or false if nothing rests there.
// This records under its own latency bucket, distinct from
// get_snapshot — the two are different operations with different
// costs.
func (e *Engine) GetOrderDepthAtPrice(side domain.Side, price decimal.Decimal) (DepthLevel, bool) {
	defer e.meter.Track("get_order_depth_at_price")()
	e.mu.Lock()
	defer e.mu.Unlock()

	lvl, ok := e.bookFor(side).LevelAt(price)
	if !ok {
		return DepthLevel{}, false
	}
	return DepthLevel{Price: lvl.Price, Quantity: lvl.AggregateQuantity(), OrderCount: lvl.Len()}, true
}

// GetOrder returns the current state of a resting order, or false if
// order_id is not currently resting (already fully matched, cancelled,
// or expired).
func (e *Engine) GetOrder(orderID string) (OrderView, bool) {
	defer e.meter.Track("get_order")()
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.index[orderID]
	if !ok {
		return OrderView{}, false
	}
	return orderView(entry.order), true
}

// GetTradeHistory returns up to limit most recent trades, newest first.
// limit<=0 returns the entire retained history.
func (e *Engine) GetTradeHistory(limit int) []TradeView {
	defer e.meter.Track("get_trade_history")()
	e.mu.Lock()
	defer e.mu.Unlock()

	trades := e.history.recent(limit)
	out := make([]TradeView, 0, len(trades))
	for _, t := range trades {
		out = append(out, tradeView(t))
	}
	return out
}

// GetStatistics returns the running counters and current book shape.
func (e *Engine) GetStatistics() Statistics {
	defer e.meter.Track("get_statistics")()
	e.mu.Lock()
	defer e.mu.Unlock()

	bidOrders, askOrders := 0, 0
	for _, entry := range e.index {
		if entry.order.Side == domain.Buy {
			bidOrders++
		} else {
			askOrders++
		}
	}

	stats := Statistics{
		NumOrdersAdded:     e.numOrdersAdded,
		NumOrdersModified:  e.numOrdersModified,
		NumOrdersCancelled: e.numOrdersCancelled,
		NumTradesExecuted:  e.numTradesExecuted,
		TotalVolumeTraded:  e.totalVolumeTraded,
		BidLevels:          e.bids.Len(),
		AskLevels:          e.asks.Len(),
		TotalOrders:        len(e.index),
		BidOrders:          bidOrders,
		AskOrders:          askOrders,
		TradeHistorySize:   e.history.size(),
	}
	if lvl, ok := e.bids.Best(); ok {
		p := lvl.Price
		stats.BestBid = &p
	}
	if lvl, ok := e.asks.Best(); ok {
		p := lvl.Price
		stats.BestAsk = &p
	}
	return stats
}

// GetLatencyStats returns the summarized latency distribution for every
// operation tracked so far.
func (e *Engine) GetLatencyStats() map[string]latency.Stats {
	return e.meter.Stats()
}
