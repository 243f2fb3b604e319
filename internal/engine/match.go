package engine

import (
	"github.com/shopspring/decimal"
	"ironbook/internal/book"
	"ironbook/internal/domain"
)

// matchLocked runs the matching loop for taker against the opposite
// side book, mutating taker.Quantity in place and
// removing/shrinking resting makers as they're consumed. It returns
// the trades produced, in the order they occurred. Caller must hold
// e.mu.
func (e *Engine) matchLocked(taker *domain.Order) []domain.Trade {
	opposite := e.bookFor(taker.Side.Opposite())
	var trades []domain.Trade

	for taker.Quantity.IsPositive() {
		lvl, ok := opposite.Best()
		if !ok {
			break
		}
		if !e.crosses(taker.Side, taker.Price, lvl.Price) {
			break
		}

		for taker.Quantity.IsPositive() {
			maker := lvl.Front()
			if maker == nil {
				break
			}

			qty := minDecimal(taker.Quantity, maker.Quantity)
			trade := e.newTradeLocked(maker, taker, lvl.Price, qty)
			trades = append(trades, trade)
			e.recordTradeLocked(trade)

			taker.Quantity = taker.Quantity.Sub(qty)
			maker.Quantity = maker.Quantity.Sub(qty)

			if !maker.Quantity.IsPositive() {
				e.removeRestingLocked(maker.OrderID)
			}
		}
	}

	return trades
}

func (e *Engine) newTradeLocked(maker, taker *domain.Order, price, quantity decimal.Decimal) domain.Trade {
	tradeID := e.opts.NewOrderID()
	return domain.NewTrade(
		tradeID, maker.OrderID, taker.OrderID,
		price, quantity, e.opts.Now(),
		e.opts.MakerFeeRate, e.opts.TakerFeeRate,
		nil, nil,
		maker.UserID, taker.UserID,
	)
}

// recordTradeLocked appends a trade to the history ring, updates
// counters/metrics, and invalidates the depth cache.
func (e *Engine) recordTradeLocked(t domain.Trade) {
	e.history.append(t)
	e.numTradesExecuted++
	e.totalVolumeTraded = e.totalVolumeTraded.Add(t.Quantity)
	e.cache.invalidate()
	if e.metrics != nil {
		qty, _ := t.Quantity.Float64()
		e.metrics.observeTrade(qty)
	}
}

// availableLiquidityLocked sums the resting quantity on the opposite
// side that would be an acceptable match for a taker on side at price,
// stopping at the first price that no longer crosses. Used for the FOK
// pre-check: it never mutates the book.
func (e *Engine) availableLiquidityLocked(side domain.Side, price decimal.Decimal) decimal.Decimal {
	opposite := e.bookFor(side.Opposite())
	total := decimal.Zero
	opposite.Ascend(func(lvl *book.Level) bool {
		if !e.crosses(side, price, lvl.Price) {
			return false
		}
		total = total.Add(lvl.AggregateQuantity())
		return true
	})
	return total
}
