// Package engine implements the per-symbol limit order book matching
// engine: the sorted two-sided book, price-time-priority matching,
// time-in-force lifecycle, atomic modification, and trade generation.
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"ironbook/internal/book"
	"ironbook/internal/domain"
	"ironbook/internal/latency"
)

// Options configures an Engine at construction. The market manager
// re-exports these on CreateMarket.
type Options struct {
	Symbol                 string
	MaxTradeHistory        int             // default 10000
	EnablePriceImprovement bool            // default false
	MakerFeeRate           decimal.Decimal // default zero
	TakerFeeRate           decimal.Decimal // default zero
	CheckExpiryInterval    time.Duration   // <=0 disables the reaper
	LatencyCapacity        int             // default 1000

	// Metrics, if non-nil, additionally feeds a Prometheus export on
	// every recorded latency sample and executed trade. Optional.
	Metrics *Metrics

	// Now and NewOrderID are injection points for deterministic tests;
	// both default to time.Now and uuid.NewString.
	Now        func() time.Time
	NewOrderID func() string
}

func (o *Options) setDefaults() {
	if o.MaxTradeHistory <= 0 {
		o.MaxTradeHistory = 10000
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewOrderID == nil {
		o.NewOrderID = uuid.NewString
	}
}

// Engine is the matching engine for a single symbol. All public
// methods are fully serialized by mu; internal *Locked helpers assume
// the caller already holds it. This is how the cancel-and-replace path
// in ModifyOrder can recursively invoke AddOrder's logic without a true
// reentrant mutex (see DESIGN.md).
type Engine struct {
	mu sync.Mutex

	symbol  string
	opts    Options
	bids    *book.Book
	asks    *book.Book
	index   map[string]*restingOrder
	history *tradeHistory
	meter   *latency.Meter
	cache   depthCache
	metrics *Metrics

	numOrdersAdded     uint64
	numOrdersModified  uint64
	numOrdersCancelled uint64
	numTradesExecuted  uint64
	totalVolumeTraded  decimal.Decimal

	reaper *reaper
}

// New constructs an Engine ready to accept orders. If
// opts.CheckExpiryInterval is positive, a background reaper goroutine
// starts immediately; call Close to stop it.
func New(opts Options) *Engine {
	opts.setDefaults()

	e := &Engine{
		symbol:            opts.Symbol,
		opts:              opts,
		bids:              book.NewBidBook(),
		asks:              book.NewAskBook(),
		index:             make(map[string]*restingOrder),
		history:           newTradeHistory(opts.MaxTradeHistory),
		meter:             latency.NewMeter(opts.LatencyCapacity),
		metrics:           opts.Metrics,
		totalVolumeTraded: decimal.Zero,
	}
	if e.metrics != nil {
		e.meter.OnRecord(e.metrics.observeLatency)
	}
	e.reaper = newReaper(e, opts.CheckExpiryInterval)
	e.reaper.start()
	return e
}

// Close stops the expiry reaper goroutine, if one is running. Safe to
// call on an engine with expiry disabled.
func (e *Engine) Close() {
	e.reaper.stop()
}

// Symbol returns the symbol this engine was created for.
func (e *Engine) Symbol() string {
	return e.symbol
}

func (e *Engine) bookFor(side domain.Side) *book.Book {
	if side == domain.Buy {
		return e.bids
	}
	return e.asks
}

// crosses reports whether a maker resting at makerPrice is an
// acceptable match for a taker on side takerSide with limit
// takerPrice, honoring the engine-wide price-improvement flag.
func (e *Engine) crosses(takerSide domain.Side, takerPrice, makerPrice decimal.Decimal) bool {
	if e.opts.EnablePriceImprovement {
		return true
	}
	if takerSide == domain.Buy {
		return makerPrice.LessThanOrEqual(takerPrice)
	}
	return makerPrice.GreaterThanOrEqual(takerPrice)
}

// Clear empties the book, resets counters, and invalidates caches.
func (e *Engine) Clear() {
	defer e.meter.Track("clear")()
	e.mu.Lock()
	defer e.mu.Unlock()

	e.bids = book.NewBidBook()
	e.asks = book.NewAskBook()
	e.index = make(map[string]*restingOrder)
	e.history.clear()
	e.cache.invalidate()
	e.numOrdersAdded = 0
	e.numOrdersModified = 0
	e.numOrdersCancelled = 0
	e.numTradesExecuted = 0
	e.totalVolumeTraded = decimal.Zero

	log.Debug().Str("symbol", e.symbol).Msg("engine cleared")
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
