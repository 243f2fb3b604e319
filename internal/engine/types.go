package engine

import (
	"time"

	"github.com/shopspring/decimal"
	"ironbook/internal/book"
	"ironbook/internal/domain"
)

// AddOrderRequest is the input to AddOrder/BatchAddOrders. OrderID,
// TimeInForce, ExpiryTime and UserID are optional; a zero TimeInForce
// is GTC.
type AddOrderRequest struct {
	Side        domain.Side
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	OrderID     string
	TimeInForce domain.TimeInForce
	ExpiryTime  *time.Time
	UserID      string
}

// OrderView is the read-only view get_order returns.
type OrderView struct {
	OrderID     string
	Side        domain.Side
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	Timestamp   time.Time
	TimeInForce domain.TimeInForce
	ExpiryTime  *time.Time
	UserID      string
}

func orderView(o *domain.Order) OrderView {
	return OrderView{
		OrderID:     o.OrderID,
		Side:        o.Side,
		Price:       o.Price,
		Quantity:    o.Quantity,
		Timestamp:   o.Timestamp,
		TimeInForce: o.TimeInForce,
		ExpiryTime:  o.ExpiryTime,
		UserID:      o.UserID,
	}
}

// TradeView is the read-only view get_trade_history returns.
type TradeView struct {
	TradeID      string
	MakerOrderID string
	TakerOrderID string
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	Timestamp    time.Time
	MakerFee     decimal.Decimal
	TakerFee     decimal.Decimal
	MakerUserID  string
	TakerUserID  string
	Value        decimal.Decimal
}

func tradeView(t domain.Trade) TradeView {
	return TradeView{
		TradeID:      t.TradeID,
		MakerOrderID: t.MakerOrderID,
		TakerOrderID: t.TakerOrderID,
		Price:        t.Price,
		Quantity:     t.Quantity,
		Timestamp:    t.Timestamp,
		MakerFee:     t.MakerFee,
		TakerFee:     t.TakerFee,
		MakerUserID:  t.MakerUserID,
		TakerUserID:  t.TakerUserID,
		Value:        t.Value(),
	}
}

// DepthLevel is one aggregated price level in a Snapshot.
type DepthLevel struct {
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	OrderCount int
}

// Snapshot is the aggregated top-of-book view get_snapshot returns.
type Snapshot struct {
	Symbol string
	Bids   []DepthLevel // sorted best (highest) first
	Asks   []DepthLevel // sorted best (lowest) first
}

// Statistics is the counters view get_statistics returns.
type Statistics struct {
	NumOrdersAdded     uint64
	NumOrdersModified  uint64
	NumOrdersCancelled uint64
	NumTradesExecuted  uint64
	TotalVolumeTraded  decimal.Decimal
	BidLevels          int
	AskLevels          int
	TotalOrders        int
	BidOrders          int
	AskOrders          int
	TradeHistorySize   int
	BestBid            *decimal.Decimal
	BestAsk            *decimal.Decimal
}

// restingOrder is the engine's index entry: the live order plus its
// handle into the side book, so cancel/modify is O(1) without a
// re-search of the price levels.
type restingOrder struct {
	order  *domain.Order
	handle book.Handle
}
