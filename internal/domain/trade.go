package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an immutable record of a single fill between a resting maker
// order and an incoming taker order. Once appended to an engine's trade
// history it is never mutated.
type Trade struct {
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
}

// Value is the notional value of the trade (price * quantity).
func (t Trade) Value() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

// NewTrade builds a Trade, computing maker/taker fees from the supplied
// rates unless explicit fee overrides are given (nil means "compute").
func NewTrade(tradeID, makerOrderID, takerOrderID string, price, quantity decimal.Decimal,
	timestamp time.Time, makerFeeRate, takerFeeRate decimal.Decimal,
	makerFee, takerFee *decimal.Decimal, makerUserID, takerUserID string) Trade {

	value := price.Mul(quantity)

	mFee := value.Mul(makerFeeRate)
	if makerFee != nil {
		mFee = *makerFee
	}
	tFee := value.Mul(takerFeeRate)
	if takerFee != nil {
		tFee = *takerFee
	}

	return Trade{
		TradeID:      tradeID,
		MakerOrderID: makerOrderID,
		TakerOrderID: takerOrderID,
		Price:        price,
		Quantity:     quantity,
		Timestamp:    timestamp,
		MakerFee:     mFee,
		TakerFee:     tFee,
		MakerUserID:  makerUserID,
		TakerUserID:  takerUserID,
	}
}

func (t Trade) String() string {
	return fmt.Sprintf(
		`TradeID:      %s
MakerOrderID: %s
TakerOrderID: %s
Price:        %s
Quantity:     %s
Timestamp:    %v
MakerFee:     %s
TakerFee:     %s
Value:        %s`,
		t.TradeID,
		t.MakerOrderID,
		t.TakerOrderID,
		t.Price.String(),
		t.Quantity.String(),
		t.Timestamp.Format(time.RFC3339Nano),
		t.MakerFee.String(),
		t.TakerFee.String(),
		t.Value().String(),
	)
}
