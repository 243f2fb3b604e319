package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a single resting or in-flight order. Quantity is decremented
// in place as the order is filled; Timestamp is the arrival time used
// for price-time priority and is refreshed on every modify.
type Order struct {
	OrderID       string
	Side          Side
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	TotalQuantity decimal.Decimal // original requested quantity, for reporting
	Timestamp     time.Time
	TimeInForce   TimeInForce
	ExpiryTime    *time.Time // present iff TimeInForce == GTD
	UserID        string
}

// Validate checks the invariants required before an order is
// accepted: positive price and quantity, and a GTD expiry present.
func (o Order) Validate() error {
	if !o.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidArgument)
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}
	if o.TimeInForce == GTD && o.ExpiryTime == nil {
		return fmt.Errorf("%w: GTD order requires an expiry_time", ErrInvalidArgument)
	}
	return nil
}

// IsExpired reports whether a GTD order's expiry has passed as of now.
func (o Order) IsExpired(now time.Time) bool {
	if o.TimeInForce != GTD || o.ExpiryTime == nil {
		return false
	}
	return !now.Before(*o.ExpiryTime)
}

func (o Order) String() string {
	expiry := "none"
	if o.ExpiryTime != nil {
		expiry = o.ExpiryTime.Format(time.RFC3339)
	}
	return fmt.Sprintf(
		`OrderID:     %s
Side:        %v
Price:       %s
Quantity:    %s (Total: %s)
Timestamp:   %v
TIF:         %v
ExpiryTime:  %s
UserID:      %s`,
		o.OrderID,
		o.Side,
		o.Price.String(),
		o.Quantity.String(),
		o.TotalQuantity.String(),
		o.Timestamp.Format(time.RFC3339Nano),
		o.TimeInForce,
		expiry,
		o.UserID,
	)
}
