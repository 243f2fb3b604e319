package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"ironbook/internal/domain"
)

// AddOrder validates, matches, and (for GTC/GTD residuals) rests a new
// order. The returned order_id is valid even when the order fully
// matched or was killed — callers use GetOrder to tell those cases
// apart from a resting order.
func (e *Engine) AddOrder(req AddOrderRequest) (string, error) {
	defer e.meter.Track("add_order")()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addOrderLocked(req)
}

func (e *Engine) addOrderLocked(req AddOrderRequest) (string, error) {
	order := &domain.Order{
		OrderID:       req.OrderID,
		Side:          req.Side,
		Price:         req.Price,
		Quantity:      req.Quantity,
		TotalQuantity: req.Quantity,
		TimeInForce:   req.TimeInForce,
		ExpiryTime:    req.ExpiryTime,
		UserID:        req.UserID,
	}
	if order.OrderID == "" {
		order.OrderID = e.opts.NewOrderID()
	}
	order.Timestamp = e.opts.Now()

	if err := order.Validate(); err != nil {
		return "", err
	}

	log.Debug().
		Str("symbol", e.symbol).
		Str("order_id", order.OrderID).
		Str("side", order.Side.String()).
		Str("price", order.Price.String()).
		Str("quantity", order.Quantity.String()).
		Str("tif", order.TimeInForce.String()).
		Msg("add_order")

	if order.TimeInForce == domain.FOK {
		available := e.availableLiquidityLocked(order.Side, order.Price)
		if available.LessThan(order.Quantity) {
			log.Debug().Str("order_id", order.OrderID).Msg("fok order killed: insufficient liquidity")
			return order.OrderID, nil
		}
	}

	e.matchLocked(order)

	switch order.TimeInForce {
	case domain.FOK, domain.IOC:
		return order.OrderID, nil
	default: // GTC, GTD
		if order.Quantity.IsPositive() {
			e.insertRestingLocked(order)
			e.numOrdersAdded++
		}
		return order.OrderID, nil
	}
}

// BatchAddOrders processes a homogeneous list under one lock, matching
// every order against the book as it stood at batch entry (residuals
// of earlier entries in the same batch are not inserted until every
// entry has matched), then inserts the surviving residuals in list
// order.
func (e *Engine) BatchAddOrders(reqs []AddOrderRequest) ([]string, error) {
	defer e.meter.Track("batch_add_orders")()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batchAddOrdersLocked(reqs)
}

func (e *Engine) batchAddOrdersLocked(reqs []AddOrderRequest) ([]string, error) {
	orders := make([]*domain.Order, len(reqs))
	ids := make([]string, len(reqs))

	// First pass: build and validate every order up front, so a bad
	// entry aborts the whole batch before any matching happens.
	for i, req := range reqs {
		order := &domain.Order{
			OrderID:       req.OrderID,
			Side:          req.Side,
			Price:         req.Price,
			Quantity:      req.Quantity,
			TotalQuantity: req.Quantity,
			TimeInForce:   req.TimeInForce,
			ExpiryTime:    req.ExpiryTime,
			UserID:        req.UserID,
		}
		if order.OrderID == "" {
			order.OrderID = e.opts.NewOrderID()
		}
		order.Timestamp = e.opts.Now()
		if err := order.Validate(); err != nil {
			return nil, fmt.Errorf("batch entry %d: %w", i, err)
		}
		orders[i] = order
		ids[i] = order.OrderID
	}

	// Second pass: match each order against the book at batch entry.
	// Residuals are not inserted here, so two batch entries can never
	// cross each other.
	residuals := make([]*domain.Order, 0, len(orders))
	for _, order := range orders {
		if order.TimeInForce == domain.FOK {
			available := e.availableLiquidityLocked(order.Side, order.Price)
			if available.LessThan(order.Quantity) {
				continue
			}
		}
		e.matchLocked(order)
		switch order.TimeInForce {
		case domain.FOK, domain.IOC:
			// discard residual
		default:
			if order.Quantity.IsPositive() {
				residuals = append(residuals, order)
			}
		}
	}

	// Third pass: insert surviving residuals in list order.
	for _, order := range residuals {
		e.insertRestingLocked(order)
	}
	e.numOrdersAdded += uint64(len(residuals))

	log.Debug().
		Str("symbol", e.symbol).
		Int("submitted", len(reqs)).
		Int("rested", len(residuals)).
		Msg("batch_add_orders")

	return ids, nil
}

// ModifyOrder applies a cancel-and-replace (if the price changed) or an
// in-place update (quantity/expiry only) to a resting order. Either
// path resets the arrival timestamp, losing time priority. Returns
// false if order_id is not resting or there is nothing to change.
func (e *Engine) ModifyOrder(orderID string, newPrice, newQuantity *decimal.Decimal, newExpiryTime *time.Time) (bool, error) {
	defer e.meter.Track("modify_order")()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modifyOrderLocked(orderID, newPrice, newQuantity, newExpiryTime)
}

func (e *Engine) modifyOrderLocked(orderID string, newPrice, newQuantity *decimal.Decimal, newExpiryTime *time.Time) (bool, error) {
	entry, ok := e.index[orderID]
	if !ok {
		return false, nil
	}
	original := *entry.order // value copy: rollback snapshot

	priceChanged := newPrice != nil && !newPrice.Equal(entry.order.Price)

	if priceChanged {
		quantity := entry.order.Quantity
		if newQuantity != nil {
			quantity = *newQuantity
		}
		if !quantity.IsPositive() {
			return false, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidArgument)
		}
		expiry := entry.order.ExpiryTime
		if newExpiryTime != nil {
			expiry = newExpiryTime
		}

		side, tif, userID := entry.order.Side, entry.order.TimeInForce, entry.order.UserID

		e.removeRestingLocked(orderID)
		if _, err := e.addOrderLocked(AddOrderRequest{
			Side:        side,
			Price:       *newPrice,
			Quantity:    quantity,
			OrderID:     orderID,
			TimeInForce: tif,
			ExpiryTime:  expiry,
			UserID:      userID,
		}); err != nil {
			// Atomic rollback: restore the order exactly as it was.
			e.insertRestingLocked(&original)
			return false, err
		}
		e.numOrdersModified++
		return true, nil
	}

	if newQuantity == nil && newExpiryTime == nil {
		return false, nil
	}
	if newQuantity != nil && !newQuantity.IsPositive() {
		return false, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidArgument)
	}

	updated := original
	if newQuantity != nil {
		updated.Quantity = *newQuantity
	}
	if newExpiryTime != nil {
		updated.ExpiryTime = newExpiryTime
	}
	updated.Timestamp = e.opts.Now()

	e.removeRestingLocked(orderID)
	e.insertRestingLocked(&updated)
	e.numOrdersModified++
	return true, nil
}

// CancelOrder removes a resting order. Returns false if it was not
// resting.
func (e *Engine) CancelOrder(orderID string) bool {
	defer e.meter.Track("cancel_order")()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelOrderLocked(orderID)
}

func (e *Engine) cancelOrderLocked(orderID string) bool {
	if _, ok := e.index[orderID]; !ok {
		return false
	}
	e.removeRestingLocked(orderID)
	e.numOrdersCancelled++
	return true
}

// BatchCancelOrders cancels every id atomically under one lock,
// returning per-id success.
func (e *Engine) BatchCancelOrders(orderIDs []string) map[string]bool {
	defer e.meter.Track("batch_cancel_orders")()
	e.mu.Lock()
	defer e.mu.Unlock()

	results := make(map[string]bool, len(orderIDs))
	for _, id := range orderIDs {
		results[id] = e.cancelOrderLocked(id)
	}
	return results
}

// insertRestingLocked places order in its side book and registers it
// in the order-id index.
func (e *Engine) insertRestingLocked(order *domain.Order) {
	bk := e.bookFor(order.Side)
	handle := bk.Insert(order)
	e.index[order.OrderID] = &restingOrder{order: order, handle: handle}
	e.cache.invalidate()
}

// removeRestingLocked removes a resting order from its book and the
// index. Every code path that takes an order from resting to
// not-resting funnels through here, so the index can never drift from
// the book.
func (e *Engine) removeRestingLocked(orderID string) {
	entry, ok := e.index[orderID]
	if !ok {
		return
	}
	e.bookFor(entry.order.Side).Remove(entry.handle)
	delete(e.index, orderID)
	e.cache.invalidate()
}
