package book

import (
	"container/list"

	"github.com/shopspring/decimal"
	"ironbook/internal/domain"
)

// Level is one price level: a FIFO queue of resting orders at that
// price. The queue is a doubly linked list so that cancelling an order
// mid-level is O(1) given its element handle, rather than the O(N) scan
// a plain slice-per-level forces.
type Level struct {
	Price  decimal.Decimal
	orders *list.List // list.Element.Value is *domain.Order
}

func newLevel(price decimal.Decimal) *Level {
	return &Level{Price: price, orders: list.New()}
}

// pushBack enqueues an order at the tail of the level's FIFO.
func (l *Level) pushBack(o *domain.Order) *list.Element {
	return l.orders.PushBack(o)
}

// remove dequeues a specific order given its element handle.
func (l *Level) remove(e *list.Element) {
	l.orders.Remove(e)
}

// Empty reports whether the level has no resting orders left.
func (l *Level) Empty() bool {
	return l.orders.Len() == 0
}

// Len returns the number of resting orders at this level.
func (l *Level) Len() int {
	return l.orders.Len()
}

// Front returns the order at the head of the FIFO (earliest arrival),
// or nil if the level is empty.
func (l *Level) Front() *domain.Order {
	e := l.orders.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*domain.Order)
}

// FrontElement returns the head element, or nil if empty.
func (l *Level) FrontElement() *list.Element {
	return l.orders.Front()
}

// Orders returns the resting orders at this level in FIFO order.
func (l *Level) Orders() []*domain.Order {
	out := make([]*domain.Order, 0, l.orders.Len())
	for e := l.orders.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*domain.Order))
	}
	return out
}

// AggregateQuantity sums the remaining quantity of every resting order
// at this level.
func (l *Level) AggregateQuantity() decimal.Decimal {
	total := decimal.Zero
	for e := l.orders.Front(); e != nil; e = e.Next() {
		total = total.Add(e.Value.(*domain.Order).Quantity)
	}
	return total
}
