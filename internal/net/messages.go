package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"ironbook/internal/domain"
	"ironbook/internal/engine"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
	ErrInvalidDecimal     = errors.New("invalid decimal in message body")
)

// MessageType identifies a client-to-server message.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	ModifyOrder
	LogBook
)

// ReportMessageType identifies a server-to-client message.
type ReportMessageType uint8

const (
	ExecutionReport ReportMessageType = iota
	AckReport
	ErrorReport
)

// Message is anything parsed off the wire from a client.
type Message interface {
	GetType() MessageType
}

const baseMessageHeaderLen = 2

type baseMessage struct {
	typeOf MessageType
}

func (m baseMessage) GetType() MessageType { return m.typeOf }

// parseMessage splits off the 2-byte type header and dispatches to the
// per-type parser.
func parseMessage(msg []byte) (Message, error) {
	if len(msg) < baseMessageHeaderLen {
		return nil, fmt.Errorf("%w: header", ErrMessageTooShort)
	}
	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	body := msg[2:]
	switch typeOf {
	case NewOrder:
		return parseNewOrderMessage(body)
	case CancelOrder:
		return parseCancelOrderMessage(body)
	case ModifyOrder:
		return parseModifyOrderMessage(body)
	case LogBook:
		return baseMessage{typeOf: LogBook}, nil
	case Heartbeat:
		return baseMessage{typeOf: Heartbeat}, nil
	default:
		return nil, ErrInvalidMessageType
	}
}

// readLenPrefixed reads a uint16-length-prefixed string starting at
// buf[offset:] and returns the string plus the offset just past it.
func readLenPrefixed(buf []byte, offset int) (string, int, error) {
	if len(buf) < offset+2 {
		return "", 0, fmt.Errorf("%w: length prefix", ErrMessageTooShort)
	}
	n := int(binary.BigEndian.Uint16(buf[offset : offset+2]))
	offset += 2
	if len(buf) < offset+n {
		return "", 0, fmt.Errorf("%w: string body", ErrMessageTooShort)
	}
	return string(buf[offset : offset+n]), offset + n, nil
}

func putLenPrefixed(s string) []byte {
	out := make([]byte, 2+len(s))
	binary.BigEndian.PutUint16(out[0:2], uint16(len(s)))
	copy(out[2:], s)
	return out
}

// NewOrderMessage is a client's request to place an order on a symbol.
// Wire shape: symbol, side(1), tif(1), price(len-prefixed decimal
// string), quantity(len-prefixed decimal string), has_expiry(1) +
// expiry unix seconds(8) if set, user_id(len-prefixed).
type NewOrderMessage struct {
	baseMessage
	Symbol      string
	Side        domain.Side
	TimeInForce domain.TimeInForce
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	ExpiryTime  *time.Time
	UserID      string
}

func (m NewOrderMessage) Request() engine.AddOrderRequest {
	return engine.AddOrderRequest{
		Side:        m.Side,
		Price:       m.Price,
		Quantity:    m.Quantity,
		TimeInForce: m.TimeInForce,
		ExpiryTime:  m.ExpiryTime,
		UserID:      m.UserID,
	}
}

func parseNewOrderMessage(buf []byte) (NewOrderMessage, error) {
	m := NewOrderMessage{baseMessage: baseMessage{typeOf: NewOrder}}

	symbol, offset, err := readLenPrefixed(buf, 0)
	if err != nil {
		return m, err
	}
	m.Symbol = symbol

	if len(buf) < offset+2 {
		return m, fmt.Errorf("%w: side/tif", ErrMessageTooShort)
	}
	m.Side = domain.Side(buf[offset])
	m.TimeInForce = domain.TimeInForce(buf[offset+1])
	offset += 2

	priceStr, offset, err := readLenPrefixed(buf, offset)
	if err != nil {
		return m, err
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return m, fmt.Errorf("%w: price %q", ErrInvalidDecimal, priceStr)
	}
	m.Price = price

	qtyStr, offset, err := readLenPrefixed(buf, offset)
	if err != nil {
		return m, err
	}
	quantity, err := decimal.NewFromString(qtyStr)
	if err != nil {
		return m, fmt.Errorf("%w: quantity %q", ErrInvalidDecimal, qtyStr)
	}
	m.Quantity = quantity

	if len(buf) < offset+1 {
		return m, fmt.Errorf("%w: expiry flag", ErrMessageTooShort)
	}
	hasExpiry := buf[offset] != 0
	offset++
	if hasExpiry {
		if len(buf) < offset+8 {
			return m, fmt.Errorf("%w: expiry value", ErrMessageTooShort)
		}
		t := time.Unix(int64(binary.BigEndian.Uint64(buf[offset:offset+8])), 0).UTC()
		m.ExpiryTime = &t
		offset += 8
	}

	userID, _, err := readLenPrefixed(buf, offset)
	if err != nil {
		return m, err
	}
	m.UserID = userID

	return m, nil
}

// CancelOrderMessage is a client's request to cancel a resting order.
type CancelOrderMessage struct {
	baseMessage
	OrderID string
}

func parseCancelOrderMessage(buf []byte) (CancelOrderMessage, error) {
	orderID, _, err := readLenPrefixed(buf, 0)
	if err != nil {
		return CancelOrderMessage{}, err
	}
	return CancelOrderMessage{baseMessage: baseMessage{typeOf: CancelOrder}, OrderID: orderID}, nil
}

// ModifyOrderMessage is a client's request to change a resting order's
// price and/or quantity. A zero-valued NewPrice/NewQuantity field
// (HasNewPrice/HasNewQuantity false) leaves that attribute unchanged.
type ModifyOrderMessage struct {
	baseMessage
	OrderID        string
	HasNewPrice    bool
	NewPrice       decimal.Decimal
	HasNewQuantity bool
	NewQuantity    decimal.Decimal
}

func parseModifyOrderMessage(buf []byte) (ModifyOrderMessage, error) {
	m := ModifyOrderMessage{baseMessage: baseMessage{typeOf: ModifyOrder}}

	orderID, offset, err := readLenPrefixed(buf, 0)
	if err != nil {
		return m, err
	}
	m.OrderID = orderID

	if len(buf) < offset+2 {
		return m, fmt.Errorf("%w: flags", ErrMessageTooShort)
	}
	m.HasNewPrice = buf[offset] != 0
	m.HasNewQuantity = buf[offset+1] != 0
	offset += 2

	if m.HasNewPrice {
		s, next, err := readLenPrefixed(buf, offset)
		if err != nil {
			return m, err
		}
		offset = next
		price, err := decimal.NewFromString(s)
		if err != nil {
			return m, fmt.Errorf("%w: new_price %q", ErrInvalidDecimal, s)
		}
		m.NewPrice = price
	}
	if m.HasNewQuantity {
		s, _, err := readLenPrefixed(buf, offset)
		if err != nil {
			return m, err
		}
		quantity, err := decimal.NewFromString(s)
		if err != nil {
			return m, fmt.Errorf("%w: new_quantity %q", ErrInvalidDecimal, s)
		}
		m.NewQuantity = quantity
	}

	return m, nil
}

// Report is a server-to-client wire message: either an execution
// report for one side of a trade, an acknowledgement, or an error.
type Report struct {
	Type         ReportMessageType
	Symbol       string
	Side         domain.Side
	Timestamp    time.Time
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	OrderID      string
	Counterparty string
	Err          string
}

// Serialize packs a Report into its wire form: a 1-byte type, a
// 1-byte side, an 8-byte unix timestamp, then length-prefixed symbol,
// quantity, price, order_id, counterparty, and error strings.
func (r Report) Serialize() []byte {
	head := make([]byte, 1+1+8)
	head[0] = byte(r.Type)
	head[1] = byte(r.Side)
	binary.BigEndian.PutUint64(head[2:10], uint64(r.Timestamp.Unix()))

	parts := [][]byte{
		head,
		putLenPrefixed(r.Symbol),
		putLenPrefixed(r.Quantity.String()),
		putLenPrefixed(r.Price.String()),
		putLenPrefixed(r.OrderID),
		putLenPrefixed(r.Counterparty),
		putLenPrefixed(r.Err),
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func executionReport(symbol string, side domain.Side, t engine.TradeView, orderID, counterparty string) Report {
	return Report{
		Type:         ExecutionReport,
		Symbol:       symbol,
		Side:         side,
		Timestamp:    t.Timestamp,
		Quantity:     t.Quantity,
		Price:        t.Price,
		OrderID:      orderID,
		Counterparty: counterparty,
	}
}

func errorReport(err error) Report {
	return Report{Type: ErrorReport, Timestamp: time.Now(), Err: err.Error()}
}

func ackReport(symbol, orderID string) Report {
	return Report{Type: AckReport, Symbol: symbol, OrderID: orderID, Timestamp: time.Now()}
}
