package net

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"
	"ironbook/internal/market"
)

const (
	maxRecvSize        = 4 * 1024
	defaultPoolSize    = 64
	defaultConnTimeout = 30 * time.Second
)

// clientSession tracks one connected TCP client.
type clientSession struct {
	conn net.Conn
}

// clientMessage links a parsed message to the client address it
// arrived from.
type clientMessage struct {
	clientAddress string
	message       Message
}

// Server is the TCP binding layer over a multi-symbol market.Manager.
// Every accepted connection is handed to a bounded goroutine pool
// (ants) that reads one message, forwards it to a single session
// handler goroutine, and returns the connection for its next read.
type Server struct {
	address string
	port    int
	mgr     *market.Manager

	pool   *ants.Pool
	cancel context.CancelFunc

	sessionsMu sync.Mutex
	sessions   map[string]clientSession

	messages chan clientMessage
}

// New constructs a Server that routes client requests to mgr.
func New(address string, port int, mgr *market.Manager) (*Server, error) {
	s := &Server{
		address:  address,
		port:     port,
		mgr:      mgr,
		sessions: make(map[string]clientSession),
		messages: make(chan clientMessage, defaultPoolSize),
	}

	pool, err := ants.NewPool(defaultPoolSize, ants.WithPanicHandler(func(rec interface{}) {
		log.Error().Interface("panic", rec).Msg("connection worker recovered from panic")
	}))
	if err != nil {
		return nil, fmt.Errorf("creating connection worker pool: %w", err)
	}
	s.pool = pool
	return s, nil
}

// Shutdown cancels the running server, releasing the listener and the
// session-handler goroutine.
func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
	s.pool.Release()
}

// Run starts accepting connections and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", listener.Addr().String()).Msg("server listening")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			log.Info().Str("address", conn.RemoteAddr().String()).Msg("client connected")
			s.addSession(conn)

			if err := s.pool.Submit(func() { s.handleConnection(t, conn) }); err != nil {
				log.Error().Err(err).Msg("unable to submit connection to worker pool")
				conn.Close()
				s.removeSession(conn.RemoteAddr().String())
			}
		}
	}
}

// sessionHandler drains parsed messages off the shared channel and
// dispatches them one at a time, so manager state mutations never race
// with each other across connections.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-s.messages:
			if err := s.handleMessage(msg); err != nil {
				log.Error().Err(err).Str("client", msg.clientAddress).Msg("error handling message")
				s.send(msg.clientAddress, errorReport(err))
			}
		}
	}
}

func (s *Server) handleMessage(msg clientMessage) error {
	switch m := msg.message.(type) {
	case NewOrderMessage:
		eng, found := s.mgr.GetMarket(m.Symbol)
		if !found {
			return fmt.Errorf("unknown symbol %q", m.Symbol)
		}
		before := eng.GetStatistics().NumTradesExecuted

		orderID, ok, err := s.mgr.PlaceOrder(m.Symbol, m.Request())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unknown symbol %q", m.Symbol)
		}

		after := eng.GetStatistics().NumTradesExecuted
		if produced := int(after - before); produced > 0 {
			for _, t := range eng.GetTradeHistory(produced) {
				counterparty := t.MakerOrderID
				if counterparty == orderID {
					counterparty = t.TakerOrderID
				}
				s.send(msg.clientAddress, executionReport(m.Symbol, m.Side, t, orderID, counterparty))
			}
		}
		s.send(msg.clientAddress, ackReport(m.Symbol, orderID))
		return nil

	case CancelOrderMessage:
		if !s.mgr.CancelOrder(m.OrderID) {
			return fmt.Errorf("order %q not resting", m.OrderID)
		}
		s.send(msg.clientAddress, ackReport("", m.OrderID))
		return nil

	case ModifyOrderMessage:
		var newPrice, newQuantity *decimal.Decimal
		if m.HasNewPrice {
			newPrice = &m.NewPrice
		}
		if m.HasNewQuantity {
			newQuantity = &m.NewQuantity
		}
		applied, err := s.mgr.ModifyOrder(m.OrderID, newPrice, newQuantity, nil)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("order %q not resting", m.OrderID)
		}
		s.send(msg.clientAddress, ackReport("", m.OrderID))
		return nil

	case baseMessage:
		switch m.GetType() {
		case LogBook:
			s.logBook()
			return nil
		case Heartbeat:
			return nil
		}
	}
	return ErrInvalidMessageType
}

// handleConnection reads exactly one message off conn, forwards it to
// the session handler, and resubmits the connection for its next read.
// Any read/parse error drops the session.
func (s *Server) handleConnection(t *tomb.Tomb, conn net.Conn) {
	address := conn.RemoteAddr().String()

	select {
	case <-t.Dying():
		s.closeSession(conn)
		return
	default:
	}

	if err := conn.SetReadDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str("address", address).Msg("failed setting read deadline")
		s.closeSession(conn)
		return
	}

	buf := make([]byte, maxRecvSize)
	n, err := conn.Read(buf)
	if err != nil {
		log.Debug().Err(err).Str("address", address).Msg("connection closed")
		s.closeSession(conn)
		return
	}

	message, err := parseMessage(buf[:n])
	if err != nil {
		log.Error().Err(err).Str("address", address).Msg("error parsing message")
		s.send(address, errorReport(err))
		if err := s.pool.Submit(func() { s.handleConnection(t, conn) }); err != nil {
			s.closeSession(conn)
		}
		return
	}

	s.messages <- clientMessage{clientAddress: address, message: message}

	if err := s.pool.Submit(func() { s.handleConnection(t, conn) }); err != nil {
		log.Error().Err(err).Msg("unable to resubmit connection to worker pool")
		s.closeSession(conn)
	}
}

func (s *Server) send(address string, report Report) {
	s.sessionsMu.Lock()
	session, ok := s.sessions[address]
	s.sessionsMu.Unlock()
	if !ok {
		return
	}
	if _, err := session.conn.Write(report.Serialize()); err != nil {
		log.Error().Err(err).Str("address", address).Msg("unable to write report")
		s.removeSession(address)
	}
}

func (s *Server) logBook() {
	for _, symbol := range s.mgr.ListMarkets() {
		eng, ok := s.mgr.GetMarket(symbol)
		if !ok {
			continue
		}
		snapshot := eng.GetSnapshot(10)
		log.Info().Str("symbol", symbol).Interface("bids", snapshot.Bids).Interface("asks", snapshot.Asks).Msg("book snapshot")
	}
}

func (s *Server) addSession(conn net.Conn) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[conn.RemoteAddr().String()] = clientSession{conn: conn}
}

func (s *Server) removeSession(address string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, address)
}

func (s *Server) closeSession(conn net.Conn) {
	address := conn.RemoteAddr().String()
	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Str("address", address).Msg("error closing connection")
	}
	s.removeSession(address)
}
