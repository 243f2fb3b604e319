// Package market composes many per-symbol matching engines behind a
// single order-id namespace, routing order operations to the correct
// engine and tracking which user owns which resting orders.
package market

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"ironbook/internal/domain"
	"ironbook/internal/engine"
)

// Options mirrors engine.Options minus Symbol, which CreateMarket
// supplies separately.
type Options struct {
	MaxTradeHistory        int
	EnablePriceImprovement bool
	MakerFeeRate           decimal.Decimal
	TakerFeeRate           decimal.Decimal
	CheckExpiryInterval    time.Duration
	LatencyCapacity        int
	Metrics                *engine.Metrics
	Now                    func() time.Time
	NewOrderID             func() string
}

func (o Options) toEngineOptions(symbol string) engine.Options {
	return engine.Options{
		Symbol:                 symbol,
		MaxTradeHistory:        o.MaxTradeHistory,
		EnablePriceImprovement: o.EnablePriceImprovement,
		MakerFeeRate:           o.MakerFeeRate,
		TakerFeeRate:           o.TakerFeeRate,
		CheckExpiryInterval:    o.CheckExpiryInterval,
		LatencyCapacity:        o.LatencyCapacity,
		Metrics:                o.Metrics,
		Now:                    o.Now,
		NewOrderID:             o.NewOrderID,
	}
}

// ManagedOrderView is get_order's manager-level view: an engine.OrderView
// plus the symbol it rests on.
type ManagedOrderView struct {
	engine.OrderView
	Symbol string
}

// Statistics is get_statistics' aggregated view: totals across every
// market plus each market's own engine.Statistics.
type Statistics struct {
	TotalMarkets int
	TotalOrders  int
	PerMarket    map[string]engine.Statistics
}

// Manager owns every symbol's engine plus the cross-indices that let
// an order or a user be found without knowing the symbol in advance.
// Its mutex is the outer lock in the manager/engine locking order: a
// manager method holds mgr.mu while calling into an engine, which
// takes its own lock internally.
type Manager struct {
	mu sync.Mutex

	opts        Options
	engines     map[string]*engine.Engine // symbol -> engine
	orderMarket map[string]string         // order_id -> symbol
	userOrders  map[string]map[string]struct{}
}

// NewManager constructs an empty Manager. opts supplies the defaults
// applied to every market created without per-call overrides.
func NewManager(opts Options) *Manager {
	return &Manager{
		opts:        opts,
		engines:     make(map[string]*engine.Engine),
		orderMarket: make(map[string]string),
		userOrders:  make(map[string]map[string]struct{}),
	}
}

// CreateMarket creates a new engine for symbol. Returns
// ErrAlreadyExists if the symbol is already known.
func (m *Manager) CreateMarket(symbol string, opts Options) (*engine.Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.engines[symbol]; ok {
		return nil, fmt.Errorf("%w: market %q", domain.ErrAlreadyExists, symbol)
	}
	eng := engine.New(opts.toEngineOptions(symbol))
	m.engines[symbol] = eng
	log.Info().Str("symbol", symbol).Msg("market created")
	return eng, nil
}

// DeleteMarket cancels every resting order the manager has indexed on
// symbol's engine, drops its cross-index entries, stops its engine, and
// removes it. Returns false if symbol is unknown.
func (m *Manager) DeleteMarket(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	eng, ok := m.engines[symbol]
	if !ok {
		return false
	}
	for id, sym := range m.orderMarket {
		if sym == symbol {
			eng.CancelOrder(id)
		}
	}
	m.clearSymbolIndicesLocked(symbol)
	eng.Close()
	delete(m.engines, symbol)
	log.Info().Str("symbol", symbol).Msg("market deleted")
	return true
}

// HasMarket reports whether symbol has an engine.
func (m *Manager) HasMarket(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.engines[symbol]
	return ok
}

// GetMarket returns symbol's engine, or false if unknown.
func (m *Manager) GetMarket(symbol string) (*engine.Engine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	eng, ok := m.engines[symbol]
	return eng, ok
}

// ListMarkets returns every known symbol, in no particular order.
func (m *Manager) ListMarkets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.engines))
	for symbol := range m.engines {
		out = append(out, symbol)
	}
	return out
}

// PlaceOrder routes an add_order call to symbol's engine and, if the
// order ends up resting, registers the cross-indices. Returns
// ok=false if the market does not exist.
func (m *Manager) PlaceOrder(symbol string, req engine.AddOrderRequest) (orderID string, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	eng, found := m.engines[symbol]
	if !found {
		return "", false, nil
	}

	id, err := eng.AddOrder(req)
	if err != nil {
		return "", true, err
	}

	if _, resting := eng.GetOrder(id); resting {
		m.registerLocked(symbol, id, req.UserID)
	}
	return id, true, nil
}

// CancelOrder routes a cancel via the order_id -> symbol index,
// dropping cross-indices on success.
func (m *Manager) CancelOrder(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	symbol, ok := m.orderMarket[orderID]
	if !ok {
		return false
	}
	eng, ok := m.engines[symbol]
	if !ok {
		log.Error().Err(fmt.Errorf("%w: order %q indexed to missing engine %q", domain.ErrInternal, orderID, symbol)).Send()
		delete(m.orderMarket, orderID)
		return false
	}
	if !eng.CancelOrder(orderID) {
		return false
	}
	m.unregisterLocked(orderID)
	return true
}

// ModifyOrder routes a modify via the order_id -> symbol index. If the
// engine reports the order still resting afterwards (it may have been
// cancel-and-replaced under the same id) the manager re-registers it;
// otherwise the cross-indices are dropped.
func (m *Manager) ModifyOrder(orderID string, newPrice, newQuantity *decimal.Decimal, newExpiryTime *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	symbol, ok := m.orderMarket[orderID]
	if !ok {
		return false, nil
	}
	eng, ok := m.engines[symbol]
	if !ok {
		log.Error().Err(fmt.Errorf("%w: order %q indexed to missing engine %q", domain.ErrInternal, orderID, symbol)).Send()
		delete(m.orderMarket, orderID)
		return false, nil
	}

	applied, err := eng.ModifyOrder(orderID, newPrice, newQuantity, newExpiryTime)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	if _, resting := eng.GetOrder(orderID); resting {
		m.registerLocked(symbol, orderID, "")
	} else {
		m.unregisterLocked(orderID)
	}
	return true, nil
}

// GetOrder returns order_id's view plus the symbol it rests on, or
// false if it is not currently resting anywhere.
func (m *Manager) GetOrder(orderID string) (ManagedOrderView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	symbol, ok := m.orderMarket[orderID]
	if !ok {
		return ManagedOrderView{}, false
	}
	eng, ok := m.engines[symbol]
	if !ok {
		return ManagedOrderView{}, false
	}
	view, ok := eng.GetOrder(orderID)
	if !ok {
		return ManagedOrderView{}, false
	}
	return ManagedOrderView{OrderView: view, Symbol: symbol}, true
}

// GetUserOrders returns every order currently resting for user_id,
// across every market.
func (m *Manager) GetUserOrders(userID string) []ManagedOrderView {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.userOrders[userID]
	out := make([]ManagedOrderView, 0, len(ids))
	for id := range ids {
		symbol, ok := m.orderMarket[id]
		if !ok {
			continue
		}
		eng, ok := m.engines[symbol]
		if !ok {
			continue
		}
		view, ok := eng.GetOrder(id)
		if !ok {
			continue
		}
		out = append(out, ManagedOrderView{OrderView: view, Symbol: symbol})
	}
	return out
}

// GetMarketSnapshot returns symbol's depth snapshot, or false if
// symbol is unknown.
func (m *Manager) GetMarketSnapshot(symbol string, depth int) (engine.Snapshot, bool) {
	m.mu.Lock()
	eng, ok := m.engines[symbol]
	m.mu.Unlock()
	if !ok {
		return engine.Snapshot{}, false
	}
	return eng.GetSnapshot(depth), true
}

// CleanExpiredOrders sweeps every engine's expired GTD orders and
// returns how many were removed per symbol. An engine's sweep does not
// touch the manager's cross-indices, so afterwards every indexed order
// that is no longer resting is unregistered here.
func (m *Manager) CleanExpiredOrders() map[string]int {
	m.mu.Lock()
	engines := make(map[string]*engine.Engine, len(m.engines))
	for symbol, eng := range m.engines {
		engines[symbol] = eng
	}
	m.mu.Unlock()

	removed := make(map[string]int, len(engines))
	for symbol, eng := range engines {
		removed[symbol] = eng.SweepExpired()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, symbol := range m.orderMarket {
		eng, ok := m.engines[symbol]
		if !ok {
			continue
		}
		if _, resting := eng.GetOrder(id); !resting {
			m.unregisterLocked(id)
		}
	}
	return removed
}

// ClearMarket empties symbol's engine and drops its cross-index
// entries. Returns false if symbol is unknown.
func (m *Manager) ClearMarket(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	eng, ok := m.engines[symbol]
	if !ok {
		return false
	}
	eng.Clear()
	m.clearSymbolIndicesLocked(symbol)
	return true
}

// GetStatistics returns aggregated totals plus each market's own
// statistics.
func (m *Manager) GetStatistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	per := make(map[string]engine.Statistics, len(m.engines))
	totalOrders := 0
	for symbol, eng := range m.engines {
		stats := eng.GetStatistics()
		per[symbol] = stats
		totalOrders += stats.TotalOrders
	}
	return Statistics{
		TotalMarkets: len(m.engines),
		TotalOrders:  totalOrders,
		PerMarket:    per,
	}
}

func (m *Manager) registerLocked(symbol, orderID, userID string) {
	m.orderMarket[orderID] = symbol
	if userID == "" {
		return
	}
	set, ok := m.userOrders[userID]
	if !ok {
		set = make(map[string]struct{})
		m.userOrders[userID] = set
	}
	set[orderID] = struct{}{}
}

func (m *Manager) unregisterLocked(orderID string) {
	delete(m.orderMarket, orderID)
	for userID, set := range m.userOrders {
		if _, ok := set[orderID]; ok {
			delete(set, orderID)
			if len(set) == 0 {
				delete(m.userOrders, userID)
			}
			return
		}
	}
}

func (m *Manager) clearSymbolIndicesLocked(symbol string) {
	for id, sym := range m.orderMarket {
		if sym == symbol {
			delete(m.orderMarket, id)
			for userID, set := range m.userOrders {
				if _, ok := set[id]; ok {
					delete(set, id)
					if len(set) == 0 {
						delete(m.userOrders, userID)
					}
				}
			}
		}
	}
}
