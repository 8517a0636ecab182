// Package order reacts to signal lifecycle events by routing orders through
// the gateway and tracking realized P&L.
package order

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/your-org/flow-signal-bot/internal/exchange"
	"github.com/your-org/flow-signal-bot/internal/market"
	"github.com/your-org/flow-signal-bot/internal/metrics"
	"github.com/your-org/flow-signal-bot/internal/signal"
	"github.com/your-org/flow-signal-bot/pkg/logger"
)

// Config holds the order sizing and close-condition parameters.
type Config struct {
	Volume             float64 // order size per signal
	MaxActivePerSymbol int
	TakeProfit         float64 // favorable price distance from entry, >= 0
	StopLoss           float64 // adverse price distance from entry, <= 0
	ProfitBoundary     float64 // stop invoking new orders above this realized total
	LossBoundary       float64 // and below this one
	// CloseOnFavorableMove closes a position on the first tick that moves in
	// its favor. Deprecated: legacy policy, kept for comparison runs only;
	// take-profit/stop-loss distances are the primary close trigger.
	CloseOnFavorableMove bool
	GatewayTimeout       time.Duration
}

// trackedOrder is one live position opened for a signal.
type trackedOrder struct {
	id         string // empty until placement confirms; unconfirmed orders are never closed
	symbol     string
	side       market.Side
	direction  market.Trend
	quantity   float64
	entryPrice float64
	openedAt   time.Time
	closing    bool // counter-order in flight
}

// Manager enforces the per-symbol concurrency cap, opens a market order per
// confirmed signal and closes positions on take-profit/stop-loss or signal
// closure. It implements signal.Listener.
type Manager struct {
	cfg     Config
	gateway exchange.OrderGateway

	mu        sync.Mutex
	active    map[string][]*trackedOrder // keyed by symbol
	realized  decimal.Decimal
	dismissed bool
	done      chan struct{}
	doneOnce  sync.Once
}

// NewManager creates an order lifecycle manager.
func NewManager(cfg Config, gateway exchange.OrderGateway) *Manager {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	return &Manager{
		cfg:     cfg,
		gateway: gateway,
		active:  make(map[string][]*trackedOrder),
		done:    make(chan struct{}),
	}
}

// Done is closed once a profit/loss boundary dismissed new orders and every
// active order has finished.
func (m *Manager) Done() <-chan struct{} { return m.done }

// RealizedPnL returns the cumulative realized profit and loss.
func (m *Manager) RealizedPnL() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.realized
}

// ActiveOrders returns the number of live positions for a symbol.
func (m *Manager) ActiveOrders(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active[symbol])
}

// OnSignalOpened places a market order for the signal's direction, provided
// the per-symbol cap allows it and orders have not been dismissed.
func (m *Manager) OnSignalOpened(s *signal.MarketSignal) {
	side := market.SideBuy
	if s.Direction == market.TrendDown {
		side = market.SideSell
	}

	m.mu.Lock()
	if m.dismissed {
		m.mu.Unlock()
		logger.Infof("Order invocation dismissed, ignoring signal for %s", s.Symbol)
		return
	}
	if len(m.active[s.Symbol]) >= m.cfg.MaxActivePerSymbol {
		m.mu.Unlock()
		logger.Infof("Active order cap reached for %s, ignoring signal", s.Symbol)
		return
	}
	// Reserve the slot before the network call so concurrent signals cannot
	// exceed the cap while placement is in flight.
	ord := &trackedOrder{
		symbol:     s.Symbol,
		side:       side,
		direction:  s.Direction,
		quantity:   m.cfg.Volume,
		entryPrice: s.EntryPrice,
		openedAt:   s.OpenedAt,
	}
	m.active[s.Symbol] = append(m.active[s.Symbol], ord)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.GatewayTimeout)
	defer cancel()
	id, err := m.gateway.PlaceOrder(ctx, s.Symbol, side, m.cfg.Volume)
	if err != nil {
		logger.Errorf("Order placement failed for %s: %v", s.Symbol, err)
		m.remove(ord)
		return
	}

	m.mu.Lock()
	ord.id = id
	m.mu.Unlock()
	metrics.OrdersPlaced.WithLabelValues(s.Symbol, side.String()).Inc()
	logger.Infof("Order %s placed: %s %s qty=%.6f entry=%.4f", id, s.Symbol, side, m.cfg.Volume, s.EntryPrice)
}

// OnSignalClosed closes every position opened for the signal's direction.
func (m *Manager) OnSignalClosed(s *signal.MarketSignal) {
	m.mu.Lock()
	var toClose []*trackedOrder
	for _, ord := range m.active[s.Symbol] {
		if ord.id != "" && ord.direction == s.Direction && !ord.closing {
			ord.closing = true
			toClose = append(toClose, ord)
		}
	}
	m.mu.Unlock()

	for _, ord := range toClose {
		m.finishOrder(ord, s.ExitPrice)
	}
}

// OnTickerUpdate evaluates the close conditions of every active order on the
// symbol against the latest price.
func (m *Manager) OnTickerUpdate(symbol string, price float64) {
	m.mu.Lock()
	var toClose []*trackedOrder
	for _, ord := range m.active[symbol] {
		if ord.closing || ord.id == "" {
			continue
		}
		move := price - ord.entryPrice
		if ord.direction == market.TrendDown {
			move = -move
		}
		shouldClose := false
		switch {
		case m.cfg.CloseOnFavorableMove && move > 0:
			shouldClose = true
		case m.cfg.TakeProfit > 0 && move >= m.cfg.TakeProfit:
			shouldClose = true
		case m.cfg.StopLoss < 0 && move <= m.cfg.StopLoss:
			shouldClose = true
		}
		if shouldClose {
			ord.closing = true
			toClose = append(toClose, ord)
		}
	}
	m.mu.Unlock()

	for _, ord := range toClose {
		m.finishOrder(ord, price)
	}
}

// CloseAll closes every active position at the given price. Used on forced
// shutdown.
func (m *Manager) CloseAll(price func(symbol string) float64) {
	m.mu.Lock()
	var toClose []*trackedOrder
	for _, orders := range m.active {
		for _, ord := range orders {
			if !ord.closing && ord.id != "" {
				ord.closing = true
				toClose = append(toClose, ord)
			}
		}
	}
	m.mu.Unlock()

	for _, ord := range toClose {
		m.finishOrder(ord, price(ord.symbol))
	}
}

// finishOrder requests the counter-order, records realized P&L and releases
// the slot. A failed counter-order re-arms the position so the next tick
// retries rather than leaving it half-closed.
func (m *Manager) finishOrder(ord *trackedOrder, exitPrice float64) {
	counter := market.SideSell
	if ord.side == market.SideSell {
		counter = market.SideBuy
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.GatewayTimeout)
	defer cancel()
	if _, err := m.gateway.PlaceOrder(ctx, ord.symbol, counter, ord.quantity); err != nil {
		logger.Errorf("Counter-order failed for %s order %s: %v", ord.symbol, ord.id, err)
		m.mu.Lock()
		ord.closing = false
		m.mu.Unlock()
		return
	}
	metrics.OrdersPlaced.WithLabelValues(ord.symbol, counter.String()).Inc()

	pnl := decimal.NewFromFloat(exitPrice).Sub(decimal.NewFromFloat(ord.entryPrice)).
		Mul(decimal.NewFromFloat(ord.quantity))
	if ord.direction == market.TrendDown {
		pnl = pnl.Neg()
	}

	m.mu.Lock()
	m.realized = m.realized.Add(pnl)
	realized, _ := m.realized.Float64()
	m.removeLocked(ord)
	m.checkBoundariesLocked(realized)
	remaining := m.totalActiveLocked()
	dismissed := m.dismissed
	m.mu.Unlock()

	metrics.RealizedPnL.Set(realized)
	logger.Infof("Order %s finished: %s exit=%.4f pnl=%s realized=%.4f", ord.id, ord.symbol, exitPrice, pnl, realized)

	if dismissed && remaining == 0 {
		m.doneOnce.Do(func() { close(m.done) })
	}
}

func (m *Manager) remove(ord *trackedOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(ord)
}

func (m *Manager) removeLocked(ord *trackedOrder) {
	orders := m.active[ord.symbol]
	for i, o := range orders {
		if o == ord {
			m.active[ord.symbol] = append(orders[:i], orders[i+1:]...)
			return
		}
	}
}

func (m *Manager) totalActiveLocked() int {
	total := 0
	for _, orders := range m.active {
		total += len(orders)
	}
	return total
}

// checkBoundariesLocked flips the dismissal flag once the configured total
// profit or loss boundary is reached.
func (m *Manager) checkBoundariesLocked(realized float64) {
	if m.dismissed {
		return
	}
	if (m.cfg.ProfitBoundary > 0 && realized >= m.cfg.ProfitBoundary) ||
		(m.cfg.LossBoundary < 0 && realized <= m.cfg.LossBoundary) {
		m.dismissed = true
		logger.Infof("Profit/loss boundary reached (realized=%.4f), dismissing new orders", realized)
	}
}
