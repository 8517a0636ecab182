package signal

import (
	"sync"
	"time"

	"github.com/your-org/flow-signal-bot/internal/market"
	"github.com/your-org/flow-signal-bot/pkg/logger"
)

// PriceSource supplies the latest ticker price for a symbol. The order gateway
// satisfies this interface.
type PriceSource interface {
	Price(symbol string) (float64, error)
}

// Listener receives signal lifecycle events. Calls are serialized per symbol
// and carry a copy of the signal.
type Listener interface {
	OnSignalOpened(s *MarketSignal)
	OnSignalClosed(s *MarketSignal)
}

// EngineConfig holds the close-condition distances. A zero distance disables
// that trigger.
type EngineConfig struct {
	TakeProfit float64 // favorable price distance from entry, >= 0
	StopLoss   float64 // adverse price distance from entry, <= 0
}

// Engine consumes MarketInformation per symbol and maintains at most one open
// MarketSignal per symbol: it opens one when a direction confirms and closes
// it on reversal, take-profit, stop-loss or forced end-of-data.
type Engine struct {
	cfg       EngineConfig
	prices    PriceSource
	stats     *Stats
	listeners []Listener

	mu    sync.Mutex
	slots map[string]*symbolSlot
}

// symbolSlot serializes open/close decisions for one symbol.
type symbolSlot struct {
	mu        sync.Mutex
	active    *MarketSignal
	lastPrice float64
	failed    bool // corrupt data seen, symbol is no longer evaluated
}

// NewEngine creates a signal engine.
func NewEngine(cfg EngineConfig, prices PriceSource, stats *Stats) *Engine {
	return &Engine{
		cfg:    cfg,
		prices: prices,
		stats:  stats,
		slots:  make(map[string]*symbolSlot),
	}
}

// AddListener registers a lifecycle listener. Not safe to call after the
// pipeline has started.
func (e *Engine) AddListener(l Listener) {
	e.listeners = append(e.listeners, l)
}

func (e *Engine) slot(symbol string) *symbolSlot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slots[symbol]
	if !ok {
		s = &symbolSlot{}
		e.slots[symbol] = s
	}
	return s
}

// OnMarketInformation advances the state machine for one symbol. The whole
// open/close decision and mutation happens under the symbol lock; if the price
// lookup fails the tick is skipped and retried on the next evaluation, leaving
// the signal untouched.
func (e *Engine) OnMarketInformation(mi market.MarketInformation) {
	slot := e.slot(mi.Symbol)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.failed {
		return
	}
	if mi.ActiveBuyVolume < 0 || mi.ActiveSellVolume < 0 {
		// Negative volume means corrupted upstream state. Abort this symbol
		// rather than trading on it; other symbols are unaffected.
		slot.failed = true
		logger.Errorf("Aborting symbol %s: negative active volume (buy=%.4f sell=%.4f)",
			mi.Symbol, mi.ActiveBuyVolume, mi.ActiveSellVolume)
		return
	}

	if slot.active != nil {
		if mi.PreferredDirection == market.TrendUnknown || mi.PreferredDirection == slot.active.Direction {
			// Same confirmed direction while active is ignored: never re-open
			// or duplicate.
			return
		}
		price, err := e.prices.Price(mi.Symbol)
		if err != nil {
			logger.Warnf("Price lookup failed for %s, skipping reversal close this tick: %v", mi.Symbol, err)
			return
		}
		e.closeLocked(slot, price, mi.CreatedAt, CloseReversal)
		return
	}

	if mi.PreferredDirection == market.TrendUnknown {
		return
	}
	price, err := e.prices.Price(mi.Symbol)
	if err != nil {
		logger.Warnf("Price lookup failed for %s, skipping open this tick: %v", mi.Symbol, err)
		return
	}

	s := &MarketSignal{
		Symbol:     mi.Symbol,
		Direction:  mi.PreferredDirection,
		EntryPrice: price,
		OpenedAt:   mi.CreatedAt,
		Active:     true,
	}
	slot.active = s
	slot.lastPrice = price
	logger.Infof("Signal opened: %s", s)
	cp := *s
	for _, l := range e.listeners {
		l.OnSignalOpened(&cp)
	}
}

// OnPrice records the latest ticker price for a symbol and evaluates the
// take-profit / stop-loss close conditions of the active signal, if any.
func (e *Engine) OnPrice(symbol string, price float64, at time.Time) {
	slot := e.slot(symbol)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	slot.lastPrice = price
	if slot.failed || slot.active == nil {
		return
	}

	move := price - slot.active.EntryPrice
	if slot.active.Direction == market.TrendDown {
		move = -move
	}
	switch {
	case e.cfg.TakeProfit > 0 && move >= e.cfg.TakeProfit:
		e.closeLocked(slot, price, at, CloseTakeProfit)
	case e.cfg.StopLoss < 0 && move <= e.cfg.StopLoss:
		e.closeLocked(slot, price, at, CloseStopLoss)
	}
}

// CloseAll force-closes every active signal at its last known price. Used at
// the end of a replay feed and on shutdown.
func (e *Engine) CloseAll(at time.Time) {
	e.mu.Lock()
	slots := make(map[string]*symbolSlot, len(e.slots))
	for sym, s := range e.slots {
		slots[sym] = s
	}
	e.mu.Unlock()

	for _, slot := range slots {
		slot.mu.Lock()
		if slot.active != nil {
			price := slot.lastPrice
			if price == 0 {
				price = slot.active.EntryPrice
			}
			e.closeLocked(slot, price, at, CloseEndOfData)
		}
		slot.mu.Unlock()
	}
}

// ActiveSignal returns a copy of the active signal for a symbol, if any.
func (e *Engine) ActiveSignal(symbol string) (MarketSignal, bool) {
	slot := e.slot(symbol)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.active == nil {
		return MarketSignal{}, false
	}
	return *slot.active, true
}

// closeLocked finalizes the active signal, updates the stats exactly once and
// empties the slot. Caller holds the slot lock.
func (e *Engine) closeLocked(slot *symbolSlot, price float64, at time.Time, reason CloseReason) {
	s := slot.active
	if s == nil || !s.close(price, at, reason) {
		return
	}
	slot.active = nil
	e.stats.RecordClose(s)
	logger.Infof("Signal closed: %s", s)
	cp := *s
	for _, l := range e.listeners {
		l.OnSignalClosed(&cp)
	}
}
