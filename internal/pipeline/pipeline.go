// Package pipeline feeds raw exchange events into per-symbol entity windows
// (producer side) and drains ready windows into market information for the
// signal engine (consumer side).
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/your-org/flow-signal-bot/internal/market"
	"github.com/your-org/flow-signal-bot/internal/metrics"
	"github.com/your-org/flow-signal-bot/internal/report"
	"github.com/your-org/flow-signal-bot/internal/signal"
	"github.com/your-org/flow-signal-bot/pkg/logger"
)

// Config holds the aggregation parameters of the pipeline.
type Config struct {
	Symbols         []string
	WindowSize      int
	SubwindowCount  int
	OrderbookDepth  int
	EntityEveryN    int           // synthesize an entity every N raw trades
	EntityInterval  time.Duration // and at least once per interval when trades are pending
	TradeBufferSize int
	EvalTimeout     time.Duration // consumer wake-up interval when no notify arrives
	Thresholds      market.Thresholds
}

// symbolState is all mutable per-symbol state, guarded by its own lock so
// symbols never contend with each other. The notify channel wakes the
// consumer without busy-waiting.
type symbolState struct {
	symbol      string
	mu          sync.Mutex
	trades      *tradeBuffer
	book        market.BookSnapshot
	window      *market.EntityWindow
	sinceEntity int
	notify      chan struct{}
}

// Pipeline owns one producer and one consumer loop per symbol.
type Pipeline struct {
	cfg    Config
	engine *signal.Engine
	sink   report.Sink // may be nil
	states map[string]*symbolState
	wg     sync.WaitGroup
}

// New creates a pipeline for the configured symbols.
func New(cfg Config, engine *signal.Engine, sink report.Sink) *Pipeline {
	if cfg.EntityEveryN <= 0 {
		cfg.EntityEveryN = 1
	}
	if cfg.EntityInterval <= 0 {
		cfg.EntityInterval = time.Second
	}
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = time.Second
	}
	p := &Pipeline{
		cfg:    cfg,
		engine: engine,
		sink:   sink,
		states: make(map[string]*symbolState, len(cfg.Symbols)),
	}
	for _, sym := range cfg.Symbols {
		p.states[sym] = &symbolState{
			symbol: sym,
			trades: newTradeBuffer(cfg.TradeBufferSize),
			book:   market.BookSnapshot{Symbol: sym},
			window: market.NewEntityWindow(sym, cfg.WindowSize),
			notify: make(chan struct{}, 1),
		}
	}
	return p
}

// Start launches the per-symbol producer tickers and consumer loops. They run
// until the context is cancelled; Wait blocks until all have stopped.
func (p *Pipeline) Start(ctx context.Context) {
	for _, st := range p.states {
		p.wg.Add(2)
		go p.runProducerTicker(ctx, st)
		go p.runConsumer(ctx, st)
	}
}

// Wait blocks until all pipeline goroutines have exited.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// OnTrades applies a batch of trades, in arrival order, to the symbol's raw
// buffer and synthesizes an entity once enough trades accumulated. Unknown
// symbols are dropped.
func (p *Pipeline) OnTrades(symbol string, trades []market.Trade) {
	st, ok := p.states[symbol]
	if !ok || len(trades) == 0 {
		return
	}
	metrics.TradesIngested.WithLabelValues(symbol).Add(float64(len(trades)))

	st.mu.Lock()
	for _, t := range trades {
		st.trades.Add(t)
	}
	st.sinceEntity += len(trades)
	pushed := false
	if st.sinceEntity >= p.cfg.EntityEveryN {
		pushed = p.synthesizeLocked(st, time.Now().UTC())
	}
	st.mu.Unlock()

	if pushed {
		st.wake()
	}
}

// OnBook applies a snapshot or an incremental update to the symbol's book.
func (p *Pipeline) OnBook(symbol string, snapshot bool, bids, asks []market.PriceLevel, at time.Time) {
	st, ok := p.states[symbol]
	if !ok {
		return
	}
	st.mu.Lock()
	if snapshot {
		st.book.ApplySnapshot(bids, asks, at)
	} else {
		st.book.ApplyUpdate(bids, asks, at)
	}
	st.mu.Unlock()
}

// synthesizeLocked drains the raw buffer into one immutable entity and pushes
// it into the window. Caller holds the symbol lock. An empty buffer is a no-op.
func (p *Pipeline) synthesizeLocked(st *symbolState, at time.Time) bool {
	trades := st.trades.Drain()
	st.sinceEntity = 0
	if len(trades) == 0 {
		return false
	}
	entity := market.NewMarketEntity(st.symbol, trades, &st.book, at)
	st.window.Push(entity)
	metrics.EntitiesCreated.WithLabelValues(st.symbol).Inc()
	if p.sink != nil {
		if err := p.sink.Write(report.EntityRecord(&entity)); err != nil {
			logger.Warnf("Failed to dump entity for %s: %v", st.symbol, err)
		}
	}
	return true
}

// runProducerTicker synthesizes pending trades at least once per interval so
// quiet symbols still produce entities for the window.
func (p *Pipeline) runProducerTicker(ctx context.Context, st *symbolState) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.EntityInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.mu.Lock()
			pushed := p.synthesizeLocked(st, time.Now().UTC())
			st.mu.Unlock()
			if pushed {
				st.wake()
			}
		}
	}
}

// runConsumer waits for a notify (with a timeout fallback rather than a tight
// poll), then snapshots a ready and dirty window, evaluates it outside the
// lock and hands the result to the signal engine.
func (p *Pipeline) runConsumer(ctx context.Context, st *symbolState) {
	defer p.wg.Done()
	timer := time.NewTimer(p.cfg.EvalTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-st.notify:
		case <-timer.C:
		}
		timer.Reset(p.cfg.EvalTimeout)

		st.mu.Lock()
		if !st.window.IsReady() || !st.window.Dirty() {
			st.mu.Unlock()
			continue
		}
		entities := st.window.Snapshot()
		st.window.MarkEvaluated()
		st.mu.Unlock()

		mi := market.BuildMarketInformation(st.symbol, entities,
			p.cfg.SubwindowCount, p.cfg.OrderbookDepth, p.cfg.Thresholds, time.Now().UTC())
		metrics.WindowsEvaluated.WithLabelValues(st.symbol).Inc()
		if p.sink != nil {
			if err := p.sink.Write(report.InformationRecord(&mi)); err != nil {
				logger.Warnf("Failed to dump market information for %s: %v", st.symbol, err)
			}
		}
		p.engine.OnMarketInformation(mi)
	}
}

// wake nudges the consumer. Non-blocking: a pending notification already
// covers this push.
func (st *symbolState) wake() {
	select {
	case st.notify <- struct{}{}:
	default:
	}
}
