// Package dbwriter persists market data and signal outcomes to TimescaleDB.
// Trades are buffered and batch-inserted with COPY; signals and stats are
// written row by row since they are rare.
package dbwriter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/your-org/flow-signal-bot/internal/market"
	"github.com/your-org/flow-signal-bot/internal/signal"
)

// Pool abstracts pgxpool.Pool for testability.
type Pool interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Close()
}

// Config controls the batching behavior.
type Config struct {
	BatchSize            int
	WriteIntervalSeconds int
}

// Writer persists trades, closed signals and per-symbol stats. A Writer built
// over a nil pool is a no-op, so callers never branch on persistence being
// enabled.
type Writer struct {
	pool   Pool
	logger *zap.Logger
	config Config

	bufferMutex sync.Mutex
	tradeBuffer []market.Trade

	flushTicker  *time.Ticker
	shutdownChan chan struct{}
}

// NewWriter creates a TimescaleDB writer. Pass a nil pool to get a dummy
// writer that drops everything.
func NewWriter(pool Pool, cfg Config, logger *zap.Logger) *Writer {
	if pool == nil {
		logger.Info("No database pool provided, creating dummy DB writer.")
		return &Writer{logger: logger, shutdownChan: make(chan struct{})}
	}

	if cfg.BatchSize <= 0 {
		logger.Warn("BatchSize is zero or negative, defaulting to 100.", zap.Int("originalValue", cfg.BatchSize))
		cfg.BatchSize = 100
	}
	if cfg.WriteIntervalSeconds <= 0 {
		logger.Warn("WriteIntervalSeconds is zero or negative, defaulting to 1s.", zap.Int("originalValue", cfg.WriteIntervalSeconds))
		cfg.WriteIntervalSeconds = 1
	}

	w := &Writer{
		pool:         pool,
		logger:       logger,
		config:       cfg,
		tradeBuffer:  make([]market.Trade, 0, cfg.BatchSize),
		flushTicker:  time.NewTicker(time.Duration(cfg.WriteIntervalSeconds) * time.Second),
		shutdownChan: make(chan struct{}),
	}
	go w.run()
	logger.Info("Started TimescaleDB batch writer",
		zap.Int("batchSize", cfg.BatchSize),
		zap.Int("writeIntervalSeconds", cfg.WriteIntervalSeconds))
	return w
}

// Close flushes the remaining buffer and releases the pool.
func (w *Writer) Close() {
	if w.pool == nil {
		w.logger.Info("Closing dummy DB writer.")
		return
	}
	w.logger.Info("Closing TimescaleDB writer...")
	close(w.shutdownChan)
	w.flushTicker.Stop()
	w.flushTrades()
	w.pool.Close()
	w.logger.Info("TimescaleDB connection pool closed")
}

func (w *Writer) run() {
	for {
		select {
		case <-w.flushTicker.C:
			w.flushTrades()
		case <-w.shutdownChan:
			return
		}
	}
}

// SaveTrades appends executed trades to the batch buffer.
func (w *Writer) SaveTrades(trades []market.Trade) {
	if w.pool == nil {
		return
	}
	w.bufferMutex.Lock()
	w.tradeBuffer = append(w.tradeBuffer, trades...)
	shouldFlush := len(w.tradeBuffer) >= w.config.BatchSize
	w.bufferMutex.Unlock()

	if shouldFlush {
		w.flushTrades()
	}
}

func (w *Writer) flushTrades() {
	if w.pool == nil {
		return
	}
	w.bufferMutex.Lock()
	if len(w.tradeBuffer) == 0 {
		w.bufferMutex.Unlock()
		return
	}
	batch := w.tradeBuffer
	w.tradeBuffer = make([]market.Trade, 0, w.config.BatchSize)
	w.bufferMutex.Unlock()

	w.logger.Debug("Flushing trades", zap.Int("count", len(batch)))
	_, err := w.pool.CopyFrom(
		context.Background(),
		pgx.Identifier{"market_trades"},
		[]string{"time", "symbol", "side", "price", "quantity", "trade_id"},
		pgx.CopyFromRows(toTradeRows(batch)),
	)
	if err != nil {
		w.logger.Error("Failed to batch insert trades", zap.Error(err))
	}
}

func toTradeRows(trades []market.Trade) [][]interface{} {
	rows := make([][]interface{}, len(trades))
	for i, t := range trades {
		rows[i] = []interface{}{t.Time, t.Symbol, t.Side.String(), t.Price, t.Quantity, t.ID}
	}
	return rows
}

// SaveSignal persists one closed signal.
func (w *Writer) SaveSignal(ctx context.Context, s *signal.MarketSignal) error {
	if w.pool == nil {
		w.logger.Debug("Skipping signal save for dummy writer", zap.String("symbol", s.Symbol))
		return nil
	}
	query := `INSERT INTO market_signals (symbol, direction, entry_price, exit_price, opened_at, closed_at, roi, close_reason)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := w.pool.Exec(ctx, query,
		s.Symbol, s.Direction.String(), s.EntryPrice, s.ExitPrice,
		s.OpenedAt, s.ClosedAt, s.ROI, string(s.CloseReason),
	)
	if err != nil {
		w.logger.Error("Failed to insert signal", zap.Error(err), zap.String("symbol", s.Symbol))
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

// SaveSymbolStats upserts the running per-symbol stats row.
func (w *Writer) SaveSymbolStats(ctx context.Context, at time.Time, ss *signal.SymbolStats) error {
	if w.pool == nil {
		w.logger.Debug("Skipping stats save for dummy writer", zap.String("symbol", ss.Symbol))
		return nil
	}
	query := `INSERT INTO symbol_stats (symbol, total, profit, loss, neutral, cumulative_roi, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (symbol) DO UPDATE SET
	            total = EXCLUDED.total, profit = EXCLUDED.profit, loss = EXCLUDED.loss,
	            neutral = EXCLUDED.neutral, cumulative_roi = EXCLUDED.cumulative_roi,
	            updated_at = EXCLUDED.updated_at`
	_, err := w.pool.Exec(ctx, query,
		ss.Symbol, ss.Total, ss.Profit, ss.Loss, ss.Neutral, ss.CumulativeROI, at,
	)
	if err != nil {
		w.logger.Error("Failed to upsert symbol stats", zap.Error(err), zap.String("symbol", ss.Symbol))
		return fmt.Errorf("failed to upsert symbol stats: %w", err)
	}
	return nil
}
