package dbwriter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/flow-signal-bot/internal/market"
	"github.com/your-org/flow-signal-bot/internal/signal"
)

// mockPool records CopyFrom and Exec calls.
type mockPool struct {
	mu        sync.Mutex
	copyCalls []copyCall
	execCalls []execCall
	closed    bool
}

type copyCall struct {
	table   string
	columns []string
	rows    [][]interface{}
}

type execCall struct {
	sql  string
	args []interface{}
}

func (m *mockPool) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	var rows [][]interface{}
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return 0, err
		}
		rows = append(rows, values)
	}
	m.mu.Lock()
	m.copyCalls = append(m.copyCalls, copyCall{table: table.Sanitize(), columns: columns, rows: rows})
	m.mu.Unlock()
	return int64(len(rows)), nil
}

func (m *mockPool) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	m.mu.Lock()
	m.execCalls = append(m.execCalls, execCall{sql: sql, args: args})
	m.mu.Unlock()
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockPool) QueryRow(_ context.Context, _ string, _ ...interface{}) pgx.Row {
	return nil
}

func (m *mockPool) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func testTrades(n int) []market.Trade {
	trades := make([]market.Trade, n)
	for i := range trades {
		trades[i] = market.Trade{
			ID:       int64(i + 1),
			Symbol:   "BTCUSDT",
			Side:     market.SideBuy,
			Price:    100 + float64(i),
			Quantity: 1,
			Time:     time.Date(2024, 5, 1, 0, 0, i, 0, time.UTC),
		}
	}
	return trades
}

func TestWriterFlushesWhenBatchFull(t *testing.T) {
	pool := &mockPool{}
	w := NewWriter(pool, Config{BatchSize: 3, WriteIntervalSeconds: 3600}, zap.NewNop())
	defer w.Close()

	w.SaveTrades(testTrades(2))
	pool.mu.Lock()
	assert.Empty(t, pool.copyCalls, "batch below threshold must not flush")
	pool.mu.Unlock()

	w.SaveTrades(testTrades(1))
	pool.mu.Lock()
	require.Len(t, pool.copyCalls, 1)
	call := pool.copyCalls[0]
	pool.mu.Unlock()

	assert.Equal(t, `"market_trades"`, call.table)
	assert.Len(t, call.rows, 3)
	assert.Equal(t, "buy", call.rows[0][2])
}

func TestWriterFlushesOnClose(t *testing.T) {
	pool := &mockPool{}
	w := NewWriter(pool, Config{BatchSize: 100, WriteIntervalSeconds: 3600}, zap.NewNop())

	w.SaveTrades(testTrades(5))
	w.Close()

	pool.mu.Lock()
	defer pool.mu.Unlock()
	require.Len(t, pool.copyCalls, 1)
	assert.Len(t, pool.copyCalls[0].rows, 5)
	assert.True(t, pool.closed)
}

func TestWriterSaveSignal(t *testing.T) {
	pool := &mockPool{}
	w := NewWriter(pool, Config{BatchSize: 10, WriteIntervalSeconds: 3600}, zap.NewNop())
	defer w.Close()

	s := &signal.MarketSignal{
		Symbol:      "ETHUSDT",
		Direction:   market.TrendUp,
		EntryPrice:  2000,
		ExitPrice:   2010,
		OpenedAt:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		ClosedAt:    time.Date(2024, 5, 1, 0, 1, 0, 0, time.UTC),
		ROI:         10,
		CloseReason: signal.CloseTakeProfit,
	}
	require.NoError(t, w.SaveSignal(context.Background(), s))

	pool.mu.Lock()
	defer pool.mu.Unlock()
	require.Len(t, pool.execCalls, 1)
	assert.Contains(t, pool.execCalls[0].sql, "INSERT INTO market_signals")
	assert.Equal(t, "ETHUSDT", pool.execCalls[0].args[0])
	assert.Equal(t, "UPTREND", pool.execCalls[0].args[1])
}

func TestWriterSaveSymbolStats(t *testing.T) {
	pool := &mockPool{}
	w := NewWriter(pool, Config{BatchSize: 10, WriteIntervalSeconds: 3600}, zap.NewNop())
	defer w.Close()

	ss := &signal.SymbolStats{Symbol: "BTCUSDT", Total: 4, Profit: 2, Loss: 1, Neutral: 1, CumulativeROI: 12.5}
	require.NoError(t, w.SaveSymbolStats(context.Background(), time.Now(), ss))

	pool.mu.Lock()
	defer pool.mu.Unlock()
	require.Len(t, pool.execCalls, 1)
	assert.Contains(t, pool.execCalls[0].sql, "ON CONFLICT (symbol)")
}

func TestDummyWriterDropsEverything(t *testing.T) {
	w := NewWriter(nil, Config{}, zap.NewNop())
	w.SaveTrades(testTrades(3))
	require.NoError(t, w.SaveSignal(context.Background(), &signal.MarketSignal{Symbol: "BTCUSDT"}))
	require.NoError(t, w.SaveSymbolStats(context.Background(), time.Now(), &signal.SymbolStats{Symbol: "BTCUSDT"}))
	w.Close()
}
