package order

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/flow-signal-bot/internal/exchange"
	"github.com/your-org/flow-signal-bot/internal/market"
	"github.com/your-org/flow-signal-bot/internal/signal"
)

// mockGateway records placed orders and can be told to fail.
type mockGateway struct {
	mu     sync.Mutex
	placed []placedOrder
	fail   bool
	nextID int
}

type placedOrder struct {
	symbol   string
	side     market.Side
	quantity float64
}

func (g *mockGateway) PlaceOrder(_ context.Context, symbol string, side market.Side, quantity float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return "", fmt.Errorf("gateway down")
	}
	g.nextID++
	g.placed = append(g.placed, placedOrder{symbol, side, quantity})
	return fmt.Sprintf("order-%d", g.nextID), nil
}

func (g *mockGateway) GetPrice(context.Context, string) (float64, error) { return 0, nil }
func (g *mockGateway) GetOrder(context.Context, string) (*exchange.Order, error) {
	return nil, fmt.Errorf("not implemented")
}
func (g *mockGateway) CancelOrder(context.Context, string) (bool, error) { return false, nil }
func (g *mockGateway) GetBalances(context.Context) ([]exchange.Balance, error) {
	return nil, nil
}

func (g *mockGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.placed)
}

func upSignal(entry float64) *signal.MarketSignal {
	return &signal.MarketSignal{
		Symbol:     "BTCUSDT",
		Direction:  market.TrendUp,
		EntryPrice: entry,
		OpenedAt:   time.Now().UTC(),
		Active:     true,
	}
}

func testConfig() Config {
	return Config{
		Volume:             0.5,
		MaxActivePerSymbol: 1,
		TakeProfit:         10,
		StopLoss:           -5,
		ProfitBoundary:     100,
		LossBoundary:       -50,
	}
}

func TestManagerPlacesOrderOnSignalOpen(t *testing.T) {
	gw := &mockGateway{}
	m := NewManager(testConfig(), gw)

	m.OnSignalOpened(upSignal(100))

	require.Equal(t, 1, gw.count())
	assert.Equal(t, market.SideBuy, gw.placed[0].side)
	assert.Equal(t, 0.5, gw.placed[0].quantity)
	assert.Equal(t, 1, m.ActiveOrders("BTCUSDT"))
}

func TestManagerSellsOnDowntrendSignal(t *testing.T) {
	gw := &mockGateway{}
	m := NewManager(testConfig(), gw)

	s := upSignal(100)
	s.Direction = market.TrendDown
	m.OnSignalOpened(s)

	require.Equal(t, 1, gw.count())
	assert.Equal(t, market.SideSell, gw.placed[0].side)
}

func TestManagerEnforcesPerSymbolCap(t *testing.T) {
	gw := &mockGateway{}
	m := NewManager(testConfig(), gw)

	m.OnSignalOpened(upSignal(100))
	m.OnSignalOpened(upSignal(101))

	assert.Equal(t, 1, gw.count(), "cap of one active order per symbol")
	assert.Equal(t, 1, m.ActiveOrders("BTCUSDT"))
}

func TestManagerReleasesSlotOnPlacementFailure(t *testing.T) {
	gw := &mockGateway{fail: true}
	m := NewManager(testConfig(), gw)

	m.OnSignalOpened(upSignal(100))
	assert.Equal(t, 0, m.ActiveOrders("BTCUSDT"), "failed placement must free the slot")

	gw.fail = false
	m.OnSignalOpened(upSignal(100))
	assert.Equal(t, 1, m.ActiveOrders("BTCUSDT"))
}

func TestManagerClosesOnTakeProfit(t *testing.T) {
	gw := &mockGateway{}
	m := NewManager(testConfig(), gw)

	m.OnSignalOpened(upSignal(100))
	m.OnTickerUpdate("BTCUSDT", 111)

	require.Equal(t, 2, gw.count(), "counter-order placed")
	assert.Equal(t, market.SideSell, gw.placed[1].side)
	assert.Equal(t, 0, m.ActiveOrders("BTCUSDT"))
	// (111-100) * 0.5
	assert.InDelta(t, 5.5, m.RealizedPnL().InexactFloat64(), 1e-9)
}

func TestManagerClosesOnStopLoss(t *testing.T) {
	gw := &mockGateway{}
	m := NewManager(testConfig(), gw)

	m.OnSignalOpened(upSignal(100))
	m.OnTickerUpdate("BTCUSDT", 94)

	require.Equal(t, 2, gw.count())
	assert.InDelta(t, -3.0, m.RealizedPnL().InexactFloat64(), 1e-9)
}

func TestManagerDowntrendPnLSign(t *testing.T) {
	gw := &mockGateway{}
	m := NewManager(testConfig(), gw)

	s := upSignal(100)
	s.Direction = market.TrendDown
	m.OnSignalOpened(s)
	m.OnTickerUpdate("BTCUSDT", 90)

	// Short position profits when price falls: (100-90) * 0.5.
	assert.InDelta(t, 5.0, m.RealizedPnL().InexactFloat64(), 1e-9)
	assert.Equal(t, market.SideBuy, gw.placed[1].side, "short closes with a buy")
}

func TestManagerHoldsWithinBands(t *testing.T) {
	gw := &mockGateway{}
	m := NewManager(testConfig(), gw)

	m.OnSignalOpened(upSignal(100))
	m.OnTickerUpdate("BTCUSDT", 104)
	m.OnTickerUpdate("BTCUSDT", 97)

	assert.Equal(t, 1, gw.count(), "no close within the bands")
	assert.Equal(t, 1, m.ActiveOrders("BTCUSDT"))
}

func TestManagerClosesOnSignalClosure(t *testing.T) {
	gw := &mockGateway{}
	m := NewManager(testConfig(), gw)

	m.OnSignalOpened(upSignal(100))

	closed := upSignal(100)
	closed.Active = false
	closed.ExitPrice = 103
	closed.CloseReason = signal.CloseReversal
	m.OnSignalClosed(closed)

	require.Equal(t, 2, gw.count())
	assert.Equal(t, 0, m.ActiveOrders("BTCUSDT"))
	assert.InDelta(t, 1.5, m.RealizedPnL().InexactFloat64(), 1e-9)
}

func TestManagerFavorableMovePolicy(t *testing.T) {
	cfg := testConfig()
	cfg.CloseOnFavorableMove = true
	gw := &mockGateway{}
	m := NewManager(cfg, gw)

	m.OnSignalOpened(upSignal(100))
	m.OnTickerUpdate("BTCUSDT", 100.01)

	assert.Equal(t, 2, gw.count(), "legacy policy closes on the first favorable tick")
}

func TestManagerDismissesOnLossBoundary(t *testing.T) {
	cfg := testConfig()
	cfg.LossBoundary = -2
	gw := &mockGateway{}
	m := NewManager(cfg, gw)

	m.OnSignalOpened(upSignal(100))
	m.OnTickerUpdate("BTCUSDT", 94) // realized -3, below the boundary

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("Done must close once dismissed with no active orders")
	}

	m.OnSignalOpened(upSignal(100))
	assert.Equal(t, 2, gw.count(), "no new orders after dismissal")
}

// blockingGateway stalls the first placement until gate yields.
type blockingGateway struct {
	mockGateway
	stalled chan struct{} // closed once the first placement is in flight
	gate    chan error
	first   bool
}

func (g *blockingGateway) PlaceOrder(ctx context.Context, symbol string, side market.Side, quantity float64) (string, error) {
	g.mu.Lock()
	stall := !g.first
	g.first = true
	g.mu.Unlock()
	if stall {
		close(g.stalled)
		if err := <-g.gate; err != nil {
			return "", err
		}
	}
	return g.mockGateway.PlaceOrder(ctx, symbol, side, quantity)
}

func newBlockingGateway() *blockingGateway {
	return &blockingGateway{stalled: make(chan struct{}), gate: make(chan error, 1)}
}

func TestManagerIgnoresUnconfirmedOrderOnTicker(t *testing.T) {
	gw := newBlockingGateway()
	m := NewManager(testConfig(), gw)

	opened := make(chan struct{})
	go func() {
		m.OnSignalOpened(upSignal(100))
		close(opened)
	}()
	<-gw.stalled

	// Slot reserved, placement still in flight. A tick crossing the stop
	// must not send a counter-order for a position that may never open.
	m.OnTickerUpdate("BTCUSDT", 94)
	assert.Equal(t, 0, gw.count(), "no counter-order for an unconfirmed position")
	assert.True(t, m.RealizedPnL().IsZero())

	gw.gate <- fmt.Errorf("gateway down")
	<-opened
	assert.Equal(t, 0, m.ActiveOrders("BTCUSDT"), "failed placement frees the slot")
	assert.True(t, m.RealizedPnL().IsZero())
}

func TestManagerClosesOnlyAfterPlacementConfirms(t *testing.T) {
	gw := newBlockingGateway()
	m := NewManager(testConfig(), gw)

	opened := make(chan struct{})
	go func() {
		m.OnSignalOpened(upSignal(100))
		close(opened)
	}()
	<-gw.stalled

	m.CloseAll(func(string) float64 { return 94 })
	assert.Equal(t, 0, gw.count(), "shutdown skips unconfirmed positions")

	gw.gate <- nil
	<-opened
	require.Equal(t, 1, m.ActiveOrders("BTCUSDT"))

	m.OnTickerUpdate("BTCUSDT", 94)
	assert.Equal(t, 2, gw.count())
	assert.InDelta(t, -3.0, m.RealizedPnL().InexactFloat64(), 1e-9)
}

func TestManagerCloseAll(t *testing.T) {
	gw := &mockGateway{}
	m := NewManager(testConfig(), gw)

	m.OnSignalOpened(upSignal(100))
	m.CloseAll(func(string) float64 { return 102 })

	assert.Equal(t, 0, m.ActiveOrders("BTCUSDT"))
	assert.InDelta(t, 1.0, m.RealizedPnL().InexactFloat64(), 1e-9)
}
