package paper

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/flow-signal-bot/internal/market"
)

func TestGetPriceRequiresObservation(t *testing.T) {
	g := NewGateway("USDT", 10000)
	_, err := g.GetPrice(context.Background(), "BTCUSDT")
	require.Error(t, err)

	g.SetPrice("BTCUSDT", 50000)
	price, err := g.GetPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, price)
}

func TestBuyMovesBalances(t *testing.T) {
	g := NewGateway("USDT", 10000)
	g.SetPrice("BTCUSDT", 50000)

	id, err := g.PlaceOrder(context.Background(), "BTCUSDT", market.SideBuy, 0.1)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	balances, err := g.GetBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2)
	// Sorted by asset: BTC then USDT.
	assert.Equal(t, "BTC", balances[0].Asset)
	assert.True(t, balances[0].Free.Equal(decimal.NewFromFloat(0.1)))
	assert.Equal(t, "USDT", balances[1].Asset)
	assert.True(t, balances[1].Free.Equal(decimal.NewFromFloat(5000)))
}

func TestBuyRejectsInsufficientBalance(t *testing.T) {
	g := NewGateway("USDT", 100)
	g.SetPrice("BTCUSDT", 50000)

	_, err := g.PlaceOrder(context.Background(), "BTCUSDT", market.SideBuy, 0.1)
	require.Error(t, err)
}

func TestSellAllowsShorting(t *testing.T) {
	g := NewGateway("USDT", 1000)
	g.SetPrice("BTCUSDT", 50000)

	_, err := g.PlaceOrder(context.Background(), "BTCUSDT", market.SideSell, 0.01)
	require.NoError(t, err)

	balances, err := g.GetBalances(context.Background())
	require.NoError(t, err)
	assert.True(t, balances[0].Free.IsNegative(), "base balance may go negative in test mode")
	assert.True(t, balances[1].Free.Equal(decimal.NewFromFloat(1500)))
}

func TestOrdersFillImmediately(t *testing.T) {
	g := NewGateway("USDT", 10000)
	g.SetPrice("ETHUSDT", 2000)

	id, err := g.PlaceOrder(context.Background(), "ETHUSDT", market.SideBuy, 1)
	require.NoError(t, err)

	ord, err := g.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ord.Filled)
	assert.Equal(t, 2000.0, ord.Price)

	cancelled, err := g.CancelOrder(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, cancelled, "filled orders cannot be cancelled")
}

func TestPlaceOrderRejectsBadInput(t *testing.T) {
	g := NewGateway("USDT", 10000)
	g.SetPrice("BTCUSDT", 50000)

	_, err := g.PlaceOrder(context.Background(), "BTCUSDT", market.SideBuy, 0)
	assert.Error(t, err)
	_, err = g.PlaceOrder(context.Background(), "NOPRICE", market.SideBuy, 1)
	assert.Error(t, err)
}

func TestSplitSymbol(t *testing.T) {
	tests := []struct {
		symbol string
		base   string
		quote  string
	}{
		{"BTCUSDT", "BTC", "USDT"},
		{"ETHBTC", "ETH", "BTC"},
		{"SOLUSDC", "SOL", "USDC"},
		{"XYZABC", "XYZ", "ABC"},
	}
	for _, tt := range tests {
		base, quote := splitSymbol(tt.symbol)
		assert.Equal(t, tt.base, base, tt.symbol)
		assert.Equal(t, tt.quote, quote, tt.symbol)
	}
}
