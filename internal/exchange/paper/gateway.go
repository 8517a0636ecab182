// Package paper provides an in-memory order gateway for test mode. Orders
// fill immediately at the last observed price and balances are tracked in
// decimals, so a full run never touches a real exchange.
package paper

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/your-org/flow-signal-bot/internal/exchange"
	"github.com/your-org/flow-signal-bot/internal/market"
	"github.com/your-org/flow-signal-bot/pkg/logger"
)

// Gateway simulates order execution against the latest ticker prices.
type Gateway struct {
	mu       sync.Mutex
	prices   map[string]float64
	balances map[string]decimal.Decimal // asset -> free amount
	orders   map[string]*exchange.Order
	now      func() time.Time
}

// NewGateway creates a paper gateway seeded with a quote-currency balance.
func NewGateway(quoteAsset string, startBalance float64) *Gateway {
	g := &Gateway{
		prices:   make(map[string]float64),
		balances: make(map[string]decimal.Decimal),
		orders:   make(map[string]*exchange.Order),
		now:      time.Now,
	}
	g.balances[strings.ToUpper(quoteAsset)] = decimal.NewFromFloat(startBalance)
	return g
}

// SetPrice records the latest price for a symbol. Wired to the feed's ticker
// stream in test mode.
func (g *Gateway) SetPrice(symbol string, price float64) {
	g.mu.Lock()
	g.prices[symbol] = price
	g.mu.Unlock()
}

// GetPrice implements exchange.OrderGateway.
func (g *Gateway) GetPrice(_ context.Context, symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	price, ok := g.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("paper: no price observed yet for %s", symbol)
	}
	return price, nil
}

// PlaceOrder fills a market order instantly at the last observed price and
// adjusts the tracked balances.
func (g *Gateway) PlaceOrder(_ context.Context, symbol string, side market.Side, quantity float64) (string, error) {
	if quantity <= 0 {
		return "", fmt.Errorf("paper: invalid quantity %f", quantity)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	price, ok := g.prices[symbol]
	if !ok {
		return "", fmt.Errorf("paper: no price observed yet for %s", symbol)
	}

	base, quote := splitSymbol(symbol)
	qty := decimal.NewFromFloat(quantity)
	cost := qty.Mul(decimal.NewFromFloat(price))

	switch side {
	case market.SideBuy:
		if g.balances[quote].LessThan(cost) {
			return "", fmt.Errorf("paper: insufficient %s balance (%s < %s)", quote, g.balances[quote], cost)
		}
		g.balances[quote] = g.balances[quote].Sub(cost)
		g.balances[base] = g.balances[base].Add(qty)
	case market.SideSell:
		// Shorting is allowed in test mode, the base balance may go negative.
		g.balances[base] = g.balances[base].Sub(qty)
		g.balances[quote] = g.balances[quote].Add(cost)
	default:
		return "", fmt.Errorf("paper: unknown side %q", side)
	}

	ord := &exchange.Order{
		ID:       uuid.NewString(),
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Price:    price,
		Filled:   true,
		PlacedAt: g.now().UTC(),
	}
	g.orders[ord.ID] = ord
	logger.Debugf("Paper fill: %s %s qty=%f price=%f", symbol, side, quantity, price)
	return ord.ID, nil
}

// GetOrder implements exchange.OrderGateway.
func (g *Gateway) GetOrder(_ context.Context, id string) (*exchange.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ord, ok := g.orders[id]
	if !ok {
		return nil, fmt.Errorf("paper: unknown order %s", id)
	}
	cp := *ord
	return &cp, nil
}

// CancelOrder implements exchange.OrderGateway. Paper orders fill instantly,
// so there is never anything to cancel.
func (g *Gateway) CancelOrder(_ context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.orders[id]; !ok {
		return false, fmt.Errorf("paper: unknown order %s", id)
	}
	return false, nil
}

// GetBalances implements exchange.OrderGateway. Assets are returned in stable
// order.
func (g *Gateway) GetBalances(_ context.Context) ([]exchange.Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	assets := make([]string, 0, len(g.balances))
	for asset := range g.balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	out := make([]exchange.Balance, 0, len(assets))
	for _, asset := range assets {
		out = append(out, exchange.Balance{Asset: asset, Free: g.balances[asset]})
	}
	return out, nil
}

// splitSymbol separates a symbol like BTCUSDT into base and quote assets.
// Only the common quote suffixes are recognized; anything else falls back to
// treating the last three characters as the quote.
func splitSymbol(symbol string) (base, quote string) {
	s := strings.ToUpper(symbol)
	for _, q := range []string{"USDT", "BUSD", "USDC", "BTC", "ETH", "JPY", "EUR", "USD"} {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s[:len(s)-len(q)], q
		}
	}
	if len(s) > 3 {
		return s[:len(s)-3], s[len(s)-3:]
	}
	return s, ""
}
