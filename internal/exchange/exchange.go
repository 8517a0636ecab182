// Package exchange defines the interfaces the bot consumes for market data
// and order routing. Implementations live in the binance, paper and replay
// subpackages.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/your-org/flow-signal-bot/internal/market"
)

// TradeHandler receives a batch of executed trades for one symbol, in arrival
// order.
type TradeHandler func(symbol string, trades []market.Trade)

// BookHandler receives a full snapshot (snapshot=true) or an incremental
// update of the orderbook. Bids are best-first descending, asks ascending.
type BookHandler func(symbol string, snapshot bool, bids, asks []market.PriceLevel, at time.Time)

// TickerHandler receives the latest ticker price for one symbol.
type TickerHandler func(symbol string, price float64, at time.Time)

// Feed produces raw market events. Connection lifecycle (lost/restored) is
// surfaced as log events only; implementations resubscribe on reconnect.
type Feed interface {
	SubscribeTrades(symbols []string, h TradeHandler) error
	SubscribeOrderbook(symbols []string, depth int, h BookHandler) error
	SubscribeTicker(symbols []string, h TickerHandler) error
	// Run blocks, pumping events into the registered handlers until the
	// context is cancelled or the feed is exhausted (replay).
	Run(ctx context.Context) error
	Close() error
}

// Balance is one asset's available balance.
type Balance struct {
	Asset string
	Free  decimal.Decimal
}

// Order is the gateway's view of a placed order.
type Order struct {
	ID       string
	Symbol   string
	Side     market.Side
	Quantity float64
	Price    float64
	Filled   bool
	PlacedAt time.Time
}

// OrderGateway places and cancels orders and serves prices and balances.
type OrderGateway interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
	PlaceOrder(ctx context.Context, symbol string, side market.Side, quantity float64) (string, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	CancelOrder(ctx context.Context, id string) (bool, error)
	GetBalances(ctx context.Context) ([]Balance, error)
}
