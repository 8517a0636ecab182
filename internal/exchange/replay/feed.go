// Package replay feeds recorded market events from a CSV file, so a full run
// can be reproduced without a live connection. Run returns once the file is
// exhausted.
package replay

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/flow-signal-bot/internal/exchange"
	"github.com/your-org/flow-signal-bot/internal/market"
	"github.com/your-org/flow-signal-bot/pkg/logger"
)

// Row kinds accepted in the replay file.
const (
	kindTrade  = "trade"
	kindBook   = "book"
	kindTicker = "ticker"
)

// Feed replays market events from a CSV file in row order.
//
// Row layouts:
//
//	trade,<rfc3339 time>,<symbol>,<buy|sell>,<price>,<quantity>
//	book,<rfc3339 time>,<symbol>,<bids p@q|p@q|...>,<asks p@q|...>
//	ticker,<rfc3339 time>,<symbol>,<price>
type Feed struct {
	path     string
	onTrades exchange.TradeHandler
	onBook   exchange.BookHandler
	onTicker exchange.TickerHandler

	nextTradeID int64
}

// NewFeed creates a replay feed over the given CSV file.
func NewFeed(path string) *Feed {
	return &Feed{path: path}
}

// SubscribeTrades implements exchange.Feed. Symbol filtering happens
// downstream, the file is replayed as recorded.
func (f *Feed) SubscribeTrades(_ []string, h exchange.TradeHandler) error {
	f.onTrades = h
	return nil
}

// SubscribeOrderbook implements exchange.Feed.
func (f *Feed) SubscribeOrderbook(_ []string, _ int, h exchange.BookHandler) error {
	f.onBook = h
	return nil
}

// SubscribeTicker implements exchange.Feed.
func (f *Feed) SubscribeTicker(_ []string, h exchange.TickerHandler) error {
	f.onTicker = h
	return nil
}

// Run streams the file through the handlers. It returns nil at EOF and the
// context error if cancelled mid-file.
func (f *Feed) Run(ctx context.Context) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // row length varies by kind

	rows := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := reader.Read()
		if err == io.EOF {
			logger.Infof("Replay finished: %d rows from %s", rows, f.path)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read replay row: %w", err)
		}
		rows++
		if err := f.dispatch(record); err != nil {
			logger.Warnf("Skipping malformed replay row %d: %v", rows, err)
		}
	}
}

// Close implements exchange.Feed. Nothing to release between Run calls.
func (f *Feed) Close() error { return nil }

func (f *Feed) dispatch(record []string) error {
	if len(record) < 3 {
		return fmt.Errorf("too few fields (%d)", len(record))
	}
	at, err := time.Parse(time.RFC3339Nano, record[1])
	if err != nil {
		return fmt.Errorf("parse time %q: %w", record[1], err)
	}
	symbol := strings.ToUpper(record[2])

	switch record[0] {
	case kindTrade:
		return f.replayTrade(symbol, at, record)
	case kindBook:
		return f.replayBook(symbol, at, record)
	case kindTicker:
		return f.replayTicker(symbol, at, record)
	default:
		return fmt.Errorf("unknown row kind %q", record[0])
	}
}

func (f *Feed) replayTrade(symbol string, at time.Time, record []string) error {
	if len(record) != 6 {
		return fmt.Errorf("trade row needs 6 fields, got %d", len(record))
	}
	var side market.Side
	switch strings.ToLower(record[3]) {
	case "buy":
		side = market.SideBuy
	case "sell":
		side = market.SideSell
	default:
		return fmt.Errorf("unknown trade side %q", record[3])
	}
	price, err := strconv.ParseFloat(record[4], 64)
	if err != nil {
		return fmt.Errorf("parse price: %w", err)
	}
	qty, err := strconv.ParseFloat(record[5], 64)
	if err != nil {
		return fmt.Errorf("parse quantity: %w", err)
	}
	f.nextTradeID++
	if f.onTrades != nil {
		f.onTrades(symbol, []market.Trade{{
			ID:       f.nextTradeID,
			Symbol:   symbol,
			Side:     side,
			Price:    price,
			Quantity: qty,
			Time:     at,
		}})
	}
	return nil
}

func (f *Feed) replayBook(symbol string, at time.Time, record []string) error {
	if len(record) != 5 {
		return fmt.Errorf("book row needs 5 fields, got %d", len(record))
	}
	bids, err := parseLevels(record[3])
	if err != nil {
		return fmt.Errorf("parse bids: %w", err)
	}
	asks, err := parseLevels(record[4])
	if err != nil {
		return fmt.Errorf("parse asks: %w", err)
	}
	if f.onBook != nil {
		f.onBook(symbol, true, bids, asks, at)
	}
	return nil
}

func (f *Feed) replayTicker(symbol string, at time.Time, record []string) error {
	if len(record) != 4 {
		return fmt.Errorf("ticker row needs 4 fields, got %d", len(record))
	}
	price, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return fmt.Errorf("parse price: %w", err)
	}
	if f.onTicker != nil {
		f.onTicker(symbol, price, at)
	}
	return nil
}

// parseLevels decodes "price@qty|price@qty|..." into price levels. An empty
// field means an empty side.
func parseLevels(field string) ([]market.PriceLevel, error) {
	if field == "" {
		return nil, nil
	}
	parts := strings.Split(field, "|")
	levels := make([]market.PriceLevel, 0, len(parts))
	for _, part := range parts {
		pq := strings.SplitN(part, "@", 2)
		if len(pq) != 2 {
			return nil, fmt.Errorf("malformed level %q", part)
		}
		price, err := strconv.ParseFloat(pq[0], 64)
		if err != nil {
			return nil, err
		}
		qty, err := strconv.ParseFloat(pq[1], 64)
		if err != nil {
			return nil, err
		}
		levels = append(levels, market.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}
