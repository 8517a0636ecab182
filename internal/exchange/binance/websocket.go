// Package binance handles interactions with the Binance exchange: the
// combined-stream WebSocket feed and the signed REST order API.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/your-org/flow-signal-bot/internal/exchange"
	"github.com/your-org/flow-signal-bot/internal/market"
	"github.com/your-org/flow-signal-bot/pkg/logger"
)

const (
	combinedStreamURL = "wss://stream.binance.com:9443/stream"

	pingInterval     = 3 * time.Minute
	initialBackoff   = time.Second
	maxBackoff       = time.Minute
	handshakeTimeout = 10 * time.Second
)

// Feed streams trades, partial book depth and mini tickers for a set of
// symbols over one combined WebSocket connection. It reconnects with
// exponential backoff; connection loss and recovery are surfaced as log
// events only.
type Feed struct {
	url     string
	depth   int
	streams []string

	mu       sync.Mutex
	conn     *websocket.Conn
	closed   bool
	onTrades exchange.TradeHandler
	onBook   exchange.BookHandler
	onTicker exchange.TickerHandler
}

// NewFeed creates a Binance combined-stream feed.
func NewFeed() *Feed {
	return &Feed{url: combinedStreamURL}
}

// SetURL overrides the stream endpoint. For tests.
func (f *Feed) SetURL(u string) { f.url = u }

// SubscribeTrades implements exchange.Feed.
func (f *Feed) SubscribeTrades(symbols []string, h exchange.TradeHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTrades = h
	for _, s := range symbols {
		f.streams = append(f.streams, strings.ToLower(s)+"@trade")
	}
	return nil
}

// SubscribeOrderbook implements exchange.Feed. Binance partial book streams
// come in fixed depths; the closest depth covering the request is used.
func (f *Feed) SubscribeOrderbook(symbols []string, depth int, h exchange.BookHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onBook = h
	f.depth = bookStreamDepth(depth)
	for _, s := range symbols {
		f.streams = append(f.streams, fmt.Sprintf("%s@depth%d@100ms", strings.ToLower(s), f.depth))
	}
	return nil
}

// SubscribeTicker implements exchange.Feed.
func (f *Feed) SubscribeTicker(symbols []string, h exchange.TickerHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTicker = h
	for _, s := range symbols {
		f.streams = append(f.streams, strings.ToLower(s)+"@miniTicker")
	}
	return nil
}

// Run connects and pumps events into the registered handlers until the
// context is cancelled. Lost connections are re-dialed with exponential
// backoff and all streams re-subscribed via the URL.
func (f *Feed) Run(ctx context.Context) error {
	f.mu.Lock()
	if len(f.streams) == 0 {
		f.mu.Unlock()
		return errors.New("binance: no streams subscribed")
	}
	streamURL := f.url + "/?streams=" + strings.Join(f.streams, "/")
	f.mu.Unlock()

	backoff := initialBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := f.runOnce(ctx, streamURL)
		if f.isClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Errorf("WebSocket connection lost: %v. Reconnecting in %v...", err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// runOnce dials, reads until the connection drops and returns the read error.
func (f *Feed) runOnce(ctx context.Context, streamURL string) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	logger.Infof("Connected to %s", f.url)

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			f.dispatch(message)
		}
	}()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			select {
			case <-done:
			case <-time.After(2 * time.Second):
			}
			return ctx.Err()
		case err := <-done:
			return err
		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// dispatch routes one combined-stream message to the right handler. Malformed
// messages are logged and skipped.
func (f *Feed) dispatch(message []byte) {
	var env combinedStreamMessage
	if err := json.Unmarshal(message, &env); err != nil {
		logger.Errorf("Error unmarshalling stream envelope: %v. Message: %s", err, message)
		return
	}
	stream := env.Stream
	at := strings.Index(stream, "@")
	if at < 0 {
		logger.Warnf("Received message for unhandled stream: %s", stream)
		return
	}
	symbol := strings.ToUpper(stream[:at])
	kind := stream[at+1:]

	switch {
	case kind == "trade":
		f.handleTrade(symbol, env.Data)
	case strings.HasPrefix(kind, "depth"):
		f.handleDepth(symbol, env.Data)
	case kind == "miniTicker":
		f.handleTicker(symbol, env.Data)
	default:
		logger.Warnf("Received message for unhandled stream: %s", stream)
	}
}

func (f *Feed) handleTrade(symbol string, data json.RawMessage) {
	f.mu.Lock()
	h := f.onTrades
	f.mu.Unlock()
	if h == nil {
		return
	}
	var ev tradeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Errorf("Error unmarshalling trade event for %s: %v", symbol, err)
		return
	}
	price, err1 := strconv.ParseFloat(ev.Price, 64)
	qty, err2 := strconv.ParseFloat(ev.Quantity, 64)
	if err1 != nil || err2 != nil {
		logger.Errorf("Error parsing trade fields for %s: %v %v", symbol, err1, err2)
		return
	}
	side := market.SideBuy
	if ev.BuyerIsMaker {
		// Buyer was the maker, so the aggressor sold.
		side = market.SideSell
	}
	h(symbol, []market.Trade{{
		ID:       ev.TradeID,
		Symbol:   symbol,
		Side:     side,
		Price:    price,
		Quantity: qty,
		Time:     time.UnixMilli(ev.TradeTime).UTC(),
	}})
}

func (f *Feed) handleDepth(symbol string, data json.RawMessage) {
	f.mu.Lock()
	h := f.onBook
	f.mu.Unlock()
	if h == nil {
		return
	}
	var ev depthEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Errorf("Error unmarshalling depth event for %s: %v", symbol, err)
		return
	}
	bids, err := parseLevels(ev.Bids)
	if err != nil {
		logger.Errorf("Error parsing bid levels for %s: %v", symbol, err)
		return
	}
	asks, err := parseLevels(ev.Asks)
	if err != nil {
		logger.Errorf("Error parsing ask levels for %s: %v", symbol, err)
		return
	}
	// Partial book streams always carry the full top-N view.
	h(symbol, true, bids, asks, time.Now().UTC())
}

func (f *Feed) handleTicker(symbol string, data json.RawMessage) {
	f.mu.Lock()
	h := f.onTicker
	f.mu.Unlock()
	if h == nil {
		return
	}
	var ev miniTickerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Errorf("Error unmarshalling ticker event for %s: %v", symbol, err)
		return
	}
	price, err := strconv.ParseFloat(ev.ClosePrice, 64)
	if err != nil {
		logger.Errorf("Error parsing ticker price for %s: %v", symbol, err)
		return
	}
	h(symbol, price, time.UnixMilli(ev.EventTime).UTC())
}

// Close shuts the feed down; Run returns after the connection unwinds.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *Feed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func parseLevels(raw [][2]string) ([]market.PriceLevel, error) {
	levels := make([]market.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		price, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			return nil, err
		}
		qty, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			return nil, err
		}
		levels = append(levels, market.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

// bookStreamDepth maps a requested depth onto the stream depths Binance
// offers (5, 10, 20).
func bookStreamDepth(depth int) int {
	switch {
	case depth <= 5:
		return 5
	case depth <= 10:
		return 10
	default:
		return 20
	}
}
