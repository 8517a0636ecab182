package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/your-org/flow-signal-bot/internal/exchange"
	"github.com/your-org/flow-signal-bot/internal/market"
	"github.com/your-org/flow-signal-bot/pkg/logger"
)

var baseURL = "https://api.binance.com"

// SetBaseURL overrides the REST endpoint. For tests.
func SetBaseURL(u string) { baseURL = u }

// Gateway is the signed REST order gateway. It implements
// exchange.OrderGateway.
type Gateway struct {
	apiKey    string
	apiSecret string
	client    *http.Client
}

// NewGateway creates a REST gateway with the given API credentials.
func NewGateway(apiKey, apiSecret string) *Gateway {
	return &Gateway{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// GetPrice fetches the current ticker price for a symbol. Unsigned endpoint.
func (g *Gateway) GetPrice(ctx context.Context, symbol string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", baseURL, strings.ToUpper(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	var resp tickerPriceResponse
	if err := g.do(req, &resp); err != nil {
		return 0, fmt.Errorf("get price for %s: %w", symbol, err)
	}
	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", resp.Price, err)
	}
	return price, nil
}

// PlaceOrder submits a market order and returns the exchange order id.
func (g *Gateway) PlaceOrder(ctx context.Context, symbol string, side market.Side, quantity float64) (string, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("side", strings.ToUpper(side.String()))
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(quantity, 'f', -1, 64))

	req, err := g.signedRequest(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		return "", err
	}
	var resp newOrderResponse
	if err := g.do(req, &resp); err != nil {
		return "", fmt.Errorf("place %s order for %s: %w", side, symbol, err)
	}
	logger.Infof("Order accepted: %s %s id=%d status=%s", symbol, side, resp.OrderID, resp.Status)
	return orderID(symbol, resp.OrderID), nil
}

// GetOrder fetches the current state of an order.
func (g *Gateway) GetOrder(ctx context.Context, id string) (*exchange.Order, error) {
	symbol, numericID, err := parseOrderID(id)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(numericID, 10))

	req, err := g.signedRequest(ctx, http.MethodGet, "/api/v3/order", params)
	if err != nil {
		return nil, err
	}
	var resp queryOrderResponse
	if err := g.do(req, &resp); err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}

	side := market.SideBuy
	if strings.EqualFold(resp.Side, "SELL") {
		side = market.SideSell
	}
	price, _ := strconv.ParseFloat(resp.Price, 64)
	qty, _ := strconv.ParseFloat(resp.OrigQty, 64)
	return &exchange.Order{
		ID:       id,
		Symbol:   resp.Symbol,
		Side:     side,
		Quantity: qty,
		Price:    price,
		Filled:   resp.Status == "FILLED",
		PlacedAt: time.UnixMilli(resp.Time).UTC(),
	}, nil
}

// CancelOrder cancels an open order. Returns false without error when the
// order had already reached a terminal state.
func (g *Gateway) CancelOrder(ctx context.Context, id string) (bool, error) {
	symbol, numericID, err := parseOrderID(id)
	if err != nil {
		return false, err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(numericID, 10))

	req, err := g.signedRequest(ctx, http.MethodDelete, "/api/v3/order", params)
	if err != nil {
		return false, err
	}
	var resp queryOrderResponse
	if err := g.do(req, &resp); err != nil {
		var apiErr *apiError
		// -2011 UNKNOWN_ORDER covers already-filled and already-cancelled.
		if errors.As(err, &apiErr) && apiErr.Code == -2011 {
			return false, nil
		}
		return false, fmt.Errorf("cancel order %s: %w", id, err)
	}
	return true, nil
}

// GetBalances fetches the account's non-zero free balances.
func (g *Gateway) GetBalances(ctx context.Context) ([]exchange.Balance, error) {
	req, err := g.signedRequest(ctx, http.MethodGet, "/api/v3/account", url.Values{})
	if err != nil {
		return nil, err
	}
	var resp accountResponse
	if err := g.do(req, &resp); err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}
	var out []exchange.Balance
	for _, b := range resp.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			logger.Warnf("Skipping balance with unparsable amount %s=%q: %v", b.Asset, b.Free, err)
			continue
		}
		if free.IsZero() {
			continue
		}
		out = append(out, exchange.Balance{Asset: b.Asset, Free: free})
	}
	return out, nil
}

// signedRequest builds a request with the timestamp and HMAC-SHA256 signature
// appended to the query string.
func (g *Gateway) signedRequest(ctx context.Context, method, path string, params url.Values) (*http.Request, error) {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query := params.Encode()

	mac := hmac.New(sha256.New, []byte(g.apiSecret))
	mac.Write([]byte(query))
	signature := hex.EncodeToString(mac.Sum(nil))

	endpoint := baseURL + path + "?" + query + "&signature=" + signature
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", g.apiKey)
	return req, nil
}

// do executes the request and decodes the JSON response, turning non-2xx
// responses into apiError values.
func (g *Gateway) do(req *http.Request, out interface{}) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		if jsonErr := json.Unmarshal(body, &ae); jsonErr == nil && ae.Message != "" {
			return &ae
		}
		return fmt.Errorf("http %d: %s", resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (e *apiError) Error() string {
	return fmt.Sprintf("binance api error %d: %s", e.Code, e.Message)
}

// orderID packs symbol and numeric id into one opaque string, since the
// query endpoints need both.
func orderID(symbol string, id int64) string {
	return fmt.Sprintf("%s:%d", strings.ToUpper(symbol), id)
}

func parseOrderID(id string) (string, int64, error) {
	parts := strings.SplitN(id, ":", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("malformed order id %q", id)
	}
	numeric, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed order id %q: %w", id, err)
	}
	return parts[0], numeric, nil
}
