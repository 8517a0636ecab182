package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/flow-signal-bot/internal/market"
)

const (
	testAPIKey    = "test-key"
	testAPISecret = "test-secret"
)

func withTestServer(t *testing.T, h http.HandlerFunc) *Gateway {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	old := baseURL
	SetBaseURL(server.URL)
	t.Cleanup(func() { SetBaseURL(old) })
	return NewGateway(testAPIKey, testAPISecret)
}

// verifySignature recomputes the HMAC over the query without the signature
// parameter and compares.
func verifySignature(t *testing.T, r *http.Request) {
	t.Helper()
	query := r.URL.Query()
	signature := query.Get("signature")
	require.NotEmpty(t, signature)
	query.Del("signature")

	mac := hmac.New(sha256.New, []byte(testAPISecret))
	mac.Write([]byte(query.Encode()))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), signature)
}

func TestGetPrice(t *testing.T) {
	g := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"50123.45"}`))
	})

	price, err := g.GetPrice(context.Background(), "btcusdt")
	require.NoError(t, err)
	assert.Equal(t, 50123.45, price)
}

func TestPlaceOrderSignsRequest(t *testing.T) {
	var captured *url.Values
	g := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		assert.Equal(t, testAPIKey, r.Header.Get("X-MBX-APIKEY"))
		verifySignature(t, r)
		q := r.URL.Query()
		captured = &q
		w.Write([]byte(`{"symbol":"BTCUSDT","orderId":12345,"status":"FILLED","side":"BUY"}`))
	})

	id, err := g.PlaceOrder(context.Background(), "BTCUSDT", market.SideBuy, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT:12345", id)

	require.NotNil(t, captured)
	assert.Equal(t, "MARKET", captured.Get("type"))
	assert.Equal(t, "BUY", captured.Get("side"))
	assert.Equal(t, "0.5", captured.Get("quantity"))
	assert.NotEmpty(t, captured.Get("timestamp"))
}

func TestGetOrder(t *testing.T) {
	g := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "12345", r.URL.Query().Get("orderId"))
		verifySignature(t, r)
		w.Write([]byte(`{"symbol":"BTCUSDT","orderId":12345,"price":"50000","origQty":"0.5","executedQty":"0.5","status":"FILLED","side":"SELL","time":1714521600000}`))
	})

	ord, err := g.GetOrder(context.Background(), "BTCUSDT:12345")
	require.NoError(t, err)
	assert.True(t, ord.Filled)
	assert.Equal(t, market.SideSell, ord.Side)
	assert.Equal(t, 0.5, ord.Quantity)
}

func TestGetOrderMalformedID(t *testing.T) {
	g := NewGateway(testAPIKey, testAPISecret)
	_, err := g.GetOrder(context.Background(), "missing-separator")
	assert.Error(t, err)
}

func TestCancelOrderUnknownIsNotAnError(t *testing.T) {
	g := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2011,"msg":"Unknown order sent."}`))
	})

	cancelled, err := g.CancelOrder(context.Background(), "BTCUSDT:12345")
	require.NoError(t, err, "already-terminal orders are not an error")
	assert.False(t, cancelled)
}

func TestAPIErrorSurfaced(t *testing.T) {
	g := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":-2014,"msg":"API-key format invalid."}`))
	})

	_, err := g.GetBalances(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "-2014"))
}

func TestGetBalancesFiltersZero(t *testing.T) {
	g := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		verifySignature(t, r)
		w.Write([]byte(`{"balances":[
			{"asset":"BTC","free":"0.5","locked":"0"},
			{"asset":"USDT","free":"0","locked":"0"},
			{"asset":"ETH","free":"2","locked":"0"}
		]}`))
	})

	balances, err := g.GetBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "BTC", balances[0].Asset)
	assert.Equal(t, "ETH", balances[1].Asset)
}
