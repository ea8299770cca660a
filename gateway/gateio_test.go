package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-agent-go/order"
)

func TestSignGateV4Deterministic(t *testing.T) {
	a := SignGateV4("secret", "GET", "/api/v4/spot/accounts", "", "", 1700000000)
	b := SignGateV4("secret", "GET", "/api/v4/spot/accounts", "", "", 1700000000)
	c := SignGateV4("secret", "GET", "/api/v4/spot/accounts", "", "", 1700000001)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 128)
}

func newGateTestServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if key := r.Header.Get("KEY"); key != "" {
			assert.Equal(t, "key", key)
			ts, err := strconv.ParseInt(r.Header.Get("Timestamp"), 10, 64)
			require.NoError(t, err)
			want := SignGateV4("secret", r.Method, r.URL.Path, r.URL.RawQuery, string(body), ts)
			assert.Equal(t, want, r.Header.Get("SIGN"), "signature for %s %s", r.Method, r.URL.Path)
		}
		switch {
		case r.URL.Path == "/api/v4/spot/tickers":
			assert.Equal(t, "BTC_USDT", r.URL.Query().Get("currency_pair"))
			io.WriteString(w, `[{"currency_pair":"BTC_USDT","last":"65000","lowest_ask":"65001","highest_bid":"64999","high_24h":"66000","low_24h":"64000","base_volume":"100","quote_volume":"6500000"}]`)
		case r.URL.Path == "/api/v4/spot/order_book":
			io.WriteString(w, `{"current":1700000000123,"asks":[["65001","0.3"]],"bids":[["64999","0.4"],["64998","1"]]}`)
		case r.URL.Path == "/api/v4/spot/trades":
			io.WriteString(w, `[{"id":"42","create_time_ms":"1700000000123.456","side":"sell","amount":"0.01","price":"65000"}]`)
		case r.URL.Path == "/api/v4/spot/accounts":
			io.WriteString(w, `[{"currency":"usdt","available":"900","locked":"100"}]`)
		case r.URL.Path == "/api/v4/spot/orders" && r.Method == http.MethodPost:
			var req map[string]string
			require.NoError(t, json.Unmarshal(body, &req))
			assert.Equal(t, "BTC_USDT", req["currency_pair"])
			assert.Equal(t, "limit", req["type"])
			assert.Equal(t, "sell", req["side"])
			assert.Equal(t, "66300", req["price"])
			assert.Equal(t, "gtc", req["time_in_force"])
			assert.Equal(t, "t-grid-x-s1", req["text"])
			io.WriteString(w, `{"id":"9001","status":"open","create_time_ms":"1700000000500"}`)
		case r.URL.Path == "/api/v4/spot/orders" && r.Method == http.MethodGet:
			assert.Equal(t, "open", r.URL.Query().Get("status"))
			io.WriteString(w, `[{"id":"9001","text":"t-grid-x-s1","currency_pair":"BTC_USDT","side":"sell","price":"66300","amount":"0.001","left":"0.0004","status":"open"}]`)
		case r.URL.Path == "/api/v4/spot/orders" && r.Method == http.MethodDelete:
			io.WriteString(w, `[{"id":"9001"},{"id":"9002"}]`)
		case r.URL.Path == "/api/v4/spot/orders/9001" && r.Method == http.MethodDelete:
			assert.Equal(t, "BTC_USDT", r.URL.Query().Get("currency_pair"))
			io.WriteString(w, `{"id":"9001","status":"cancelled"}`)
		case r.URL.Path == "/api/v4/spot/open_orders":
			io.WriteString(w, `[{"currency_pair":"BTC_USDT","total":1,"orders":[{"id":"1","currency_pair":"BTC_USDT","side":"buy","price":"63700","amount":"0.001","left":"0.001","status":"open"}]}]`)
		default:
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
}

func TestGateClientMarketData(t *testing.T) {
	ts := newGateTestServer(t)
	defer ts.Close()
	cli := NewGateClient(RESTOptions{BaseURL: ts.URL, HTTPClient: ts.Client()})
	ctx := context.Background()

	tk, err := cli.GetTicker(ctx, "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, 65000.0, tk.Last)
	assert.Equal(t, 64999.0, tk.Bid)
	assert.Equal(t, 65001.0, tk.Ask)
	assert.Equal(t, 100.0, tk.BaseVolume)

	ob, err := cli.GetOrderBook(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	assert.Len(t, ob.Bids, 2)
	assert.Len(t, ob.Asks, 1)
	assert.Equal(t, int64(1700000000123), ob.Timestamp.UnixMilli())

	trades, err := cli.GetRecentTrades(ctx, "BTC/USDT", 1)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "42", trades[0].ID)
	assert.Equal(t, order.SideSell, trades[0].Side)
}

func TestGateClientSignedCalls(t *testing.T) {
	ts := newGateTestServer(t)
	defer ts.Close()
	cli := NewGateClient(RESTOptions{BaseURL: ts.URL, APIKey: "key", Secret: "secret", HTTPClient: ts.Client()})
	cli.now = func() time.Time { return time.Unix(1700000000, 0) }
	ctx := context.Background()

	bal, err := cli.GetBalances(ctx)
	require.NoError(t, err)
	require.Len(t, bal, 1)
	assert.Equal(t, Balance{Asset: "USDT", Free: 900, Used: 100, Total: 1000}, bal[0])

	rec, err := cli.CreateOrder(ctx, order.Request{
		Symbol:        "BTC/USDT",
		Side:          order.SideSell,
		Type:          order.TypeLimit,
		Price:         decimal.NewFromInt(66300),
		Amount:        decimal.RequireFromString("0.001"),
		ClientOrderID: "grid-x-s1",
	})
	require.NoError(t, err)
	assert.Equal(t, "9001", rec.ID)
	assert.Equal(t, order.StatusNew, rec.Status)

	open, err := cli.GetOpenOrders(ctx, "BTC/USDT")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "grid-x-s1", open[0].ClientOrderID)
	assert.Equal(t, order.StatusPartial, open[0].Status)
	assert.InDelta(t, 0.0006, open[0].Filled, 1e-12)
	assert.Equal(t, "BTC/USDT", open[0].Symbol)

	all, err := cli.GetOpenOrders(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, order.SideBuy, all[0].Side)

	require.NoError(t, cli.CancelOrder(ctx, "BTC/USDT", "9001"))

	res, err := cli.CancelAllOrders(ctx, "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Cancelled)
}
