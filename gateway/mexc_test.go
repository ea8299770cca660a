package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-agent-go/order"
)

func verifyMEXCSignature(t *testing.T, r *http.Request, secret string) {
	t.Helper()
	raw := r.URL.RawQuery
	idx := strings.LastIndex(raw, "&signature=")
	require.True(t, idx > 0, "missing signature in %s", raw)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(raw[:idx]))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), raw[idx+len("&signature="):])
	assert.Equal(t, "key", r.Header.Get("X-MEXC-APIKEY"))
	assert.Contains(t, raw, "timestamp=1234567890000")
}

func TestMEXCClientPlaceCancel(t *testing.T) {
	timeNowMillis = func() int64 { return 1234567890000 } // deterministic
	defer func() { timeNowMillis = func() int64 { return time.Now().UnixMilli() } }()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v3/order":
			verifyMEXCSignature(t, r, "secret")
			q := r.URL.Query()
			assert.Equal(t, "BTCUSDT", q.Get("symbol"))
			assert.Equal(t, "BUY", q.Get("side"))
			assert.Equal(t, "LIMIT", q.Get("type"))
			assert.Equal(t, "63700", q.Get("price"))
			assert.Equal(t, "0.00078492", q.Get("quantity"))
			assert.Equal(t, "grid-abc-b1", q.Get("newClientOrderId"))
			io.WriteString(w, `{"symbol":"BTCUSDT","orderId":"C02__1001","price":"63700","origQty":"0.00078492","type":"LIMIT","side":"BUY","transactTime":1700000000000}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v3/order":
			verifyMEXCSignature(t, r, "secret")
			assert.Equal(t, "C02__1001", r.URL.Query().Get("orderId"))
			io.WriteString(w, `{}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v3/openOrders":
			verifyMEXCSignature(t, r, "secret")
			io.WriteString(w, `[{"symbol":"BTCUSDT","orderId":"1"},{"symbol":"BTCUSDT","orderId":"2"}]`)
		default:
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer ts.Close()

	cli := NewMEXCClient(RESTOptions{BaseURL: ts.URL, APIKey: "key", Secret: "secret", HTTPClient: ts.Client()})
	rec, err := cli.CreateOrder(context.Background(), order.Request{
		Symbol:        "BTC/USDT",
		Side:          order.SideBuy,
		Type:          order.TypeLimit,
		Price:         decimal.NewFromInt(63700),
		Amount:        decimal.NewFromInt(50).Div(decimal.NewFromInt(63700)),
		ClientOrderID: "grid-abc-b1",
	})
	require.NoError(t, err)
	assert.Equal(t, "C02__1001", rec.ID)
	assert.Equal(t, "BTC/USDT", rec.Symbol)

	require.NoError(t, cli.CancelOrder(context.Background(), "BTC/USDT", rec.ID))

	res, err := cli.CancelAllOrders(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Cancelled)
	assert.Equal(t, []string{"1", "2"}, res.OrderIDs)
}

func TestMEXCClientMarketData(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-MEXC-APIKEY"), "public endpoints are unsigned")
		switch r.URL.Path {
		case "/api/v3/ticker/24hr":
			assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
			io.WriteString(w, `{"symbol":"BTCUSDT","lastPrice":"65000.5","bidPrice":"65000","askPrice":"65001","highPrice":"66000","lowPrice":"64000","volume":"12.5","quoteVolume":"812500","closeTime":1700000000000}`)
		case "/api/v3/depth":
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			io.WriteString(w, `{"lastUpdateId":1,"bids":[["65000","1.5"],["64999","2"]],"asks":[["65001","0.5"]]}`)
		case "/api/v3/trades":
			io.WriteString(w, `[{"id":null,"price":"65000","qty":"0.1","time":1700000000000,"isBuyerMaker":true},{"id":7,"price":"65001","qty":"0.2","time":1700000000001,"isBuyerMaker":false}]`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	cli := NewMEXCClient(RESTOptions{BaseURL: ts.URL, HTTPClient: ts.Client()})
	ctx := context.Background()

	tk, err := cli.GetTicker(ctx, "btc/usdt")
	require.NoError(t, err)
	assert.Equal(t, 65000.5, tk.Last)
	assert.Equal(t, 65000.0, tk.Bid)
	assert.Equal(t, 65001.0, tk.Ask)
	assert.Equal(t, 812500.0, tk.QuoteVolume)
	assert.Equal(t, int64(1700000000000), tk.Timestamp.UnixMilli())

	ob, err := cli.GetOrderBook(ctx, "BTC/USDT", 5)
	require.NoError(t, err)
	require.Len(t, ob.Bids, 2)
	assert.Equal(t, PriceLevel{Price: 65000, Amount: 1.5}, ob.Bids[0])

	trades, err := cli.GetRecentTrades(ctx, "BTC/USDT", 2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, order.SideSell, trades[0].Side)
	assert.Equal(t, "", trades[0].ID)
	assert.Equal(t, "7", trades[1].ID)
	assert.Equal(t, order.SideBuy, trades[1].Side)
}

func TestMEXCClientRetriesIdempotentReads(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"lastPrice":"1.5"}`)
	}))
	defer ts.Close()

	cli := NewMEXCClient(RESTOptions{BaseURL: ts.URL, HTTPClient: ts.Client()})
	tk, err := cli.GetTicker(context.Background(), "INDY/USDT")
	require.NoError(t, err)
	assert.Equal(t, 1.5, tk.Last)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestMEXCClientDoesNotRetryOrders(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `{"code":700,"msg":"upstream"}`)
	}))
	defer ts.Close()

	cli := NewMEXCClient(RESTOptions{BaseURL: ts.URL, APIKey: "key", Secret: "secret", HTTPClient: ts.Client()})
	_, err := cli.CreateOrder(context.Background(), order.Request{
		Symbol: "BTC/USDT", Side: order.SideSell, Type: order.TypeLimit,
		Price: decimal.NewFromInt(1), Amount: decimal.NewFromInt(1),
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestMEXCClientRequiresCredentialsAndSymbol(t *testing.T) {
	cli := NewMEXCClient(RESTOptions{BaseURL: "http://127.0.0.1:0"})
	_, err := cli.GetBalances(context.Background())
	assert.Error(t, err)

	cli = NewMEXCClient(RESTOptions{BaseURL: "http://127.0.0.1:0", APIKey: "k", Secret: "s"})
	_, err = cli.GetOpenOrders(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidSymbol)
}
