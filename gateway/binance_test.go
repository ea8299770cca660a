package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-agent-go/order"
)

func TestBinanceClient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v3/ticker/24hr":
			assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
			io.WriteString(w, `[{"symbol":"ETHUSDT","lastPrice":"3000.10","bidPrice":"3000.00","askPrice":"3000.20","highPrice":"3100","lowPrice":"2900","volume":"1000","quoteVolume":"3000000","closeTime":1700000000000}]`)
		case "/api/v3/depth":
			io.WriteString(w, `{"lastUpdateId":1,"bids":[["3000.00","2.0"]],"asks":[["3000.20","1.0"]]}`)
		case "/api/v3/trades":
			assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			io.WriteString(w, `[{"id":41,"price":"3000.05","qty":"0.5","quoteQty":"1500.025","time":1700000000000,"isBuyerMaker":true,"isBestMatch":true},{"id":42,"price":"3000.15","qty":"0.1","quoteQty":"300.015","time":1700000001000,"isBuyerMaker":false,"isBestMatch":true}]`)
		case "/api/v3/order":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "key", r.Header.Get("X-MBX-APIKEY"))
			io.WriteString(w, `{"symbol":"ETHUSDT","orderId":28,"clientOrderId":"grid-1-b1","transactTime":1700000000000,"price":"2940","origQty":"0.017","executedQty":"0","status":"NEW","type":"LIMIT","side":"BUY"}`)
		default:
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer ts.Close()

	cli := NewBinanceClient(RESTOptions{BaseURL: ts.URL, APIKey: "key", Secret: "secret", HTTPClient: ts.Client()})
	ctx := context.Background()

	tk, err := cli.GetTicker(ctx, "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, 3000.10, tk.Last)
	assert.Equal(t, "ETH/USDT", tk.Symbol)

	ob, err := cli.GetOrderBook(ctx, "ETH/USDT", 5)
	require.NoError(t, err)
	require.Len(t, ob.Bids, 1)
	assert.Equal(t, 2.0, ob.Bids[0].Amount)

	trades, err := cli.GetRecentTrades(ctx, "ETH/USDT", 2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "41", trades[0].ID)
	assert.Equal(t, order.SideSell, trades[0].Side)
	assert.Equal(t, 0.5, trades[0].Amount)
	assert.Equal(t, order.SideBuy, trades[1].Side)
	assert.Equal(t, 3000.15, trades[1].Price)

	rec, err := cli.CreateOrder(ctx, order.Request{
		Symbol:        "ETH/USDT",
		Side:          order.SideBuy,
		Type:          order.TypeLimit,
		Price:         decimal.NewFromInt(2940),
		Amount:        decimal.RequireFromString("0.017"),
		ClientOrderID: "grid-1-b1",
	})
	require.NoError(t, err)
	assert.Equal(t, "28", rec.ID)
	assert.Equal(t, order.StatusNew, rec.Status)

	err = cli.CancelOrder(ctx, "ETH/USDT", "not-a-number")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
