package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fastjson"

	"market-agent-go/order"
)

const (
	gateBaseURL = "https://api.gateio.ws"
	gatePrefix  = "/api/v4"
)

var gateParsers fastjson.ParserPool

// GateClient 使用 Gate.io v4 现货 REST 接口，响应用 fastjson 解析。
type GateClient struct {
	rest   *restClient
	apiKey string
	secret string
	now    func() time.Time
}

func NewGateClient(opts RESTOptions) *GateClient {
	return &GateClient{
		rest:   newRESTClient(opts, gateBaseURL),
		apiKey: opts.APIKey,
		secret: opts.Secret,
		now:    time.Now,
	}
}

func (c *GateClient) Name() string { return "gateio" }

// call 发起请求；signed 为 true 时附加 KEY/SIGN/Timestamp 头。fn 在解析器归还前读取结果。
func (c *GateClient) call(ctx context.Context, method, path string, params url.Values, body []byte, signed bool, fn func(v *fastjson.Value) error) error {
	fullPath := gatePrefix + path
	query := params.Encode()
	h := http.Header{}
	h.Set("Accept", "application/json")
	if len(body) > 0 {
		h.Set("Content-Type", "application/json")
	}
	if signed {
		if c.apiKey == "" || c.secret == "" {
			return errors.New("gateio api credentials not configured")
		}
		ts := c.now().Unix()
		h.Set("KEY", c.apiKey)
		h.Set("Timestamp", strconv.FormatInt(ts, 10))
		h.Set("SIGN", SignGateV4(c.secret, method, fullPath, query, string(body), ts))
	}
	data, err := c.rest.do(ctx, method, fullPath, query, body, h)
	if err != nil {
		return err
	}
	if fn == nil {
		return nil
	}
	p := gateParsers.Get()
	defer gateParsers.Put(p)
	v, err := p.ParseBytes(data)
	if err != nil {
		return fmt.Errorf("decode gateio response: %w", err)
	}
	return fn(v)
}

func gateSymbol(symbol string) (string, Pair, error) {
	p, err := ParsePair(symbol)
	if err != nil {
		return "", Pair{}, err
	}
	return p.Join("_"), p, nil
}

func gateFloat(v *fastjson.Value, key string) float64 {
	return parseFloat(string(v.GetStringBytes(key)))
}

func gateLevels(rows []*fastjson.Value) []PriceLevel {
	out := make([]PriceLevel, 0, len(rows))
	for _, r := range rows {
		pair := r.GetArray()
		if len(pair) < 2 {
			continue
		}
		price, _ := pair[0].StringBytes()
		amount, _ := pair[1].StringBytes()
		out = append(out, PriceLevel{Price: parseFloat(string(price)), Amount: parseFloat(string(amount))})
	}
	return out
}

func (c *GateClient) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	native, p, err := gateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	var t *Ticker
	err = c.call(ctx, http.MethodGet, "/spot/tickers", url.Values{"currency_pair": {native}}, nil, false, func(v *fastjson.Value) error {
		rows := v.GetArray()
		if len(rows) == 0 {
			return fmt.Errorf("no ticker for %s", native)
		}
		r := rows[0]
		t = &Ticker{
			Symbol:      p.String(),
			Last:        gateFloat(r, "last"),
			Bid:         gateFloat(r, "highest_bid"),
			Ask:         gateFloat(r, "lowest_ask"),
			High:        gateFloat(r, "high_24h"),
			Low:         gateFloat(r, "low_24h"),
			BaseVolume:  gateFloat(r, "base_volume"),
			QuoteVolume: gateFloat(r, "quote_volume"),
			Timestamp:   c.now().UTC(),
		}
		return nil
	})
	return t, err
}

func (c *GateClient) GetOrderBook(ctx context.Context, symbol string, limit int) (*OrderBook, error) {
	native, p, err := gateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	var ob *OrderBook
	params := url.Values{"currency_pair": {native}, "limit": {strconv.Itoa(limit)}}
	err = c.call(ctx, http.MethodGet, "/spot/order_book", params, nil, false, func(v *fastjson.Value) error {
		ob = &OrderBook{
			Symbol:    p.String(),
			Bids:      gateLevels(v.GetArray("bids")),
			Asks:      gateLevels(v.GetArray("asks")),
			Timestamp: fromMillis(v.GetInt64("current")),
		}
		return nil
	})
	return ob, err
}

func (c *GateClient) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]Trade, error) {
	native, _, err := gateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	var out []Trade
	params := url.Values{"currency_pair": {native}, "limit": {strconv.Itoa(limit)}}
	err = c.call(ctx, http.MethodGet, "/spot/trades", params, nil, false, func(v *fastjson.Value) error {
		rows := v.GetArray()
		out = make([]Trade, 0, len(rows))
		for _, r := range rows {
			side, _ := order.ParseSide(string(r.GetStringBytes("side")))
			out = append(out, Trade{
				ID:        string(r.GetStringBytes("id")),
				Price:     gateFloat(r, "price"),
				Amount:    gateFloat(r, "amount"),
				Side:      side,
				Timestamp: fromMillis(int64(gateFloat(r, "create_time_ms"))),
			})
		}
		return nil
	})
	return out, err
}

func (c *GateClient) GetBalances(ctx context.Context) ([]Balance, error) {
	var out []Balance
	err := c.call(ctx, http.MethodGet, "/spot/accounts", url.Values{}, nil, true, func(v *fastjson.Value) error {
		rows := v.GetArray()
		out = make([]Balance, 0, len(rows))
		for _, r := range rows {
			free, locked := gateFloat(r, "available"), gateFloat(r, "locked")
			out = append(out, Balance{
				Asset: strings.ToUpper(string(r.GetStringBytes("currency"))),
				Free:  free,
				Used:  locked,
				Total: free + locked,
			})
		}
		return nil
	})
	return out, err
}

func gateStatus(s string) order.Status {
	switch s {
	case "open":
		return order.StatusNew
	case "closed":
		return order.StatusFilled
	case "cancelled":
		return order.StatusCanceled
	}
	return order.StatusAck
}

func gateSnapshot(v *fastjson.Value) order.Snapshot {
	amount, left := gateFloat(v, "amount"), gateFloat(v, "left")
	side, _ := order.ParseSide(string(v.GetStringBytes("side")))
	pair := strings.Replace(string(v.GetStringBytes("currency_pair")), "_", "/", 1)
	st := gateStatus(string(v.GetStringBytes("status")))
	if st == order.StatusNew && left < amount {
		st = order.StatusPartial
	}
	return order.Snapshot{
		ID:            string(v.GetStringBytes("id")),
		ClientOrderID: strings.TrimPrefix(string(v.GetStringBytes("text")), "t-"),
		Symbol:        pair,
		Side:          side,
		Price:         gateFloat(v, "price"),
		Amount:        amount,
		Filled:        amount - left,
		Remaining:     left,
		Status:        st,
	}
}

func (c *GateClient) GetOpenOrders(ctx context.Context, symbol string) ([]order.Snapshot, error) {
	var out []order.Snapshot
	if symbol == "" {
		err := c.call(ctx, http.MethodGet, "/spot/open_orders", url.Values{}, nil, true, func(v *fastjson.Value) error {
			for _, group := range v.GetArray() {
				for _, o := range group.GetArray("orders") {
					out = append(out, gateSnapshot(o))
				}
			}
			return nil
		})
		if out == nil {
			out = []order.Snapshot{}
		}
		return out, err
	}
	native, _, err := gateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	params := url.Values{"currency_pair": {native}, "status": {"open"}}
	err = c.call(ctx, http.MethodGet, "/spot/orders", params, nil, true, func(v *fastjson.Value) error {
		rows := v.GetArray()
		out = make([]order.Snapshot, 0, len(rows))
		for _, r := range rows {
			out = append(out, gateSnapshot(r))
		}
		return nil
	})
	return out, err
}

func (c *GateClient) CreateOrder(ctx context.Context, req order.Request) (*order.Receipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	native, p, err := gateSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	var a fastjson.Arena
	body := a.NewObject()
	body.Set("currency_pair", a.NewString(native))
	body.Set("type", a.NewString(string(req.Type)))
	body.Set("side", a.NewString(string(req.Side)))
	body.Set("amount", a.NewString(formatAmount(req.Amount)))
	if req.Type == order.TypeLimit {
		body.Set("price", a.NewString(formatPrice(req.Price)))
		body.Set("time_in_force", a.NewString("gtc"))
	} else {
		body.Set("time_in_force", a.NewString("ioc"))
	}
	if req.ClientOrderID != "" {
		body.Set("text", a.NewString("t-"+req.ClientOrderID))
	}
	var rec *order.Receipt
	err = c.call(ctx, http.MethodPost, "/spot/orders", url.Values{}, body.MarshalTo(nil), true, func(v *fastjson.Value) error {
		id := string(v.GetStringBytes("id"))
		if id == "" {
			return errors.New("empty order id")
		}
		rec = &order.Receipt{
			ID:            id,
			ClientOrderID: req.ClientOrderID,
			Symbol:        p.String(),
			Side:          req.Side,
			Type:          req.Type,
			Price:         req.Price.InexactFloat64(),
			Amount:        req.Amount.InexactFloat64(),
			Status:        gateStatus(string(v.GetStringBytes("status"))),
			Timestamp:     fromMillis(int64(gateFloat(v, "create_time_ms"))),
		}
		return nil
	})
	return rec, err
}

func (c *GateClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	native, _, err := gateSymbol(symbol)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodDelete, "/spot/orders/"+url.PathEscape(orderID), url.Values{"currency_pair": {native}}, nil, true, nil)
}

func (c *GateClient) CancelAllOrders(ctx context.Context, symbol string) (*CancelResult, error) {
	native, p, err := gateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	res := &CancelResult{Symbol: p.String(), OrderIDs: []string{}}
	err = c.call(ctx, http.MethodDelete, "/spot/orders", url.Values{"currency_pair": {native}}, nil, true, func(v *fastjson.Value) error {
		for _, r := range v.GetArray() {
			res.OrderIDs = append(res.OrderIDs, string(r.GetStringBytes("id")))
		}
		res.Cancelled = len(res.OrderIDs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
