package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"market-agent-go/order"
)

const mexcBaseURL = "https://api.mexc.com"

// MEXCClient 使用 MEXC v3 现货 REST 接口（与 Binance 签名规则兼容）。
type MEXCClient struct {
	rest   *restClient
	apiKey string
	secret string
}

func NewMEXCClient(opts RESTOptions) *MEXCClient {
	return &MEXCClient{
		rest:   newRESTClient(opts, mexcBaseURL),
		apiKey: opts.APIKey,
		secret: opts.Secret,
	}
}

func (c *MEXCClient) Name() string { return "mexc" }

func (c *MEXCClient) public(ctx context.Context, path string, params url.Values, out interface{}) error {
	data, err := c.rest.do(ctx, http.MethodGet, path, params.Encode(), nil, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (c *MEXCClient) signed(ctx context.Context, method, path string, params map[string]string, out interface{}) error {
	if c.apiKey == "" || c.secret == "" {
		return errors.New("mexc api credentials not configured")
	}
	query, sig := SignParams(params, c.secret)
	query += "&signature=" + url.QueryEscape(sig)
	h := http.Header{}
	h.Set("X-MEXC-APIKEY", c.apiKey)
	h.Set("Content-Type", "application/json")
	data, err := c.rest.do(ctx, method, path, query, nil, h)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func mexcSymbol(symbol string) (string, Pair, error) {
	p, err := ParsePair(symbol)
	if err != nil {
		return "", Pair{}, err
	}
	return p.Join(""), p, nil
}

type mexcTicker struct {
	LastPrice   string `json:"lastPrice"`
	BidPrice    string `json:"bidPrice"`
	AskPrice    string `json:"askPrice"`
	HighPrice   string `json:"highPrice"`
	LowPrice    string `json:"lowPrice"`
	Volume      string `json:"volume"`
	QuoteVolume string `json:"quoteVolume"`
	CloseTime   int64  `json:"closeTime"`
}

func (c *MEXCClient) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	native, p, err := mexcSymbol(symbol)
	if err != nil {
		return nil, err
	}
	var t mexcTicker
	if err := c.public(ctx, "/api/v3/ticker/24hr", url.Values{"symbol": {native}}, &t); err != nil {
		return nil, err
	}
	return &Ticker{
		Symbol:      p.String(),
		Last:        parseFloat(t.LastPrice),
		Bid:         parseFloat(t.BidPrice),
		Ask:         parseFloat(t.AskPrice),
		High:        parseFloat(t.HighPrice),
		Low:         parseFloat(t.LowPrice),
		BaseVolume:  parseFloat(t.Volume),
		QuoteVolume: parseFloat(t.QuoteVolume),
		Timestamp:   fromMillis(t.CloseTime),
	}, nil
}

type mexcDepth struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

func levelsFromPairs(rows [][]string) []PriceLevel {
	out := make([]PriceLevel, 0, len(rows))
	for _, r := range rows {
		if len(r) < 2 {
			continue
		}
		out = append(out, PriceLevel{Price: parseFloat(r[0]), Amount: parseFloat(r[1])})
	}
	return out
}

func (c *MEXCClient) GetOrderBook(ctx context.Context, symbol string, limit int) (*OrderBook, error) {
	native, p, err := mexcSymbol(symbol)
	if err != nil {
		return nil, err
	}
	var d mexcDepth
	params := url.Values{"symbol": {native}, "limit": {strconv.Itoa(limit)}}
	if err := c.public(ctx, "/api/v3/depth", params, &d); err != nil {
		return nil, err
	}
	return &OrderBook{Symbol: p.String(), Bids: levelsFromPairs(d.Bids), Asks: levelsFromPairs(d.Asks), Timestamp: fromMillis(0)}, nil
}

type mexcTrade struct {
	ID           flexString `json:"id"`
	Price        string     `json:"price"`
	Qty          string     `json:"qty"`
	Time         int64      `json:"time"`
	IsBuyerMaker bool       `json:"isBuyerMaker"`
}

func (c *MEXCClient) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]Trade, error) {
	native, _, err := mexcSymbol(symbol)
	if err != nil {
		return nil, err
	}
	var rows []mexcTrade
	params := url.Values{"symbol": {native}, "limit": {strconv.Itoa(limit)}}
	if err := c.public(ctx, "/api/v3/trades", params, &rows); err != nil {
		return nil, err
	}
	out := make([]Trade, 0, len(rows))
	for _, r := range rows {
		side := order.SideBuy
		if r.IsBuyerMaker {
			side = order.SideSell
		}
		out = append(out, Trade{ID: string(r.ID), Price: parseFloat(r.Price), Amount: parseFloat(r.Qty), Side: side, Timestamp: fromMillis(r.Time)})
	}
	return out, nil
}

type mexcAccount struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

func (c *MEXCClient) GetBalances(ctx context.Context) ([]Balance, error) {
	var acc mexcAccount
	if err := c.signed(ctx, http.MethodGet, "/api/v3/account", map[string]string{}, &acc); err != nil {
		return nil, err
	}
	out := make([]Balance, 0, len(acc.Balances))
	for _, b := range acc.Balances {
		free, locked := parseFloat(b.Free), parseFloat(b.Locked)
		out = append(out, Balance{Asset: b.Asset, Free: free, Used: locked, Total: free + locked})
	}
	return out, nil
}

type mexcOrder struct {
	Symbol        string     `json:"symbol"`
	OrderID       flexString `json:"orderId"`
	ClientOrderID string     `json:"clientOrderId"`
	Price         string     `json:"price"`
	OrigQty       string     `json:"origQty"`
	ExecutedQty   string     `json:"executedQty"`
	Status        string     `json:"status"`
	Side          string     `json:"side"`
	Type          string     `json:"type"`
	Time          int64      `json:"time"`
	TransactTime  int64      `json:"transactTime"`
}

// mexcStatus 映射交易所状态到统一状态。
func mexcStatus(s string) order.Status {
	switch strings.ToUpper(s) {
	case "NEW":
		return order.StatusNew
	case "PARTIALLY_FILLED":
		return order.StatusPartial
	case "FILLED":
		return order.StatusFilled
	case "CANCELED", "PARTIALLY_CANCELED":
		return order.StatusCanceled
	case "REJECTED":
		return order.StatusRejected
	case "EXPIRED":
		return order.StatusExpired
	}
	return order.StatusAck
}

func (o mexcOrder) snapshot(p Pair) order.Snapshot {
	amount, filled := parseFloat(o.OrigQty), parseFloat(o.ExecutedQty)
	side, _ := order.ParseSide(o.Side)
	return order.Snapshot{
		ID:            string(o.OrderID),
		ClientOrderID: o.ClientOrderID,
		Symbol:        p.String(),
		Side:          side,
		Price:         parseFloat(o.Price),
		Amount:        amount,
		Filled:        filled,
		Remaining:     amount - filled,
		Status:        mexcStatus(o.Status),
	}
}

func (c *MEXCClient) GetOpenOrders(ctx context.Context, symbol string) ([]order.Snapshot, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: mexc requires a symbol to list open orders", ErrInvalidSymbol)
	}
	native, p, err := mexcSymbol(symbol)
	if err != nil {
		return nil, err
	}
	var rows []mexcOrder
	if err := c.signed(ctx, http.MethodGet, "/api/v3/openOrders", map[string]string{"symbol": native}, &rows); err != nil {
		return nil, err
	}
	out := make([]order.Snapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.snapshot(p))
	}
	return out, nil
}

// CreateOrder 调用 /api/v3/order 下单。
func (c *MEXCClient) CreateOrder(ctx context.Context, req order.Request) (*order.Receipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	native, p, err := mexcSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	params := map[string]string{
		"symbol":   native,
		"side":     strings.ToUpper(string(req.Side)),
		"type":     strings.ToUpper(string(req.Type)),
		"quantity": formatAmount(req.Amount),
	}
	if req.Type == order.TypeLimit {
		params["price"] = formatPrice(req.Price)
	}
	if req.ClientOrderID != "" {
		params["newClientOrderId"] = req.ClientOrderID
	}
	var resp mexcOrder
	if err := c.signed(ctx, http.MethodPost, "/api/v3/order", params, &resp); err != nil {
		return nil, err
	}
	if resp.OrderID == "" {
		return nil, errors.New("empty orderId")
	}
	return &order.Receipt{
		ID:            string(resp.OrderID),
		ClientOrderID: req.ClientOrderID,
		Symbol:        p.String(),
		Side:          req.Side,
		Type:          req.Type,
		Price:         req.Price.InexactFloat64(),
		Amount:        req.Amount.InexactFloat64(),
		Status:        order.StatusNew,
		Timestamp:     fromMillis(resp.TransactTime),
	}, nil
}

// CancelOrder 调用 /api/v3/order 取消。
func (c *MEXCClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	native, _, err := mexcSymbol(symbol)
	if err != nil {
		return err
	}
	return c.signed(ctx, http.MethodDelete, "/api/v3/order", map[string]string{"symbol": native, "orderId": orderID}, nil)
}

func (c *MEXCClient) CancelAllOrders(ctx context.Context, symbol string) (*CancelResult, error) {
	native, p, err := mexcSymbol(symbol)
	if err != nil {
		return nil, err
	}
	var rows []mexcOrder
	if err := c.signed(ctx, http.MethodDelete, "/api/v3/openOrders", map[string]string{"symbol": native}, &rows); err != nil {
		return nil, err
	}
	res := &CancelResult{Symbol: p.String(), Cancelled: len(rows), OrderIDs: make([]string, 0, len(rows))}
	for _, r := range rows {
		res.OrderIDs = append(res.OrderIDs, string(r.OrderID))
	}
	return res, nil
}
