package gateway

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"

	"market-agent-go/order"
)

// BinanceClient 基于 go-binance 的现货连接器。
type BinanceClient struct {
	client  *binance.Client
	limiter RateLimiter
}

func NewBinanceClient(opts RESTOptions) *BinanceClient {
	cli := binance.NewClient(opts.APIKey, opts.Secret)
	if opts.BaseURL != "" {
		cli.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cli.HTTPClient = opts.HTTPClient
	} else if opts.Timeout > 0 {
		hc := NewDefaultHTTPClient()
		hc.Timeout = opts.Timeout
		cli.HTTPClient = hc
	}
	return &BinanceClient{client: cli, limiter: NewRateLimiter(opts.RateLimit, opts.Burst)}
}

func (c *BinanceClient) Name() string { return "binance" }

func binanceSymbol(symbol string) (string, Pair, error) {
	p, err := ParsePair(symbol)
	if err != nil {
		return "", Pair{}, err
	}
	return p.Join(""), p, nil
}

func (c *BinanceClient) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	native, p, err := binanceSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	stats, err := c.client.NewListPriceChangeStatsService().Symbol(native).Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("no ticker for %s", native)
	}
	s := stats[0]
	return &Ticker{
		Symbol:      p.String(),
		Last:        parseFloat(s.LastPrice),
		Bid:         parseFloat(s.BidPrice),
		Ask:         parseFloat(s.AskPrice),
		High:        parseFloat(s.HighPrice),
		Low:         parseFloat(s.LowPrice),
		BaseVolume:  parseFloat(s.Volume),
		QuoteVolume: parseFloat(s.QuoteVolume),
		Timestamp:   fromMillis(s.CloseTime),
	}, nil
}

func (c *BinanceClient) GetOrderBook(ctx context.Context, symbol string, limit int) (*OrderBook, error) {
	native, p, err := binanceSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	depth, err := c.client.NewDepthService().Symbol(native).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	ob := &OrderBook{Symbol: p.String(), Timestamp: fromMillis(0)}
	for _, b := range depth.Bids {
		ob.Bids = append(ob.Bids, PriceLevel{Price: parseFloat(b.Price), Amount: parseFloat(b.Quantity)})
	}
	for _, a := range depth.Asks {
		ob.Asks = append(ob.Asks, PriceLevel{Price: parseFloat(a.Price), Amount: parseFloat(a.Quantity)})
	}
	return ob, nil
}

func (c *BinanceClient) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]Trade, error) {
	native, _, err := binanceSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	rows, err := c.client.NewRecentTradesService().Symbol(native).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Trade, 0, len(rows))
	for _, r := range rows {
		side := order.SideBuy
		if r.IsBuyerMaker {
			side = order.SideSell
		}
		out = append(out, Trade{
			ID:        strconv.FormatInt(r.ID, 10),
			Price:     parseFloat(r.Price),
			Amount:    parseFloat(r.Quantity),
			Side:      side,
			Timestamp: fromMillis(r.Time),
		})
	}
	return out, nil
}

func (c *BinanceClient) GetBalances(ctx context.Context) ([]Balance, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	acc, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Balance, 0, len(acc.Balances))
	for _, b := range acc.Balances {
		free, locked := parseFloat(b.Free), parseFloat(b.Locked)
		out = append(out, Balance{Asset: b.Asset, Free: free, Used: locked, Total: free + locked})
	}
	return out, nil
}

func binanceStatus(s binance.OrderStatusType) order.Status {
	switch s {
	case binance.OrderStatusTypeNew:
		return order.StatusNew
	case binance.OrderStatusTypePartiallyFilled:
		return order.StatusPartial
	case binance.OrderStatusTypeFilled:
		return order.StatusFilled
	case binance.OrderStatusTypeCanceled:
		return order.StatusCanceled
	case binance.OrderStatusTypeRejected:
		return order.StatusRejected
	case binance.OrderStatusTypeExpired:
		return order.StatusExpired
	}
	return order.StatusAck
}

func (c *BinanceClient) GetOpenOrders(ctx context.Context, symbol string) ([]order.Snapshot, error) {
	svc := c.client.NewListOpenOrdersService()
	if symbol != "" {
		native, _, err := binanceSymbol(symbol)
		if err != nil {
			return nil, err
		}
		svc = svc.Symbol(native)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	rows, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]order.Snapshot, 0, len(rows))
	for _, r := range rows {
		amount, filled := parseFloat(r.OrigQuantity), parseFloat(r.ExecutedQuantity)
		side, _ := order.ParseSide(string(r.Side))
		sym := r.Symbol
		if p, err := ParsePair(r.Symbol); err == nil {
			sym = p.String()
		}
		out = append(out, order.Snapshot{
			ID:            strconv.FormatInt(r.OrderID, 10),
			ClientOrderID: r.ClientOrderID,
			Symbol:        sym,
			Side:          side,
			Price:         parseFloat(r.Price),
			Amount:        amount,
			Filled:        filled,
			Remaining:     amount - filled,
			Status:        binanceStatus(r.Status),
		})
	}
	return out, nil
}

func (c *BinanceClient) CreateOrder(ctx context.Context, req order.Request) (*order.Receipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	native, p, err := binanceSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	side := binance.SideTypeBuy
	if req.Side == order.SideSell {
		side = binance.SideTypeSell
	}
	svc := c.client.NewCreateOrderService().
		Symbol(native).
		Side(side).
		Quantity(formatAmount(req.Amount))
	if req.Type == order.TypeLimit {
		svc = svc.Type(binance.OrderTypeLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(formatPrice(req.Price))
	} else {
		svc = svc.Type(binance.OrderTypeMarket)
	}
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}
	return &order.Receipt{
		ID:            strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Symbol:        p.String(),
		Side:          req.Side,
		Type:          req.Type,
		Price:         req.Price.InexactFloat64(),
		Amount:        req.Amount.InexactFloat64(),
		Status:        binanceStatus(resp.Status),
		Timestamp:     fromMillis(resp.TransactTime),
	}, nil
}

func (c *BinanceClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	native, _, err := binanceSymbol(symbol)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: binance order id must be numeric: %s", ErrOrderNotFound, orderID)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = c.client.NewCancelOrderService().Symbol(native).OrderID(id).Do(ctx)
	return err
}

func (c *BinanceClient) CancelAllOrders(ctx context.Context, symbol string) (*CancelResult, error) {
	native, p, err := binanceSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.client.NewCancelOpenOrdersService().Symbol(native).Do(ctx)
	if err != nil {
		return nil, err
	}
	res := &CancelResult{Symbol: p.String(), OrderIDs: []string{}}
	for _, o := range resp.Orders {
		res.OrderIDs = append(res.OrderIDs, strconv.FormatInt(o.OrderID, 10))
	}
	res.Cancelled = len(res.OrderIDs)
	return res, nil
}
