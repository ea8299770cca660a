package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"market-agent-go/order"
)

// PaperOptions 模拟盘初始行情与资产。Balances 为空时不做余额检查。
type PaperOptions struct {
	Prices      map[string]float64
	Balances    map[string]float64
	Spread      float64
	Constraints map[string]order.SymbolConstraints
}

// PaperExchange 内存模拟交易所：限价单挂在本地账本上不撮合，市价单按最新价立即成交。
type PaperExchange struct {
	name     string
	mu       sync.RWMutex
	prices   map[string]float64
	balances map[string]float64
	spread   float64
	ledger   *order.Manager
	trades   map[string][]Trade
	now      func() time.Time
}

func NewPaperExchange(name string, opts PaperOptions) *PaperExchange {
	p := &PaperExchange{
		name:     name,
		prices:   make(map[string]float64),
		balances: make(map[string]float64),
		spread:   opts.Spread,
		ledger:   order.NewManager(),
		trades:   make(map[string][]Trade),
		now:      time.Now,
	}
	if p.spread <= 0 {
		p.spread = 0.001
	}
	for sym, px := range opts.Prices {
		_ = p.SetPrice(sym, px)
	}
	for asset, amt := range opts.Balances {
		p.balances[asset] = amt
	}
	if len(opts.Constraints) > 0 {
		cs := make(map[string]order.SymbolConstraints, len(opts.Constraints))
		for sym, c := range opts.Constraints {
			if pair, err := ParsePair(sym); err == nil {
				cs[pair.String()] = c
			}
		}
		p.ledger.SetConstraints(cs)
	}
	return p
}

func (p *PaperExchange) Name() string { return p.name }

// SetPrice 更新模拟最新价。
func (p *PaperExchange) SetPrice(symbol string, price float64) error {
	pair, err := ParsePair(symbol)
	if err != nil {
		return err
	}
	if price <= 0 {
		return fmt.Errorf("price must be > 0, got %v", price)
	}
	p.mu.Lock()
	p.prices[pair.String()] = price
	p.mu.Unlock()
	return nil
}

func (p *PaperExchange) last(symbol string) (Pair, float64, error) {
	pair, err := ParsePair(symbol)
	if err != nil {
		return Pair{}, 0, err
	}
	p.mu.RLock()
	px, ok := p.prices[pair.String()]
	p.mu.RUnlock()
	if !ok {
		return pair, 0, fmt.Errorf("market %s not listed on paper exchange %s", pair, p.name)
	}
	return pair, px, nil
}

func (p *PaperExchange) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pair, px, err := p.last(symbol)
	if err != nil {
		return nil, err
	}
	half := px * p.spread / 2
	return &Ticker{
		Symbol:    pair.String(),
		Last:      px,
		Bid:       px - half,
		Ask:       px + half,
		High:      px,
		Low:       px,
		Timestamp: p.now().UTC(),
	}, nil
}

// GetOrderBook 围绕最新价生成等距深度。
func (p *PaperExchange) GetOrderBook(ctx context.Context, symbol string, limit int) (*OrderBook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pair, px, err := p.last(symbol)
	if err != nil {
		return nil, err
	}
	ob := &OrderBook{Symbol: pair.String(), Timestamp: p.now().UTC()}
	step := px * p.spread
	for k := 0; k < limit; k++ {
		offset := step/2 + float64(k)*step
		ob.Bids = append(ob.Bids, PriceLevel{Price: px - offset, Amount: float64(k + 1)})
		ob.Asks = append(ob.Asks, PriceLevel{Price: px + offset, Amount: float64(k + 1)})
	}
	return ob, nil
}

func (p *PaperExchange) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pair, _, err := p.last(symbol)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	all := p.trades[pair.String()]
	p.mu.RUnlock()
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Trade, len(all))
	copy(out, all)
	return out, nil
}

// GetBalances 冻结部分由未完结挂单推算。
func (p *PaperExchange) GetBalances(ctx context.Context) ([]Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	used := p.locked()
	p.mu.RLock()
	out := make([]Balance, 0, len(p.balances))
	for asset, total := range p.balances {
		u := used[asset]
		out = append(out, Balance{Asset: asset, Free: total - u, Used: u, Total: total})
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

func (p *PaperExchange) locked() map[string]float64 {
	used := make(map[string]float64)
	for _, o := range p.ledger.Open("") {
		pair, err := ParsePair(o.Symbol)
		if err != nil {
			continue
		}
		if o.Side == order.SideBuy {
			used[pair.Quote] += o.Price.Mul(o.Remaining()).InexactFloat64()
		} else {
			used[pair.Base] += o.Remaining().InexactFloat64()
		}
	}
	return used
}

func (p *PaperExchange) GetOpenOrders(ctx context.Context, symbol string) ([]order.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := ""
	if symbol != "" {
		pair, err := ParsePair(symbol)
		if err != nil {
			return nil, err
		}
		key = pair.String()
	}
	open := p.ledger.Open(key)
	out := make([]order.Snapshot, 0, len(open))
	for _, o := range open {
		out = append(out, o.Snapshot())
	}
	return out, nil
}

var errInsufficientBalance = errors.New("insufficient balance")

func (p *PaperExchange) CreateOrder(ctx context.Context, req order.Request) (*order.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pair, px, err := p.last(req.Symbol)
	if err != nil {
		return nil, err
	}
	req.Symbol = pair.String()
	if req.Type == order.TypeMarket {
		req.Price = decimal.NewFromFloat(px)
	}
	if err := p.checkBalance(pair, req); err != nil {
		return nil, err
	}
	o, err := p.ledger.Submit(req)
	if err != nil {
		return nil, err
	}
	if req.Type == order.TypeMarket {
		if o, err = p.ledger.Fill(o.ID, o.Quantity); err != nil {
			return nil, err
		}
		p.settle(pair, o)
	}
	rec := o.Receipt()
	return &rec, nil
}

func (p *PaperExchange) checkBalance(pair Pair, req order.Request) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.balances) == 0 {
		return nil
	}
	used := p.locked()
	if req.Side == order.SideBuy {
		need := req.Price.Mul(req.Amount).InexactFloat64()
		if free := p.balances[pair.Quote] - used[pair.Quote]; free < need {
			return fmt.Errorf("%w: need %.8f %s, free %.8f", errInsufficientBalance, need, pair.Quote, free)
		}
		return nil
	}
	need := req.Amount.InexactFloat64()
	if free := p.balances[pair.Base] - used[pair.Base]; free < need {
		return fmt.Errorf("%w: need %.8f %s, free %.8f", errInsufficientBalance, need, pair.Base, free)
	}
	return nil
}

// settle 市价成交后更新余额并记录成交。
func (p *PaperExchange) settle(pair Pair, o order.Order) {
	qty := o.Filled.InexactFloat64()
	notional := o.Price.Mul(o.Filled).InexactFloat64()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.balances) > 0 {
		if o.Side == order.SideBuy {
			p.balances[pair.Quote] -= notional
			p.balances[pair.Base] += qty
		} else {
			p.balances[pair.Base] -= qty
			p.balances[pair.Quote] += notional
		}
	}
	p.trades[pair.String()] = append(p.trades[pair.String()], Trade{
		ID:        o.ID,
		Price:     o.Price.InexactFloat64(),
		Amount:    qty,
		Side:      o.Side,
		Timestamp: o.UpdatedAt,
	})
}

func (p *PaperExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pair, err := ParsePair(symbol)
	if err != nil {
		return err
	}
	o, ok := p.ledger.Get(orderID)
	if !ok || o.Symbol != pair.String() || !order.IsOpen(o.Status) {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	_, err = p.ledger.Cancel(orderID)
	return err
}

func (p *PaperExchange) CancelAllOrders(ctx context.Context, symbol string) (*CancelResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pair, err := ParsePair(symbol)
	if err != nil {
		return nil, err
	}
	cancelled, err := p.ledger.CancelAll(pair.String())
	res := &CancelResult{Symbol: pair.String(), OrderIDs: make([]string, 0, len(cancelled))}
	for _, o := range cancelled {
		res.OrderIDs = append(res.OrderIDs, o.ID)
	}
	res.Cancelled = len(res.OrderIDs)
	return res, err
}
