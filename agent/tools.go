package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"market-agent-go/gateway"
	"market-agent-go/infrastructure/logger"
	"market-agent-go/metrics"
	"market-agent-go/order"
	"market-agent-go/strategy"
)

// ErrUnknownTool 调用了未注册的工具。
var ErrUnknownTool = errors.New("unknown tool")

// Handler 工具实现，参数已通过声明校验。
type Handler func(ctx context.Context, args Args) (interface{}, error)

type tool struct {
	spec    func() ToolSpec
	handler Handler
}

// Toolset 工具注册表与调度入口。网格默认参数可在配置热更新时替换。
type Toolset struct {
	connectors strategy.ConnectorResolver
	grid       *strategy.Service
	log        *logger.Logger

	mu       sync.RWMutex
	defaults strategy.GridConfig

	tools map[string]tool
	names []string
}

func NewToolset(connectors strategy.ConnectorResolver, grid *strategy.Service, log *logger.Logger) *Toolset {
	if log == nil {
		log = logger.NewNop()
	}
	t := &Toolset{
		connectors: connectors,
		grid:       grid,
		log:        log,
		defaults:   strategy.DefaultGridConfig(),
		tools:      make(map[string]tool),
	}
	t.register(t.startGridSpec, t.startGrid)
	t.register(static(stopSpec), t.stopStrategy)
	t.register(static(statusSpec), t.strategyStatus)
	t.register(static(tickerSpec), t.getTicker)
	t.register(static(orderBookSpec), t.getOrderBook)
	t.register(static(tradesSpec), t.getTrades)
	t.register(static(balanceSpec), t.getBalance)
	t.register(static(listOrdersSpec), t.listOrders)
	t.register(static(createOrderSpec), t.createOrder)
	t.register(static(cancelOrderSpec), t.cancelOrder)
	t.register(static(cancelAllSpec), t.cancelAllOrders)
	return t
}

func static(s ToolSpec) func() ToolSpec { return func() ToolSpec { return s } }

func (t *Toolset) register(spec func() ToolSpec, h Handler) {
	name := spec().Name
	t.tools[name] = tool{spec: spec, handler: h}
	t.names = append(t.names, name)
}

// SetGridDefaults 替换 start_grid_strategy 的默认参数。
func (t *Toolset) SetGridDefaults(cfg strategy.GridConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	t.defaults = cfg
	t.mu.Unlock()
	return nil
}

func (t *Toolset) GridDefaults() strategy.GridConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.defaults
}

// Specs 返回全部工具声明（按注册顺序）。
func (t *Toolset) Specs() []ToolSpec {
	out := make([]ToolSpec, 0, len(t.names))
	for _, n := range t.names {
		out = append(out, t.tools[n].spec())
	}
	return out
}

func (t *Toolset) Spec(name string) (ToolSpec, bool) {
	tl, ok := t.tools[name]
	if !ok {
		return ToolSpec{}, false
	}
	return tl.spec(), true
}

// Call 校验参数并执行工具。所有错误原样返回，由 Classify 归类。
func (t *Toolset) Call(ctx context.Context, name string, raw map[string]interface{}) (res interface{}, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = Classify(err).Kind
		}
		elapsed := time.Since(start)
		metrics.ObserveAction(name, outcome, elapsed)
		t.log.LogAction("action_call", map[string]interface{}{
			"action":     name,
			"outcome":    outcome,
			"durationMs": elapsed.Milliseconds(),
		})
	}()

	tl, ok := t.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	args, err := tl.spec().Bind(raw)
	if err != nil {
		return nil, err
	}
	return tl.handler(ctx, args)
}

var (
	exchangeParam = ParamSpec{
		Name:        "exchange",
		Type:        TypeString,
		Required:    true,
		Description: "Exchange to use (" + strings.Join(gateway.SupportedExchanges(), ", ") + ")",
	}
	symbolParam = ParamSpec{
		Name:        "symbol",
		Type:        TypeString,
		Required:    true,
		Description: "Trading pair symbol, e.g. BTC/USDT",
	}
)

func limitParam(def, max float64) ParamSpec {
	return ParamSpec{
		Name:        "limit",
		Type:        TypeInteger,
		Default:     int(def),
		Min:         bound(1),
		Max:         bound(max),
		Description: fmt.Sprintf("Number of entries to return (default %g, max %g)", def, max),
	}
}

// target 校验交易所与交易对后解析连接器；symbol 为空时跳过交易对校验。
func (t *Toolset) target(args Args) (string, string, gateway.Connector, error) {
	ex, err := gateway.ValidateExchange(args.String("exchange"))
	if err != nil {
		return "", "", nil, err
	}
	sym := args.String("symbol")
	if sym != "" {
		if sym, err = gateway.ValidateSymbol(sym); err != nil {
			return "", "", nil, err
		}
	}
	conn, err := t.connectors.Resolve(ex)
	if err != nil {
		return "", "", nil, err
	}
	return ex, sym, conn, nil
}

// ---- strategy tools ----

func (t *Toolset) startGridSpec() ToolSpec {
	d := t.GridDefaults()
	grid := strategy.ErrInvalidConfiguration
	return ToolSpec{
		Name:        "start_grid_strategy",
		Description: "Start a grid trading strategy around the current price. Defaults to a dry-run preview; set dryRun=false to place the orders.",
		Params: []ParamSpec{
			exchangeParam,
			symbolParam,
			{Name: "profile", Type: TypeString, Enum: strategy.ProfileNames(), Cause: grid,
				Description: "Optional preset that seeds the grid parameters; explicit parameters still win"},
			{Name: "levels", Type: TypeInteger, Default: d.Levels, Min: bound(strategy.MinLevels), Max: bound(strategy.MaxLevels), Cause: grid,
				Description: "Grid levels per side (1-10)"},
			{Name: "baseSpacing", Type: TypeNumber, Default: d.BaseSpacing, Min: bound(strategy.MinBaseSpacing), Max: bound(strategy.MaxBaseSpacing), Cause: grid,
				Aliases: []string{"spacing"}, Description: "Distance of the first level from center as a fraction (0.02 = 2%)"},
			{Name: "orderSize", Type: TypeNumber, Default: d.OrderSize, Min: bound(0), Cause: grid,
				Description: "Quote-currency notional per level before size weighting"},
			{Name: "spacingModel", Type: TypeString, Default: string(d.SpacingModel), Enum: []string{string(strategy.SpacingLinear), string(strategy.SpacingGeometric)}, Cause: grid,
				Description: "Spacing model"},
			{Name: "spacingFactor", Type: TypeNumber, Default: d.SpacingFactor, Min: bound(0), Cause: grid,
				Description: "Growth factor between consecutive gaps (geometric only)"},
			{Name: "sizeModel", Type: TypeString, Default: string(d.SizeModel), Enum: []string{string(strategy.SizeFlat), string(strategy.SizePyramidal)}, Cause: grid,
				Description: "Size model"},
			{Name: "dryRun", Type: TypeBoolean, Default: d.DryRun,
				Description: "Preview only; no orders are placed"},
		},
	}
}

// gridConfig 预设（或默认值）打底，显式参数覆盖。
func (t *Toolset) gridConfig(args Args) (strategy.GridConfig, error) {
	cfg := t.GridDefaults()
	if name := args.String("profile"); name != "" {
		p, err := strategy.LookupProfile(name)
		if err != nil {
			return cfg, err
		}
		dry := cfg.DryRun
		cfg = p.GridConfig()
		cfg.DryRun = dry
	}
	if args.Provided("levels") {
		cfg.Levels = args.Int("levels")
	}
	if args.Provided("baseSpacing") {
		cfg.BaseSpacing = args.Float("baseSpacing")
	}
	if args.Provided("orderSize") {
		cfg.OrderSize = args.Float("orderSize")
	}
	if args.Provided("spacingModel") {
		cfg.SpacingModel = strategy.SpacingModel(args.String("spacingModel"))
	}
	if args.Provided("spacingFactor") {
		cfg.SpacingFactor = args.Float("spacingFactor")
	}
	if args.Provided("sizeModel") {
		cfg.SizeModel = strategy.SizeModel(args.String("sizeModel"))
	}
	if args.Provided("dryRun") {
		cfg.DryRun = args.Bool("dryRun")
	}
	return cfg, nil
}

func (t *Toolset) startGrid(ctx context.Context, args Args) (interface{}, error) {
	cfg, err := t.gridConfig(args)
	if err != nil {
		return nil, err
	}
	return t.grid.Start(ctx, args.String("exchange"), args.String("symbol"), cfg)
}

var stopSpec = ToolSpec{
	Name:        "stop_strategy",
	Description: "Stop a running strategy by cancelling every open order for the trading pair",
	Params:      []ParamSpec{exchangeParam, symbolParam},
}

func (t *Toolset) stopStrategy(ctx context.Context, args Args) (interface{}, error) {
	return t.grid.Stop(ctx, args.String("exchange"), args.String("symbol"))
}

var statusSpec = ToolSpec{
	Name:        "get_strategy_status",
	Description: "Current price, open order counts and grid spread for a trading pair",
	Params:      []ParamSpec{exchangeParam, symbolParam},
}

func (t *Toolset) strategyStatus(ctx context.Context, args Args) (interface{}, error) {
	return t.grid.Status(ctx, args.String("exchange"), args.String("symbol"))
}

// ---- market data ----

var tickerSpec = ToolSpec{
	Name:        "get_ticker",
	Description: "Get real-time price, bid/ask, spread, and volume for a trading pair",
	Params:      []ParamSpec{exchangeParam, symbolParam},
}

type tickerResult struct {
	Symbol        string    `json:"symbol"`
	Last          float64   `json:"last"`
	Bid           float64   `json:"bid"`
	Ask           float64   `json:"ask"`
	Spread        float64   `json:"spread"`
	SpreadPercent float64   `json:"spreadPercent"`
	BaseVolume    float64   `json:"baseVolume"`
	QuoteVolume   float64   `json:"quoteVolume"`
	Timestamp     time.Time `json:"timestamp"`
	Exchange      string    `json:"exchange"`
}

func (t *Toolset) getTicker(ctx context.Context, args Args) (interface{}, error) {
	ex, sym, conn, err := t.target(args)
	if err != nil {
		return nil, err
	}
	tk, err := conn.GetTicker(ctx, sym)
	if err != nil {
		return nil, gateway.WrapError(ex, sym, "get_ticker", err)
	}
	res := tickerResult{
		Symbol:      tk.Symbol,
		Last:        tk.Last,
		Bid:         tk.Bid,
		Ask:         tk.Ask,
		Spread:      tk.Ask - tk.Bid,
		BaseVolume:  tk.BaseVolume,
		QuoteVolume: tk.QuoteVolume,
		Timestamp:   tk.Timestamp,
		Exchange:    ex,
	}
	if tk.Ask > 0 {
		res.SpreadPercent = res.Spread / tk.Ask * 100
	}
	return res, nil
}

var orderBookSpec = ToolSpec{
	Name:        "get_orderbook",
	Description: "Fetch order book depth (bids and asks) for a trading pair",
	Params:      []ParamSpec{exchangeParam, symbolParam, limitParam(10, 100)},
}

type orderBookResult struct {
	Symbol        string               `json:"symbol"`
	Bids          []gateway.PriceLevel `json:"bids"`
	Asks          []gateway.PriceLevel `json:"asks"`
	Spread        *float64             `json:"spread"`
	SpreadPercent *float64             `json:"spreadPercent"`
	BidLevels     int                  `json:"bidLevels"`
	AskLevels     int                  `json:"askLevels"`
	Timestamp     time.Time            `json:"timestamp"`
	Exchange      string               `json:"exchange"`
}

func firstN[T any](s []T, n int) []T {
	if len(s) > n {
		s = s[:n]
	}
	if s == nil {
		return []T{}
	}
	return s
}

func (t *Toolset) getOrderBook(ctx context.Context, args Args) (interface{}, error) {
	ex, sym, conn, err := t.target(args)
	if err != nil {
		return nil, err
	}
	limit := args.Int("limit")
	ob, err := conn.GetOrderBook(ctx, sym, limit)
	if err != nil {
		return nil, gateway.WrapError(ex, sym, "get_orderbook", err)
	}
	res := orderBookResult{
		Symbol:    ob.Symbol,
		Bids:      firstN(ob.Bids, limit),
		Asks:      firstN(ob.Asks, limit),
		Timestamp: ob.Timestamp,
		Exchange:  ex,
	}
	res.BidLevels, res.AskLevels = len(res.Bids), len(res.Asks)
	if len(ob.Bids) > 0 && len(ob.Asks) > 0 {
		spread := ob.Asks[0].Price - ob.Bids[0].Price
		res.Spread = &spread
		if ob.Asks[0].Price > 0 {
			pct := spread / ob.Asks[0].Price * 100
			res.SpreadPercent = &pct
		}
	}
	return res, nil
}

var tradesSpec = ToolSpec{
	Name:        "get_trades",
	Description: "Get recent trades for a trading pair",
	Params:      []ParamSpec{exchangeParam, symbolParam, limitParam(20, 100)},
}

type tradeSummary struct {
	TotalTrades int     `json:"totalTrades"`
	BuyTrades   int     `json:"buyTrades"`
	SellTrades  int     `json:"sellTrades"`
	TotalVolume float64 `json:"totalVolume"`
}

type tradesResult struct {
	Symbol   string          `json:"symbol"`
	Trades   []gateway.Trade `json:"trades"`
	Summary  tradeSummary    `json:"summary"`
	Exchange string          `json:"exchange"`
}

func (t *Toolset) getTrades(ctx context.Context, args Args) (interface{}, error) {
	ex, sym, conn, err := t.target(args)
	if err != nil {
		return nil, err
	}
	limit := args.Int("limit")
	trades, err := conn.GetRecentTrades(ctx, sym, limit)
	if err != nil {
		return nil, gateway.WrapError(ex, sym, "get_trades", err)
	}
	trades = firstN(trades, limit)
	res := tradesResult{Symbol: sym, Trades: trades, Exchange: ex}
	volume := decimal.Zero
	for _, tr := range trades {
		switch tr.Side {
		case order.SideBuy:
			res.Summary.BuyTrades++
		case order.SideSell:
			res.Summary.SellTrades++
		}
		volume = volume.Add(decimal.NewFromFloat(tr.Price).Mul(decimal.NewFromFloat(tr.Amount)))
	}
	res.Summary.TotalTrades = len(trades)
	res.Summary.TotalVolume = volume.InexactFloat64()
	return res, nil
}

// ---- account ----

var balanceSpec = ToolSpec{
	Name:        "get_balance",
	Description: "Get account balances for all assets (or a specific asset)",
	Params: []ParamSpec{
		exchangeParam,
		{Name: "asset", Type: TypeString, Description: "Optional asset filter, e.g. USDT"},
	},
}

type balanceResult struct {
	Balances    []gateway.Balance `json:"balances,omitempty"`
	TotalAssets int               `json:"totalAssets"`
	Asset       string            `json:"asset,omitempty"`
	Message     string            `json:"message,omitempty"`
	Exchange    string            `json:"exchange"`
}

func (t *Toolset) getBalance(ctx context.Context, args Args) (interface{}, error) {
	ex, _, conn, err := t.target(args)
	if err != nil {
		return nil, err
	}
	balances, err := conn.GetBalances(ctx)
	if err != nil {
		return nil, gateway.WrapError(ex, "", "get_balance", err)
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Asset < balances[j].Asset })
	asset := strings.ToUpper(args.String("asset"))
	if asset != "" {
		filtered := balances[:0]
		for _, b := range balances {
			if strings.EqualFold(b.Asset, asset) {
				filtered = append(filtered, b)
			}
		}
		if len(filtered) == 0 {
			return balanceResult{Asset: asset, Message: "No balance found for asset: " + asset, Exchange: ex}, nil
		}
		balances = filtered
	}
	return balanceResult{Balances: balances, TotalAssets: len(balances), Exchange: ex}, nil
}

var listOrdersSpec = ToolSpec{
	Name:        "list_orders",
	Description: "List open orders, optionally filtered by trading pair",
	Params: []ParamSpec{
		exchangeParam,
		{Name: "symbol", Type: TypeString, Description: "Optional trading pair filter, e.g. BTC/USDT"},
	},
}

type ordersResult struct {
	Orders      []order.Snapshot `json:"orders"`
	TotalOrders int              `json:"totalOrders"`
	Symbol      string           `json:"symbol,omitempty"`
	Exchange    string           `json:"exchange"`
}

func (t *Toolset) listOrders(ctx context.Context, args Args) (interface{}, error) {
	ex, sym, conn, err := t.target(args)
	if err != nil {
		return nil, err
	}
	orders, err := conn.GetOpenOrders(ctx, sym)
	if err != nil {
		return nil, gateway.WrapError(ex, sym, "get_open_orders", err)
	}
	if orders == nil {
		orders = []order.Snapshot{}
	}
	return ordersResult{Orders: orders, TotalOrders: len(orders), Symbol: sym, Exchange: ex}, nil
}

// ---- trading ----

var createOrderSpec = ToolSpec{
	Name:        "create_order",
	Description: "Create a new limit or market order",
	Params: []ParamSpec{
		exchangeParam,
		symbolParam,
		{Name: "type", Type: TypeString, Required: true, Enum: []string{string(order.TypeLimit), string(order.TypeMarket)}, Description: "Order type"},
		{Name: "side", Type: TypeString, Required: true, Enum: []string{string(order.SideBuy), string(order.SideSell)}, Description: "Order side"},
		{Name: "amount", Type: TypeNumber, Required: true, Min: bound(0), Description: "Order amount in base currency"},
		{Name: "price", Type: TypeNumber, Min: bound(0), Description: "Limit price (required for limit orders, ignored for market orders)"},
	},
}

type orderResult struct {
	Order    *order.Receipt `json:"order"`
	Exchange string         `json:"exchange"`
}

func (t *Toolset) createOrder(ctx context.Context, args Args) (interface{}, error) {
	typ := order.Type(args.String("type"))
	if typ == order.TypeLimit && !args.Provided("price") {
		return nil, &ParamError{Param: "price", Message: "is required for limit orders"}
	}
	amount := decimal.NewFromFloat(args.Float("amount"))
	if !amount.IsPositive() {
		return nil, &ParamError{Param: "amount", Message: "must be > 0"}
	}
	ex, sym, conn, err := t.target(args)
	if err != nil {
		return nil, err
	}
	req := order.Request{
		Symbol: sym,
		Side:   order.Side(args.String("side")),
		Type:   typ,
		Amount: amount,
	}
	if typ == order.TypeLimit {
		req.Price = decimal.NewFromFloat(args.Float("price"))
	}
	if err := req.Validate(); err != nil {
		return nil, &ParamError{Param: "order", Message: err.Error()}
	}
	rec, err := conn.CreateOrder(ctx, req)
	if err != nil {
		return nil, gateway.WrapError(ex, sym, "create_order", err)
	}
	t.log.LogOrder("order_created", rec.ID, map[string]interface{}{
		"exchange": ex, "symbol": sym, "side": string(rec.Side), "type": string(rec.Type),
		"price": rec.Price, "amount": rec.Amount,
	})
	return orderResult{Order: rec, Exchange: ex}, nil
}

var cancelOrderSpec = ToolSpec{
	Name:        "cancel_order",
	Description: "Cancel a specific order by ID",
	Params: []ParamSpec{
		exchangeParam,
		symbolParam,
		{Name: "orderId", Type: TypeString, Required: true, Description: "The order ID to cancel"},
	},
}

type cancelResult struct {
	Cancelled bool   `json:"cancelled"`
	OrderID   string `json:"orderId"`
	Symbol    string `json:"symbol"`
	Exchange  string `json:"exchange"`
}

func (t *Toolset) cancelOrder(ctx context.Context, args Args) (interface{}, error) {
	ex, sym, conn, err := t.target(args)
	if err != nil {
		return nil, err
	}
	id := args.String("orderId")
	if err := conn.CancelOrder(ctx, sym, id); err != nil {
		return nil, gateway.WrapError(ex, sym, "cancel_order", err)
	}
	metrics.OrdersCancelled.WithLabelValues(ex).Inc()
	t.log.LogOrder("order_cancelled", id, map[string]interface{}{"exchange": ex, "symbol": sym})
	return cancelResult{Cancelled: true, OrderID: id, Symbol: sym, Exchange: ex}, nil
}

var cancelAllSpec = ToolSpec{
	Name:        "cancel_all_orders",
	Description: "Cancel all open orders for a trading pair",
	Params:      []ParamSpec{exchangeParam, symbolParam},
}

type cancelAllResult struct {
	Cancelled *gateway.CancelResult `json:"cancelled"`
	Symbol    string                `json:"symbol"`
	Exchange  string                `json:"exchange"`
}

func (t *Toolset) cancelAllOrders(ctx context.Context, args Args) (interface{}, error) {
	ex, sym, conn, err := t.target(args)
	if err != nil {
		return nil, err
	}
	res, err := conn.CancelAllOrders(ctx, sym)
	if err != nil {
		return nil, gateway.WrapError(ex, sym, "cancel_all_orders", err)
	}
	metrics.OrdersCancelled.WithLabelValues(ex).Add(float64(res.Cancelled))
	return cancelAllResult{Cancelled: res, Symbol: sym, Exchange: ex}, nil
}
