package strategy

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"market-agent-go/gateway"
	"market-agent-go/infrastructure/logger"
	"market-agent-go/metrics"
	"market-agent-go/order"
)

const (
	StatusPreview = "preview"
	StatusActive  = "active"
	StatusStopped = "stopped"
)

// ConnectorResolver 按交易所 ID 返回连接器。
type ConnectorResolver interface {
	Resolve(exchange string) (gateway.Connector, error)
}

// Service 网格策略生命周期：start（预览/挂单）、stop、status。自身无状态，所有状态在交易所。
type Service struct {
	connectors ConnectorResolver
	log        *logger.Logger
	now        func() time.Time
}

func NewService(connectors ConnectorResolver, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{connectors: connectors, log: log, now: time.Now}
}

// GridEntry 对外输出的单个档位。
type GridEntry struct {
	Level      int        `json:"level"`
	Side       order.Side `json:"side"`
	Price      float64    `json:"price"`
	Amount     float64    `json:"amount"`
	ValueQuote float64    `json:"valueQuote"`
}

type StartResult struct {
	Status         string          `json:"status"`
	Exchange       string          `json:"exchange"`
	Symbol         string          `json:"symbol"`
	CenterPrice    float64         `json:"centerPrice"`
	Config         GridConfig      `json:"config"`
	Grid           []GridEntry     `json:"grid"`
	TotalOrders    int             `json:"totalOrders"`
	TotalBuyValue  float64         `json:"totalBuyValue"`
	TotalSellValue float64         `json:"totalSellValue"`
	PlacedOrders   []order.Receipt `json:"placedOrders,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

type StopResult struct {
	Status          string                `json:"status"`
	Exchange        string                `json:"exchange"`
	Symbol          string                `json:"symbol"`
	CancelledOrders int                   `json:"cancelledOrders"`
	Result          *gateway.CancelResult `json:"result"`
	Timestamp       time.Time             `json:"timestamp"`
}

type OpenOrderCounts struct {
	Total      int `json:"total"`
	BuyOrders  int `json:"buyOrders"`
	SellOrders int `json:"sellOrders"`
}

type StatusResult struct {
	Exchange     string           `json:"exchange"`
	Symbol       string           `json:"symbol"`
	CurrentPrice float64          `json:"currentPrice"`
	OpenOrders   OpenOrderCounts  `json:"openOrders"`
	GridSpread   *float64         `json:"gridSpread"`
	Orders       []order.Snapshot `json:"orders"`
	Timestamp    time.Time        `json:"timestamp"`
}

// target 校验交易所与交易对并解析连接器，不触发任何交易所调用。
func (s *Service) target(exchange, symbol string) (string, string, gateway.Connector, error) {
	ex, err := gateway.ValidateExchange(exchange)
	if err != nil {
		return "", "", nil, err
	}
	sym, err := gateway.ValidateSymbol(symbol)
	if err != nil {
		return "", "", nil, err
	}
	conn, err := s.connectors.Resolve(ex)
	if err != nil {
		return "", "", nil, err
	}
	return ex, sym, conn, nil
}

// Start 以最新成交价为中心生成网格；DryRun 时只返回预览，否则按计算顺序逐个挂限价单，遇错即停。
func (s *Service) Start(ctx context.Context, exchange, symbol string, cfg GridConfig) (*StartResult, error) {
	ex, err := gateway.ValidateExchange(exchange)
	if err != nil {
		return nil, err
	}
	sym, err := gateway.ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := s.connectors.Resolve(ex)
	if err != nil {
		return nil, err
	}

	ticker, err := conn.GetTicker(ctx, sym)
	if err != nil {
		return nil, gateway.WrapError(ex, sym, "get_ticker", err)
	}
	if ticker.Last <= 0 || math.IsNaN(ticker.Last) || math.IsInf(ticker.Last, 0) {
		return nil, gateway.WrapError(ex, sym, "get_ticker", fmt.Errorf("ticker has no usable last price (%v)", ticker.Last))
	}
	center := decimal.NewFromFloat(ticker.Last)

	levels, err := ComputeGrid(center, cfg)
	if err != nil {
		return nil, err
	}
	metrics.GridLevelsComputed.WithLabelValues(string(cfg.SpacingModel), string(cfg.SizeModel)).Inc()

	res := &StartResult{
		Status:      StatusPreview,
		Exchange:    ex,
		Symbol:      sym,
		CenterPrice: ticker.Last,
		Config:      cfg,
		Grid:        make([]GridEntry, 0, len(levels)),
		TotalOrders: len(levels),
		Timestamp:   s.now().UTC(),
	}
	buyTotal, sellTotal := decimal.Zero, decimal.Zero
	for _, lv := range levels {
		v := lv.ValueQuote()
		if lv.Side == order.SideBuy {
			buyTotal = buyTotal.Add(v)
		} else {
			sellTotal = sellTotal.Add(v)
		}
		res.Grid = append(res.Grid, GridEntry{
			Level:      lv.Index,
			Side:       lv.Side,
			Price:      lv.Price.InexactFloat64(),
			Amount:     lv.Amount.InexactFloat64(),
			ValueQuote: v.InexactFloat64(),
		})
	}
	res.TotalBuyValue = buyTotal.InexactFloat64()
	res.TotalSellValue = sellTotal.InexactFloat64()

	if cfg.DryRun {
		s.log.LogAction("grid_preview", map[string]interface{}{
			"exchange":    ex,
			"symbol":      sym,
			"centerPrice": ticker.Last,
			"levels":      cfg.Levels,
			"totalOrders": len(levels),
		})
		return res, nil
	}

	receipts, err := s.place(ctx, conn, ex, sym, levels)
	if err != nil {
		metrics.GridPlacementFailures.WithLabelValues(ex).Inc()
		s.log.LogAction("grid_partial_failure", map[string]interface{}{
			"exchange": ex,
			"symbol":   sym,
			"placed":   len(receipts),
			"total":    len(levels),
			"error":    err.Error(),
		})
		return nil, &PartialPlacementError{Placed: len(receipts), Total: len(levels), Receipts: receipts, Err: err}
	}
	res.Status = StatusActive
	res.PlacedOrders = receipts
	s.log.LogAction("grid_activated", map[string]interface{}{
		"exchange":    ex,
		"symbol":      sym,
		"centerPrice": ticker.Last,
		"placed":      len(receipts),
	})
	return res, nil
}

// place 严格顺序挂单；返回已成功的回执与首个错误。
func (s *Service) place(ctx context.Context, conn gateway.Connector, ex, sym string, levels []GridLevel) ([]order.Receipt, error) {
	prefix := "grid-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	receipts := make([]order.Receipt, 0, len(levels))
	for _, lv := range levels {
		req := order.Request{
			Symbol:        sym,
			Side:          lv.Side,
			Type:          order.TypeLimit,
			Price:         lv.Price,
			Amount:        lv.Amount,
			ClientOrderID: fmt.Sprintf("%s-%c%d", prefix, lv.Side[0], lv.Index),
		}
		rec, err := conn.CreateOrder(ctx, req)
		if err != nil {
			return receipts, gateway.WrapError(ex, sym, "create_order", err)
		}
		metrics.GridOrdersPlaced.WithLabelValues(ex, string(lv.Side)).Inc()
		receipts = append(receipts, *rec)
	}
	return receipts, nil
}

// Stop 先读取挂单数量，再撤销该交易对全部挂单。两次调用之间的变化不做处理。
func (s *Service) Stop(ctx context.Context, exchange, symbol string) (*StopResult, error) {
	ex, sym, conn, err := s.target(exchange, symbol)
	if err != nil {
		return nil, err
	}
	open, err := conn.GetOpenOrders(ctx, sym)
	if err != nil {
		return nil, gateway.WrapError(ex, sym, "get_open_orders", err)
	}
	cancelled, err := conn.CancelAllOrders(ctx, sym)
	if err != nil {
		return nil, gateway.WrapError(ex, sym, "cancel_all_orders", err)
	}
	metrics.OrdersCancelled.WithLabelValues(ex).Add(float64(len(open)))
	s.log.LogAction("strategy_stopped", map[string]interface{}{
		"exchange":  ex,
		"symbol":    sym,
		"cancelled": len(open),
	})
	return &StopResult{
		Status:          StatusStopped,
		Exchange:        ex,
		Symbol:          sym,
		CancelledOrders: len(open),
		Result:          cancelled,
		Timestamp:       s.now().UTC(),
	}, nil
}

// Status 并发读取最新价与挂单。gridSpread = 最低卖价 - 最高买价，任一侧为空时为 nil。
func (s *Service) Status(ctx context.Context, exchange, symbol string) (*StatusResult, error) {
	ex, sym, conn, err := s.target(exchange, symbol)
	if err != nil {
		return nil, err
	}

	var (
		ticker *gateway.Ticker
		open   []order.Snapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := conn.GetTicker(gctx, sym)
		if err != nil {
			return gateway.WrapError(ex, sym, "get_ticker", err)
		}
		ticker = t
		return nil
	})
	g.Go(func() error {
		o, err := conn.GetOpenOrders(gctx, sym)
		if err != nil {
			return gateway.WrapError(ex, sym, "get_open_orders", err)
		}
		open = o
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &StatusResult{
		Exchange:     ex,
		Symbol:       sym,
		CurrentPrice: ticker.Last,
		Orders:       make([]order.Snapshot, 0, len(open)),
		Timestamp:    s.now().UTC(),
	}
	var (
		maxBuy  = math.Inf(-1)
		minSell = math.Inf(1)
	)
	for _, o := range open {
		res.Orders = append(res.Orders, o)
		switch o.Side {
		case order.SideBuy:
			res.OpenOrders.BuyOrders++
			maxBuy = math.Max(maxBuy, o.Price)
		case order.SideSell:
			res.OpenOrders.SellOrders++
			minSell = math.Min(minSell, o.Price)
		}
	}
	res.OpenOrders.Total = len(open)
	if res.OpenOrders.BuyOrders > 0 && res.OpenOrders.SellOrders > 0 {
		spread := minSell - maxBuy
		res.GridSpread = &spread
	}
	s.log.LogAction("strategy_status", map[string]interface{}{
		"exchange":   ex,
		"symbol":     sym,
		"openOrders": res.OpenOrders.Total,
	})
	return res, nil
}
