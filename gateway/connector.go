package gateway

import (
	"context"
	"time"

	"market-agent-go/order"
)

// Connector 是单个交易所的窄接口。策略与工具层只依赖它，不关心签名、限流与传输细节。
type Connector interface {
	Name() string
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)
	GetOrderBook(ctx context.Context, symbol string, limit int) (*OrderBook, error)
	GetRecentTrades(ctx context.Context, symbol string, limit int) ([]Trade, error)
	GetBalances(ctx context.Context) ([]Balance, error)
	// GetOpenOrders symbol 为空时返回全部交易对的挂单。
	GetOpenOrders(ctx context.Context, symbol string) ([]order.Snapshot, error)
	CreateOrder(ctx context.Context, req order.Request) (*order.Receipt, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAllOrders(ctx context.Context, symbol string) (*CancelResult, error)
}

// Ticker 最新行情。
type Ticker struct {
	Symbol      string    `json:"symbol"`
	Last        float64   `json:"last"`
	Bid         float64   `json:"bid"`
	Ask         float64   `json:"ask"`
	High        float64   `json:"high,omitempty"`
	Low         float64   `json:"low,omitempty"`
	BaseVolume  float64   `json:"baseVolume"`
	QuoteVolume float64   `json:"quoteVolume"`
	Timestamp   time.Time `json:"timestamp"`
}

type PriceLevel struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// OrderBook 深度快照，Bids 价格降序、Asks 价格升序。
type OrderBook struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// Trade 市场成交，Side 为主动方方向。
type Trade struct {
	ID        string     `json:"id"`
	Price     float64    `json:"price"`
	Amount    float64    `json:"amount"`
	Side      order.Side `json:"side"`
	Timestamp time.Time  `json:"timestamp"`
}

type Balance struct {
	Asset string  `json:"asset"`
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

// CancelResult 批量撤单结果。
type CancelResult struct {
	Symbol    string   `json:"symbol"`
	Cancelled int      `json:"cancelled"`
	OrderIDs  []string `json:"orderIds"`
}
