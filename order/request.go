package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Request 描述一次下单请求，价格与数量保持十进制精度直到连接器格式化。
type Request struct {
	Symbol        string
	Side          Side
	Type          Type
	Amount        decimal.Decimal
	Price         decimal.Decimal // market 单为零
	ClientOrderID string
}

var ErrInvalidRequest = errors.New("invalid order request")

// Validate 检查请求的基本完整性。
func (r Request) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidRequest)
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("%w: side %q", ErrInvalidRequest, r.Side)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be > 0", ErrInvalidRequest)
	}
	switch r.Type {
	case TypeLimit:
		if !r.Price.IsPositive() {
			return fmt.Errorf("%w: price is required for limit orders", ErrInvalidRequest)
		}
	case TypeMarket:
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidRequest, r.Type)
	}
	return nil
}

// Receipt is what an exchange acknowledges after accepting an order.
type Receipt struct {
	ID            string    `json:"id"`
	ClientOrderID string    `json:"clientOrderId,omitempty"`
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Type          Type      `json:"type"`
	Price         float64   `json:"price"`
	Amount        float64   `json:"amount"`
	Status        Status    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// Snapshot is an open order as reported by an exchange.
type Snapshot struct {
	ID            string  `json:"id"`
	ClientOrderID string  `json:"clientOrderId,omitempty"`
	Symbol        string  `json:"symbol"`
	Side          Side    `json:"side"`
	Price         float64 `json:"price"`
	Amount        float64 `json:"amount"`
	Filled        float64 `json:"filled"`
	Remaining     float64 `json:"remaining"`
	Status        Status  `json:"status,omitempty"`
}
