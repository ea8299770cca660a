package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status represents order lifecycle.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusNew       Status = "NEW"
	StatusAck       Status = "ACK"
	StatusPartial   Status = "PARTIAL"
	StatusFilled    Status = "FILLED"
	StatusCanceling Status = "CANCELING"
	StatusCanceled  Status = "CANCELED"
	StatusRejected  Status = "REJECTED"
	StatusExpired   Status = "EXPIRED"
)

// Side 买卖方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide 大小写不敏感地解析方向。
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	}
	return "", fmt.Errorf("invalid side %q: must be buy or sell", s)
}

// Type 订单类型。
type Type string

const (
	TypeLimit  Type = "limit"
	TypeMarket Type = "market"
)

// ParseType 大小写不敏感地解析订单类型。
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "limit":
		return TypeLimit, nil
	case "market":
		return TypeMarket, nil
	}
	return "", fmt.Errorf("invalid order type %q: must be limit or market", s)
}

// Order holds the ledger view of a single order.
type Order struct {
	ID        string
	ClientID  string
	Symbol    string
	Side      Side
	Type      Type
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Filled    decimal.Decimal
	Status    Status
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Remaining 未成交数量。
func (o Order) Remaining() decimal.Decimal {
	rem := o.Quantity.Sub(o.Filled)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// Snapshot 转换为对外输出的挂单快照。
func (o Order) Snapshot() Snapshot {
	return Snapshot{
		ID:            o.ID,
		ClientOrderID: o.ClientID,
		Symbol:        o.Symbol,
		Side:          o.Side,
		Price:         o.Price.InexactFloat64(),
		Amount:        o.Quantity.InexactFloat64(),
		Filled:        o.Filled.InexactFloat64(),
		Remaining:     o.Remaining().InexactFloat64(),
		Status:        o.Status,
	}
}

// Receipt 转换为下单回执。
func (o Order) Receipt() Receipt {
	return Receipt{
		ID:            o.ID,
		ClientOrderID: o.ClientID,
		Symbol:        o.Symbol,
		Side:          o.Side,
		Type:          o.Type,
		Price:         o.Price.InexactFloat64(),
		Amount:        o.Quantity.InexactFloat64(),
		Status:        o.Status,
		Timestamp:     o.CreatedAt,
	}
}
