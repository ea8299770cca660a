package strategy

import (
	"errors"
	"fmt"

	"market-agent-go/order"
)

// ErrInvalidConfiguration 网格参数不合法，未触达任何交易所接口。
var ErrInvalidConfiguration = errors.New("invalid grid configuration")

// ConfigError 指出具体的非法字段。
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func configErr(field string, value interface{}, msg string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Message: msg}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid grid configuration: %s=%v %s", e.Field, e.Value, e.Message)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfiguration }

// PartialPlacementError 顺序挂单中途失败。已挂出的订单保持在交易所，不做回滚。
type PartialPlacementError struct {
	Placed   int
	Total    int
	Receipts []order.Receipt
	Err      error
}

func (e *PartialPlacementError) Error() string {
	return fmt.Sprintf("grid placement stopped after %d of %d orders: %v", e.Placed, e.Total, e.Err)
}

func (e *PartialPlacementError) Unwrap() error { return e.Err }
