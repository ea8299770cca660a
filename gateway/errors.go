package gateway

import (
	"errors"
	"fmt"

	"market-agent-go/metrics"
)

var (
	ErrUnsupportedExchange   = errors.New("unsupported exchange")
	ErrExchangeNotConfigured = errors.New("exchange not configured")
	ErrInvalidSymbol         = errors.New("invalid symbol")
	ErrOrderNotFound         = errors.New("order not found")
)

// ConnectorError 包装交易所调用失败，保留交易所、交易对与原始错误。
type ConnectorError struct {
	Exchange string
	Symbol   string
	Op       string
	Err      error
}

func (e *ConnectorError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("%s %s failed: %v", e.Exchange, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s %s failed: %v", e.Exchange, e.Op, e.Symbol, e.Err)
}

func (e *ConnectorError) Unwrap() error { return e.Err }

// WrapError 构造 ConnectorError 并计数；err 为 nil 时返回 nil。
func WrapError(exchange, symbol, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConnectorError
	if errors.As(err, &ce) {
		return err
	}
	metrics.ConnectorErrors.WithLabelValues(exchange, op).Inc()
	return &ConnectorError{Exchange: exchange, Symbol: symbol, Op: op, Err: err}
}

// APIError 交易所返回的非 2xx 响应。
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status=%d body=%s", e.StatusCode, string(e.Body))
}
