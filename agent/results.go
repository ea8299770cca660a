package agent

import (
	"encoding/json"
	"errors"
	"time"

	"market-agent-go/gateway"
	"market-agent-go/order"
	"market-agent-go/strategy"
)

// 失败类别，对应调用方可见的 error.kind。
const (
	KindInvalidParams        = "invalid_params"
	KindInvalidConfiguration = "invalid_configuration"
	KindUnsupportedExchange  = "unsupported_exchange"
	KindInvalidSymbol        = "invalid_symbol"
	KindConnectorFailure     = "connector_failure"
	KindPartialPlacement     = "partial_placement"
	KindUnknownTool          = "unknown_tool"
)

// Failure 结构化错误。部分挂单失败时附带已挂出的回执。
type Failure struct {
	Kind         string          `json:"kind"`
	Message      string          `json:"message"`
	Param        string          `json:"param,omitempty"`
	Exchange     string          `json:"exchange,omitempty"`
	Symbol       string          `json:"symbol,omitempty"`
	Op           string          `json:"op,omitempty"`
	PlacedOrders *int            `json:"placedOrders,omitempty"`
	TotalOrders  int             `json:"totalOrders,omitempty"`
	Receipts     []order.Receipt `json:"receipts,omitempty"`
	Timestamp    string          `json:"timestamp"`
}

// FailureResponse 对外返回的失败包体。
type FailureResponse struct {
	Error *Failure `json:"error"`
}

// Classify 把任意错误归入失败类别。顺序有意义：部分挂单先于连接器错误，配置错误先于参数错误。
func Classify(err error) *Failure {
	f := &Failure{
		Kind:      KindConnectorFailure,
		Message:   err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var (
		pe  *strategy.PartialPlacementError
		ce  *gateway.ConnectorError
		par *ParamError
		cfg *strategy.ConfigError
	)
	if errors.As(err, &ce) {
		f.Exchange, f.Symbol, f.Op = ce.Exchange, ce.Symbol, ce.Op
	}
	switch {
	case errors.As(err, &pe):
		placed := pe.Placed
		f.Kind = KindPartialPlacement
		f.PlacedOrders = &placed
		f.TotalOrders = pe.Total
		f.Receipts = pe.Receipts
	case errors.Is(err, ErrUnknownTool):
		f.Kind = KindUnknownTool
	case errors.Is(err, strategy.ErrInvalidConfiguration):
		f.Kind = KindInvalidConfiguration
		if errors.As(err, &cfg) {
			f.Param = cfg.Field
		} else if errors.As(err, &par) {
			f.Param = par.Param
		}
	case errors.As(err, &par):
		f.Kind = KindInvalidParams
		f.Param = par.Param
	case errors.Is(err, order.ErrInvalidRequest):
		f.Kind = KindInvalidParams
	case errors.Is(err, gateway.ErrUnsupportedExchange), errors.Is(err, gateway.ErrExchangeNotConfigured):
		f.Kind = KindUnsupportedExchange
	case errors.Is(err, gateway.ErrInvalidSymbol):
		f.Kind = KindInvalidSymbol
	}
	return f
}

// Encode 把成功结果或失败序列化为 JSON，第二个返回值表示是否失败。
func Encode(res interface{}, err error) ([]byte, bool) {
	if err != nil {
		b, _ := json.MarshalIndent(FailureResponse{Error: Classify(err)}, "", "  ")
		return b, true
	}
	b, mErr := json.MarshalIndent(res, "", "  ")
	if mErr != nil {
		b, _ = json.MarshalIndent(FailureResponse{Error: &Failure{
			Kind:      KindConnectorFailure,
			Message:   "encode result: " + mErr.Error(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}}, "", "  ")
		return b, true
	}
	return b, false
}
