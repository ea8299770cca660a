package gateway

import (
	"fmt"
	"strings"
)

// ExchangeInfo 交易所目录条目，供资源展示与参数校验。
type ExchangeInfo struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Credentials   []string `json:"credentials"`
	Features      []string `json:"features"`
	MinOrderValue string   `json:"minOrderValue"`
	// Drivers 可用的连接器实现。
	Drivers []string `json:"drivers"`
}

const (
	DriverREST  = "rest"
	DriverPaper = "paper"
)

var catalog = []ExchangeInfo{
	{
		ID:            "mexc",
		Name:          "MEXC",
		Credentials:   []string{"MEXC_API_KEY", "MEXC_SECRET_KEY"},
		Features:      []string{"spot trading", "market data", "websocket streams"},
		MinOrderValue: "1 USDT",
		Drivers:       []string{DriverREST, DriverPaper},
	},
	{
		ID:            "bitget",
		Name:          "Bitget",
		Credentials:   []string{"BITGET_API_KEY", "BITGET_SECRET", "BITGET_PASSPHRASE"},
		Features:      []string{"spot trading", "market data", "websocket streams"},
		MinOrderValue: "1 USDT",
		Drivers:       []string{DriverPaper},
	},
	{
		ID:            "gateio",
		Name:          "Gate.io",
		Credentials:   []string{"GATEIO_API_KEY", "GATEIO_SECRET"},
		Features:      []string{"spot trading", "market data", "websocket streams"},
		MinOrderValue: "1 USDT",
		Drivers:       []string{DriverREST, DriverPaper},
	},
	{
		ID:            "kraken",
		Name:          "Kraken",
		Credentials:   []string{"KRAKEN_API_KEY", "KRAKEN_SECRET"},
		Features:      []string{"spot trading", "market data", "websocket streams", "fiat pairs"},
		MinOrderValue: "5 EUR/USD",
		Drivers:       []string{DriverPaper},
	},
	{
		ID:            "binance",
		Name:          "Binance",
		Credentials:   []string{"BINANCE_API_KEY", "BINANCE_SECRET_KEY"},
		Features:      []string{"spot trading", "market data"},
		MinOrderValue: "5 USDT",
		Drivers:       []string{DriverREST, DriverPaper},
	},
}

// Exchanges 返回目录拷贝。
func Exchanges() []ExchangeInfo {
	out := make([]ExchangeInfo, len(catalog))
	copy(out, catalog)
	return out
}

// SupportedExchanges 返回全部交易所 ID。
func SupportedExchanges() []string {
	ids := make([]string, len(catalog))
	for i, e := range catalog {
		ids[i] = e.ID
	}
	return ids
}

func LookupExchange(id string) (ExchangeInfo, bool) {
	for _, e := range catalog {
		if e.ID == id {
			return e, true
		}
	}
	return ExchangeInfo{}, false
}

// SupportsDriver 判断交易所是否提供某种连接器实现。
func (e ExchangeInfo) SupportsDriver(driver string) bool {
	for _, d := range e.Drivers {
		if d == driver {
			return true
		}
	}
	return false
}

// ValidateExchange 规范化并校验交易所 ID。
func ValidateExchange(id string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(id))
	if _, ok := LookupExchange(norm); !ok {
		return "", fmt.Errorf("%w: %s. Supported: %s", ErrUnsupportedExchange, id, strings.Join(SupportedExchanges(), ", "))
	}
	return norm, nil
}
