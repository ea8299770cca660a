package config

import (
	"fmt"
	"sort"

	"go.uber.org/zap/zapcore"

	"market-agent-go/gateway"
)

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

func invalid(format string, args ...interface{}) error {
	return ErrInvalid(fmt.Sprintf(format, args...))
}

// Validate ensures required fields are present and values are in range.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return ErrInvalid("env is required")
	}
	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		return invalid("log.level %q is invalid", cfg.Log.Level)
	}
	switch cfg.Server.Transport {
	case TransportStdio:
	case TransportHTTP, TransportBoth:
		if cfg.Server.HTTPAddr == "" {
			return ErrInvalid("server.httpAddr is required for http transport")
		}
	default:
		return invalid("server.transport must be stdio, http or both, got %q", cfg.Server.Transport)
	}
	if err := cfg.Grid.Validate(); err != nil {
		return fmt.Errorf("grid: %w", err)
	}
	if len(cfg.Exchanges) == 0 {
		return ErrInvalid("exchanges config is required")
	}
	ids := make([]string, 0, len(cfg.Exchanges))
	for id := range cfg.Exchanges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := validateExchange(id, cfg.Exchanges[id]); err != nil {
			return err
		}
	}
	if cfg.HotReload.CooldownMs < 0 {
		return ErrInvalid("hotReload.cooldownMs must be >= 0")
	}
	return nil
}

func validateExchange(id string, ex ExchangeConfig) error {
	info, ok := gateway.LookupExchange(id)
	if !ok {
		return invalid("exchanges.%s: %v", id, gateway.ErrUnsupportedExchange)
	}
	if !info.SupportsDriver(ex.Driver) {
		return invalid("exchanges.%s.driver %q not available (have %v)", id, ex.Driver, info.Drivers)
	}
	if ex.Driver == gateway.DriverREST && (ex.APIKey == "" || ex.APISecret == "") {
		return invalid("exchanges.%s.apiKey/apiSecret is required (or env overrides)", id)
	}
	if ex.RateLimit < 0 || ex.Burst < 0 || ex.TimeoutMs < 0 {
		return invalid("exchanges.%s rateLimit/burst/timeoutMs must be >= 0", id)
	}
	for sym, px := range ex.Paper.Prices {
		if _, err := gateway.ParsePair(sym); err != nil {
			return invalid("exchanges.%s.paper.prices: %v", id, err)
		}
		if px <= 0 {
			return invalid("exchanges.%s.paper.prices[%s] must be > 0", id, sym)
		}
	}
	for asset, amt := range ex.Paper.Balances {
		if amt < 0 {
			return invalid("exchanges.%s.paper.balances[%s] must be >= 0", id, asset)
		}
	}
	if ex.Paper.Spread < 0 {
		return invalid("exchanges.%s.paper.spread must be >= 0", id)
	}
	return nil
}
