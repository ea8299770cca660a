package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"market-agent-go/gateway"
	"market-agent-go/infrastructure/logger"
	"market-agent-go/strategy"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env       string                    `yaml:"env"`
	Log       logger.Config             `yaml:"log"`
	Server    ServerConfig              `yaml:"server"`
	Grid      strategy.GridConfig       `yaml:"grid"`
	Exchanges map[string]ExchangeConfig `yaml:"exchanges"`
	HotReload HotReloadConfig           `yaml:"hotReload"`
}

// 传输方式
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportBoth  = "both"
)

type ServerConfig struct {
	Name           string   `yaml:"name"`
	Transport      string   `yaml:"transport"` // stdio, http, both
	HTTPAddr       string   `yaml:"httpAddr"`
	JWTSecret      string   `yaml:"jwtSecret"` // 为空时 HTTP 接口不鉴权
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// ExchangeConfig 单个交易所的连接器配置，键为交易所 ID。
type ExchangeConfig struct {
	Driver     string      `yaml:"driver"` // rest 或 paper
	APIKey     string      `yaml:"apiKey"`
	APISecret  string      `yaml:"apiSecret"`
	Passphrase string      `yaml:"passphrase"`
	BaseURL    string      `yaml:"baseURL"`
	RateLimit  float64     `yaml:"rateLimit"` // 每秒请求数，0 不限
	Burst      int         `yaml:"burst"`
	TimeoutMs  int         `yaml:"timeoutMs"`
	Paper      PaperConfig `yaml:"paper"`
}

// PaperConfig 模拟盘初始状态。
type PaperConfig struct {
	Prices   map[string]float64 `yaml:"prices"`
	Balances map[string]float64 `yaml:"balances"`
	Spread   float64            `yaml:"spread"`
}

type HotReloadConfig struct {
	Enabled    bool `yaml:"enabled"`
	CooldownMs int  `yaml:"cooldownMs"`
}

// Default 返回未写入配置文件时的取值。
func Default() AppConfig {
	return AppConfig{
		Env: "dev",
		Log: logger.DefaultConfig(),
		Server: ServerConfig{
			Name:      "market-agent",
			Transport: TransportStdio,
			HTTPAddr:  ":8090",
		},
		Grid:      strategy.DefaultGridConfig(),
		Exchanges: map[string]ExchangeConfig{},
		HotReload: HotReloadConfig{Enabled: true, CooldownMs: 2000},
	}
}

// Load reads YAML config from path over the defaults and applies validation.
func Load(path string) (AppConfig, error) {
	cfg, err := read(path)
	if err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

// LoadWithEnvOverrides loads config then overrides secrets from env vars if present.
// MM_<EXCHANGE>_API_KEY / _API_SECRET / _PASSPHRASE win over the exchange's own
// credential variables (e.g. MEXC_API_KEY), which win over the file.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := read(path)
	if err != nil {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg, Validate(cfg)
}

func read(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// ApplyEnv 把环境变量中的密钥写入配置。
func ApplyEnv(cfg *AppConfig) {
	if v := os.Getenv("MM_JWT_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}
	for id, ex := range cfg.Exchanges {
		var native []string
		if info, ok := gateway.LookupExchange(id); ok {
			native = info.Credentials
		}
		prefix := "MM_" + strings.ToUpper(id) + "_"
		ex.APIKey = firstEnv(ex.APIKey, prefix+"API_KEY", nth(native, 0))
		ex.APISecret = firstEnv(ex.APISecret, prefix+"API_SECRET", nth(native, 1))
		ex.Passphrase = firstEnv(ex.Passphrase, prefix+"PASSPHRASE", nth(native, 2))
		cfg.Exchanges[id] = ex
	}
}

func nth(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

func firstEnv(current string, names ...string) string {
	for _, n := range names {
		if n == "" {
			continue
		}
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return current
}

// normalize 统一交易所键为小写并补全驱动。
func (c *AppConfig) normalize() {
	norm := make(map[string]ExchangeConfig, len(c.Exchanges))
	for id, ex := range c.Exchanges {
		if ex.Driver == "" {
			ex.Driver = gateway.DriverPaper
		}
		ex.Driver = strings.ToLower(ex.Driver)
		norm[strings.ToLower(strings.TrimSpace(id))] = ex
	}
	c.Exchanges = norm
	c.Server.Transport = strings.ToLower(c.Server.Transport)
}

// ConnectorSpec 转换为连接器构造参数。
func (e ExchangeConfig) ConnectorSpec(id string) gateway.ConnectorSpec {
	return gateway.ConnectorSpec{
		Exchange: id,
		Driver:   e.Driver,
		REST: gateway.RESTOptions{
			BaseURL:    e.BaseURL,
			APIKey:     e.APIKey,
			Secret:     e.APISecret,
			Passphrase: e.Passphrase,
			RateLimit:  e.RateLimit,
			Burst:      e.Burst,
			Timeout:    time.Duration(e.TimeoutMs) * time.Millisecond,
		},
		Paper: gateway.PaperOptions{
			Prices:   e.Paper.Prices,
			Balances: e.Paper.Balances,
			Spread:   e.Paper.Spread,
		},
	}
}

// Cooldown 热更新冷却时间。
func (h HotReloadConfig) Cooldown() time.Duration {
	return time.Duration(h.CooldownMs) * time.Millisecond
}
