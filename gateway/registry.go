package gateway

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry 维护交易所到连接器的映射，可在配置热更新时整体替换。
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

func NewRegistry(conns ...Connector) *Registry {
	r := &Registry{connectors: make(map[string]Connector, len(conns))}
	for _, c := range conns {
		r.connectors[c.Name()] = c
	}
	return r
}

// Resolve 校验交易所并返回已配置的连接器。
func (r *Registry) Resolve(exchange string) (Connector, error) {
	id, err := ValidateExchange(exchange)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	c, ok := r.connectors[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no connector in this deployment", ErrExchangeNotConfigured, id)
	}
	return c, nil
}

// Replace 原子替换全部连接器。
func (r *Registry) Replace(conns map[string]Connector) {
	next := make(map[string]Connector, len(conns))
	for id, c := range conns {
		next[id] = c
	}
	r.mu.Lock()
	r.connectors = next
	r.mu.Unlock()
}

// Configured 返回已配置的交易所 ID（排序）。
func (r *Registry) Configured() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.connectors))
	for id := range r.connectors {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// ConnectorSpec 构造单个连接器所需的参数。
type ConnectorSpec struct {
	Exchange string
	Driver   string
	REST     RESTOptions
	Paper    PaperOptions
}

// NewConnector 按交易所与驱动创建连接器。
func NewConnector(spec ConnectorSpec) (Connector, error) {
	id, err := ValidateExchange(spec.Exchange)
	if err != nil {
		return nil, err
	}
	info, _ := LookupExchange(id)
	driver := spec.Driver
	if driver == "" {
		driver = DriverPaper
	}
	if !info.SupportsDriver(driver) {
		return nil, fmt.Errorf("exchange %s does not support driver %q (available: %v)", id, driver, info.Drivers)
	}
	if driver == DriverPaper {
		return NewPaperExchange(id, spec.Paper), nil
	}
	if spec.REST.Timeout <= 0 {
		spec.REST.Timeout = 10 * time.Second
	}
	switch id {
	case "mexc":
		return NewMEXCClient(spec.REST), nil
	case "gateio":
		return NewGateClient(spec.REST), nil
	case "binance":
		return NewBinanceClient(spec.REST), nil
	}
	return nil, fmt.Errorf("exchange %s has no %s driver", id, driver)
}
