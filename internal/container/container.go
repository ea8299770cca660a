package container

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"market-agent-go/agent"
	"market-agent-go/config"
	"market-agent-go/gateway"
	"market-agent-go/httpapi"
	"market-agent-go/infrastructure/logger"
	internalcfg "market-agent-go/internal/config"
	"market-agent-go/metrics"
	"market-agent-go/strategy"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	cfg        config.AppConfig
	configPath string
	version    string

	// 基础设施
	logger *logger.Logger

	// 核心服务
	registry *gateway.Registry
	grid     *strategy.Service
	tools    *agent.Toolset
	mcp      *agent.MCPServer
	api      *httpapi.Server

	reloader *internalcfg.HotReloader
	listener *httpServerComponent

	lifecycle *LifecycleManager
}

// Option 调整容器构建参数。
type Option func(*Container)

// WithLogger 使用外部日志器（测试用）。
func WithLogger(l *logger.Logger) Option {
	return func(c *Container) { c.logger = l }
}

// WithVersion 设置上报给 MCP 客户端的版本号。
func WithVersion(v string) Option {
	return func(c *Container) { c.version = v }
}

// New 从配置文件创建容器，环境变量覆盖密钥。
func New(configPath string, opts ...Option) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewFromConfig(cfg, configPath, opts...)
}

// NewFromConfig 使用已加载的配置创建容器。configPath 为空时不启用热更新。
func NewFromConfig(cfg config.AppConfig, configPath string, opts ...Option) (*Container, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	c := &Container{
		cfg:        cfg,
		configPath: configPath,
		version:    "dev",
		lifecycle:  NewLifecycleManager(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetTransport 覆盖配置中的传输方式，须在 Build 之前调用。
func (c *Container) SetTransport(transport string) error {
	next := c.cfg
	next.Server.Transport = strings.ToLower(strings.TrimSpace(transport))
	if err := config.Validate(next); err != nil {
		return err
	}
	c.cfg = next
	return nil
}

// Config 返回当前配置。
func (c *Container) Config() config.AppConfig { return c.cfg }

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}
	if err := c.buildGateway(); err != nil {
		return fmt.Errorf("build gateway failed: %w", err)
	}
	if err := c.buildCoreServices(); err != nil {
		return fmt.Errorf("build core services failed: %w", err)
	}
	if err := c.registerLifecycleComponents(); err != nil {
		return fmt.Errorf("register components failed: %w", err)
	}
	c.logger.Info("container built",
		zap.String("transport", c.cfg.Server.Transport),
		zap.Strings("exchanges", c.registry.Configured()),
	)
	return nil
}

func (c *Container) buildInfrastructure() error {
	if c.logger != nil {
		return nil
	}
	logCfg := c.cfg.Log
	if c.servesStdio() {
		// stdout 承载协议，日志改写到 stderr
		logCfg.Outputs = stdioSafe(logCfg.Outputs)
	}
	var err error
	c.logger, err = logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}
	return nil
}

func stdioSafe(outputs []string) []string {
	out := make([]string, 0, len(outputs))
	for _, o := range outputs {
		if o == "stdout" {
			o = "stderr"
		}
		out = append(out, o)
	}
	return out
}

func (c *Container) buildGateway() error {
	conns, err := buildConnectors(c.cfg)
	if err != nil {
		return err
	}
	c.registry = gateway.NewRegistry()
	c.registry.Replace(conns)
	return nil
}

// buildConnectors 按配置创建全部连接器，任何一个失败都返回错误。
func buildConnectors(cfg config.AppConfig) (map[string]gateway.Connector, error) {
	ids := make([]string, 0, len(cfg.Exchanges))
	for id := range cfg.Exchanges {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	conns := make(map[string]gateway.Connector, len(ids))
	for _, id := range ids {
		conn, err := gateway.NewConnector(cfg.Exchanges[id].ConnectorSpec(id))
		if err != nil {
			return nil, fmt.Errorf("exchange %s: %w", id, err)
		}
		conns[id] = conn
	}
	return conns, nil
}

func (c *Container) buildCoreServices() error {
	c.grid = strategy.NewService(c.registry, c.logger)
	c.tools = agent.NewToolset(c.registry, c.grid, c.logger)
	if err := c.tools.SetGridDefaults(c.cfg.Grid); err != nil {
		return fmt.Errorf("grid defaults: %w", err)
	}
	c.mcp = agent.NewMCPServer(c.cfg.Server.Name, c.version, c.tools, c.logger)
	if c.servesHTTP() {
		c.api = httpapi.New(c.tools, c.mcp, httpapi.Config{
			JWTSecret:      c.cfg.Server.JWTSecret,
			AllowedOrigins: c.cfg.Server.AllowedOrigins,
		}, c.logger)
	}
	return nil
}

func (c *Container) registerLifecycleComponents() error {
	switch {
	case c.api != nil:
		c.listener = &httpServerComponent{name: "http_api", handler: c.api.Handler(), addr: c.cfg.Server.HTTPAddr, logger: c.logger}
	case c.cfg.Server.HTTPAddr != "":
		// 纯 stdio 模式下仍暴露 /metrics
		c.listener = &httpServerComponent{name: "metrics_server", handler: metrics.Handler(), addr: c.cfg.Server.HTTPAddr, logger: c.logger}
	}
	if c.listener != nil {
		c.lifecycle.Register(c.listener)
	}

	if c.configPath != "" && c.cfg.HotReload.Enabled {
		reloader, err := internalcfg.NewHotReloader(c.configPath, internalcfg.HotReloadConfig{
			Enabled:      true,
			CooldownTime: c.cfg.HotReload.Cooldown(),
		}, c.logger)
		if err != nil {
			return err
		}
		reloader.SetReloadHandler(c.Reload)
		c.reloader = reloader
		c.lifecycle.Register(&hotReloadComponent{reloader: reloader})
	}

	c.lifecycle.Register(&systemdNotifier{logger: c.logger})
	return nil
}

// Reload 应用热更新后的配置：替换连接器与网格默认值。传输、日志和监听地址需要重启才生效。
func (c *Container) Reload(next config.AppConfig) error {
	conns, err := buildConnectors(next)
	if err != nil {
		return err
	}
	if err := c.tools.SetGridDefaults(next.Grid); err != nil {
		return fmt.Errorf("grid defaults: %w", err)
	}
	c.registry.Replace(conns)
	c.mcp.RefreshTools()

	if next.Server.Transport != c.cfg.Server.Transport || next.Server.HTTPAddr != c.cfg.Server.HTTPAddr {
		c.logger.Warn("server transport changed; restart required to apply",
			zap.String("transport", next.Server.Transport), zap.String("httpAddr", next.Server.HTTPAddr))
	}
	c.cfg.Grid = next.Grid
	c.cfg.Exchanges = next.Exchanges
	c.logger.Info("configuration reloaded", zap.Strings("exchanges", c.registry.Configured()))
	return nil
}

func (c *Container) servesStdio() bool {
	t := c.cfg.Server.Transport
	return t == config.TransportStdio || t == config.TransportBoth
}

func (c *Container) servesHTTP() bool {
	t := c.cfg.Server.Transport
	return t == config.TransportHTTP || t == config.TransportBoth
}

// Start 启动监听、热更新并通知 systemd。
func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container")
	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}
	c.logger.Info("container started")
	return nil
}

// Serve 在 stdio 上提供 MCP 服务直到输入关闭或 ctx 结束；非 stdio 模式下等待 ctx 结束。
func (c *Container) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	if !c.servesStdio() {
		<-ctx.Done()
		return nil
	}
	return c.mcp.ServeStdio(ctx, in, out)
}

// Stop 停止所有组件。挂单保留在交易所，由 stop_strategy 显式撤销。
func (c *Container) Stop() error {
	c.logger.Info("stopping container")
	err := c.lifecycle.StopAll()
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}
	_ = c.logger.Close()
	return err
}

// HealthCheck 检查组件健康状态
func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

// HTTPAddr 实际监听地址，未监听时为空。
func (c *Container) HTTPAddr() string {
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr()
}

// Tools 返回工具集（cmd 与测试用）。
func (c *Container) Tools() *agent.Toolset { return c.tools }
