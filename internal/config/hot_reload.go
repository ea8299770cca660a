package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	appcfg "market-agent-go/config"
	"market-agent-go/infrastructure/logger"
	"market-agent-go/metrics"
)

// HotReloadConfig 热更新配置
type HotReloadConfig struct {
	Enabled      bool          // 是否启用热更新
	CooldownTime time.Duration // 冷却时间，避免编辑器连续写入触发多次重载
}

// DefaultHotReloadConfig 默认热更新配置
func DefaultHotReloadConfig() HotReloadConfig {
	return HotReloadConfig{
		Enabled:      true,
		CooldownTime: 2 * time.Second,
	}
}

// ReloadFunc 接收已通过校验的新配置。
type ReloadFunc func(cfg appcfg.AppConfig) error

// HotReloader 配置热更新器。监听配置所在目录，兼容编辑器"写临时文件再 rename"的保存方式。
type HotReloader struct {
	config        HotReloadConfig
	configPath    string
	watcher       *fsnotify.Watcher
	load          func(path string) (appcfg.AppConfig, error)
	log           *logger.Logger
	lastReload    time.Time
	mu            sync.RWMutex
	stopChan      chan struct{}
	doneChan      chan struct{}
	started       bool
	reloadHandler ReloadFunc
}

// NewHotReloader 创建热更新器
func NewHotReloader(configPath string, cfg HotReloadConfig, log *logger.Logger) (*HotReloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &HotReloader{
		config:     cfg,
		configPath: filepath.Clean(configPath),
		watcher:    watcher,
		load:       appcfg.LoadWithEnvOverrides,
		log:        log,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}, nil
}

// SetReloadHandler 设置重载处理函数
func (h *HotReloader) SetReloadHandler(handler ReloadFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reloadHandler = handler
}

// Start 启动热更新监听
func (h *HotReloader) Start(ctx context.Context) error {
	if !h.config.Enabled {
		return nil
	}
	if err := h.watcher.Add(filepath.Dir(h.configPath)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}
	h.mu.Lock()
	h.started = true
	h.mu.Unlock()
	go h.watch(ctx)
	return nil
}

// Stop 停止热更新
func (h *HotReloader) Stop() error {
	h.mu.RLock()
	started := h.started
	h.mu.RUnlock()

	select {
	case <-h.stopChan:
	default:
		close(h.stopChan)
	}
	if started {
		select {
		case <-h.doneChan:
		case <-time.After(time.Second):
		}
	}
	return h.watcher.Close()
}

// watch 监听文件变化
func (h *HotReloader) watch(ctx context.Context) {
	defer close(h.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopChan:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != h.configPath {
				continue
			}
			// 只处理写入和创建事件（rename 保存表现为 Create）
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				h.handleConfigChange()
			}
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.log.Warn("config watcher error", zap.Error(err))
		}
	}
}

// handleConfigChange 处理配置变化
func (h *HotReloader) handleConfigChange() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if time.Since(h.lastReload) < h.config.CooldownTime {
		return
	}

	cfg, err := h.load(h.configPath)
	if err != nil {
		h.report("invalid", err)
		return
	}
	if h.reloadHandler != nil {
		if err := h.reloadHandler(cfg); err != nil {
			h.report("error", err)
			return
		}
	}
	h.lastReload = time.Now()
	h.report("ok", nil)
}

func (h *HotReloader) report(result string, err error) {
	metrics.ConfigReloads.WithLabelValues(result).Inc()
	fields := map[string]interface{}{"path": h.configPath, "result": result}
	if err != nil {
		fields["error"] = err.Error()
	}
	h.log.LogAction("config_reload", fields)
}

// GetLastReloadTime 获取最后重载时间
func (h *HotReloader) GetLastReloadTime() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastReload
}
