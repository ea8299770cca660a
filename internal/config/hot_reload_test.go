package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	appcfg "market-agent-go/config"
	"market-agent-go/metrics"
)

const validConfig = `
env: dev
grid:
  levels: %d
exchanges:
  mexc:
    driver: paper
`

func writeConfig(t *testing.T, path string, levels int) {
	t.Helper()
	content := []byte(fmt.Sprintf(validConfig, levels))
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func newReloader(t *testing.T, cfg HotReloadConfig) (*HotReloader, string) {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, configPath, 5)
	reloader, err := NewHotReloader(configPath, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create hot reloader: %v", err)
	}
	t.Cleanup(func() { _ = reloader.Stop() })
	return reloader, configPath
}

func TestHotReloader_New(t *testing.T) {
	reloader, configPath := newReloader(t, DefaultHotReloadConfig())
	if reloader.configPath != configPath {
		t.Errorf("Expected config path %s, got %s", configPath, reloader.configPath)
	}
	if !reloader.GetLastReloadTime().IsZero() {
		t.Errorf("expected no reload yet")
	}
}

func TestHotReloader_DisabledDoesNotWatch(t *testing.T) {
	reloader, configPath := newReloader(t, HotReloadConfig{Enabled: false})
	called := false
	reloader.SetReloadHandler(func(appcfg.AppConfig) error { called = true; return nil })
	if err := reloader.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	writeConfig(t, configPath, 3)
	time.Sleep(100 * time.Millisecond)
	if called {
		t.Fatal("disabled reloader must not invoke the handler")
	}
}

func TestHotReloader_ReloadsOnWrite(t *testing.T) {
	reloader, configPath := newReloader(t, HotReloadConfig{Enabled: true})

	var (
		mu     sync.Mutex
		levels []int
	)
	reloader.SetReloadHandler(func(cfg appcfg.AppConfig) error {
		mu.Lock()
		levels = append(levels, cfg.Grid.Levels)
		mu.Unlock()
		return nil
	})
	if err := reloader.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start reloader: %v", err)
	}

	writeConfig(t, configPath, 3)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(levels)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(levels) == 0 || levels[len(levels)-1] != 3 {
		t.Fatalf("expected handler to see levels=3, got %v", levels)
	}
	if reloader.GetLastReloadTime().IsZero() {
		t.Fatal("expected last reload time to be set")
	}
}

func TestHotReloader_RejectsInvalidConfig(t *testing.T) {
	reloader, configPath := newReloader(t, HotReloadConfig{Enabled: true})
	called := false
	reloader.SetReloadHandler(func(appcfg.AppConfig) error { called = true; return nil })

	before := testutil.ToFloat64(metrics.ConfigReloads.WithLabelValues("invalid"))
	writeConfig(t, configPath, 42)
	reloader.handleConfigChange()

	if called {
		t.Fatal("handler must not see an invalid config")
	}
	if got := testutil.ToFloat64(metrics.ConfigReloads.WithLabelValues("invalid")); got != before+1 {
		t.Fatalf("expected invalid reload to be counted, got %v (before %v)", got, before)
	}
	if !reloader.GetLastReloadTime().IsZero() {
		t.Fatal("failed reload must not update last reload time")
	}
}

func TestHotReloader_HandlerErrorAndCooldown(t *testing.T) {
	reloader, _ := newReloader(t, HotReloadConfig{Enabled: true, CooldownTime: time.Hour})

	fail := true
	calls := 0
	reloader.SetReloadHandler(func(appcfg.AppConfig) error {
		calls++
		if fail {
			return errors.New("registry rebuild failed")
		}
		return nil
	})

	reloader.handleConfigChange()
	if !reloader.GetLastReloadTime().IsZero() {
		t.Fatal("handler error must not count as a reload")
	}

	fail = false
	reloader.handleConfigChange()
	reloader.handleConfigChange() // 冷却期内忽略
	if calls != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls)
	}
}

func TestHotReloader_StartStop(t *testing.T) {
	reloader, _ := newReloader(t, DefaultHotReloadConfig())
	if err := reloader.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start reloader: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := reloader.Stop(); err != nil {
		t.Errorf("Failed to stop reloader: %v", err)
	}
}
