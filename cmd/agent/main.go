package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"market-agent-go/internal/container"
)

var version = "dev"

func main() {
	cfgPath := flag.String("config", "configs/agent.yaml", "配置文件路径")
	envFile := flag.String("env", ".env", "可选 .env 文件，用于注入交易所密钥")
	transport := flag.String("transport", "", "覆盖 server.transport：stdio、http 或 both")
	flag.Parse()

	// stdout 可能承载 MCP 协议，启动日志一律写 stderr
	log.SetOutput(os.Stderr)

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("加载 %s 失败: %v", *envFile, err)
	}

	c, err := container.New(*cfgPath, container.WithVersion(version))
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	if *transport != "" {
		if err := c.SetTransport(*transport); err != nil {
			log.Fatalf("transport 参数无效: %v", err)
		}
	}
	if err := c.Build(); err != nil {
		log.Fatalf("构建失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		log.Fatalf("启动失败: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// stdin 关闭时 Serve 返回，进程随之退出
		defer stop()
		return c.Serve(gctx, os.Stdin, os.Stdout)
	})
	serveErr := g.Wait()

	if err := c.Stop(); err != nil {
		log.Printf("停止时出错: %v", err)
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		log.Fatalf("服务异常退出: %v", serveErr)
	}
}
