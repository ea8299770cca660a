package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"market-agent-go/config"
	"market-agent-go/gateway"
	"market-agent-go/strategy"
)

// emergency_cleanup 不经过 agent，直接撤销某交易对的全部挂单并打印撤单前后的状态。
func main() {
	cfgPath := flag.String("config", "configs/agent.yaml", "配置文件路径")
	envFile := flag.String("env", ".env", "可选 .env 文件")
	exchange := flag.String("exchange", "", "交易所 ID（必填）")
	symbol := flag.String("symbol", "", "交易对，BASE/QUOTE（必填）")
	statusOnly := flag.Bool("status", false, "只查询状态，不撤单")
	timeout := flag.Duration("timeout", 30*time.Second, "整体超时")
	flag.Parse()

	if *exchange == "" || *symbol == "" {
		log.Fatal("需要 -exchange 和 -symbol")
	}
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("加载 %s 失败: %v", *envFile, err)
	}
	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	id := strings.ToLower(strings.TrimSpace(*exchange))
	exCfg, ok := cfg.Exchanges[id]
	if !ok {
		log.Fatalf("%v: %s", gateway.ErrExchangeNotConfigured, id)
	}
	conn, err := gateway.NewConnector(exCfg.ConnectorSpec(id))
	if err != nil {
		log.Fatalf("创建连接器失败: %v", err)
	}
	svc := strategy.NewService(gateway.NewRegistry(conn), nil)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Println("🔸 查询当前挂单...")
	before, err := svc.Status(ctx, id, *symbol)
	if err != nil {
		log.Fatalf("查询状态失败: %v", err)
	}
	printJSON(before)
	if *statusOnly || before.OpenOrders.Total == 0 {
		fmt.Println("✅ 无需撤单")
		return
	}

	fmt.Printf("\n🔸 撤销 %d 个挂单...\n", before.OpenOrders.Total)
	res, err := svc.Stop(ctx, id, *symbol)
	if err != nil {
		log.Fatalf("撤单失败: %v", err)
	}
	printJSON(res)

	after, err := svc.Status(ctx, id, *symbol)
	if err != nil {
		log.Fatalf("复查状态失败: %v", err)
	}
	fmt.Printf("\n剩余挂单: %d\n", after.OpenOrders.Total)
	if after.OpenOrders.Total > 0 {
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
