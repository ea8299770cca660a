package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"market-agent-go/gateway"
	"market-agent-go/strategy"
)

// gridcalc 离线预览网格：用模拟盘报价代替交易所，不下任何单。
func main() {
	def := strategy.DefaultGridConfig()
	exchange := flag.String("exchange", "mexc", "交易所 ID（仅用于校验与输出）")
	symbol := flag.String("symbol", "BTC/USDT", "交易对，BASE/QUOTE")
	price := flag.Float64("price", 0, "中心价（必填）")
	profile := flag.String("profile", "", "预设：conservative、moderate、aggressive；显式参数覆盖预设")
	levels := flag.Int("levels", def.Levels, "每侧档位数 (1-10)")
	spacing := flag.Float64("spacing", def.BaseSpacing, "首档间距比例 (0.02 = 2%)")
	spacingModel := flag.String("spacingModel", string(def.SpacingModel), "linear 或 geometric")
	factor := flag.Float64("factor", def.SpacingFactor, "geometric 间距增长系数")
	size := flag.Float64("size", def.OrderSize, "每档计价币名义金额")
	sizeModel := flag.String("sizeModel", string(def.SizeModel), "flat 或 pyramidal")
	asJSON := flag.Bool("json", false, "输出 JSON")
	flag.Parse()

	if *price <= 0 {
		log.Fatal("-price 必须 > 0")
	}

	cfg := def
	if *profile != "" {
		p, err := strategy.LookupProfile(*profile)
		if err != nil {
			log.Fatalf("%v", err)
		}
		cfg = p.GridConfig()
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "levels":
			cfg.Levels = *levels
		case "spacing":
			cfg.BaseSpacing = *spacing
		case "spacingModel":
			cfg.SpacingModel = strategy.SpacingModel(*spacingModel)
		case "factor":
			cfg.SpacingFactor = *factor
		case "size":
			cfg.OrderSize = *size
		case "sizeModel":
			cfg.SizeModel = strategy.SizeModel(*sizeModel)
		}
	})
	cfg.DryRun = true

	pair, err := gateway.ParsePair(*symbol)
	if err != nil {
		log.Fatalf("%v", err)
	}
	paper := gateway.NewPaperExchange(strings.ToLower(*exchange), gateway.PaperOptions{
		Prices: map[string]float64{pair.String(): *price},
	})
	svc := strategy.NewService(gateway.NewRegistry(paper), nil)
	res, err := svc.Start(context.Background(), *exchange, *symbol, cfg)
	if err != nil {
		log.Fatalf("计算网格失败: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	fmt.Printf("%s %s center=%.8g levels=%d spacing=%s/%g size=%s/%g\n\n",
		res.Exchange, res.Symbol, res.CenterPrice, cfg.Levels,
		cfg.SpacingModel, cfg.BaseSpacing, cfg.SizeModel, cfg.OrderSize)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "LEVEL\tSIDE\tPRICE\tAMOUNT\tVALUE\t")
	for _, e := range res.Grid {
		fmt.Fprintf(w, "%d\t%s\t%.8g\t%.8g\t%.4f\t\n", e.Level, e.Side, e.Price, e.Amount, e.ValueQuote)
	}
	_ = w.Flush()
	fmt.Printf("\norders=%d buyValue=%.4f sellValue=%.4f\n", res.TotalOrders, res.TotalBuyValue, res.TotalSellValue)
}
