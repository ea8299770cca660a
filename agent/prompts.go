package agent

import (
	"fmt"
	"strings"
)

// PromptArg 提示模板参数。
type PromptArg struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Prompt 预置的分析提示：指导调用方按顺序使用工具与资源。
type Prompt struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Args        []PromptArg `json:"arguments"`
	render      func(args map[string]string) string
}

var prompts = []Prompt{
	{
		Name:        "market_analysis",
		Description: "Analyze market conditions for a trading pair using ticker, order book, and recent trades data",
		Args: []PromptArg{
			{Name: "exchange", Description: "Exchange to analyze (e.g., mexc, kraken)", Required: true},
			{Name: "symbol", Description: "Trading pair to analyze (e.g., BTC/USDT)", Required: true},
		},
		render: func(a map[string]string) string {
			ex, sym := a["exchange"], a["symbol"]
			return lines(
				fmt.Sprintf("Analyze the market conditions for %s on %s.", sym, ex),
				"",
				"Please use these tools to gather data:",
				fmt.Sprintf(`1. get_ticker with exchange="%s" and symbol="%s"`, ex, sym),
				fmt.Sprintf(`2. get_orderbook with exchange="%s" and symbol="%s" and limit=20`, ex, sym),
				fmt.Sprintf(`3. get_trades with exchange="%s" and symbol="%s" and limit=50`, ex, sym),
				"",
				"Then provide analysis covering:",
				"- Current price and spread assessment",
				"- Order book depth and imbalance (bid vs ask pressure)",
				"- Recent trade flow (buy vs sell dominance, volume trends)",
				"- Overall market sentiment (bullish/bearish/neutral)",
				"- Key support and resistance levels from the order book",
			)
		},
	},
	{
		Name:        "portfolio_overview",
		Description: "Get a comprehensive overview of account balances and open orders across an exchange",
		Args: []PromptArg{
			{Name: "exchange", Description: "Exchange to review (e.g., mexc, kraken)", Required: true},
		},
		render: func(a map[string]string) string {
			ex := a["exchange"]
			return lines(
				fmt.Sprintf("Provide a comprehensive portfolio overview for my %s account.", ex),
				"",
				"Please use these tools to gather data:",
				fmt.Sprintf(`1. get_balance with exchange="%s"`, ex),
				fmt.Sprintf(`2. list_orders with exchange="%s"`, ex),
				"",
				"Then provide a summary covering:",
				"- Total portfolio value breakdown by asset",
				"- Assets with significant balances vs dust",
				"- Open order summary (count, total value, spread across pairs)",
				"- Risk exposure assessment (concentration in single assets)",
				"- Recommendations for portfolio management",
			)
		},
	},
	{
		Name:        "grid_setup_advisor",
		Description: "Analyze market conditions and recommend an optimal grid trading configuration",
		Args: []PromptArg{
			{Name: "exchange", Description: "Exchange to trade on (e.g., mexc, kraken)", Required: true},
			{Name: "symbol", Description: "Trading pair to set up grid for (e.g., BTC/USDT)", Required: true},
			{Name: "budget", Description: `Trading budget in quote currency (e.g., "500" for 500 USDT)`},
		},
		render: func(a map[string]string) string {
			ex, sym := a["exchange"], a["symbol"]
			intro := fmt.Sprintf("I want to set up a grid trading strategy for %s on %s.", sym, ex)
			if b := a["budget"]; b != "" {
				intro += fmt.Sprintf(" My budget is %s in quote currency.", b)
			}
			return lines(
				intro,
				"",
				"Please analyze the market and recommend a grid configuration:",
				"",
				"1. First, gather market data using these tools:",
				fmt.Sprintf(`   - get_ticker with exchange="%s" and symbol="%s"`, ex, sym),
				fmt.Sprintf(`   - get_orderbook with exchange="%s" and symbol="%s" and limit=50`, ex, sym),
				fmt.Sprintf(`   - get_trades with exchange="%s" and symbol="%s" and limit=100`, ex, sym),
				fmt.Sprintf(`   - get_balance with exchange="%s"`, ex),
				"",
				"2. Then read the grid strategy documentation:",
				"   - Read resource strategies://grid for strategy docs",
				"   - Read resource strategies://grid/profiles for example profiles",
				"",
				"3. Based on your analysis, recommend:",
				"   - Number of grid levels (and why)",
				"   - Spacing model (linear vs geometric) and base spacing",
				"   - Size model (flat vs pyramidal) and order size",
				"   - Which profile, if any, is the closest starting point",
				fmt.Sprintf(`   - The start_grid_strategy call to preview it (dryRun=true) on exchange="%s" and symbol="%s"`, ex, sym),
				"",
				"4. Explain the reasoning behind each parameter choice based on:",
				"   - Current spread and volatility",
				"   - Order book depth and liquidity",
				"   - Available balance and position sizing",
				"   - Risk/reward tradeoffs for this specific market",
			)
		},
	},
}

func lines(s ...string) string { return strings.Join(s, "\n") }

// Prompts 返回提示列表。
func Prompts() []Prompt {
	out := make([]Prompt, len(prompts))
	copy(out, prompts)
	return out
}

// RenderPrompt 校验必填参数并生成提示文本。
func RenderPrompt(name string, args map[string]string) (Prompt, string, error) {
	for _, p := range prompts {
		if p.Name != name {
			continue
		}
		for _, a := range p.Args {
			if a.Required && strings.TrimSpace(args[a.Name]) == "" {
				return p, "", &ParamError{Param: a.Name, Message: "is required"}
			}
		}
		return p, p.render(args), nil
	}
	return Prompt{}, "", fmt.Errorf("%w: prompt %s", ErrUnknownTool, name)
}
