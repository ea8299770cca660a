package strategy

import (
	"fmt"
	"strings"
)

// Profile 预设网格参数与风险提示。风险字段仅供参考，不参与计算。
type Profile struct {
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Levels        int          `json:"levels"`
	SpacingModel  SpacingModel `json:"spacingModel"`
	BaseSpacing   float64      `json:"baseSpacing"`
	SpacingFactor float64      `json:"spacingFactor,omitempty"`
	SizeModel     SizeModel    `json:"sizeModel"`
	OrderSize     float64      `json:"orderSize"`
	MaxPosition   float64      `json:"maxPosition"`
	SafetyReserve float64      `json:"safetyReserve"`
	Confidence    float64      `json:"confidence"`
}

var profiles = []Profile{
	{
		Name:          "conservative",
		Description:   "Low risk, tight grid for stable pairs",
		Levels:        3,
		SpacingModel:  SpacingLinear,
		BaseSpacing:   0.01,
		SizeModel:     SizeFlat,
		OrderSize:     20,
		MaxPosition:   0.5,
		SafetyReserve: 0.4,
		Confidence:    0.8,
	},
	{
		Name:          "moderate",
		Description:   "Balanced risk/reward with geometric spacing",
		Levels:        5,
		SpacingModel:  SpacingGeometric,
		BaseSpacing:   0.005,
		SpacingFactor: 1.3,
		SizeModel:     SizePyramidal,
		OrderSize:     50,
		MaxPosition:   0.7,
		SafetyReserve: 0.25,
		Confidence:    0.6,
	},
	{
		Name:          "aggressive",
		Description:   "Higher risk, wider grid with more levels",
		Levels:        10,
		SpacingModel:  SpacingGeometric,
		BaseSpacing:   0.003,
		SpacingFactor: 1.5,
		SizeModel:     SizePyramidal,
		OrderSize:     100,
		MaxPosition:   0.85,
		SafetyReserve: 0.15,
		Confidence:    0.5,
	},
}

// Profiles 返回预设拷贝。
func Profiles() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

// ProfileNames 返回预设名称。
func ProfileNames() []string {
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	return names
}

// LookupProfile 大小写不敏感查找预设。
func LookupProfile(name string) (Profile, error) {
	for _, p := range profiles {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return Profile{}, configErr("profile", name, fmt.Sprintf("must be one of %s", strings.Join(ProfileNames(), ", ")))
}

// GridConfig 把预设映射为网格参数，DryRun 保持安全默认值 true。
func (p Profile) GridConfig() GridConfig {
	cfg := DefaultGridConfig()
	cfg.Levels = p.Levels
	cfg.SpacingModel = p.SpacingModel
	cfg.BaseSpacing = p.BaseSpacing
	if p.SpacingFactor > 0 {
		cfg.SpacingFactor = p.SpacingFactor
	}
	cfg.SizeModel = p.SizeModel
	cfg.OrderSize = p.OrderSize
	return cfg
}

// GridStrategyDocs 网格策略说明文档（markdown）。
const GridStrategyDocs = `# Grid Trading Strategy

A grid places buy orders below and sell orders above a center price (the latest trade price)
and earns from price oscillating inside the covered range.

## Parameters
- **levels**: grid levels per side, 1-10 (default 5). Total orders = levels x 2.
- **baseSpacing**: distance of the first level from center as a fraction, 0.001-0.5 (default 0.02 = 2%).
- **spacingModel**: ` + "`linear`" + ` (default) or ` + "`geometric`" + `.
- **spacingFactor**: growth factor for geometric spacing (default 1.3).
- **orderSize**: quote-currency notional per level before weighting (default 50).
- **sizeModel**: ` + "`flat`" + ` (default) or ` + "`pyramidal`" + `.
- **dryRun**: preview only, no orders are sent (default true).

## Spacing Models
- **linear**: level i sits at baseSpacing x i from center.
- **geometric**: each gap is spacingFactor times the previous one; level i sits at
  baseSpacing x (1 + f + ... + f^(i-1)). Tight near the center, wider at the edges.
  With spacingFactor 1 it is identical to linear.

## Size Models
- **flat**: every level gets orderSize of quote notional.
- **pyramidal**: level i gets weight (N-i+1) x N / (1+...+N), so inner levels are larger,
  outer levels smaller, and the average weight is exactly 1 (same total as flat).

Each level's base amount is its notional divided by its price.

## Lifecycle
- **start_grid_strategy**: computes the ladder; with dryRun=false places every order in
  order buy1, sell1, buy2, sell2, ... and stops at the first failure. Orders already placed
  are left on the book and reported back.
- **get_strategy_status**: current price, open order counts and the spread between the
  lowest open sell and highest open buy.
- **stop_strategy**: cancels every open order on the symbol.

## Risk Hints
Profiles carry maxPosition, safetyReserve and confidence as guidance for sizing a grid
against your balance. They are informational and not enforced.
`
