package strategy

import (
	"math"

	"github.com/shopspring/decimal"

	"market-agent-go/order"
)

// SpacingModel 决定各档位到中间价的距离如何增长。
type SpacingModel string

const (
	SpacingLinear    SpacingModel = "linear"
	SpacingGeometric SpacingModel = "geometric"
)

// SizeModel 决定各档位名义金额的分配方式。
type SizeModel string

const (
	SizeFlat      SizeModel = "flat"
	SizePyramidal SizeModel = "pyramidal"
)

const (
	MinLevels      = 1
	MaxLevels      = 10
	MinBaseSpacing = 0.001
	MaxBaseSpacing = 0.5
)

// GridConfig 网格参数。OrderSize 为加权前每档的计价币名义金额。
type GridConfig struct {
	Levels        int          `json:"levels" yaml:"levels"`
	BaseSpacing   float64      `json:"baseSpacing" yaml:"baseSpacing"`
	SpacingModel  SpacingModel `json:"spacingModel" yaml:"spacingModel"`
	SpacingFactor float64      `json:"spacingFactor" yaml:"spacingFactor"`
	OrderSize     float64      `json:"orderSize" yaml:"orderSize"`
	SizeModel     SizeModel    `json:"sizeModel" yaml:"sizeModel"`
	DryRun        bool         `json:"dryRun" yaml:"dryRun"`
}

// DefaultGridConfig 返回工具默认参数。
func DefaultGridConfig() GridConfig {
	return GridConfig{
		Levels:        5,
		BaseSpacing:   0.02,
		SpacingModel:  SpacingLinear,
		SpacingFactor: 1.3,
		OrderSize:     50,
		SizeModel:     SizeFlat,
		DryRun:        true,
	}
}

// Validate 检查参数范围，返回 *ConfigError。
func (c GridConfig) Validate() error {
	if c.Levels < MinLevels || c.Levels > MaxLevels {
		return configErr("levels", c.Levels, "must be between 1 and 10")
	}
	if !finite(c.BaseSpacing) || c.BaseSpacing < MinBaseSpacing || c.BaseSpacing > MaxBaseSpacing {
		return configErr("baseSpacing", c.BaseSpacing, "must be between 0.001 and 0.5")
	}
	switch c.SpacingModel {
	case SpacingLinear, SpacingGeometric:
	default:
		return configErr("spacingModel", c.SpacingModel, "must be linear or geometric")
	}
	if !finite(c.SpacingFactor) || c.SpacingFactor <= 0 {
		return configErr("spacingFactor", c.SpacingFactor, "must be > 0")
	}
	if !finite(c.OrderSize) || c.OrderSize <= 0 {
		return configErr("orderSize", c.OrderSize, "must be > 0")
	}
	switch c.SizeModel {
	case SizeFlat, SizePyramidal:
	default:
		return configErr("sizeModel", c.SizeModel, "must be flat or pyramidal")
	}
	// 最外档间距与中间价无关，须 < 100%，否则买价 <= 0
	fractions := SpacingFractions(c)
	if outer := fractions[len(fractions)-1]; outer.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return configErr("baseSpacing", c.BaseSpacing,
			"outermost level spacing "+outer.String()+" would put buy prices at or below zero")
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// GridLevel 定义单个网格档位。Index 为 1 起的距离序号，买卖同序号共享间距与权重。
type GridLevel struct {
	Index  int
	Side   order.Side
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// ValueQuote 档位的计价币价值。
func (l GridLevel) ValueQuote() decimal.Decimal {
	return l.Price.Mul(l.Amount)
}

// SpacingFractions 返回第 1..N 档相对中间价的距离比例。
// linear: s_i = base*i；geometric: s_i = base*Σ_{j<i} factor^j，factor=1 时与 linear 一致。
func SpacingFractions(cfg GridConfig) []decimal.Decimal {
	base := decimal.NewFromFloat(cfg.BaseSpacing)
	out := make([]decimal.Decimal, cfg.Levels)
	if cfg.SpacingModel != SpacingGeometric {
		for i := 1; i <= cfg.Levels; i++ {
			out[i-1] = base.Mul(decimal.NewFromInt(int64(i)))
		}
		return out
	}
	factor := decimal.NewFromFloat(cfg.SpacingFactor)
	sum := decimal.Zero
	pow := decimal.NewFromInt(1)
	for i := 1; i <= cfg.Levels; i++ {
		sum = sum.Add(pow)
		pow = pow.Mul(factor)
		out[i-1] = base.Mul(sum)
	}
	return out
}

// SizeWeights 返回第 1..N 档的名义权重，均值为 1。
// pyramidal: r_i = N-i+1，w_i = r_i*N/Σr，近端最大。
func SizeWeights(cfg GridConfig) []decimal.Decimal {
	n := cfg.Levels
	out := make([]decimal.Decimal, n)
	if cfg.SizeModel != SizePyramidal {
		for i := range out {
			out[i] = decimal.NewFromInt(1)
		}
		return out
	}
	sumR := decimal.NewFromInt(int64(n * (n + 1) / 2))
	bigN := decimal.NewFromInt(int64(n))
	for i := 1; i <= n; i++ {
		r := decimal.NewFromInt(int64(n - i + 1))
		out[i-1] = r.Mul(bigN).Div(sumR)
	}
	return out
}

// ComputeGrid 以 centerPrice 为中心生成 2N 个档位，按 buy_1, sell_1, buy_2, sell_2 ... 顺序输出。
func ComputeGrid(centerPrice decimal.Decimal, cfg GridConfig) ([]GridLevel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !centerPrice.IsPositive() {
		return nil, configErr("centerPrice", centerPrice.String(), "must be > 0")
	}
	fractions := SpacingFractions(cfg)
	one := decimal.NewFromInt(1)

	orderSize := decimal.NewFromFloat(cfg.OrderSize)
	n := cfg.Levels
	pyramidal := cfg.SizeModel == SizePyramidal
	sumR := decimal.NewFromInt(int64(n * (n + 1) / 2))
	bigN := decimal.NewFromInt(int64(n))

	levels := make([]GridLevel, 0, 2*n)
	for i := 1; i <= n; i++ {
		s := fractions[i-1]
		notional := orderSize
		if pyramidal {
			// 先乘后除，保留精度
			r := decimal.NewFromInt(int64(n - i + 1))
			notional = orderSize.Mul(r).Mul(bigN).Div(sumR)
		}
		buyPrice := centerPrice.Mul(one.Sub(s))
		sellPrice := centerPrice.Mul(one.Add(s))
		levels = append(levels,
			GridLevel{Index: i, Side: order.SideBuy, Price: buyPrice, Amount: notional.Div(buyPrice)},
			GridLevel{Index: i, Side: order.SideSell, Price: sellPrice, Amount: notional.Div(sellPrice)},
		)
	}
	return levels, nil
}
