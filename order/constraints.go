package order

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrConstraint = errors.New("order violates symbol constraints")

// SymbolConstraints 描述交易对的步长与名义限制。零值字段表示不限制。
type SymbolConstraints struct {
	TickSize    decimal.Decimal
	StepSize    decimal.Decimal
	MinQty      decimal.Decimal
	MaxQty      decimal.Decimal
	MinNotional decimal.Decimal
}

// Validate 检查订单价格/数量是否符合精度与最小名义。
func (c SymbolConstraints) Validate(price, qty decimal.Decimal) error {
	if c.TickSize.IsPositive() && !isMultiple(price, c.TickSize) {
		return fmt.Errorf("%w: price %s not aligned to tickSize %s", ErrConstraint, price, c.TickSize)
	}
	if c.StepSize.IsPositive() && !isMultiple(qty, c.StepSize) {
		return fmt.Errorf("%w: qty %s not aligned to stepSize %s", ErrConstraint, qty, c.StepSize)
	}
	if c.MinQty.IsPositive() && qty.LessThan(c.MinQty) {
		return fmt.Errorf("%w: qty %s < minQty %s", ErrConstraint, qty, c.MinQty)
	}
	if c.MaxQty.IsPositive() && qty.GreaterThan(c.MaxQty) {
		return fmt.Errorf("%w: qty %s > maxQty %s", ErrConstraint, qty, c.MaxQty)
	}
	if c.MinNotional.IsPositive() && price.Mul(qty).LessThan(c.MinNotional) {
		return fmt.Errorf("%w: notional %s < minNotional %s", ErrConstraint, price.Mul(qty), c.MinNotional)
	}
	return nil
}

// Round 将价格按 tick 四舍五入、数量按 step 向下取整。
func (c SymbolConstraints) Round(price, qty decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if c.TickSize.IsPositive() {
		price = price.Div(c.TickSize).Round(0).Mul(c.TickSize)
	}
	if c.StepSize.IsPositive() {
		qty = qty.Div(c.StepSize).Floor().Mul(c.StepSize)
	}
	return price, qty
}

func isMultiple(value, step decimal.Decimal) bool {
	if !step.IsPositive() {
		return true
	}
	return value.Mod(step).IsZero()
}
