package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"xcarry/internal/domain/model"
)

// DefaultLotStep 步长元数据不可用时使用的保守步长（近似值，不保证精确成交）
const DefaultLotStep = 0.001

// QuantityPrecision 数量最终保留的小数位
const QuantityPrecision = 8

// LotStepSource 合约步长来源（交易所 LOT_SIZE 过滤器）
type LotStepSource interface {
	LotStep(ctx context.Context, symbol string) (float64, error)
}

// Quantity 归一化后的下单数量
type Quantity struct {
	Value         float64
	Step          float64
	StepDefaulted bool // true: 使用了 DefaultStep 而不是交易所元数据
}

// QuantityNormalizer 把名义金额换算成符合交易所步长的数量
type QuantityNormalizer struct {
	steps       LotStepSource
	DefaultStep float64
}

func NewQuantityNormalizer(steps LotStepSource, defaultStep float64) *QuantityNormalizer {
	if defaultStep <= 0 {
		defaultStep = DefaultLotStep
	}
	return &QuantityNormalizer{steps: steps, DefaultStep: defaultStep}
}

// Normalize 数量 = notional / price，按步长向下取整
// 步长不可用时降级到 DefaultStep 并打标，不中断调用方
func (n *QuantityNormalizer) Normalize(ctx context.Context, notional, price float64, symbol string) (Quantity, error) {
	step := n.DefaultStep
	defaulted := false

	if n.steps != nil {
		s, err := n.steps.LotStep(ctx, symbol)
		switch {
		case err != nil:
			if !errors.Is(err, model.ErrMetadataUnavailable) {
				err = fmt.Errorf("%w: %v", model.ErrMetadataUnavailable, err)
			}
			log.Warn().Err(err).Str("symbol", symbol).Float64("default_step", step).Msg("lot step unavailable, using default")
			defaulted = true
		case s <= 0:
			log.Warn().Str("symbol", symbol).Float64("default_step", step).Msg("lot step missing, using default")
			defaulted = true
		default:
			step = s
		}
	} else {
		defaulted = true
	}

	qty, err := FloorToStep(notional, price, step)
	if err != nil {
		return Quantity{Step: step, StepDefaulted: defaulted}, fmt.Errorf("%s: %w", symbol, err)
	}
	return Quantity{Value: qty, Step: step, StepDefaulted: defaulted}, nil
}

// FloorToStep 纯计算：向下取整到步长的整数倍，再保留 8 位小数
// 结果永远不超过 notional / price
func FloorToStep(notional, price, step float64) (float64, error) {
	if notional <= 0 || price <= 0 || step <= 0 {
		return 0, model.ErrInvalidQuantityInput
	}

	n := decimal.NewFromFloat(notional)
	px := decimal.NewFromFloat(price)
	st := decimal.NewFromFloat(step)

	qty := n.Div(px).Div(st).Floor().Mul(st).Truncate(QuantityPrecision)
	// Div 按 DivisionPrecision 舍入，可能向上进位
	if qty.Mul(px).GreaterThan(n) {
		qty = qty.Sub(st).Truncate(QuantityPrecision)
	}

	if !qty.IsPositive() {
		return 0, model.ErrQuantityBelowStep
	}
	return qty.InexactFloat64(), nil
}
