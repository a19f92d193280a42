package service

import (
	"github.com/shopspring/decimal"

	"xcarry/internal/domain/model"
)

// DefaultFeeRate 单边 taker 手续费率
const DefaultFeeRate = 0.0004

// LegFee 两腿手续费：2 × notional × rate，保留到分
func LegFee(notional, feeRate float64) float64 {
	return decimal.NewFromFloat(notional).
		Mul(decimal.NewFromInt(2)).
		Mul(decimal.NewFromFloat(feeRate)).
		Round(2).
		InexactFloat64()
}

// ComputePnL 盈亏拆解：资金费 + 基差 - 手续费
// 开仓持仓传入实时价格，已平仓持仓传入记录的平仓价
// 数量固定为 notional / entry_price_perp（忽略步长取整误差）
func ComputePnL(pos *model.Position, perpPrice, futurePrice float64, funding []float64) model.PnL {
	var fundingSum float64
	for _, r := range funding {
		fundingSum += r
	}

	qty := pos.PerpQuantity()
	futurePnL := (futurePrice - pos.EntryPriceFuture) * qty
	perpPnL := (pos.EntryPricePerp - perpPrice) * qty
	basis := futurePnL + perpPnL

	fundingPnL := fundingSum * pos.NotionalUSD
	fee := pos.OpeningFee + pos.TotalRollFees()

	return model.PnL{
		FundingPnL: fundingPnL,
		BasisPnL:   basis,
		FuturePnL:  futurePnL,
		PerpPnL:    perpPnL,
		Fee:        fee,
		TotalPnL:   fundingPnL + basis - fee,
		APR:        EstimateAPR(funding),
	}
}

// ExitPrices 已平仓持仓的价格；未平仓返回 false
func ExitPrices(pos *model.Position) (perp, future float64, ok bool) {
	if pos.Status != model.StatusClosed {
		return 0, 0, false
	}
	return pos.ExitPricePerp, pos.ExitPriceFuture, true
}
