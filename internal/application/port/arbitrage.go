package port

import (
	"context"
	"time"

	"xcarry/internal/domain/model"
)

// MarketData 行情网关（公开接口）
type MarketData interface {
	Price(ctx context.Context, symbol string) (float64, error)
	// FundingRates [start, end] 区间内的资金费率，超过单页上限时自动翻页
	FundingRates(ctx context.Context, symbol string, start, end time.Time, limit int) ([]model.FundingRate, error)
	RecentFundingRates(ctx context.Context, symbol string, n int) ([]model.FundingRate, error)
	// ResolveContract 按前缀（如 BTCUSDT）和到期类型找交割合约
	ResolveContract(ctx context.Context, prefix string, class model.ContractClass) (string, error)
	LotStep(ctx context.Context, symbol string) (float64, error)
}

// OrderExecutor 下单网关（签名接口），市价单不重试
type OrderExecutor interface {
	SubmitMarketOrder(ctx context.Context, symbol string, side model.Side, qty float64) (model.Fill, error)
}

// AccountReader 账户余额
type AccountReader interface {
	Balance(ctx context.Context) (model.AccountBalance, error)
}
