package port

import "context"

type Tick struct {
	Symbol      string  // "BTCUSDT" / "BTCUSDT_250926"
	PriceStr    string  // raw string
	PriceNum    float64 // parsed float64 (best-effort)
	FundingRate float64 // 永续才有，交割合约为 0
	Ts          int64   // unix ms
}

// PriceFeed 实时标记价格
type PriceFeed interface {
	Name() string
	Subscribe(ctx context.Context, symbols []string) (<-chan Tick, error)
}
