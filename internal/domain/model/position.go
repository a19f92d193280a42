package model

import "time"

// PositionStatus 持仓状态
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// Side 下单方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ContractClass 交割合约类型（按到期分类）
type ContractClass string

const (
	CurrentQuarter ContractClass = "CURRENT_QUARTER"
	NextQuarter    ContractClass = "NEXT_QUARTER"
)

// Position 期现（永续/季度）套利持仓
// 永续腿始终做空，季度腿始终做多
type Position struct {
	ID                string         `json:"id"`
	EntryTime         time.Time      `json:"entry_time"`
	PerpSymbol        string         `json:"perp_symbol"`
	FutureSymbol      string         `json:"future_symbol"` // 展期后被替换
	EntryPricePerp    float64        `json:"entry_price_perp"`
	EntryPriceFuture  float64        `json:"entry_price_future"` // 展期后被覆盖
	NotionalUSD       float64        `json:"notional_usd"`
	EntryFundingDaily float64        `json:"entry_funding_daily"` // 仅展示用
	OpeningFee        float64        `json:"opening_fee"`
	Status            PositionStatus `json:"status"`

	// 最近一次展期
	PreviousFutureSymbol      string     `json:"previous_future_symbol,omitempty"`
	ExitPriceFutureBeforeRoll float64    `json:"exit_price_future_before_roll,omitempty"`
	RollTime                  *time.Time `json:"roll_time,omitempty"`
	RollFee                   float64    `json:"roll_fee,omitempty"`
	Rolls                     []Roll     `json:"rolls,omitempty"` // append-only

	// 平仓
	ExitPricePerp   float64    `json:"exit_price_perp,omitempty"`
	ExitPriceFuture float64    `json:"exit_price_future,omitempty"`
	CloseTime       *time.Time `json:"close_time,omitempty"`
}

// Roll 一次展期记录
type Roll struct {
	FromSymbol string    `json:"from_symbol"`
	ToSymbol   string    `json:"to_symbol"`
	ExitPrice  float64   `json:"exit_price"`
	EntryPrice float64   `json:"entry_price"`
	Time       time.Time `json:"time"`
	Fee        float64   `json:"fee"`
}

func (p *Position) IsOpen() bool { return p.Status == StatusOpen }

// PerpQuantity 用于 PnL 归因的固定数量：notional / entry_price_perp
func (p *Position) PerpQuantity() float64 {
	if p.EntryPricePerp <= 0 {
		return 0
	}
	return p.NotionalUSD / p.EntryPricePerp
}

// TotalRollFees 全部展期手续费；旧记录没有 rolls 时退回 roll_fee
func (p *Position) TotalRollFees() float64 {
	if len(p.Rolls) == 0 {
		return p.RollFee
	}
	var sum float64
	for _, r := range p.Rolls {
		sum += r.Fee
	}
	return sum
}

// FundingWindowEnd 资金费统计区间终点：平仓时间或当前时间
func (p *Position) FundingWindowEnd(now time.Time) time.Time {
	if p.Status == StatusClosed && p.CloseTime != nil {
		return *p.CloseTime
	}
	return now
}

// Clone 深拷贝，变更先作用在副本上，持久化成功后才替换
func (p *Position) Clone() *Position {
	cp := *p
	if p.RollTime != nil {
		t := *p.RollTime
		cp.RollTime = &t
	}
	if p.CloseTime != nil {
		t := *p.CloseTime
		cp.CloseTime = &t
	}
	if p.Rolls != nil {
		cp.Rolls = append([]Roll(nil), p.Rolls...)
	}
	return &cp
}

// FindPosition 按 ID 查找
func FindPosition(positions []*Position, id string) (int, *Position) {
	for i, p := range positions {
		if p != nil && p.ID == id {
			return i, p
		}
	}
	return -1, nil
}
