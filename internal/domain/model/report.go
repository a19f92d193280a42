package model

import "time"

// PnL 单个持仓的盈亏拆解
type PnL struct {
	FundingPnL float64 `json:"funding_pnl"`
	BasisPnL   float64 `json:"basis_pnl"`
	FuturePnL  float64 `json:"future_pnl"` // 季度多头腿
	PerpPnL    float64 `json:"perp_pnl"`   // 永续空头腿
	Fee        float64 `json:"fee"`
	TotalPnL   float64 `json:"total_pnl"`
	APR        float64 `json:"apr"`
}

// PositionPnL 报表中的一行
type PositionPnL struct {
	Position    *Position `json:"position"`
	PerpPrice   float64   `json:"perp_price"`
	FuturePrice float64   `json:"future_price"`
	PnL         PnL       `json:"pnl"`
	OK          bool      `json:"ok"`
	Warning     string    `json:"warning,omitempty"`
}

// Totals 按状态汇总
type Totals struct {
	Count       int     `json:"count"`
	NotionalUSD float64 `json:"notional_usd"`
	FundingPnL  float64 `json:"funding_pnl"`
	BasisPnL    float64 `json:"basis_pnl"`
	Fee         float64 `json:"fee"`
	TotalPnL    float64 `json:"total_pnl"`
}

// Add 累加一行（失败行按 0 计入数量）
func (t *Totals) Add(p PositionPnL) {
	t.Count++
	if p.Position != nil {
		t.NotionalUSD += p.Position.NotionalUSD
	}
	t.FundingPnL += p.PnL.FundingPnL
	t.BasisPnL += p.PnL.BasisPnL
	t.Fee += p.PnL.Fee
	t.TotalPnL += p.PnL.TotalPnL
}

// Report 批量盈亏报表
type Report struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	Entries     []PositionPnL             `json:"entries"`
	ByStatus    map[PositionStatus]Totals `json:"by_status"`
	Total       Totals                    `json:"total"`
	Warnings    []string                  `json:"warnings,omitempty"`
}

// EventType 持仓事件类型
type EventType string

const (
	EventOpened EventType = "opened"
	EventRolled EventType = "rolled"
	EventClosed EventType = "closed"
	EventSignal EventType = "signal"
)

// PositionEvent 生命周期事件（发布到 redis）
type PositionEvent struct {
	Type       EventType `json:"type"`
	PositionID string    `json:"position_id,omitempty"`
	Symbol     string    `json:"symbol"`
	Payload    string    `json:"payload"`
	Timestamp  int64     `json:"ts_ms"`
}
