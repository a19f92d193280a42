package model

import "time"

// FundingRate 单期资金费率
type FundingRate struct {
	Symbol string    `json:"symbol"`
	Rate   float64   `json:"rate"`
	Time   time.Time `json:"time"`
}

// SumRates 资金费率求和
func SumRates(rates []FundingRate) float64 {
	var sum float64
	for _, r := range rates {
		sum += r.Rate
	}
	return sum
}

// Rates 提取费率值
func Rates(rates []FundingRate) []float64 {
	out := make([]float64, 0, len(rates))
	for _, r := range rates {
		out = append(out, r.Rate)
	}
	return out
}

// Fill 市价单成交回报
type Fill struct {
	OrderID       string  `json:"order_id"`
	ClientOrderID string  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	Side          Side    `json:"side"`
	Quantity      float64 `json:"quantity"`
	AvgPrice      float64 `json:"avg_price"` // 0 表示交易所未返回均价
	Status        string  `json:"status"`
}

// PriceOr 成交均价，缺失时退回报价
func (f Fill) PriceOr(quote float64) float64 {
	if f.AvgPrice > 0 {
		return f.AvgPrice
	}
	return quote
}

// AccountBalance 合约账户余额
type AccountBalance struct {
	TotalWalletBalance float64   `json:"total_wallet_balance"`
	AvailableBalance   float64   `json:"available_balance"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// BalanceRecord 余额历史快照
type BalanceRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Total     float64   `json:"total"`
}

// EntrySignal 入场信号评估结果
type EntrySignal struct {
	PerpSymbol      string    `json:"perp_symbol"`
	FutureSymbol    string    `json:"future_symbol"`
	PerpPrice       float64   `json:"perp_price"`
	FuturePrice     float64   `json:"future_price"`
	DaysToExpiry    int       `json:"days_to_expiry"`
	ExpiryEstimated bool      `json:"expiry_estimated"` // 合约代码无法解析，使用默认天数
	BasisPct        float64   `json:"basis_pct"`
	BasisDaily      float64   `json:"basis_daily"`
	FundingDaily    float64   `json:"funding_daily"`
	Ratio           float64   `json:"ratio"`
	Triggered       bool      `json:"triggered"`
	Timestamp       time.Time `json:"ts"`
}
