package service

import (
	"strings"
	"time"

	"xcarry/internal/domain/model"
)

const (
	// DefaultAbsThreshold 日化资金费绝对阈值
	DefaultAbsThreshold = 0.0003
	// DefaultRatioMultiplier 资金费/基差 倍数阈值
	DefaultRatioMultiplier = 1.5
	// DefaultFundingWindow 最近 N 期资金费（3 期 ≈ 1 天）
	DefaultFundingWindow = 3
	// DefaultFallbackDays 合约代码无法解析时的到期天数
	DefaultFallbackDays = 90
)

// SignalThresholds 入场触发参数
type SignalThresholds struct {
	AbsThreshold    float64
	RatioMultiplier float64
}

func DefaultSignalThresholds() SignalThresholds {
	return SignalThresholds{
		AbsThreshold:    DefaultAbsThreshold,
		RatioMultiplier: DefaultRatioMultiplier,
	}
}

// EvaluateEntry 比较资金费收益与基差收益，决定是否触发入场
// 触发条件：资金费本身足够高，或资金费显著高于基差日衰减
func EvaluateEntry(perpPrice, futurePrice float64, daysToExpiry int, fundingSum float64, th SignalThresholds) model.EntrySignal {
	if daysToExpiry < 1 {
		daysToExpiry = 1
	}

	basisPct := BasisPct(perpPrice, futurePrice)
	basisDaily := basisPct / float64(daysToExpiry)

	ratio := 0.0
	if basisDaily != 0 {
		ratio = fundingSum / basisDaily
	}

	return model.EntrySignal{
		PerpPrice:    perpPrice,
		FuturePrice:  futurePrice,
		DaysToExpiry: daysToExpiry,
		BasisPct:     basisPct,
		BasisDaily:   basisDaily,
		FundingDaily: fundingSum,
		Ratio:        ratio,
		Triggered:    Triggered(fundingSum, basisDaily, th),
	}
}

// Triggered 触发判定（比值仅供展示，不参与判定）
func Triggered(fundingDaily, basisDaily float64, th SignalThresholds) bool {
	return fundingDaily > th.AbsThreshold || fundingDaily > th.RatioMultiplier*basisDaily
}

// DaysToExpiry 从季度合约代码（如 BTCUSDT_250926）解析到期天数，最少 1 天
// 解析失败时返回 fallbackDays 且 estimated=true
func DaysToExpiry(symbol string, now time.Time, fallbackDays int) (days int, estimated bool) {
	if fallbackDays <= 0 {
		fallbackDays = DefaultFallbackDays
	}
	expiry, ok := ContractExpiry(symbol)
	if !ok {
		return fallbackDays, true
	}
	days = int(expiry.Sub(now.UTC()).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days, false
}

// ContractExpiry 解析 _YYMMDD 后缀
func ContractExpiry(symbol string) (time.Time, bool) {
	i := strings.LastIndex(symbol, "_")
	if i < 0 || i == len(symbol)-1 {
		return time.Time{}, false
	}
	part := symbol[i+1:]
	if len(part) != 6 {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("20060102", "20"+part, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ContractPrefix 交割合约代码的标的部分：BTCUSDT_250926 -> BTCUSDT
func ContractPrefix(symbol string) string {
	if i := strings.LastIndex(symbol, "_"); i > 0 {
		return symbol[:i]
	}
	return symbol
}
