package service

import "math"

// FundingPeriodsPerDay Binance 每 8 小时结算一次资金费
const FundingPeriodsPerDay = 3

// FundingPeriodsPerYear 年化复利的期数
const FundingPeriodsPerYear = FundingPeriodsPerDay * 365

// EstimateAPR 年化资金费收益：(1 + 平均费率)^(3*365) - 1
// 空输入返回 0
func EstimateAPR(rates []float64) float64 {
	if len(rates) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rates {
		sum += r
	}
	mean := sum / float64(len(rates))
	return math.Pow(1+mean, FundingPeriodsPerYear) - 1
}
