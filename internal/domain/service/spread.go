package service

// BasisPct 基差百分比：(季度价 - 永续价) / 永续价
func BasisPct(perp, future float64) float64 {
	if perp == 0 {
		return 0
	}
	return (future - perp) / perp
}

// SignColor -1 red, 0 yellow, +1 green (pure decision)
func SignColor(v, threshold float64) int {
	if v >= threshold {
		return +1
	}
	if v <= -threshold {
		return -1
	}
	return 0
}
