package exchange

import (
	"strings"
)

// SymbolConverter 符号转换接口
type SymbolConverter interface {
	// Symbol2Coin 例: BTCUSDT -> BTC, BTCUSDT_250926 -> BTC
	Symbol2Coin(symbol string) string
	// Coin2Symbol 例: BTC -> BTCUSDT
	Coin2Symbol(coin string) string
	SymbolSuffix() string
}

// CommonSymbolConverter USDⓈ-M 合约符号：永续 BTCUSDT，交割 BTCUSDT_YYMMDD
type CommonSymbolConverter struct {
	suffix string
}

func NewCommonSymbolConverter(suffix string) *CommonSymbolConverter {
	return &CommonSymbolConverter{suffix: strings.ToUpper(strings.TrimSpace(suffix))}
}

func (c *CommonSymbolConverter) SymbolSuffix() string {
	return c.suffix
}

// Symbol2Coin 去掉交割后缀和计价币
func (c *CommonSymbolConverter) Symbol2Coin(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return ""
	}
	if i := strings.Index(sym, "_"); i > 0 {
		sym = sym[:i]
	}
	return strings.TrimSuffix(sym, c.suffix)
}

// Coin2Symbol 已是交易对时原样返回
func (c *CommonSymbolConverter) Coin2Symbol(coin string) string {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	if coin == "" {
		return ""
	}
	if IsDelivery(coin) || strings.HasSuffix(coin, c.suffix) {
		return coin
	}
	return coin + c.suffix
}

// IsDelivery 交割合约（带 _YYMMDD 后缀）
func IsDelivery(symbol string) bool {
	i := strings.LastIndex(symbol, "_")
	return i > 0 && i < len(symbol)-1
}
