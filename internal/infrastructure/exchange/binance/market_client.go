package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"xcarry/internal/application/port"
	"xcarry/internal/domain/model"
)

// FundingPageLimit /fapi/v1/fundingRate 单页上限
const FundingPageLimit = 1000

// maxFundingPages 防止异常数据导致死循环
const maxFundingPages = 200

var _ port.MarketData = (*MarketClient)(nil)

// MarketClient 公开行情：价格 / 资金费 / 合约元数据
type MarketClient struct {
	*APIClient

	infoTTL time.Duration
	mu      sync.Mutex
	info    map[string]symbolInfo
	infoAt  time.Time
	now     func() time.Time
}

func NewMarketClient(client *APIClient, infoTTL time.Duration) *MarketClient {
	return &MarketClient{APIClient: client, infoTTL: infoTTL, now: time.Now}
}

type exchangeInfoResp struct {
	Symbols []symbolInfo `json:"symbols"`
}

type symbolInfo struct {
	Symbol       string         `json:"symbol"`
	Pair         string         `json:"pair"`
	ContractType string         `json:"contractType"`
	Status       string         `json:"status"`
	DeliveryDate int64          `json:"deliveryDate"`
	Filters      []symbolFilter `json:"filters"`
}

type symbolFilter struct {
	FilterType string `json:"filterType"`
	StepSize   string `json:"stepSize"`
}

type tickerPriceResp struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Time   int64  `json:"time"`
}

// FundingRateResp Binance 资金费率响应
type FundingRateResp struct {
	Symbol      string `json:"symbol"`
	FundingRate string `json:"fundingRate"`
	FundingTime int64  `json:"fundingTime"`
}

func (r FundingRateResp) toModel() model.FundingRate {
	return model.FundingRate{
		Symbol: r.Symbol,
		Rate:   parseFloat(r.FundingRate),
		Time:   time.UnixMilli(r.FundingTime).UTC(),
	}
}

// Price 最新成交价
func (c *MarketClient) Price(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.publicRequest(ctx, "/fapi/v1/ticker/price", params)
	if err != nil {
		return 0, fmt.Errorf("ticker price %s: %w", symbol, err)
	}

	var resp tickerPriceResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("parse ticker price %s: %w", symbol, err)
	}
	px, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil || px <= 0 {
		return 0, fmt.Errorf("%w: invalid price %q for %s", model.ErrGatewayUnavailable, resp.Price, symbol)
	}
	return px, nil
}

// FundingRates [start, end] 区间内全部资金费，按时间升序
func (c *MarketClient) FundingRates(ctx context.Context, symbol string, start, end time.Time, limit int) ([]model.FundingRate, error) {
	if limit <= 0 || limit > FundingPageLimit {
		limit = FundingPageLimit
	}
	if end.Before(start) {
		return nil, nil
	}

	var out []model.FundingRate
	cursor := start.UnixMilli()
	endMs := end.UnixMilli()
	for page := 0; page < maxFundingPages && cursor <= endMs; page++ {
		params := url.Values{}
		params.Set("symbol", symbol)
		params.Set("startTime", strconv.FormatInt(cursor, 10))
		params.Set("endTime", strconv.FormatInt(endMs, 10))
		params.Set("limit", strconv.Itoa(limit))

		rows, err := c.fundingPage(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("funding history %s: %w", symbol, err)
		}
		for _, r := range rows {
			out = append(out, r.toModel())
		}
		if len(rows) < limit {
			break
		}
		next := rows[len(rows)-1].FundingTime + 1
		if next <= cursor {
			break
		}
		cursor = next
	}
	return out, nil
}

// RecentFundingRates 最近 n 期资金费
func (c *MarketClient) RecentFundingRates(ctx context.Context, symbol string, n int) ([]model.FundingRate, error) {
	if n <= 0 {
		return nil, nil
	}
	if n > FundingPageLimit {
		n = FundingPageLimit
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(n))

	rows, err := c.fundingPage(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("recent funding %s: %w", symbol, err)
	}
	out := make([]model.FundingRate, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (c *MarketClient) fundingPage(ctx context.Context, params url.Values) ([]FundingRateResp, error) {
	body, err := c.publicRequest(ctx, "/fapi/v1/fundingRate", params)
	if err != nil {
		return nil, err
	}
	var rows []FundingRateResp
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse funding: %w", err)
	}
	return rows, nil
}

// ResolveContract 按前缀 + 到期类型找交割合约（CURRENT_QUARTER / NEXT_QUARTER）
func (c *MarketClient) ResolveContract(ctx context.Context, prefix string, class model.ContractClass) (string, error) {
	info, err := c.exchangeInfo(ctx)
	if err != nil {
		return "", err
	}
	prefix = strings.ToUpper(strings.TrimSpace(prefix))

	var best symbolInfo
	for _, s := range info {
		if s.ContractType != string(class) || !strings.HasPrefix(s.Symbol, prefix) {
			continue
		}
		if s.Status != "" && s.Status != "TRADING" {
			continue
		}
		// 同一前缀多个匹配时取 pair 完全一致的
		if best.Symbol == "" || s.Pair == prefix {
			best = s
		}
	}
	if best.Symbol == "" {
		return "", fmt.Errorf("%w: %s %s", model.ErrNoContractFound, prefix, class)
	}
	return best.Symbol, nil
}

// LotStep LOT_SIZE 过滤器的 stepSize
func (c *MarketClient) LotStep(ctx context.Context, symbol string) (float64, error) {
	info, err := c.exchangeInfo(ctx)
	if err != nil {
		return 0, err
	}
	s, ok := info[strings.ToUpper(symbol)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown symbol %s", model.ErrMetadataUnavailable, symbol)
	}
	for _, f := range s.Filters {
		if f.FilterType != "LOT_SIZE" {
			continue
		}
		step, err := strconv.ParseFloat(f.StepSize, 64)
		if err != nil || step <= 0 {
			return 0, fmt.Errorf("%w: bad stepSize %q for %s", model.ErrMetadataUnavailable, f.StepSize, symbol)
		}
		return step, nil
	}
	return 0, fmt.Errorf("%w: no LOT_SIZE filter for %s", model.ErrMetadataUnavailable, symbol)
}

// exchangeInfo 带 TTL 的合约元数据缓存
func (c *MarketClient) exchangeInfo(ctx context.Context) (map[string]symbolInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.info != nil && c.now().Sub(c.infoAt) < c.infoTTL {
		return c.info, nil
	}

	body, err := c.publicRequest(ctx, "/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: exchangeInfo: %w", model.ErrMetadataUnavailable, err)
	}
	var resp exchangeInfoResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse exchangeInfo: %v", model.ErrMetadataUnavailable, err)
	}

	info := make(map[string]symbolInfo, len(resp.Symbols))
	for _, s := range resp.Symbols {
		info[strings.ToUpper(s.Symbol)] = s
	}
	c.info = info
	c.infoAt = c.now()
	return info, nil
}
