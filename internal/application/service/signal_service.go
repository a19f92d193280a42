package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"xcarry/internal/application/port"
	"xcarry/internal/domain/model"
	domainsvc "xcarry/internal/domain/service"
)

// Pair 一组永续 / 季度合约
type Pair struct {
	Coin         string
	PerpSymbol   string
	FuturePrefix string
	NotionalUSD  float64
}

// SignalConfig 入场信号参数
type SignalConfig struct {
	Thresholds    domainsvc.SignalThresholds
	FundingWindow int
	FallbackDays  int
}

// SignalResult 单个交易对的评估结果；Err 不为空时 Signal 无效
type SignalResult struct {
	Pair   Pair
	Signal model.EntrySignal
	Err    error
}

// SignalService 汇总行情 + 资金费，评估是否入场
type SignalService struct {
	market    port.MarketData
	publisher port.EventPublisher
	cfg       SignalConfig
	now       func() time.Time
}

func NewSignalService(market port.MarketData, publisher port.EventPublisher, cfg SignalConfig) *SignalService {
	if cfg.FundingWindow <= 0 {
		cfg.FundingWindow = domainsvc.DefaultFundingWindow
	}
	if cfg.FallbackDays <= 0 {
		cfg.FallbackDays = domainsvc.DefaultFallbackDays
	}
	if cfg.Thresholds == (domainsvc.SignalThresholds{}) {
		cfg.Thresholds = domainsvc.DefaultSignalThresholds()
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &SignalService{market: market, publisher: publisher, cfg: cfg, now: time.Now}
}

// Evaluate 使用 REST 报价评估
func (s *SignalService) Evaluate(ctx context.Context, perpSymbol, futurePrefix string) (model.EntrySignal, error) {
	future, err := s.market.ResolveContract(ctx, futurePrefix, model.CurrentQuarter)
	if err != nil {
		return model.EntrySignal{}, fmt.Errorf("resolve %s: %w", futurePrefix, err)
	}
	perpPx, err := s.market.Price(ctx, perpSymbol)
	if err != nil {
		return model.EntrySignal{}, fmt.Errorf("quote %s: %w", perpSymbol, err)
	}
	futPx, err := s.market.Price(ctx, future)
	if err != nil {
		return model.EntrySignal{}, fmt.Errorf("quote %s: %w", future, err)
	}
	return s.EvaluatePrices(ctx, perpSymbol, future, perpPx, futPx)
}

// EvaluatePrices 价格由调用方提供（websocket），资金费仍走 REST
func (s *SignalService) EvaluatePrices(ctx context.Context, perpSymbol, future string, perpPx, futPx float64) (model.EntrySignal, error) {
	rates, err := s.market.RecentFundingRates(ctx, perpSymbol, s.cfg.FundingWindow)
	if err != nil {
		return model.EntrySignal{}, fmt.Errorf("funding %s: %w", perpSymbol, err)
	}

	now := s.now().UTC()
	days, estimated := domainsvc.DaysToExpiry(future, now, s.cfg.FallbackDays)
	if estimated {
		log.Warn().Str("symbol", future).Int("days", days).Msg("expiry not parsable, using estimated days")
	}

	sig := domainsvc.EvaluateEntry(perpPx, futPx, days, model.SumRates(rates), s.cfg.Thresholds)
	sig.PerpSymbol = perpSymbol
	sig.FutureSymbol = future
	sig.ExpiryEstimated = estimated
	sig.Timestamp = now

	if sig.Triggered {
		log.Info().
			Str("perp", perpSymbol).
			Str("future", future).
			Float64("funding_daily", sig.FundingDaily).
			Float64("basis_daily", sig.BasisDaily).
			Float64("ratio", sig.Ratio).
			Msg("entry signal triggered")
		ev := model.PositionEvent{
			Type:      model.EventSignal,
			Symbol:    perpSymbol,
			Payload:   mustJSON(sig),
			Timestamp: now.UnixMilli(),
		}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Str("symbol", perpSymbol).Msg("publish signal failed")
		}
	}
	return sig, nil
}

// EvaluateAll 逐个评估，单个失败不影响其他交易对
func (s *SignalService) EvaluateAll(ctx context.Context, pairs []Pair) []SignalResult {
	out := make([]SignalResult, 0, len(pairs))
	for _, p := range pairs {
		sig, err := s.Evaluate(ctx, p.PerpSymbol, p.FuturePrefix)
		if err != nil {
			log.Warn().Err(err).Str("coin", p.Coin).Msg("signal evaluation failed")
		}
		out = append(out, SignalResult{Pair: p, Signal: sig, Err: err})
	}
	return out
}
