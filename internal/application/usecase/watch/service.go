package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"xcarry/internal/application/port"
	"xcarry/internal/application/service"
	"xcarry/internal/domain/model"
)

// Evaluator 入场信号评估（service.SignalService）
type Evaluator interface {
	Evaluate(ctx context.Context, perpSymbol, futurePrefix string) (model.EntrySignal, error)
	EvaluatePrices(ctx context.Context, perpSymbol, future string, perpPx, futPx float64) (model.EntrySignal, error)
}

// ContractResolver 当季合约解析
type ContractResolver interface {
	ResolveContract(ctx context.Context, prefix string, class model.ContractClass) (string, error)
}

type ServiceDeps struct {
	Feed           port.PriceFeed
	Pairs          []service.Pair
	Resolver       ContractResolver
	Signals        Evaluator
	Sink           port.Sink
	RefreshEvery   time.Duration
	BasisThreshold float64
}

// Service 实时监控：websocket 标记价格 + 定时评估入场信号
type Service struct {
	deps  ServiceDeps
	st    *State
	fmt   *Formatter
	views []pairView
}

func NewService(deps ServiceDeps) *Service {
	if deps.RefreshEvery <= 0 {
		deps.RefreshEvery = 10 * time.Minute
	}
	return &Service{
		deps: deps,
		st:   NewState(nil),
		fmt:  NewFormatter(deps.BasisThreshold),
	}
}

// resolve 解析每组的当季合约；失败的组跳过
func (s *Service) resolve(ctx context.Context) []string {
	s.views = s.views[:0]
	symbols := make([]string, 0, 2*len(s.deps.Pairs))
	for _, p := range s.deps.Pairs {
		future, err := s.deps.Resolver.ResolveContract(ctx, p.FuturePrefix, model.CurrentQuarter)
		if err != nil {
			log.Warn().Err(err).Str("coin", p.Coin).Msg("resolve current quarter failed, pair skipped")
			continue
		}
		s.views = append(s.views, pairView{Coin: p.Coin, Perp: p.PerpSymbol, Future: future})
		symbols = append(symbols, p.PerpSymbol, future)
	}
	s.st.Track(symbols...)
	return symbols
}

func (s *Service) Run(ctx context.Context) error {
	if s.deps.Feed == nil {
		return errors.New("no feed")
	}

	symbols := s.resolve(ctx)
	if len(symbols) == 0 {
		return fmt.Errorf("%w: no pair could be resolved", model.ErrNoContractFound)
	}

	ticks, err := s.deps.Feed.Subscribe(ctx, symbols)
	if err != nil {
		return err
	}
	log.Info().Str("feed", s.deps.Feed.Name()).Strs("symbols", symbols).Msg("feed started")

	refresh := time.NewTicker(s.deps.RefreshEvery)
	defer refresh.Stop()

	_ = s.deps.Sink.WriteLive(s.fmt.RenderLive(s.st, s.views))
	s.evaluate(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			_ = s.deps.Sink.NewLine()
			return ctx.Err()

		case now := <-refresh.C:
			s.evaluate(ctx, now)

		case t, ok := <-ticks:
			if !ok {
				_ = s.deps.Sink.NewLine()
				return errors.New("feed closed")
			}
			if s.st.Apply(t) {
				_ = s.deps.Sink.WriteLive(s.fmt.RenderLive(s.st, s.views))
			}
		}
	}
}

// evaluate 有 websocket 价格时用推送价，否则退回 REST 报价
func (s *Service) evaluate(ctx context.Context, now time.Time) {
	for _, v := range s.views {
		var (
			sig model.EntrySignal
			err error
		)
		pp, _, pok := s.st.Price(v.Perp)
		fp, _, fok := s.st.Price(v.Future)
		if pok && fok {
			sig, err = s.deps.Signals.EvaluatePrices(ctx, v.Perp, v.Future, pp, fp)
		} else {
			sig, err = s.deps.Signals.Evaluate(ctx, v.Perp, prefixOf(s.deps.Pairs, v.Coin))
		}
		if err != nil {
			log.Warn().Err(err).Str("coin", v.Coin).Msg("signal evaluation failed")
		}
		_ = s.deps.Sink.WriteSnapshot(now, s.fmt.RenderSignal(v.Coin, sig, err))
	}
	_ = s.deps.Sink.WriteLive(s.fmt.RenderLive(s.st, s.views))
}

func prefixOf(pairs []service.Pair, coin string) string {
	for _, p := range pairs {
		if p.Coin == coin {
			return p.FuturePrefix
		}
	}
	return coin
}
