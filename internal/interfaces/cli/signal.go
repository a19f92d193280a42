package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"xcarry/internal/application/service"
	"xcarry/internal/application/usecase/watch"
	"xcarry/internal/infrastructure/exchange"
	"xcarry/internal/interfaces/console"
)

func newSignalCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "signal [coin...]",
		Short: "Evaluate the entry signal for configured pairs",
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := st.selectPairs(args)
			if err != nil {
				return err
			}
			results := st.c.App().SignalService().EvaluateAll(cmd.Context(), pairs)
			return console.RenderSignals(cmd.OutOrStdout(), results)
		},
	}
}

// selectPairs 无参数时使用全部配置
func (st *rootState) selectPairs(names []string) ([]service.Pair, error) {
	all := st.c.Pairs()
	if len(names) == 0 {
		return all, nil
	}
	conv := st.symbols()
	out := make([]service.Pair, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		p, ok := st.cfg.FindPair(n)
		if !ok {
			// 未配置的币种按 coin + quote 推导
			perp := conv.Coin2Symbol(n)
			out = append(out, service.Pair{Coin: conv.Symbol2Coin(perp), PerpSymbol: perp, FuturePrefix: perp})
			continue
		}
		out = append(out, service.Pair{Coin: p.Coin, PerpSymbol: p.PerpSymbol, FuturePrefix: p.FuturePrefix, NotionalUSD: p.NotionalUSD})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no pairs selected")
	}
	return out, nil
}

func (st *rootState) symbols() exchange.SymbolConverter {
	return exchange.NewCommonSymbolConverter(st.cfg.Symbols.Quote)
}

func newWatchCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [coin...]",
		Short: "Stream mark prices and re-evaluate signals every refresh interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := st.selectPairs(args)
			if err != nil {
				return err
			}
			svc := watch.NewService(watch.ServiceDeps{
				Feed:           st.c.PriceFeed(),
				Pairs:          pairs,
				Resolver:       st.c.Market(),
				Signals:        st.c.App().SignalService(),
				Sink:           console.NewSinkTo(cmd.OutOrStdout()),
				RefreshEvery:   st.cfg.RefreshInterval(),
				BasisThreshold: st.cfg.Strategy.AbsThreshold,
			})
			err = svc.Run(cmd.Context())
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
}
