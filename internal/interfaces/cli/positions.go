package cli

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"xcarry/internal/application/service"
	"xcarry/internal/domain/model"
	"xcarry/internal/infrastructure/exchange"
	"xcarry/internal/interfaces/console"
)

func newOpenCmd(st *rootState) *cobra.Command {
	var (
		notional     float64
		futurePrefix string
	)
	cmd := &cobra.Command{
		Use:   "open <coin|perp_symbol>",
		Short: "Open a carry position: short perpetual, long current-quarter future",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.requireCredentials(); err != nil {
				return err
			}
			perp, prefix, size, err := st.resolveOpen(args[0], futurePrefix, notional)
			if err != nil {
				return err
			}

			pos, err := st.c.App().PositionEngine().Open(cmd.Context(), perp, prefix, size)
			if err != nil {
				return err
			}
			log.Info().Str("id", pos.ID).Str("perp", pos.PerpSymbol).Str("future", pos.FutureSymbol).Msg("position opened")
			return console.RenderPosition(cmd.OutOrStdout(), pos)
		},
	}
	cmd.Flags().Float64Var(&notional, "notional", 0, "notional in USD (default: pair notional_usd)")
	cmd.Flags().StringVar(&futurePrefix, "future-prefix", "", "quarterly contract prefix (default: pair future_prefix)")
	return cmd
}

// resolveOpen 参数优先，其次 [[pairs]] 配置
func (st *rootState) resolveOpen(name, prefix string, notional float64) (string, string, float64, error) {
	perp := st.symbols().Coin2Symbol(name)
	if exchange.IsDelivery(perp) {
		return "", "", 0, fmt.Errorf("%s is a delivery contract, expected coin or perpetual symbol", perp)
	}
	if p, ok := st.cfg.FindPair(name); ok {
		perp = p.PerpSymbol
		if prefix == "" {
			prefix = p.FuturePrefix
		}
		if notional == 0 {
			notional = p.NotionalUSD
		}
	}
	if prefix == "" {
		prefix = perp
	}
	if notional <= 0 {
		return "", "", 0, fmt.Errorf("%w: pass --notional or set notional_usd for %s", model.ErrInvalidNotional, perp)
	}
	return perp, strings.ToUpper(prefix), notional, nil
}

func newRollCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "roll <position_id>",
		Short: "Roll the future leg into the next-quarter contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.requireCredentials(); err != nil {
				return err
			}
			pos, err := st.c.App().PositionEngine().Roll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return console.RenderPosition(cmd.OutOrStdout(), pos)
		},
	}
}

func newCloseCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "close <position_id>",
		Short: "Close both legs of an open position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.requireCredentials(); err != nil {
				return err
			}
			engine := st.c.App().PositionEngine()
			pos, err := engine.Close(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := console.RenderPosition(cmd.OutOrStdout(), pos); err != nil {
				return err
			}
			row, err := engine.PositionPnL(cmd.Context(), pos)
			if err != nil {
				log.Warn().Err(err).Str("id", pos.ID).Msg("final pnl unavailable")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nfunding %.2f  basis %.2f  fees %.2f  total %.2f USD\n",
				row.PnL.FundingPnL, row.PnL.BasisPnL, row.PnL.Fee, row.PnL.TotalPnL)
			return nil
		},
	}
}

func newReportCmd(st *rootState) *cobra.Command {
	var status, symbol string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "PnL report per position with totals by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := service.ReportFilter{
				Status: model.PositionStatus(strings.ToLower(status)),
				Symbol: strings.ToUpper(symbol),
			}
			rep, err := st.c.App().PositionEngine().Report(cmd.Context(), filter)
			if err != nil {
				return err
			}

			var bal *model.AccountBalance
			if st.cfg.HasCredentials() {
				b, err := st.c.App().Deps().Account.Balance(cmd.Context())
				if err != nil {
					log.Warn().Err(err).Msg("account balance unavailable")
				} else {
					bal = &b
				}
			}
			return console.RenderReport(cmd.OutOrStdout(), rep, bal)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "open | closed")
	cmd.Flags().StringVar(&symbol, "symbol", "", "perpetual or future symbol")
	return cmd
}

func newHistoryCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List all positions, open and closed",
		RunE: func(cmd *cobra.Command, args []string) error {
			positions, err := st.c.App().PositionEngine().Positions(cmd.Context(), service.ReportFilter{})
			if err != nil {
				return err
			}
			return console.RenderHistory(cmd.OutOrStdout(), positions)
		},
	}
}
