package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"xcarry/internal/interfaces/console"
)

func newBalanceCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the recorded balance history",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := st.c.App().Deps().Balances.Load(cmd.Context())
			if err != nil {
				return err
			}
			return console.RenderBalance(cmd.OutOrStdout(), records)
		},
	}
}

func newSnapshotCmd(st *rootState) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Record the wallet balance now and then every balance.interval_min",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.requireCredentials(); err != nil {
				return err
			}
			snap := st.c.App().BalanceSnapshotter()
			if once {
				rec, err := snap.SnapshotOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %.2f\n", rec.Timestamp.Local().Format("2006-01-02 15:04:05"), rec.Total)
				return nil
			}

			log.Info().Dur("interval", st.cfg.BalanceInterval()).Msg("balance snapshotter started")
			snap.Start(cmd.Context())
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "take a single snapshot and exit")
	return cmd
}

func newEventsCmd(st *rootState) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent lifecycle events (sqlite backend)",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, ok := st.c.Events()
			if !ok {
				return fmt.Errorf("event log requires storage.backend = \"sqlite\"")
			}
			list, err := events.Recent(cmd.Context(), n)
			if err != nil {
				return err
			}
			return console.RenderEvents(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 20, "number of events")
	return cmd
}
