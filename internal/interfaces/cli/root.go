package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"xcarry/internal/infrastructure/config"
	"xcarry/internal/infrastructure/container"
	"xcarry/internal/infrastructure/logger"
)

// rootState 子命令共享：配置在 PersistentPreRunE 中加载
type rootState struct {
	configPath string
	logLevel   string

	cfg *config.Config
	c   *container.Container
}

func NewRootCmd() *cobra.Command {
	st := &rootState{}

	root := &cobra.Command{
		Use:   "xcarry",
		Short: "Perpetual / quarterly cash-and-carry position engine for Binance USDⓈ-M",
		Long: `xcarry opens, rolls and closes hedged carry positions:
short the perpetual, long the quarterly future of the same coin.

Signals compare the daily funding yield against the daily basis decay;
reports split PnL into funding, basis and fees.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if st.c != nil {
				return st.c.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", "configs/config.toml", "path to config.toml")
	root.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "override app.log_level")

	root.AddCommand(
		newSignalCmd(st),
		newOpenCmd(st),
		newRollCmd(st),
		newCloseCmd(st),
		newReportCmd(st),
		newHistoryCmd(st),
		newBalanceCmd(st),
		newSnapshotCmd(st),
		newWatchCmd(st),
		newEventsCmd(st),
	)
	return root
}

func (st *rootState) init(ctx context.Context) error {
	cfg, err := config.Load(st.configPath)
	if err != nil {
		return err
	}
	level := cfg.App.LogLevel
	if st.logLevel != "" {
		level = st.logLevel
	}
	logger.Setup(level)

	c, err := container.New(ctx, cfg)
	if err != nil {
		return err
	}
	st.cfg = cfg
	st.c = c

	log.Debug().
		Str("config", st.configPath).
		Str("backend", cfg.Storage.Backend).
		Int("pairs", len(cfg.Pairs)).
		Bool("credentials", cfg.HasCredentials()).
		Msg("xcarry initialized")
	return nil
}

var errNoCredentials = errors.New("BINANCE_API_KEY / BINANCE_API_SECRET not set")

func (st *rootState) requireCredentials() error {
	if !st.cfg.HasCredentials() {
		return errNoCredentials
	}
	return nil
}

// Execute 入口；SIGINT / SIGTERM 取消上下文
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
