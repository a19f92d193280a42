package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"xcarry/internal/application/port"
	"xcarry/internal/domain/model"
)

// BalanceSnapshotter 定时记录合约账户总余额
type BalanceSnapshotter struct {
	account  port.AccountReader
	store    port.BalanceStore
	interval time.Duration
	now      func() time.Time
}

func NewBalanceSnapshotter(account port.AccountReader, store port.BalanceStore, interval time.Duration) *BalanceSnapshotter {
	if interval <= 0 {
		interval = time.Hour // 默认1小时一次
	}
	return &BalanceSnapshotter{account: account, store: store, interval: interval, now: time.Now}
}

// Start 立即快照一次，之后按 interval 定时快照；ctx 取消后退出
// 单次失败只记日志
func (s *BalanceSnapshotter) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *BalanceSnapshotter) tick(ctx context.Context) {
	rec, err := s.SnapshotOnce(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("balance snapshot failed")
		return
	}
	log.Info().Float64("total", rec.Total).Time("ts", rec.Timestamp).Msg("balance snapshot saved")
}

// SnapshotOnce 读取余额并追加到历史
func (s *BalanceSnapshotter) SnapshotOnce(ctx context.Context) (model.BalanceRecord, error) {
	bal, err := s.account.Balance(ctx)
	if err != nil {
		return model.BalanceRecord{}, fmt.Errorf("balance: %w", err)
	}
	rec := model.BalanceRecord{Timestamp: s.now().UTC(), Total: bal.TotalWalletBalance}
	if err := s.store.Append(ctx, rec); err != nil {
		return model.BalanceRecord{}, fmt.Errorf("%w: append balance: %w", model.ErrPersistenceFailure, err)
	}
	return rec, nil
}
