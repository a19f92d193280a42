package port

import (
	"context"

	"xcarry/internal/domain/model"
)

// PositionStore 持仓集合，整体覆盖写入
type PositionStore interface {
	Load(ctx context.Context) ([]*model.Position, error)
	Save(ctx context.Context, positions []*model.Position) error
}

// BalanceStore 余额历史
type BalanceStore interface {
	Load(ctx context.Context) ([]model.BalanceRecord, error)
	Append(ctx context.Context, rec model.BalanceRecord) error
}

// EventPublisher 生命周期事件，失败只记日志
type EventPublisher interface {
	Publish(ctx context.Context, ev model.PositionEvent) error
}
