package storage

import (
	"context"
	"sync"

	"xcarry/internal/application/port"
	"xcarry/internal/domain/model"
)

var (
	_ port.PositionStore = (*InMemoryPositionStore)(nil)
	_ port.BalanceStore  = (*InMemoryBalanceStore)(nil)
)

// InMemoryPositionStore is a simple in-memory implementation (测试 / dry-run)
type InMemoryPositionStore struct {
	mu        sync.RWMutex
	positions []*model.Position
}

func NewInMemoryPositionStore() *InMemoryPositionStore {
	return &InMemoryPositionStore{positions: make([]*model.Position, 0)}
}

func (r *InMemoryPositionStore) Load(ctx context.Context) ([]*model.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clonePositions(r.positions), nil
}

// Save 整体覆盖
func (r *InMemoryPositionStore) Save(ctx context.Context, positions []*model.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions = clonePositions(positions)
	return nil
}

// InMemoryBalanceStore 余额历史
type InMemoryBalanceStore struct {
	mu      sync.RWMutex
	records []model.BalanceRecord
}

func NewInMemoryBalanceStore() *InMemoryBalanceStore {
	return &InMemoryBalanceStore{records: make([]model.BalanceRecord, 0)}
}

func (r *InMemoryBalanceStore) Load(ctx context.Context) ([]model.BalanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.BalanceRecord(nil), r.records...), nil
}

func (r *InMemoryBalanceStore) Append(ctx context.Context, rec model.BalanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func clonePositions(in []*model.Position) []*model.Position {
	out := make([]*model.Position, 0, len(in))
	for _, p := range in {
		if p != nil {
			out = append(out, p.Clone())
		}
	}
	return out
}
