package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xcarry/internal/domain/model"
)

func TestInMemoryPositionStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryPositionStore()

	pos := &model.Position{ID: "a", NotionalUSD: 100, Status: model.StatusOpen}
	require.NoError(t, s.Save(ctx, []*model.Position{pos}))

	pos.Status = model.StatusClosed
	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.StatusOpen, got[0].Status)

	got[0].NotionalUSD = 1
	again, _ := s.Load(ctx)
	assert.Equal(t, 100.0, again[0].NotionalUSD)
}

func TestInMemoryBalanceStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryBalanceStore()
	now := time.Now().UTC()

	require.NoError(t, s.Append(ctx, model.BalanceRecord{Timestamp: now, Total: 1}))
	require.NoError(t, s.Append(ctx, model.BalanceRecord{Timestamp: now.Add(time.Hour), Total: 2}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[1].Total)
}
