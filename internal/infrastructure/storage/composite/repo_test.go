package composite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xcarry/internal/domain/model"
	"xcarry/internal/infrastructure/storage"
)

type failingStore struct{ saves int }

func (f *failingStore) Load(ctx context.Context) ([]*model.Position, error) {
	return nil, errors.New("load failed")
}

func (f *failingStore) Save(ctx context.Context, positions []*model.Position) error {
	f.saves++
	return errors.New("save failed")
}

type countingPublisher struct {
	n   int
	err error
}

func (c *countingPublisher) Publish(ctx context.Context, ev model.PositionEvent) error {
	c.n++
	return c.err
}

func TestMirrorFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	primary := storage.NewInMemoryPositionStore()
	mirror := &failingStore{}
	s := NewPositionStore(primary, nil, mirror)

	require.NoError(t, s.Save(ctx, []*model.Position{{ID: "a", Status: model.StatusOpen}}))
	assert.Equal(t, 1, mirror.saves)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestPrimaryFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	mirror := storage.NewInMemoryPositionStore()
	s := NewPositionStore(&failingStore{}, mirror)

	assert.Error(t, s.Save(ctx, []*model.Position{{ID: "a"}}))
	got, _ := mirror.Load(ctx)
	assert.Empty(t, got, "mirror untouched when primary fails")
}

func TestPublisherFansOut(t *testing.T) {
	a := &countingPublisher{}
	b := &countingPublisher{err: errors.New("down")}
	c := &countingPublisher{}
	p := NewPublisher(a, nil, b, c)
	assert.Equal(t, 3, p.Len())

	err := p.Publish(context.Background(), model.PositionEvent{Type: model.EventOpened})
	assert.Error(t, err)
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, c.n)
}
