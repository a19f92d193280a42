package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xcarry/internal/application/service"
	"xcarry/internal/infrastructure/storage/jsonfile"
)

func TestContainerServicesAreShared(t *testing.T) {
	c := New(Deps{}, Settings{})

	assert.Same(t, c.PositionEngine(), c.PositionEngine())
	assert.Same(t, c.SignalService(), c.SignalService())
	assert.Same(t, c.BalanceSnapshotter(), c.BalanceSnapshotter())
	assert.NotNil(t, c.Deps().Publisher)
}

func TestContainerWithJSONStore(t *testing.T) {
	dir := t.TempDir()
	store := jsonfile.NewPositionStore(filepath.Join(dir, "positions.json"))

	c := New(Deps{Positions: store}, Settings{})
	positions, err := c.PositionEngine().Positions(context.Background(), service.ReportFilter{})
	require.NoError(t, err)
	assert.Empty(t, positions)
}
