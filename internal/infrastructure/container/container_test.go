package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xcarry/internal/infrastructure/config"
)

func loadConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	cfg.Storage.Backend = backend
	dir := t.TempDir()
	cfg.Storage.JSON.PositionsPath = filepath.Join(dir, "positions.json")
	cfg.Storage.JSON.BalancePath = filepath.Join(dir, "balance.json")
	cfg.Storage.SQLite.Path = filepath.Join(dir, "xcarry.db")
	return cfg
}

func TestNewWithMemoryBackend(t *testing.T) {
	c, err := New(context.Background(), loadConfig(t, config.BackendMemory))
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.App())
	assert.NotNil(t, c.App().PositionEngine())
	assert.NotNil(t, c.PriceFeed())
	assert.Len(t, c.Pairs(), 2)

	_, ok := c.Events()
	assert.False(t, ok)
}

func TestNewWithSQLiteBackendWiresEventLog(t *testing.T) {
	c, err := New(context.Background(), loadConfig(t, config.BackendSQLite))
	require.NoError(t, err)

	events, ok := c.Events()
	require.True(t, ok)
	got, err := events.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	positions, err := c.App().Deps().Positions.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close(), "close is idempotent")
}

func TestNewWithJSONBackend(t *testing.T) {
	c, err := New(context.Background(), loadConfig(t, config.BackendJSON))
	require.NoError(t, err)
	defer c.Close()

	balances, err := c.App().Deps().Balances.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func TestUnknownBackendFails(t *testing.T) {
	_, err := New(context.Background(), loadConfig(t, "mongo"))
	assert.Error(t, err)
}
