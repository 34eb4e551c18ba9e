package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidde/cardinality_explorer/internal/storage/dual"
	"github.com/fidde/cardinality_explorer/internal/storage/memory"
	"github.com/fidde/cardinality_explorer/internal/storage/sqlite"
	"github.com/fidde/cardinality_explorer/internal/storage/storagetest"
)

func TestNewStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := NewStorage(ctx, DefaultConfig(), slogt.New(t))
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &memory.Store{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backend = BackendSQLite
		cfg.SQLitePath = filepath.Join(t.TempDir(), "cardinality.db")

		store, err := NewStorage(ctx, cfg, slogt.New(t))
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &sqlite.Store{}, store)
	})

	t.Run("dual warms from sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cardinality.db")

		seed, err := sqlite.New(sqlite.DefaultConfig(path))
		require.NoError(t, err)
		require.NoError(t, seed.SaveSnapshot(ctx, storagetest.Snapshot("persisted", time.Now(), 1)))
		require.NoError(t, seed.Close())

		cfg := DefaultConfig()
		cfg.Backend = BackendDual
		cfg.Secondary = BackendSQLite
		cfg.SQLitePath = path

		store, err := NewStorage(ctx, cfg, slogt.New(t))
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &dual.Store{}, store)

		snap, err := store.GetSnapshot(ctx, "persisted")
		require.NoError(t, err)
		assert.Equal(t, int64(100), snap.TotalSeries)
	})

	t.Run("invalid dual secondary", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backend = BackendDual
		cfg.Secondary = BackendMemory

		_, err := NewStorage(ctx, cfg, slogt.New(t))
		assert.ErrorContains(t, err, "invalid dual secondary")
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backend = "redis"

		_, err := NewStorage(ctx, cfg, nil)
		assert.ErrorContains(t, err, "unknown storage backend")
	})
}
