// Package storagetest provides a conformance suite shared by the storage
// backends.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidde/cardinality_explorer/pkg/models"
)

// Store is the behaviour under test. It mirrors storage.Storage, which
// cannot be imported from backend packages.
type Store interface {
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]models.SnapshotMetadata, error)
	DeleteSnapshot(ctx context.Context, id string) error
	RecordUsage(ctx context.Context, names []string, timestamp int64) error
	ListUsage(ctx context.Context) (map[string]models.Usage, error)
	Clear(ctx context.Context) error
}

// Snapshot builds a small snapshot with deterministic entries.
func Snapshot(id string, created time.Time, scale int64) *models.Snapshot {
	snap := models.NewSnapshot(id, created)
	snap.TotalSeries = 100 * scale
	snap.Entries[models.KindMetrics] = []models.Entry{
		{Name: "http_requests_total", Value: 60 * scale},
		{Name: "up", Value: 40 * scale},
	}
	snap.Entries[models.KindLabels] = []models.Entry{
		{Name: "instance", Value: 100 * scale},
		{Name: "job", Value: 100 * scale},
	}
	snap.Entries[models.KindLabelValues] = []models.Entry{
		{Name: "instance", Value: 10 * scale},
		{Name: "job", Value: 2},
	}
	snap.Entries[models.KindPairs] = []models.Entry{
		{Name: "job=api", Value: 70 * scale},
		{Name: "job=db", Value: 30 * scale},
	}
	return snap
}

// Run executes the conformance suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("SaveAndGet", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		created := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
		require.NoError(t, s.SaveSnapshot(ctx, Snapshot("baseline", created, 1)))

		got, err := s.GetSnapshot(ctx, "baseline")
		require.NoError(t, err)
		assert.Equal(t, "baseline", got.ID)
		assert.True(t, created.Equal(got.Created))
		assert.Equal(t, int64(100), got.TotalSeries)
		assert.Equal(t, int64(60), got.Lookup(models.KindMetrics)["http_requests_total"])
		assert.Equal(t, int64(30), got.Lookup(models.KindPairs)["job=db"])
		assert.Len(t, got.Entries[models.KindLabelValues], 2)
	})

	t.Run("DuplicateRejected", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.SaveSnapshot(ctx, Snapshot("dup", time.Now(), 1)))
		err := s.SaveSnapshot(ctx, Snapshot("dup", time.Now(), 2))
		assert.ErrorIs(t, err, models.ErrSnapshotExists)
	})

	t.Run("InvalidID", func(t *testing.T) {
		s := newStore(t)
		err := s.SaveSnapshot(context.Background(), Snapshot("Not Valid", time.Now(), 1))
		assert.ErrorIs(t, err, models.ErrInvalidSnapshotID)
	})

	t.Run("NotFound", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		_, err := s.GetSnapshot(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.ErrorIs(t, s.DeleteSnapshot(ctx, "missing"), models.ErrSnapshotNotFound)
	})

	t.Run("ListOrderAndDelete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.SaveSnapshot(ctx, Snapshot("late", base.Add(2*time.Hour), 1)))
		require.NoError(t, s.SaveSnapshot(ctx, Snapshot("auto-10", base, 1)))
		require.NoError(t, s.SaveSnapshot(ctx, Snapshot("auto-9", base, 1)))

		list, err := s.ListSnapshots(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "auto-9", list[0].ID)
		assert.Equal(t, "auto-10", list[1].ID)
		assert.Equal(t, "late", list[2].ID)
		assert.Equal(t, 2, list[2].Counts[models.KindMetrics])
		assert.Equal(t, int64(100), list[2].TotalSeries)

		require.NoError(t, s.DeleteSnapshot(ctx, "auto-10"))
		list, err = s.ListSnapshots(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("Usage", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.RecordUsage(ctx, []string{"up", "http_requests_total"}, 1000))
		require.NoError(t, s.RecordUsage(ctx, []string{"up"}, 2000))
		// An older timestamp still counts but does not move the timestamp back.
		require.NoError(t, s.RecordUsage(ctx, []string{"up", ""}, 1500))

		usage, err := s.ListUsage(ctx)
		require.NoError(t, err)
		require.Len(t, usage, 2)
		assert.Equal(t, models.Usage{Name: "up", RequestsCount: 3, LastRequestTimestamp: 2000}, usage["up"])
		assert.Equal(t, int64(1), usage["http_requests_total"].RequestsCount)
	})

	t.Run("Clear", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.SaveSnapshot(ctx, Snapshot("x", time.Now(), 1)))
		require.NoError(t, s.RecordUsage(ctx, []string{"up"}, 1))
		require.NoError(t, s.Clear(ctx))

		list, err := s.ListSnapshots(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
		usage, err := s.ListUsage(ctx)
		require.NoError(t, err)
		assert.Empty(t, usage)
	})
}
