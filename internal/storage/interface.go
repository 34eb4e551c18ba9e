// Package storage defines the storage interface for cardinality snapshots
// and metric usage statistics.
package storage

import (
	"context"

	"github.com/fidde/cardinality_explorer/pkg/models"
)

// Storage persists snapshots and usage statistics.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Snapshot operations
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]models.SnapshotMetadata, error)
	DeleteSnapshot(ctx context.Context, id string) error

	// Usage operations
	RecordUsage(ctx context.Context, names []string, timestamp int64) error
	ListUsage(ctx context.Context) (map[string]models.Usage, error)

	// Clear all data
	Clear(ctx context.Context) error

	// Close the storage (for cleanup, e.g., DB connections)
	Close() error
}
