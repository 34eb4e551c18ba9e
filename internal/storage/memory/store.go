// Package memory provides an in-memory storage implementation.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fidde/cardinality_explorer/pkg/models"
)

// Store is an in-memory storage for snapshots and usage stats.
type Store struct {
	// Snapshots storage: snapshot id -> snapshot
	snapshots   map[string]*models.Snapshot
	snapshotsmu sync.RWMutex

	// Usage storage: metric name -> usage
	usage   map[string]models.Usage
	usagemu sync.RWMutex
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		snapshots: make(map[string]*models.Snapshot),
		usage:     make(map[string]models.Usage),
	}
}

// SaveSnapshot stores a snapshot. Existing ids are rejected.
func (s *Store) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		return errors.New("snapshot cannot be nil")
	}
	if err := models.ValidateSnapshotID(snap.ID); err != nil {
		return err
	}

	s.snapshotsmu.Lock()
	defer s.snapshotsmu.Unlock()

	if _, exists := s.snapshots[snap.ID]; exists {
		return fmt.Errorf("snapshot %s: %w", snap.ID, models.ErrSnapshotExists)
	}

	s.snapshots[snap.ID] = cloneSnapshot(snap)
	return nil
}

// GetSnapshot retrieves a snapshot by id.
func (s *Store) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	s.snapshotsmu.RLock()
	defer s.snapshotsmu.RUnlock()

	snap, exists := s.snapshots[id]
	if !exists {
		return nil, fmt.Errorf("%s: %w", id, models.ErrSnapshotNotFound)
	}

	return cloneSnapshot(snap), nil
}

// ListSnapshots returns metadata of all snapshots, oldest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]models.SnapshotMetadata, error) {
	s.snapshotsmu.RLock()
	defer s.snapshotsmu.RUnlock()

	list := make([]models.SnapshotMetadata, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		list = append(list, snap.Metadata())
	}
	models.SortSnapshotMetadata(list)

	return list, nil
}

// DeleteSnapshot removes a snapshot.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	s.snapshotsmu.Lock()
	defer s.snapshotsmu.Unlock()

	if _, exists := s.snapshots[id]; !exists {
		return fmt.Errorf("%s: %w", id, models.ErrSnapshotNotFound)
	}
	delete(s.snapshots, id)
	return nil
}

// RecordUsage increments the request counter of every name.
func (s *Store) RecordUsage(ctx context.Context, names []string, timestamp int64) error {
	s.usagemu.Lock()
	defer s.usagemu.Unlock()

	for _, name := range names {
		if name == "" {
			continue
		}
		u := s.usage[name]
		u.Name = name
		u.RequestsCount++
		if timestamp > u.LastRequestTimestamp {
			u.LastRequestTimestamp = timestamp
		}
		s.usage[name] = u
	}
	return nil
}

// ListUsage returns usage stats keyed by metric name.
func (s *Store) ListUsage(ctx context.Context) (map[string]models.Usage, error) {
	s.usagemu.RLock()
	defer s.usagemu.RUnlock()

	out := make(map[string]models.Usage, len(s.usage))
	for k, v := range s.usage {
		out[k] = v
	}
	return out, nil
}

// LoadUsage replaces the usage stats of the listed names, used to warm the
// store from a persistent backend.
func (s *Store) LoadUsage(ctx context.Context, usage []models.Usage) error {
	s.usagemu.Lock()
	defer s.usagemu.Unlock()

	for _, u := range usage {
		if u.Name == "" {
			continue
		}
		s.usage[u.Name] = u
	}
	return nil
}

// Clear removes all data.
func (s *Store) Clear(ctx context.Context) error {
	s.snapshotsmu.Lock()
	s.snapshots = make(map[string]*models.Snapshot)
	s.snapshotsmu.Unlock()

	s.usagemu.Lock()
	s.usage = make(map[string]models.Usage)
	s.usagemu.Unlock()

	return nil
}

// Close is a no-op for in-memory storage.
func (s *Store) Close() error {
	return nil
}

// cloneSnapshot copies entry slices so callers cannot mutate stored data.
func cloneSnapshot(snap *models.Snapshot) *models.Snapshot {
	out := &models.Snapshot{
		ID:          snap.ID,
		Created:     snap.Created,
		TotalSeries: snap.TotalSeries,
		Entries:     make(map[models.Kind][]models.Entry, len(snap.Entries)),
	}
	for k, entries := range snap.Entries {
		out.Entries[k] = append([]models.Entry(nil), entries...)
	}
	return out
}
