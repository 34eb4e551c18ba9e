package explorer

import (
	"context"
	"fmt"
	"time"

	"github.com/fidde/cardinality_explorer/pkg/models"
)

// Snapshot triggers, used as metric labels.
const (
	triggerManual = "manual"
	triggerAuto   = "auto"
)

// TakeSnapshot freezes the live state under id and stores it. An empty id
// is replaced by manual-<unix seconds>. The oldest snapshots beyond
// MaxSnapshots are deleted afterwards.
func (s *Service) TakeSnapshot(ctx context.Context, id string) (models.SnapshotMetadata, error) {
	return s.takeSnapshot(ctx, id, triggerManual)
}

func (s *Service) takeSnapshot(ctx context.Context, id, trigger string) (models.SnapshotMetadata, error) {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	now := s.now()
	if id == "" {
		id = fmt.Sprintf("%s-%d", trigger, now.Unix())
	}
	if id == LiveSnapshotID {
		return models.SnapshotMetadata{}, fmt.Errorf("%w: %q is reserved", models.ErrInvalidSnapshotID, id)
	}
	if err := models.ValidateSnapshotID(id); err != nil {
		return models.SnapshotMetadata{}, err
	}

	snap := s.source.Snapshot(id, now)
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return models.SnapshotMetadata{}, fmt.Errorf("saving snapshot %s: %w", id, err)
	}
	snapshotsTotal.WithLabelValues(trigger).Inc()

	s.logger.Info("snapshot taken",
		"id", id,
		"trigger", trigger,
		"total_series", snap.TotalSeries,
	)

	if err := s.prune(ctx); err != nil {
		s.logger.Warn("snapshot retention failed", "error", err)
	}

	return snap.Metadata(), nil
}

// prune deletes the oldest snapshots beyond MaxSnapshots.
func (s *Service) prune(ctx context.Context) error {
	if s.cfg.MaxSnapshots <= 0 {
		return nil
	}

	list, err := s.store.ListSnapshots(ctx)
	if err != nil {
		return err
	}

	excess := len(list) - s.cfg.MaxSnapshots
	for i := 0; i < excess; i++ {
		if err := s.store.DeleteSnapshot(ctx, list[i].ID); err != nil {
			return fmt.Errorf("deleting %s: %w", list[i].ID, err)
		}
		s.logger.Debug("snapshot pruned", "id", list[i].ID)
	}
	return nil
}

// RunSnapshotter takes an auto-<unix seconds> snapshot every interval until
// ctx is cancelled.
func (s *Service) RunSnapshotter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("snapshotter started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("snapshotter stopped")
			return
		case <-ticker.C:
			if _, err := s.takeSnapshot(ctx, "", triggerAuto); err != nil {
				s.logger.Error("automatic snapshot failed", "error", err)
			}
		}
	}
}

// GetSnapshot returns a stored snapshot, or the live state for "live".
func (s *Service) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	return s.currentSnapshot(ctx, id)
}

// ListSnapshots returns stored snapshot metadata, oldest first.
func (s *Service) ListSnapshots(ctx context.Context) ([]models.SnapshotMetadata, error) {
	return s.store.ListSnapshots(ctx)
}

// DeleteSnapshot removes a stored snapshot.
func (s *Service) DeleteSnapshot(ctx context.Context, id string) error {
	return s.store.DeleteSnapshot(ctx, id)
}

// RecordUsage counts one query referencing each metric name. A zero
// timestamp means now.
func (s *Service) RecordUsage(ctx context.Context, names []string, timestamp int64) error {
	if timestamp == 0 {
		timestamp = s.now().Unix()
	}
	return s.store.RecordUsage(ctx, names, timestamp)
}

// Clear drops live state and all stored data.
func (s *Service) Clear(ctx context.Context) error {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	s.source.Reset()
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing storage: %w", err)
	}
	s.logger.Info("all data cleared")
	return nil
}
