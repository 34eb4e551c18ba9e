// Package dual mirrors writes to a fast primary and a durable secondary
// backend.
package dual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fidde/cardinality_explorer/pkg/models"
)

// Backend is the storage contract both sides of the dual store satisfy.
type Backend interface {
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]models.SnapshotMetadata, error)
	DeleteSnapshot(ctx context.Context, id string) error
	RecordUsage(ctx context.Context, names []string, timestamp int64) error
	ListUsage(ctx context.Context) (map[string]models.Usage, error)
	Clear(ctx context.Context) error
	Close() error
}

// ErrClosed is returned by writes issued after Close.
var ErrClosed = errors.New("dual store is closed")

// queueSize bounds the secondary write queue. Writers block when it is full.
const queueSize = 1024

// usageLoader is implemented by primaries that can be seeded with usage
// stats read from the secondary.
type usageLoader interface {
	LoadUsage(ctx context.Context, usage []models.Usage) error
}

// Store wraps two storage backends.
// Writes go to both primary and secondary.
// Reads come from primary only.
// Secondary writes are applied by a single worker in the order the primary
// accepted them.
type Store struct {
	primary   Backend
	secondary Backend
	logger    *slog.Logger

	// mu orders enqueueing with the primary write and guards closed.
	mu     sync.Mutex
	closed bool
	queue  chan secondaryOp

	// pending counts queued secondary writes not yet applied
	pending    sync.WaitGroup
	workerDone chan struct{}
	closeOnce  sync.Once
}

type secondaryOp struct {
	name  string
	ctx   context.Context
	write func(context.Context) error
}

// Config holds dual store configuration.
type Config struct {
	Primary   Backend
	Secondary Backend
	Logger    *slog.Logger
}

// New creates a new dual-write store.
func New(cfg Config) *Store {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Store{
		primary:    cfg.Primary,
		secondary:  cfg.Secondary,
		logger:     cfg.Logger,
		queue:      make(chan secondaryOp, queueSize),
		workerDone: make(chan struct{}),
	}
	go s.drain()
	return s
}

// drain applies queued secondary writes one at a time.
func (s *Store) drain() {
	defer close(s.workerDone)
	for op := range s.queue {
		if err := op.write(op.ctx); err != nil {
			s.logger.Error("dual-write to secondary failed",
				"operation", op.name,
				"error", err,
			)
		}
		s.pending.Done()
	}
}

// Warm copies snapshots and usage stats from the secondary into the primary.
// Call it once before serving reads.
func (s *Store) Warm(ctx context.Context) error {
	list, err := s.secondary.ListSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("listing secondary snapshots: %w", err)
	}

	for _, meta := range list {
		snap, err := s.secondary.GetSnapshot(ctx, meta.ID)
		if err != nil {
			return fmt.Errorf("loading snapshot %s: %w", meta.ID, err)
		}
		if err := s.primary.SaveSnapshot(ctx, snap); err != nil && !errors.Is(err, models.ErrSnapshotExists) {
			return fmt.Errorf("warming snapshot %s: %w", meta.ID, err)
		}
	}

	loader, ok := s.primary.(usageLoader)
	if !ok {
		s.logger.Info("warmed primary from secondary", "snapshots", len(list))
		return nil
	}

	usage, err := s.secondary.ListUsage(ctx)
	if err != nil {
		return fmt.Errorf("listing secondary usage: %w", err)
	}
	rows := make([]models.Usage, 0, len(usage))
	for _, u := range usage {
		rows = append(rows, u)
	}
	if err := loader.LoadUsage(ctx, rows); err != nil {
		return fmt.Errorf("warming usage: %w", err)
	}

	s.logger.Info("warmed primary from secondary", "snapshots", len(list), "usage", len(rows))
	return nil
}

// dualWrite performs a write to both backends.
// Errors from secondary are logged but don't fail the operation.
func (s *Store) dualWrite(ctx context.Context, op string, primaryWrite, secondaryWrite func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	// Write to primary (this determines success/failure)
	if err := primaryWrite(ctx); err != nil {
		return err
	}

	// The request context may be cancelled once the caller returns.
	bg := context.WithoutCancel(ctx)

	s.pending.Add(1)
	s.queue <- secondaryOp{name: op, ctx: bg, write: secondaryWrite}
	return nil
}

// Wait blocks until all in-flight secondary writes finished.
func (s *Store) Wait() {
	s.pending.Wait()
}

// SaveSnapshot stores a snapshot in both backends.
func (s *Store) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	return s.dualWrite(ctx, "SaveSnapshot",
		func(ctx context.Context) error { return s.primary.SaveSnapshot(ctx, snap) },
		func(ctx context.Context) error { return s.secondary.SaveSnapshot(ctx, snap) },
	)
}

// GetSnapshot retrieves a snapshot from primary backend only.
func (s *Store) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	return s.primary.GetSnapshot(ctx, id)
}

// ListSnapshots lists snapshots from primary backend only.
func (s *Store) ListSnapshots(ctx context.Context) ([]models.SnapshotMetadata, error) {
	return s.primary.ListSnapshots(ctx)
}

// DeleteSnapshot deletes a snapshot from both backends.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	return s.dualWrite(ctx, "DeleteSnapshot",
		func(ctx context.Context) error { return s.primary.DeleteSnapshot(ctx, id) },
		func(ctx context.Context) error { return s.secondary.DeleteSnapshot(ctx, id) },
	)
}

// RecordUsage records usage in both backends.
func (s *Store) RecordUsage(ctx context.Context, names []string, timestamp int64) error {
	return s.dualWrite(ctx, "RecordUsage",
		func(ctx context.Context) error { return s.primary.RecordUsage(ctx, names, timestamp) },
		func(ctx context.Context) error { return s.secondary.RecordUsage(ctx, names, timestamp) },
	)
}

// ListUsage lists usage stats from primary backend only.
func (s *Store) ListUsage(ctx context.Context) (map[string]models.Usage, error) {
	return s.primary.ListUsage(ctx)
}

// Clear clears both backends.
func (s *Store) Clear(ctx context.Context) error {
	s.pending.Wait()

	// Clear primary first
	if err := s.primary.Clear(ctx); err != nil {
		return fmt.Errorf("clear primary: %w", err)
	}

	// Clear secondary (best effort)
	if err := s.secondary.Clear(ctx); err != nil {
		s.logger.Error("failed to clear secondary backend",
			"error", err,
		)
	}

	return nil
}

// Close waits for pending secondary writes and closes both backends.
func (s *Store) Close() error {
	var closed bool
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
		closed = true
	})
	<-s.workerDone
	if !closed {
		return nil
	}

	primaryErr := s.primary.Close()
	secondaryErr := s.secondary.Close()

	if primaryErr != nil {
		return fmt.Errorf("close primary: %w", primaryErr)
	}
	if secondaryErr != nil {
		return fmt.Errorf("close secondary: %w", secondaryErr)
	}

	return nil
}
