// Package clickhouse provides a ClickHouse-backed storage implementation.
package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fidde/cardinality_explorer/pkg/models"
)

// Store implements the storage.Storage interface using ClickHouse
type Store struct {
	db     *sql.DB
	buffer *UsageBuffer
	logger *slog.Logger
}

// NewStore connects to ClickHouse, initializes the schema and starts the
// usage buffer.
func NewStore(ctx context.Context, config *ConnectionConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := Connect(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to ClickHouse: %w", err)
	}

	if err := InitializeSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return newStore(db, config, logger), nil
}

func newStore(db *sql.DB, config *ConnectionConfig, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		buffer: NewUsageBuffer(db, config, logger),
		logger: logger,
	}
}

// Snapshot operations

func (s *Store) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		return errors.New("snapshot cannot be nil")
	}
	if err := models.ValidateSnapshotID(snap.ID); err != nil {
		return err
	}

	exists, err := s.snapshotExists(ctx, snap.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("snapshot %s: %w", snap.ID, models.ErrSnapshotExists)
	}

	// Entries first: a snapshot row without its entries would be listed.
	if err := s.insertEntries(ctx, snap); err != nil {
		return fmt.Errorf("inserting entries: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO snapshots (id, created, total_series) VALUES (?, ?, ?)",
		snap.ID, snap.Created, snap.TotalSeries)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	return nil
}

func (s *Store) insertEntries(ctx context.Context, snap *models.Snapshot) error {
	total := 0
	for _, entries := range snap.Entries {
		total += len(entries)
	}
	if total == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO snapshot_entries (snapshot_id, kind, name, value)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, kind := range models.Kinds {
		for _, e := range snap.Entries[kind] {
			if _, err := stmt.ExecContext(ctx, snap.ID, string(kind), e.Name, e.Value); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (s *Store) snapshotExists(ctx context.Context, id string) (bool, error) {
	var count uint64
	err := s.db.QueryRowContext(ctx, "SELECT count() FROM snapshots WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking snapshot %s: %w", id, err)
	}
	return count > 0, nil
}

func (s *Store) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	var (
		created time.Time
		total   int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT created, total_series FROM snapshots FINAL WHERE id = ?", id).Scan(&created, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, models.ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}

	snap := models.NewSnapshot(id, created)
	snap.TotalSeries = total

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, name, value
		FROM snapshot_entries
		WHERE snapshot_id = ?
		ORDER BY kind, name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var e models.Entry
		if err := rows.Scan(&kind, &e.Name, &e.Value); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		snap.Entries[models.Kind(kind)] = append(snap.Entries[models.Kind(kind)], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}

	return snap, nil
}

func (s *Store) ListSnapshots(ctx context.Context) ([]models.SnapshotMetadata, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, created, total_series FROM snapshots FINAL")
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var list []models.SnapshotMetadata
	index := make(map[string]int)
	for rows.Next() {
		meta := models.SnapshotMetadata{Counts: make(map[models.Kind]int)}
		if err := rows.Scan(&meta.ID, &meta.Created, &meta.TotalSeries); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		meta.Created = meta.Created.UTC()
		index[meta.ID] = len(list)
		list = append(list, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}

	counts, err := s.db.QueryContext(ctx, `
		SELECT snapshot_id, kind, count()
		FROM snapshot_entries
		GROUP BY snapshot_id, kind
	`)
	if err != nil {
		return nil, fmt.Errorf("counting entries: %w", err)
	}
	defer counts.Close()

	for counts.Next() {
		var (
			id, kind string
			n        uint64
		)
		if err := counts.Scan(&id, &kind, &n); err != nil {
			return nil, fmt.Errorf("scanning entry count: %w", err)
		}
		if i, ok := index[id]; ok {
			list[i].Counts[models.Kind(kind)] = int(n)
		}
	}
	if err := counts.Err(); err != nil {
		return nil, fmt.Errorf("iterating entry counts: %w", err)
	}

	models.SortSnapshotMetadata(list)
	return list, nil
}

func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	exists, err := s.snapshotExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", id, models.ErrSnapshotNotFound)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM snapshot_entries WHERE snapshot_id = ?", id); err != nil {
		return fmt.Errorf("deleting entries: %w", err)
	}
	return nil
}

// Usage operations

func (s *Store) RecordUsage(ctx context.Context, names []string, timestamp int64) error {
	rows := make([]UsageRow, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		rows = append(rows, UsageRow{Name: name, Timestamp: timestamp})
	}
	if len(rows) == 0 {
		return nil
	}
	return s.buffer.Add(ctx, rows...)
}

func (s *Store) ListUsage(ctx context.Context) (map[string]models.Usage, error) {
	if err := s.buffer.Flush(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, count(), max(timestamp)
		FROM metric_usage_events
		GROUP BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing usage: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.Usage)
	for rows.Next() {
		var (
			u     models.Usage
			count uint64
		)
		if err := rows.Scan(&u.Name, &count, &u.LastRequestTimestamp); err != nil {
			return nil, fmt.Errorf("scanning usage: %w", err)
		}
		u.RequestsCount = int64(count)
		out[u.Name] = u
	}
	return out, rows.Err()
}

// Clear truncates all data tables
func (s *Store) Clear(ctx context.Context) error {
	s.buffer.Discard()

	tables := []string{"snapshots", "snapshot_entries", "metric_usage_events"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "TRUNCATE TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("truncating %s: %w", table, err)
		}
	}
	return nil
}

// Close flushes pending usage and closes the connection
func (s *Store) Close() error {
	if err := s.buffer.Close(context.Background()); err != nil {
		s.logger.Error("error closing usage buffer", "error", err)
	}
	return s.db.Close()
}
