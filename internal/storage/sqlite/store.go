// Package sqlite provides a SQLite-backed storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fidde/cardinality_explorer/pkg/models"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.up.sql
var migrationSQL string

// ErrClosed is returned by writes issued after Close.
var ErrClosed = errors.New("store is closed")

// Store is a SQLite-backed storage for snapshots and usage stats.
type Store struct {
	db *sql.DB

	// Batch writer for usage updates
	writeCh   chan writeOp
	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// closeMu makes queueing and closing mutually exclusive, so every queued
	// op is seen by the writer's final drain.
	closeMu sync.RWMutex
	closed  bool
}

// writeOp is a usage update waiting to be batched.
type writeOp struct {
	names     []string
	timestamp int64
	done      chan error
}

// Config holds SQLite store configuration.
type Config struct {
	DBPath        string
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns default SQLite configuration.
func DefaultConfig(dbPath string) Config {
	return Config{
		DBPath:        dbPath,
		BatchSize:     100,
		FlushInterval: 100 * time.Millisecond,
	}
}

// New opens (or creates) the database and starts the batch writer.
func New(cfg Config) (*Store, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Per-connection pragmas go into the DSN so every pooled connection gets them.
	dsn := "file:" + cfg.DBPath + "?" + url.Values{
		"_pragma": []string{"busy_timeout(5000)", "foreign_keys(1)"},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(migrationSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	store := &Store{
		db:      db,
		writeCh: make(chan writeOp, 1000),
		closeCh: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.batchWriter(cfg.BatchSize, cfg.FlushInterval)

	return store, nil
}

// DB exposes the underlying handle for ad-hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// batchWriter runs in a goroutine and batches usage updates.
func (s *Store) batchWriter(batchSize int, flushInterval time.Duration) {
	defer s.wg.Done()

	if flushInterval <= 0 {
		flushInterval = 100 * time.Millisecond
	}

	batch := make([]writeOp, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		err := s.executeBatch(batch)
		for i := range batch {
			batch[i].done <- err
			close(batch[i].done)
		}

		batch = batch[:0]
	}

	for {
		select {
		case op := <-s.writeCh:
			batch = append(batch, op)
			if batchSize > 0 && len(batch) >= batchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-s.closeCh:
			// Drain remaining ops
			for {
				select {
				case op := <-s.writeCh:
					batch = append(batch, op)
				default:
					flush()
					return
				}
			}
		}
	}
}

// executeBatch applies a batch of usage updates in one transaction.
func (s *Store) executeBatch(batch []writeOp) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO metric_usage (name, requests_count, last_request_timestamp)
		VALUES (?, 1, ?)
		ON CONFLICT(name) DO UPDATE SET
			requests_count = requests_count + 1,
			last_request_timestamp = MAX(last_request_timestamp, excluded.last_request_timestamp)
	`)
	if err != nil {
		return fmt.Errorf("preparing usage upsert: %w", err)
	}
	defer stmt.Close()

	for _, op := range batch {
		for _, name := range op.names {
			if name == "" {
				continue
			}
			if _, err := stmt.Exec(name, op.timestamp); err != nil {
				return fmt.Errorf("upserting usage for %s: %w", name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// SaveSnapshot writes a snapshot and its entries in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		return errors.New("snapshot cannot be nil")
	}
	if err := models.ValidateSnapshotID(snap.ID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE id = ?`, snap.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking snapshot: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("snapshot %s: %w", snap.ID, models.ErrSnapshotExists)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, created_ns, total_series) VALUES (?, ?, ?)`,
		snap.ID, snap.Created.UnixNano(), snap.TotalSeries)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshot_entries (snapshot_id, kind, name, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing entry insert: %w", err)
	}
	defer stmt.Close()

	for kind, entries := range snap.Entries {
		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, snap.ID, string(kind), e.Name, e.Value); err != nil {
				return fmt.Errorf("inserting %s entry %s: %w", kind, e.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetSnapshot loads a snapshot with its entries sorted by name.
func (s *Store) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	var createdNs, total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT created_ns, total_series FROM snapshots WHERE id = ?`, id).Scan(&createdNs, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, models.ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}

	snap := models.NewSnapshot(id, time.Unix(0, createdNs))
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

// ListSnapshots returns metadata of all snapshots, oldest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]models.SnapshotMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.created_ns, s.total_series, e.kind, COUNT(e.name)
		FROM snapshots s
		LEFT JOIN snapshot_entries e ON e.snapshot_id = s.id
		GROUP BY s.id, e.kind
	`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.SnapshotMetadata)
	for rows.Next() {
		var (
			id        string
			createdNs int64
			total     int64
			kind      sql.NullString
			count     int
		)
		if err := rows.Scan(&id, &createdNs, &total, &kind, &count); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}

		meta, ok := byID[id]
		if !ok {
			meta = &models.SnapshotMetadata{
				ID:          id,
				Created:     time.Unix(0, createdNs).UTC(),
				TotalSeries: total,
				Counts:      make(map[models.Kind]int),
			}
			byID[id] = meta
		}
		if kind.Valid {
			meta.Counts[models.Kind(kind.String)] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}

	list := make([]models.SnapshotMetadata, 0, len(byID))
	for _, meta := range byID {
		list = append(list, *meta)
	}
	models.SortSnapshotMetadata(list)

	return list, nil
}

// DeleteSnapshot removes a snapshot and its entries.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_entries WHERE snapshot_id = ?`, id); err != nil {
		return fmt.Errorf("deleting entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", id, models.ErrSnapshotNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RecordUsage queues a usage update and waits until it is committed.
func (s *Store) RecordUsage(ctx context.Context, names []string, timestamp int64) error {
	done := make(chan error, 1)

	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		return ErrClosed
	}
	select {
	case s.writeCh <- writeOp{names: names, timestamp: timestamp, done: done}:
		s.closeMu.RUnlock()
	case <-ctx.Done():
		s.closeMu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListUsage returns usage stats keyed by metric name.
func (s *Store) ListUsage(ctx context.Context) (map[string]models.Usage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, requests_count, last_request_timestamp FROM metric_usage`)
	if err != nil {
		return nil, fmt.Errorf("listing usage: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.Usage)
	for rows.Next() {
		var u models.Usage
		if err := rows.Scan(&u.Name, &u.RequestsCount, &u.LastRequestTimestamp); err != nil {
			return nil, fmt.Errorf("scanning usage: %w", err)
		}
		out[u.Name] = u
	}
	return out, rows.Err()
}

// Clear removes all stored data.
func (s *Store) Clear(ctx context.Context) error {
	tables := []string{
		"snapshot_entries",
		"snapshots",
		"metric_usage",
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close stops the batch writer and closes the database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closeMu.Lock()
		s.closed = true
		close(s.closeCh)
		s.closeMu.Unlock()

		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
