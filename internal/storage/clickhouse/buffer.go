package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultBatchSize     = 1000
	defaultFlushInterval = 5 * time.Second
	defaultShutdownWait  = 10 * time.Second
	insertTimeout        = 30 * time.Second
)

// UsageRow represents a row in the metric_usage_events table
type UsageRow struct {
	Name      string
	Timestamp int64
}

// UsageBuffer batches usage events and writes them to ClickHouse in bulk.
type UsageBuffer struct {
	db      *sql.DB
	backoff func() retry.Backoff

	mu   sync.Mutex
	rows []UsageRow

	// flushMu serializes inserts so a Flush observes every earlier Add.
	flushMu sync.Mutex

	batchSize     int
	flushInterval time.Duration
	shutdownWait  time.Duration

	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// NewUsageBuffer creates a buffer and starts its flush loop.
func NewUsageBuffer(db *sql.DB, config *ConnectionConfig, logger *slog.Logger) *UsageBuffer {
	if logger == nil {
		logger = slog.Default()
	}
	if config == nil {
		config = DefaultConfig()
	}

	b := &UsageBuffer{
		db:            db,
		backoff:       config.backoff,
		batchSize:     config.BatchSize,
		flushInterval: config.FlushInterval,
		shutdownWait:  defaultShutdownWait,
		stopCh:        make(chan struct{}),
		logger:        logger,
	}
	if b.batchSize <= 0 {
		b.batchSize = defaultBatchSize
	}
	if b.flushInterval <= 0 {
		b.flushInterval = defaultFlushInterval
	}

	b.wg.Add(1)
	go b.flushLoop()

	return b
}

// Add buffers usage rows, flushing when the batch is full.
func (b *UsageBuffer) Add(ctx context.Context, rows ...UsageRow) error {
	b.mu.Lock()
	b.rows = append(b.rows, rows...)
	full := len(b.rows) >= b.batchSize
	b.mu.Unlock()

	if full {
		return b.Flush(ctx)
	}
	return nil
}

// Pending returns the number of buffered rows.
func (b *UsageBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows)
}

// Discard drops buffered rows without writing them.
func (b *UsageBuffer) Discard() {
	b.mu.Lock()
	b.rows = nil
	b.mu.Unlock()
}

func (b *UsageBuffer) flushLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = b.Flush(context.Background())

		case <-b.stopCh:
			return
		}
	}
}

// Flush writes all buffered rows. Rows that fail to insert are dropped and
// the error is returned.
func (b *UsageBuffer) Flush(ctx context.Context) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	rows := b.rows
	b.rows = nil
	b.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	if err := b.insertUsage(ctx, rows); err != nil {
		b.logger.Error("failed to flush usage events",
			"error", err,
			"row_count", len(rows),
		)
		return err
	}

	b.logger.Debug("flushed usage events",
		"row_count", len(rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Close stops the flush loop and writes whatever is still buffered.
func (b *UsageBuffer) Close(ctx context.Context) error {
	var finalErr error

	b.closeOnce.Do(func() {
		close(b.stopCh)

		shutdownCtx, cancel := context.WithTimeout(ctx, b.shutdownWait)
		defer cancel()

		done := make(chan struct{})
		go func() {
			b.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-shutdownCtx.Done():
			b.logger.Warn("flush loop did not stop within timeout")
		}

		finalErr = b.Flush(shutdownCtx)
	})

	return finalErr
}

func (b *UsageBuffer) insertUsage(ctx context.Context, rows []UsageRow) error {
	err := retry.Do(ctx, b.backoff(), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, insertTimeout)
		defer cancel()

		if err := insertUsageBatch(ctx, b.db, rows); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("inserting usage events: %w", err)
	}
	return nil
}

// insertUsageBatch sends rows as one ClickHouse block. The std driver turns
// a prepared insert inside a transaction into a batch.
func insertUsageBatch(ctx context.Context, db *sql.DB, rows []UsageRow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO metric_usage_events (name, timestamp)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.Name, row.Timestamp); err != nil {
			return err
		}
	}

	return tx.Commit()
}
