package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const schemaVersion = "1.0.0"

// InitializeSchema creates all required tables if they don't exist
func InitializeSchema(ctx context.Context, db *sql.DB) error {
	// Create schema_version table first
	if _, err := db.ExecContext(ctx, schemaVersionTableDDL); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	currentVersion, err := getCurrentSchemaVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("checking schema version: %w", err)
	}

	if currentVersion != "" && currentVersion != schemaVersion {
		return fmt.Errorf("schema version mismatch: database has %s, code expects %s", currentVersion, schemaVersion)
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{"snapshots", snapshotsTableDDL},
		{"snapshot_entries", snapshotEntriesTableDDL},
		{"metric_usage_events", usageEventsTableDDL},
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table.ddl); err != nil {
			return fmt.Errorf("creating table %s: %w", table.name, err)
		}
	}

	if currentVersion == "" {
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("setting schema version: %w", err)
		}
	}

	return nil
}

func getCurrentSchemaVersion(ctx context.Context, db *sql.DB) (string, error) {
	var version string
	err := db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	return version, nil
}

const schemaVersionTableDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version String,
    applied_at DateTime64(3) DEFAULT now64(3)
) ENGINE = MergeTree()
ORDER BY applied_at
`

const snapshotsTableDDL = `
CREATE TABLE IF NOT EXISTS snapshots (
    id String,
    created DateTime64(9, 'UTC'),
    total_series Int64
) ENGINE = ReplacingMergeTree()
ORDER BY id
`

const snapshotEntriesTableDDL = `
CREATE TABLE IF NOT EXISTS snapshot_entries (
    snapshot_id String,
    kind LowCardinality(String),
    name String,
    value Int64
) ENGINE = MergeTree()
ORDER BY (snapshot_id, kind, name)
SETTINGS index_granularity = 8192
`

const usageEventsTableDDL = `
CREATE TABLE IF NOT EXISTS metric_usage_events (
    name String,
    timestamp Int64,
    recorded_at DateTime64(3) DEFAULT now64(3)
) ENGINE = MergeTree()
ORDER BY (name, timestamp)
SETTINGS index_granularity = 8192
`
