package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fidde/cardinality_explorer/internal/storage/clickhouse"
	"github.com/fidde/cardinality_explorer/internal/storage/dual"
	"github.com/fidde/cardinality_explorer/internal/storage/memory"
	"github.com/fidde/cardinality_explorer/internal/storage/sqlite"
)

// Backend names.
const (
	BackendMemory     = "memory"
	BackendSQLite     = "sqlite"
	BackendClickHouse = "clickhouse"
	BackendDual       = "dual"
)

// Config holds storage configuration.
type Config struct {
	// Backend selects the storage backend: memory, sqlite, clickhouse or dual.
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// ClickHouse-specific config
	ClickHouseAddr     string `yaml:"clickhouse_addr"`
	ClickHouseDatabase string `yaml:"clickhouse_database"`
	ClickHouseUser     string `yaml:"clickhouse_user"`
	ClickHousePassword string `yaml:"clickhouse_password"`

	// Secondary is the backend mirrored by the dual backend. The primary is
	// always in-memory.
	Secondary string `yaml:"secondary"`
}

// DefaultConfig returns default storage configuration.
func DefaultConfig() Config {
	return Config{
		Backend:            BackendMemory,
		SQLitePath:         "./data/cardinality.db",
		ClickHouseAddr:     "localhost:9000",
		ClickHouseDatabase: "default",
		ClickHouseUser:     "default",
		Secondary:          BackendSQLite,
	}
}

// NewStorage creates a storage implementation based on configuration.
func NewStorage(ctx context.Context, cfg Config, logger *slog.Logger) (Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendMemory:
		logger.Info("using in-memory storage")
		return memory.New(), nil

	case BackendSQLite:
		logger.Info("using SQLite storage", "path", cfg.SQLitePath)
		store, err := sqlite.New(sqlite.DefaultConfig(cfg.SQLitePath))
		if err != nil {
			return nil, fmt.Errorf("creating SQLite store: %w", err)
		}
		return store, nil

	case BackendClickHouse:
		logger.Info("using ClickHouse storage", "addr", cfg.ClickHouseAddr)

		chCfg := clickhouse.DefaultConfig()
		chCfg.Addr = cfg.ClickHouseAddr
		chCfg.Database = cfg.ClickHouseDatabase
		chCfg.Username = cfg.ClickHouseUser
		chCfg.Password = cfg.ClickHousePassword

		store, err := clickhouse.NewStore(ctx, chCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("creating ClickHouse store: %w", err)
		}
		return store, nil

	case BackendDual:
		if cfg.Secondary == BackendDual || cfg.Secondary == BackendMemory {
			return nil, fmt.Errorf("invalid dual secondary backend: %s", cfg.Secondary)
		}
		secondaryCfg := cfg
		secondaryCfg.Backend = cfg.Secondary
		secondary, err := NewStorage(ctx, secondaryCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("creating secondary store: %w", err)
		}
		logger.Info("using dual-write storage", "secondary", cfg.Secondary)
		store := dual.New(dual.Config{
			Primary:   memory.New(),
			Secondary: secondary,
			Logger:    logger,
		})
		if err := store.Warm(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("warming dual store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, sqlite, clickhouse, dual)", cfg.Backend)
	}
}
