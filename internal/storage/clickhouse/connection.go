package clickhouse

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/sethvargo/go-retry"
)

const (
	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 5
	defaultDialTimeout  = 10 * time.Second
	defaultMaxRetries   = 3
	defaultRetryDelay   = 1 * time.Second
)

// ConnectionConfig holds ClickHouse connection parameters
type ConnectionConfig struct {
	Addr          string
	Database      string
	Username      string
	Password      string
	MaxOpenConns  int
	MaxIdleConns  int
	DialTimeout   time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	TLS           *tls.Config
	BatchSize     int           // Usage events buffered before flushing
	FlushInterval time.Duration // Max time between usage flushes
}

// DefaultConfig returns a connection config with sensible defaults
func DefaultConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Addr:          "localhost:9000",
		Database:      "default",
		Username:      "default",
		MaxOpenConns:  defaultMaxOpenConns,
		MaxIdleConns:  defaultMaxIdleConns,
		DialTimeout:   defaultDialTimeout,
		MaxRetries:    defaultMaxRetries,
		RetryDelay:    defaultRetryDelay,
		BatchSize:     defaultBatchSize,
		FlushInterval: defaultFlushInterval,
	}
}

// backoff returns the exponential retry policy for this config. The first
// attempt is not a retry, so MaxRetries of 1 means a single try.
func (c *ConnectionConfig) backoff() retry.Backoff {
	delay := c.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	attempts := c.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	return retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(delay))
}

// Connect opens a database/sql handle to ClickHouse and pings it with retries.
func Connect(ctx context.Context, config *ConnectionConfig) (*sql.DB, error) {
	if config == nil {
		config = DefaultConfig()
	}

	db := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{config.Addr},
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      config.DialTimeout,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		TLS:              config.TLS,
	})
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	err := retry.Do(ctx, config.backoff(), func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to ClickHouse after %d attempts: %w", config.MaxRetries, err)
	}

	return db, nil
}
