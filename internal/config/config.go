// Package config loads the server configuration from an optional YAML file
// and environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fidde/cardinality_explorer/internal/collector"
	"github.com/fidde/cardinality_explorer/internal/explorer"
	"github.com/fidde/cardinality_explorer/internal/storage"
	"github.com/fidde/cardinality_explorer/pkg/models"
	"github.com/fidde/cardinality_explorer/pkg/table"
)

// ErrInvalid is returned when a configuration value is out of range.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   storage.Config  `yaml:"storage"`
	Collector CollectorConfig `yaml:"collector"`
	Snapshots SnapshotConfig  `yaml:"snapshots"`
	Table     TableConfig     `yaml:"table"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds listen addresses. An empty address disables the listener.
type ServerConfig struct {
	OTLPHTTPAddr string `yaml:"otlp_http_addr"`
	OTLPGRPCAddr string `yaml:"otlp_grpc_addr"`
	APIAddr      string `yaml:"api_addr"`
	PprofAddr    string `yaml:"pprof_addr"`
}

// CollectorConfig sizes the live cardinality sketches.
type CollectorConfig struct {
	Precision     uint8 `yaml:"precision"`
	PairPrecision uint8 `yaml:"pair_precision"`
	MaxPairs      int   `yaml:"max_pairs"`
}

// SnapshotConfig controls automatic snapshots and retention.
type SnapshotConfig struct {
	// Interval between automatic snapshots. Zero disables them.
	Interval time.Duration `yaml:"interval"`
	// MaxSnapshots is the number of stored snapshots kept. Zero keeps all.
	MaxSnapshots int `yaml:"max_snapshots"`
}

// SortConfig is a default sort in its text form.
type SortConfig struct {
	OrderBy string `yaml:"order_by"`
	Order   string `yaml:"order"`
}

// TableConfig holds per-kind table defaults, keyed by kind name.
type TableConfig struct {
	DefaultSort map[string]SortConfig `yaml:"default_sort"`
}

// LogConfig selects the log level and output format (text or json).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	coll := collector.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			OTLPHTTPAddr: "0.0.0.0:4318",
			OTLPGRPCAddr: "0.0.0.0:4317",
			APIAddr:      "0.0.0.0:8080",
			PprofAddr:    "localhost:6060",
		},
		Storage: storage.DefaultConfig(),
		Collector: CollectorConfig{
			Precision:     coll.Precision,
			PairPrecision: coll.PairPrecision,
			MaxPairs:      coll.MaxPairs,
		},
		Snapshots: SnapshotConfig{
			Interval:     time.Hour,
			MaxSnapshots: explorer.DefaultConfig().MaxSnapshots,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config YAML: %w", err)
	}
	return nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() error {
	c.Server.OTLPHTTPAddr = getEnv("OTLP_HTTP_ADDR", c.Server.OTLPHTTPAddr)
	c.Server.OTLPGRPCAddr = getEnv("OTLP_GRPC_ADDR", c.Server.OTLPGRPCAddr)
	c.Server.APIAddr = getEnv("API_ADDR", c.Server.APIAddr)
	c.Server.PprofAddr = getEnv("PPROF_ADDR", c.Server.PprofAddr)

	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.SQLitePath = getEnv("SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.ClickHouseAddr = getEnv("CLICKHOUSE_ADDR", c.Storage.ClickHouseAddr)
	c.Storage.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", c.Storage.ClickHouseDatabase)
	c.Storage.ClickHouseUser = getEnv("CLICKHOUSE_USER", c.Storage.ClickHouseUser)
	c.Storage.ClickHousePassword = getEnv("CLICKHOUSE_PASSWORD", c.Storage.ClickHousePassword)
	c.Storage.Secondary = getEnv("DUAL_SECONDARY", c.Storage.Secondary)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	var err error
	if c.Snapshots.Interval, err = getEnvDuration("SNAPSHOT_INTERVAL", c.Snapshots.Interval); err != nil {
		return err
	}
	if c.Snapshots.MaxSnapshots, err = getEnvInt("MAX_SNAPSHOTS", c.Snapshots.MaxSnapshots); err != nil {
		return err
	}
	if c.Collector.MaxPairs, err = getEnvInt("MAX_PAIRS", c.Collector.MaxPairs); err != nil {
		return err
	}
	precision, err := getEnvInt("HLL_PRECISION", int(c.Collector.Precision))
	if err != nil {
		return err
	}
	if precision < 0 || precision > 255 {
		return fmt.Errorf("%w: HLL_PRECISION %d", ErrInvalid, precision)
	}
	c.Collector.Precision = uint8(precision)
	return nil
}

// Validate checks ranges and parses the default sorts.
func (c *Config) Validate() error {
	for name, p := range map[string]uint8{
		"collector.precision":      c.Collector.Precision,
		"collector.pair_precision": c.Collector.PairPrecision,
	} {
		if p < 4 || p > 18 {
			return fmt.Errorf("%w: %s must be between 4 and 18, got %d", ErrInvalid, name, p)
		}
	}
	if c.Collector.MaxPairs < 0 {
		return fmt.Errorf("%w: collector.max_pairs must not be negative", ErrInvalid)
	}
	if c.Snapshots.Interval < 0 {
		return fmt.Errorf("%w: snapshots.interval must not be negative", ErrInvalid)
	}
	if c.Snapshots.MaxSnapshots < 0 {
		return fmt.Errorf("%w: snapshots.max_snapshots must not be negative", ErrInvalid)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalid, c.Log.Format)
	}
	if _, err := c.defaultSorts(); err != nil {
		return err
	}
	return nil
}

// CollectorConfig returns the collector configuration.
func (c *Config) CollectorConfig() collector.Config {
	return collector.Config{
		Precision:     c.Collector.Precision,
		PairPrecision: c.Collector.PairPrecision,
		MaxPairs:      c.Collector.MaxPairs,
	}
}

// ExplorerConfig returns the explorer configuration.
func (c *Config) ExplorerConfig() (explorer.Config, error) {
	sorts, err := c.defaultSorts()
	if err != nil {
		return explorer.Config{}, err
	}
	return explorer.Config{
		MaxSnapshots: c.Snapshots.MaxSnapshots,
		DefaultSort:  sorts,
	}, nil
}

// defaultSorts parses the per-kind default sorts. A missing order means
// descending. The column must be sortable for the kind.
func (c *Config) defaultSorts() (map[models.Kind]table.SortState, error) {
	out := make(map[models.Kind]table.SortState, len(c.Table.DefaultSort))
	for name, sc := range c.Table.DefaultSort {
		kind, err := models.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("table.default_sort: %w", err)
		}
		col, err := table.ParseColumn(sc.OrderBy)
		if err != nil {
			return nil, fmt.Errorf("table.default_sort.%s: %w", name, err)
		}
		if !explorer.Headers(kind).Sortable(col) {
			return nil, fmt.Errorf("%w: table.default_sort.%s: column %s is not sortable", ErrInvalid, name, col)
		}
		order := table.Descending
		if sc.Order != "" {
			if order, err = table.ParseOrder(sc.Order); err != nil {
				return nil, fmt.Errorf("table.default_sort.%s: %w", name, err)
			}
		}
		out[kind] = table.SortState{OrderBy: col, Order: order}
	}
	return out, nil
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalid, s)
	}
	return level, nil
}

// getEnv gets an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default fallback.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, value)
	}
	return n, nil
}

// getEnvDuration gets a duration environment variable with a default fallback.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalid, key, value)
	}
	return d, nil
}

// GetEnvBool gets a boolean environment variable with a default fallback.
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
