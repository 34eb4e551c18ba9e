// Package main is the entry point for the cardinality explorer server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fidde/cardinality_explorer/internal/api"
	"github.com/fidde/cardinality_explorer/internal/collector"
	"github.com/fidde/cardinality_explorer/internal/config"
	"github.com/fidde/cardinality_explorer/internal/explorer"
	"github.com/fidde/cardinality_explorer/internal/receiver"
	"github.com/fidde/cardinality_explorer/internal/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "cardinality explorer: %v\n", err)
		os.Exit(1)
	}
}

// server is anything started in the background and shut down on exit.
type server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	logger.Info("starting cardinality explorer", "version", api.Version, "storage", cfg.Storage.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("error closing storage", "error", err)
		}
	}()

	explorerCfg, err := cfg.ExplorerConfig()
	if err != nil {
		return err
	}

	coll := collector.New(cfg.CollectorConfig())
	svc := explorer.New(store, coll, explorerCfg, logger)

	named := map[string]server{}
	if addr := cfg.Server.OTLPHTTPAddr; addr != "" {
		named["OTLP HTTP receiver"] = receiver.NewHTTPReceiver(addr, coll, logger)
	}
	if addr := cfg.Server.OTLPGRPCAddr; addr != "" {
		named["OTLP gRPC receiver"] = receiver.NewGRPCReceiver(addr, coll, logger)
	}
	if addr := cfg.Server.APIAddr; addr != "" {
		named["REST API server"] = api.NewServer(addr, svc, coll, logger)
	}

	errChan := make(chan error, len(named))
	for name, srv := range named {
		go func() {
			logger.Info("starting listener", "name", name)
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	if addr := cfg.Server.PprofAddr; addr != "" && config.GetEnvBool("ENABLE_PPROF", true) {
		go func() {
			logger.Info("starting pprof server", "addr", addr)
			pprof := &http.Server{Addr: addr, ReadHeaderTimeout: 10 * time.Second}
			if err := pprof.ListenAndServe(); err != nil {
				logger.Warn("pprof server error", "error", err)
			}
		}()
	}

	snapshotterDone := make(chan struct{})
	go func() {
		defer close(snapshotterDone)
		svc.RunSnapshotter(ctx, cfg.Snapshots.Interval)
	}()

	logger.Info("cardinality explorer started",
		"otlp_http", cfg.Server.OTLPHTTPAddr,
		"otlp_grpc", cfg.Server.OTLPGRPCAddr,
		"api", cfg.Server.APIAddr,
		"snapshot_interval", cfg.Snapshots.Interval,
	)

	var runErr error
	select {
	case runErr = <-errChan:
		logger.Error("server error", "error", runErr)
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for name, srv := range named {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down", "name", name, "error", err)
		}
	}
	<-snapshotterDone

	logger.Info("shutdown complete")
	return runErr
}
