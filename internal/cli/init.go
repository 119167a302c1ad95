// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/zenith, cmd/zenith-worker, and cmd/zenith-cli.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"zenith/internal/backend"
	"zenith/internal/config"
	zlog "zenith/internal/log"
	"zenith/internal/transactions"
)

// SetupLogger initializes structured logging from LOG_LEVEL and LOG_FORMAT.
// Returns the configured logger and sets it as the default logger.
func SetupLogger(cfg *config.Config, w io.Writer) *zlog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level, format := slog.LevelInfo, "text"
	if cfg != nil {
		level, format = zlog.ParseLevel(cfg.LogLevel), cfg.LogFormat
	}
	logger := zlog.New(zlog.Config{
		Level:     level,
		Component: zlog.ComponentApp,
		Handler:   zlog.NewHandler(w, level, format),
	})
	zlog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore builds the configured storage slot, wraps it in a transaction
// store and loads the persisted document.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zlog.Logger, opts ...transactions.Option) (*transactions.Store, backend.CleanupFunc, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := res.Cleanup
	if cleanup == nil {
		cleanup = func() error { return nil }
	}

	base := []transactions.Option{
		transactions.WithKey(cfg.SlotKey),
		transactions.WithSeed(cfg.SeedInitial),
		transactions.WithLogger(logger.Logger.With(zlog.FieldComponent, zlog.ComponentTransactions)),
	}
	store := transactions.NewStore(res.Slot, append(base, opts...)...)
	if err := store.Load(ctx); err != nil {
		_ = cleanup()
		return nil, nil, err
	}
	logger.InfoContext(ctx, "Transaction store loaded",
		zlog.FieldSlotBackend, cfg.SlotBackend,
		zlog.FieldSlotKey, cfg.SlotKey,
		zlog.FieldCount, store.Len())
	return store, cleanup, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *zlog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
