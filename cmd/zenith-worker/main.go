package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"zenith/internal/amqp"
	"zenith/internal/cli"
	"zenith/internal/config"
	"zenith/internal/core"
	zlog "zenith/internal/log"
	gsheet "zenith/internal/sheets/google"
	"zenith/internal/transactions"
	"zenith/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, os.Stdout).WithComponent(zlog.ComponentWorker)

	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Configuration validation failed", zlog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Starting zenith-worker", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStart()

	sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, core.DefaultRegistry())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", zlog.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", zlog.FieldError, err)
		os.Exit(1)
	}

	store, closeStore := openSource(startCtx, cfg, logger)
	var source worker.Source
	if store != nil {
		source = store
	}
	mirror := worker.NewMirrorWorker(sheetsClient, sheetsClient, source, cfg.MirrorBatchSize)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close failed", zlog.FieldError, err)
		}
		if err := closeStore(); err != nil {
			logger.Warn("Storage cleanup failed", zlog.FieldError, err)
		}
	})

	// Recover anything missed while the worker was down.
	logger.Info("Performing startup sync")
	if err := mirror.StartupSync(startCtx); err != nil {
		logger.Error("Startup sync failed", zlog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Consuming transaction events", "queue", cfg.AMQPQueue)
		return amqpClient.Consume(gctx, mirror.HandleEvent)
	})
	if store != nil {
		g.Go(func() error {
			resync(gctx, store, mirror, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", zlog.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}

// openSource opens the shared transaction store for the startup sync. A
// memory slot is private to the web process, so there is nothing to read
// and mirroring it would wipe the sheet.
func openSource(ctx context.Context, cfg *config.Config, logger *zlog.Logger) (*transactions.Store, func() error) {
	noop := func() error { return nil }
	if cfg.SlotBackend == config.BackendMemory {
		logger.Info("Memory slot backend, skipping startup sync source")
		return nil, noop
	}
	store, cleanup, err := cli.OpenStore(ctx, cfg, logger, transactions.WithSeed(false))
	if err != nil {
		logger.Warn("Transaction store unavailable, startup sync disabled", zlog.FieldError, err)
		return nil, noop
	}
	return store, cleanup
}

const resyncInterval = time.Hour

// resync reloads the shared store and repeats the startup sync, catching
// events lost while the broker was unreachable.
func resync(ctx context.Context, store *transactions.Store, mirror *worker.MirrorWorker, logger *zlog.Logger) {
	ticker := time.NewTicker(resyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Load(ctx); err != nil {
				logger.Error("Reloading transactions failed", zlog.FieldError, err)
				continue
			}
			if err := mirror.StartupSync(ctx); err != nil {
				logger.Error("Periodic sync failed", zlog.FieldError, err)
			}
		}
	}
}
