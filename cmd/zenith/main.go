package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"zenith/internal/ai"
	"zenith/internal/amqp"
	"zenith/internal/cache"
	"zenith/internal/cli"
	"zenith/internal/config"
	apphttp "zenith/internal/http"
	zlog "zenith/internal/log"
	"zenith/internal/transactions"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, os.Stdout)

	logger.Info("Starting zenith",
		"port", cfg.Port,
		"slot_backend", cfg.SlotBackend,
		"ai_enabled", cfg.AIEnabled(),
		"amqp_enabled", cfg.AMQPEnabled())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var opts []transactions.Option
	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Change events are best effort; the app works without them.
			logger.Warn("AMQP unavailable, change events disabled", zlog.FieldError, err)
		} else {
			amqpClient = client
			opts = append(opts, transactions.WithNotifier(client))
			logger.Info("AMQP notifier connected", "exchange", cfg.AMQPExchange)
		}
	}

	store, closeStore, err := cli.OpenStore(ctx, cfg, logger, opts...)
	if err != nil {
		logger.Error("Failed to open transaction store", zlog.FieldError, err, zlog.FieldSlotBackend, cfg.SlotBackend)
		os.Exit(1)
	}

	caches := cache.NewManager()
	deps := apphttp.Deps{
		Store:              store,
		Sequencer:          ai.NewSequencer(),
		Logger:             logger,
		Caches:             caches,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}
	if cfg.AIEnabled() {
		deps.Suggester, deps.Assistant = newAI(ctx, cfg, logger, caches)
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps)
	caches.Start(ctx, 5*time.Minute)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Error("Server shutdown error", zlog.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close failed", zlog.FieldError, err)
			}
		}
		if err := closeStore(); err != nil {
			logger.Warn("Storage cleanup failed", zlog.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(shutdownCtx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", zlog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

// newAI connects the Gemini client. A failure leaves both features
// disabled instead of stopping the server.
func newAI(ctx context.Context, cfg *config.Config, logger *zlog.Logger, caches *cache.Manager) (*ai.Suggester, *ai.Assistant) {
	gen, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.AIModel)
	if err != nil {
		logger.Warn("Gemini client unavailable, suggestions and chat disabled", zlog.FieldError, err)
		return nil, nil
	}
	suggestions := cache.NewLRUCache[ai.Suggestion](512, 6*time.Hour)
	caches.Register(suggestions)
	logger.Info("AI features enabled", "model", cfg.AIModel)
	return ai.NewSuggester(gen, ai.WithCache(suggestions), ai.WithTimeout(cfg.AITimeout)),
		ai.NewAssistant(gen)
}
