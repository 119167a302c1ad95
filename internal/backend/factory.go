package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"zenith/internal/storage"
	"zenith/internal/storage/file"
	"zenith/internal/storage/memory"
	"zenith/internal/storage/redis"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case FileBackend:
		return f.createFileBackend(config)
	case RedisBackend:
		return f.createRedisBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	slot, err := storage.NewSQLiteSlot(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite slot: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Slot:    slot,
		Cleanup: slot.Close,
	}, nil
}

func (f *DefaultFactory) createFileBackend(config Config) (*BackendResult, error) {
	var opts []file.Option
	raw := config.AgeIdentity
	if config.AgeIdentityFile != "" {
		b, err := os.ReadFile(config.AgeIdentityFile)
		if err != nil {
			return nil, fmt.Errorf("read age identity file: %w", err)
		}
		raw = string(b)
	}
	if raw != "" {
		id, err := file.ParseIdentity(raw)
		if err != nil {
			return nil, err
		}
		opts = append(opts, file.WithIdentity(id))
	}

	slot, err := file.New(config.FilePath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file slot: %w", err)
	}

	f.logger.Info("Initialized file backend",
		"directory", config.FilePath,
		"encrypted", slot.Encrypted())

	return &BackendResult{
		Slot:    slot,
		Cleanup: slot.Close,
	}, nil
}

func (f *DefaultFactory) createRedisBackend(ctx context.Context, config Config) (*BackendResult, error) {
	slot := redis.New(config.RedisAddr, config.RedisPassword, config.RedisDB)
	if err := slot.Ping(ctx); err != nil {
		_ = slot.Close()
		return nil, fmt.Errorf("failed to reach Redis at %s: %w", config.RedisAddr, err)
	}

	f.logger.Info("Initialized Redis backend", "addr", config.RedisAddr, "db", config.RedisDB)

	return &BackendResult{
		Slot:    slot,
		Cleanup: slot.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Warn("Initialized memory backend; data is lost on restart")

	return &BackendResult{
		Slot:    memory.New(),
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}
