// Package redis stores slot values in Redis under a key prefix.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"zenith/internal/storage"
)

const keyPrefix = "zenith:slot:"

type Slot struct {
	client *redis.Client
}

func New(addr, password string, db int) *Slot {
	return &Slot{client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})}
}

// NewWithClient wraps an existing client.
func NewWithClient(c *redis.Client) *Slot {
	return &Slot{client: c}
}

func (s *Slot) Read(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return v, nil
}

func (s *Slot) Write(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (s *Slot) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Slot) Close() error {
	return s.client.Close()
}
