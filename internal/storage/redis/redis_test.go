package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenith/internal/storage"
)

func TestRedisSlot(t *testing.T) {
	mr := miniredis.RunT(t)
	s := New(mr.Addr(), "", 0)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	_, err := s.Read(ctx, storage.DefaultKey)
	require.ErrorIs(t, err, storage.ErrSlotEmpty)

	require.NoError(t, s.Write(ctx, storage.DefaultKey, []byte(`[1]`)))
	got, err := s.Read(ctx, storage.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(got))

	raw, err := mr.Get("zenith:slot:transactions")
	require.NoError(t, err)
	assert.Equal(t, `[1]`, raw)
}

func TestRedisSlotUnavailable(t *testing.T) {
	s := New("127.0.0.1:1", "", 0)
	defer s.Close()

	_, err := s.Read(context.Background(), "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrSlotEmpty)
}
