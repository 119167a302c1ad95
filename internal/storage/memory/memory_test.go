package memory

import (
	"context"
	"errors"
	"testing"

	"zenith/internal/storage"
)

func TestSlot(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Read(ctx, "k"); !errors.Is(err, storage.ErrSlotEmpty) {
		t.Fatalf("expected ErrSlotEmpty, got %v", err)
	}
	buf := []byte("one")
	if err := s.Write(ctx, "k", buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf[0] = 'X' // caller mutation must not leak into the slot
	got, _ := s.Read(ctx, "k")
	if string(got) != "one" {
		t.Fatalf("got %q", got)
	}
	if s.Writes() != 1 {
		t.Fatalf("writes = %d", s.Writes())
	}
}

func TestNewWith(t *testing.T) {
	s := NewWith("k", []byte("seed"))
	got, err := s.Read(context.Background(), "k")
	if err != nil || string(got) != "seed" {
		t.Fatalf("got %q %v", got, err)
	}
}
