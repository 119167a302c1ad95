package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"zenith/internal/config"
)

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, &buf)
	logger.Debug("hello")
	if !bytes.Contains(buf.Bytes(), []byte(`"msg":"hello"`)) {
		t.Fatalf("expected json debug record, got %q", buf.String())
	}
}

func TestOpenStore_SeedsEmptySlot(t *testing.T) {
	cfg := &config.Config{
		SlotBackend:  config.BackendFile,
		SlotKey:      "transactions",
		SlotFilePath: filepath.Join(t.TempDir(), "slots"),
		SeedInitial:  true,
	}
	logger := SetupLogger(cfg, &bytes.Buffer{})

	store, cleanup, err := OpenStore(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer cleanup()
	if store.Len() == 0 {
		t.Fatal("expected seeded transactions")
	}
}

func TestOpenStore_InvalidBackend(t *testing.T) {
	cfg := &config.Config{SlotBackend: "sheets", SlotKey: "transactions"}
	if _, _, err := OpenStore(context.Background(), cfg, SetupLogger(cfg, &bytes.Buffer{})); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
