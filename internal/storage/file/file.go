// Package file stores slot values as files in a directory, one file per
// key, optionally encrypted at rest with age.
package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"zenith/internal/storage"
)

type Slot struct {
	dir        string
	identities []age.Identity
	recipients []age.Recipient
}

type Option func(*Slot)

// WithIdentity encrypts values to the identity's recipient and decrypts
// with the identity.
func WithIdentity(id *age.X25519Identity) Option {
	return func(s *Slot) {
		s.identities = append(s.identities, id)
		s.recipients = append(s.recipients, id.Recipient())
	}
}

func New(dir string, opts ...Option) (*Slot, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create slot directory: %w", err)
	}
	s := &Slot{dir: dir}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// ParseIdentity reads an age X25519 identity from a string or from the
// first non-comment line of a key file.
func ParseIdentity(raw string) (*age.X25519Identity, error) {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fmt.Errorf("parse age identity: %w", err)
		}
		return id, nil
	}
	return nil, errors.New("no age identity found")
}

func (s *Slot) Encrypted() bool { return len(s.recipients) > 0 }

func (s *Slot) path(key string) string {
	name := filepath.Base(filepath.Clean("/" + key))
	if s.Encrypted() {
		return filepath.Join(s.dir, name+".json.age")
	}
	return filepath.Join(s.dir, name+".json")
}

func (s *Slot) Read(_ context.Context, key string) ([]byte, error) {
	raw, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read slot file: %w", err)
	}
	if !s.Encrypted() {
		return raw, nil
	}
	r, err := age.Decrypt(bytes.NewReader(raw), s.identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypt slot file: %w", err)
	}
	return io.ReadAll(r)
}

// Write replaces the file atomically via a temp file and rename.
func (s *Slot) Write(_ context.Context, key string, value []byte) error {
	data := value
	if s.Encrypted() {
		var buf bytes.Buffer
		w, err := age.Encrypt(&buf, s.recipients...)
		if err != nil {
			return fmt.Errorf("encrypt slot: %w", err)
		}
		if _, err := w.Write(value); err != nil {
			return fmt.Errorf("encrypt slot: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("encrypt slot: %w", err)
		}
		data = buf.Bytes()
	}

	target := s.path(key)
	tmp, err := os.CreateTemp(s.dir, ".slot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("replace slot file: %w", err)
	}
	return nil
}

func (s *Slot) Close() error { return nil }
