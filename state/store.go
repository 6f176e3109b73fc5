package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Store reads and writes a RunState file, optionally mirroring every save to
// a remote blob store.
type Store struct {
	path   string
	mirror Mirror
	logger *slog.Logger
}

func NewStore(path string, mirror Mirror, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		mirror: mirror,
		logger: logger.With("component", "state", "path", path),
	}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing file is not an error: if a mirror is
// configured the remote copy is tried, otherwise a fresh state is returned.
func (s *Store) Load(ctx context.Context) (*RunState, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if s.mirror != nil {
			b, err = s.mirror.Get(ctx, s.objectName())
			if errors.Is(err, ErrNotFound) {
				s.logger.Info("no state file found, starting fresh")
				return New(), nil
			}
			if err != nil {
				return nil, fmt.Errorf("restoring state from mirror: %w", err)
			}
			s.logger.Info("restored state from mirror")
		} else {
			s.logger.Info("no state file found, starting fresh")
			return New(), nil
		}
	} else if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	st := New()
	if err := json.Unmarshal(b, st); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", s.path, err)
	}
	return st, nil
}

// Save atomically replaces the state file: the document is written to a
// temporary file in the same directory, synced, then renamed over the target.
// Mirror failures are logged and do not fail the save.
func (s *Store) Save(ctx context.Context, st *RunState) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := writeAtomic(s.path, b); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.Put(ctx, s.objectName(), b); err != nil {
			s.logger.Warn("failed to mirror state", "err", err)
		}
	}
	return nil
}

func (s *Store) objectName() string {
	return filepath.Base(s.path)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("setting state file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
