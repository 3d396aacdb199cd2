package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/twentyone/internal/game"
)

type fileEnvelope struct {
	State     game.State `json:"state"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// FileStore is a MemoryStore that also snapshots each session to a
// JSON file, so sessions survive a restart. Writes go to disk first;
// the in-memory copy serves reads.
type FileStore struct {
	*MemoryStore
	dir string
}

// NewFileStore creates the directory if needed and loads any surviving
// session files into memory. Snapshots that have already expired are
// removed instead of loaded.
func NewFileStore(dir string, clock quartz.Clock) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("session: file store dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create dir: %w", err)
	}

	s := &FileStore{
		MemoryStore: NewMemoryStore(clock),
		dir:         dir,
	}
	if err := s.loadAll(); err != nil {
		s.MemoryStore.Close()
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Save(ctx context.Context, id string, st game.State, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.clock.Now().Add(ttl)
	}

	data, err := json.Marshal(fileEnvelope{State: st, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("session: encode state: %w", err)
	}
	if err := writeFileAtomic(s.path(id), data, 0o644); err != nil {
		return fmt.Errorf("session: write snapshot: %w", err)
	}

	s.put(id, st, expiresAt)
	return nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session: remove snapshot: %w", err)
	}
	return s.MemoryStore.Delete(ctx, id)
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) loadAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("session: read dir: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("session: read snapshot %s: %w", name, err)
		}

		var env fileEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("session: decode snapshot %s: %w", name, err)
		}

		if !env.ExpiresAt.IsZero() && s.clock.Now().After(env.ExpiresAt) {
			_ = os.Remove(path)
			continue
		}

		id := strings.TrimSuffix(name, ".json")
		s.put(id, env.State, env.ExpiresAt)
	}
	return nil
}

// writeFileAtomic stages data in a temp file and renames it into
// place, so readers see either the old snapshot or the new one, never
// a partial write. The temp file lives in the target directory because
// cross-filesystem renames are not atomic.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	tmp = nil

	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
