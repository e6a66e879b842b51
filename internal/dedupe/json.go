package dedupe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bakkerme/adhunter/internal/core"
)

// JSONFileStore keeps the seen set as a sorted JSON array of strings. Every
// commit rewrites the file through a temp file and rename so a crash never
// leaves a half-written state.
type JSONFileStore struct {
	path string
}

func NewJSONFileStore(path string) (*JSONFileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("seen store path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create seen store dir: %w", err)
		}
	}
	return &JSONFileStore{path: path}, nil
}

func (s *JSONFileStore) Path() string { return s.path }

func (s *JSONFileStore) Load(ctx context.Context) (*SeenSet, error) {
	_ = ctx
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewSeenSet(), nil
		}
		return NewSeenSet(), fmt.Errorf("read seen store: %w", err)
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return NewSeenSet(), fmt.Errorf("decode seen store %s: %w", s.path, err)
	}
	set := NewSeenSet()
	for _, k := range keys {
		set.Add(core.IdentityKey(k))
	}
	return set, nil
}

func (s *JSONFileStore) Commit(ctx context.Context, set *SeenSet, key core.IdentityKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	set.Add(key)
	keys := set.Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode seen store: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

func (s *JSONFileStore) Close() error { return nil }

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp seen store: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write seen store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync seen store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close seen store: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace seen store: %w", err)
	}
	return nil
}
