// Package snapshot persists the report of the most recent poll cycle so an
// operator can inspect what the watcher last did without reading logs.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bakkerme/adhunter/internal/core"
)

type Payload struct {
	Cycle    *core.Cycle `json:"cycle"`
	SeenSize int         `json:"seen_size"`
}

func Save(path string, cycle *core.Cycle, seenSize int) error {
	if path == "" {
		return fmt.Errorf("snapshot path is required")
	}
	if cycle == nil {
		return fmt.Errorf("snapshot cycle is required")
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(Payload{Cycle: cycle, SeenSize: seenSize}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func Load(path string) (*Payload, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &payload, nil
}
