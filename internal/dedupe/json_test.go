package dedupe

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bakkerme/adhunter/internal/core"
)

func TestJSONFileStoreMissingFileIsEmpty(t *testing.T) {
	store, err := NewJSONFileStore(filepath.Join(t.TempDir(), "data", "seen_ads.json"))
	if err != nil {
		t.Fatalf("NewJSONFileStore() error = %v", err)
	}
	set, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if set.Len() != 0 {
		t.Fatalf("expected empty set, got %v", set.Keys())
	}
}

func TestJSONFileStoreCorruptFileIsEmptyWithError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen_ads.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	store, err := NewJSONFileStore(path)
	if err != nil {
		t.Fatalf("NewJSONFileStore() error = %v", err)
	}
	set, err := store.Load(context.Background())
	if err == nil {
		t.Fatalf("Load() error = nil, want decode error")
	}
	if set == nil || set.Len() != 0 {
		t.Fatalf("expected empty set on corrupt file")
	}
}

func TestJSONFileStoreCommitWritesSortedArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen_ads.json")
	store, err := NewJSONFileStore(path)
	if err != nil {
		t.Fatalf("NewJSONFileStore() error = %v", err)
	}
	set := NewSeenSet()
	for _, key := range []core.IdentityKey{"https://b.example/2", "https://a.example/1", "https://b.example/2"} {
		if err := store.Commit(context.Background(), set, key); err != nil {
			t.Fatalf("Commit(%s) error = %v", key, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	var got []string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("state is not a JSON array: %v", err)
	}
	want := []string{"https://a.example/1", "https://b.example/2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("state = %v, want %v", got, want)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the state file, found %d entries", len(entries))
	}

	reloaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(reloaded.Keys(), set.Keys()) {
		t.Fatalf("reloaded = %v, want %v", reloaded.Keys(), set.Keys())
	}
}

func TestJSONFileStoreRespectsCancelledContext(t *testing.T) {
	store, err := NewJSONFileStore(filepath.Join(t.TempDir(), "seen_ads.json"))
	if err != nil {
		t.Fatalf("NewJSONFileStore() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Commit(ctx, NewSeenSet(), "k"); err == nil {
		t.Fatalf("Commit() error = nil, want context error")
	}
}

func TestSeenSet(t *testing.T) {
	set := NewSeenSet("b", "a", "")
	if set.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", set.Len())
	}
	if !set.Contains("a") || set.Contains("c") {
		t.Fatalf("Contains mismatch: %v", set.Keys())
	}
	if set.Add("a") {
		t.Fatalf("Add() of existing key reported new")
	}
	if !set.Add("c") {
		t.Fatalf("Add() of new key reported existing")
	}
	if got := set.Keys(); !reflect.DeepEqual(got, []core.IdentityKey{"a", "b", "c"}) {
		t.Fatalf("Keys() = %v", got)
	}
	var nilSet *SeenSet
	if nilSet.Contains("a") || nilSet.Len() != 0 {
		t.Fatalf("nil set should be empty")
	}
}
