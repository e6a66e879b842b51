// Package dedupe persists the identities of ads that were already notified.
package dedupe

import (
	"context"
	"sort"

	"github.com/bakkerme/adhunter/internal/core"
)

// Store loads and persists the seen set. The set itself is owned by the
// caller and passed in explicitly.
type Store interface {
	// Load returns the persisted set. A missing store yields an empty set and
	// no error; an unreadable one yields an empty set and an error.
	Load(ctx context.Context) (*SeenSet, error)
	// Commit adds key to set and persists it before returning.
	Commit(ctx context.Context, set *SeenSet, key core.IdentityKey) error
	Close() error
}

// SeenSet is the in-memory set of notified identities. It is not safe for
// concurrent use.
type SeenSet struct {
	keys map[core.IdentityKey]struct{}
}

func NewSeenSet(keys ...core.IdentityKey) *SeenSet {
	s := &SeenSet{keys: make(map[core.IdentityKey]struct{}, len(keys))}
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

func (s *SeenSet) Contains(key core.IdentityKey) bool {
	if s == nil {
		return false
	}
	_, ok := s.keys[key]
	return ok
}

// Add inserts key and reports whether it was new.
func (s *SeenSet) Add(key core.IdentityKey) bool {
	if key == "" {
		return false
	}
	if s.keys == nil {
		s.keys = make(map[core.IdentityKey]struct{})
	}
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

func (s *SeenSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Keys returns the identities in sorted order.
func (s *SeenSet) Keys() []core.IdentityKey {
	if s == nil {
		return nil
	}
	out := make([]core.IdentityKey, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
