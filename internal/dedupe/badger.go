package dedupe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/bakkerme/adhunter/internal/core"
)

const badgerKeyPrefix = "seen/"

// BadgerStore keeps one key per notified identity in an embedded badger
// database. Writes are synced before Commit returns. With a TTL, entries
// expire on their own and the ad becomes eligible again.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
	now func() time.Time
}

type badgerEntry struct {
	SeenAt time.Time `json:"seen_at"`
}

func NewBadgerStore(path string, ttl time.Duration) (*BadgerStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("badger path is required")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("badger ttl must be >= 0")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create badger directory: %w", err)
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *BadgerStore) Load(ctx context.Context) (*SeenSet, error) {
	set := NewSeenSet()
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := strings.TrimPrefix(string(it.Item().Key()), badgerKeyPrefix)
			set.Add(core.IdentityKey(key))
		}
		return nil
	})
	if err != nil {
		return NewSeenSet(), fmt.Errorf("read seen ads: %w", err)
	}
	return set, nil
}

func (s *BadgerStore) Commit(ctx context.Context, set *SeenSet, key core.IdentityKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	set.Add(key)
	if key == "" {
		return nil
	}
	value, err := json.Marshal(badgerEntry{SeenAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal seen ad: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(badgerKeyPrefix+string(key)), value)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("write seen ad: %w", err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
