package dedupe

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bakkerme/adhunter/internal/core"
)

const (
	defaultSQLiteTable = "seen_ads"
)

// SQLiteStore keeps one row per notified identity.
type SQLiteStore struct {
	db         *sql.DB
	table      string
	tableIdent string
	ttl        time.Duration
	now        func() time.Time
	pruned     int64
}

func NewSQLiteStore(dsn string, table string, ttl time.Duration) (*SQLiteStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("sqlite ttl must be >= 0")
	}
	if table == "" {
		table = defaultSQLiteTable
	}
	tableIdent, err := quoteSQLiteIdentifier(table)
	if err != nil {
		return nil, err
	}
	if err := ensureSQLiteDir(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	store := &SQLiteStore{
		db:         db,
		table:      table,
		tableIdent: tableIdent,
		ttl:        ttl,
		now:        time.Now,
	}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Load returns every stored identity. With a TTL, rows older than the
// retention window are deleted first so they become eligible again.
func (s *SQLiteStore) Load(ctx context.Context) (*SeenSet, error) {
	if s.ttl > 0 {
		cutoff := s.now().UTC().Add(-s.ttl)
		res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE seen_at < ?", s.tableIdent), cutoff)
		if err != nil {
			return NewSeenSet(), fmt.Errorf("prune seen ads: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			s.pruned += n
		}
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s", s.tableIdent))
	if err != nil {
		return NewSeenSet(), fmt.Errorf("query seen ads: %w", err)
	}
	defer rows.Close()

	set := NewSeenSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return NewSeenSet(), fmt.Errorf("scan seen ad: %w", err)
		}
		set.Add(core.IdentityKey(id))
	}
	if err := rows.Err(); err != nil {
		return NewSeenSet(), fmt.Errorf("read seen ads: %w", err)
	}
	return set, nil
}

// Pruned reports how many expired rows Load has deleted so far.
func (s *SQLiteStore) Pruned() int64 { return s.pruned }

// Commit inserts key, keeping the first seen_at when it already exists.
func (s *SQLiteStore) Commit(ctx context.Context, set *SeenSet, key core.IdentityKey) error {
	set.Add(key)
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(
		ctx,
		fmt.Sprintf("INSERT INTO %s (id, seen_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING", s.tableIdent),
		string(key),
		s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert seen ad: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	if s.table == "" {
		return fmt.Errorf("sqlite table name is required")
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		seen_at TIMESTAMP NOT NULL
	)`, s.tableIdent)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sqlite table: %w", err)
	}
	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_seen_at_idx ON %s (seen_at)", s.table, s.tableIdent)
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("create sqlite index: %w", err)
	}
	return nil
}

func ensureSQLiteDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") {
		dsn = strings.TrimPrefix(dsn, "file:")
		if idx := strings.IndexRune(dsn, '?'); idx >= 0 {
			dsn = dsn[:idx]
		}
	}
	if dsn == "" || dsn == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

var sqliteIdentifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteSQLiteIdentifier(identifier string) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("sqlite table name is required")
	}
	if !sqliteIdentifierPattern.MatchString(identifier) {
		return "", fmt.Errorf("sqlite table name %q must match %s", identifier, sqliteIdentifierPattern.String())
	}
	return `"` + identifier + `"`, nil
}
