// Package chatstore is the per-workspace transactional chat store, spec
// §4.9. One Store wraps one SQLite database file; the seven tables spec
// §4.9 names are real SQL tables whose composite keys match the spec's
// column order exactly, migrated with the teacher's embedded-migrations
// pattern (internal/store/store.go, internal/relay/store.go).
package chatstore

import (
	"database/sql"
	"embed"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MaxPreview is the UTF-8-boundary-safe preview truncation length, spec §3.4.
const MaxPreview = 120

type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite chat database at dsn — the
// daemon uses "<Dir>/workspaces/<workspace_id>/chat.db".
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("chatstore: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("chatstore: wal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("chatstore: foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("chatstore: migrate: %w", err)
	}
	return s, nil
}

// nowMS is the millisecond unix clock every chatstore write timestamps
// against, isolated to one function so tests can see where "now" enters.
func nowMS() int64 { return time.Now().UnixMilli() }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

// reverseTimestamp computes spec §3.6's ts_rev. The spec defines it over
// u64::MAX, but SQLite's INTEGER column is a signed 64-bit value, so this
// substitutes math.MaxInt64 as the fixed point — ordering is identical
// (larger timestamp -> smaller ts_rev -> earlier in an ascending scan)
// and created_at values (unix milliseconds) never approach that bound.
func reverseTimestamp(createdAtMS int64) int64 {
	return math.MaxInt64 - createdAtMS
}

// TruncatePreview applies spec §3.4's boundary-safe 120-character preview
// rule: exactly MAX_PREVIEW runes passes through unchanged; one more gets
// "..." appended after truncation to MAX_PREVIEW runes.
func TruncatePreview(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxPreview {
		return s
	}
	return string(runes[:MaxPreview]) + "..."
}
