package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure-Go driver, no cgo
)

// SQLiteStore persists every entity of the data model behind a single
// SQLite connection. Mirrors the teacher's single-writer WAL-mode
// connection strategy (internal/store/sqlite_bm25.go) — one *sql.DB with
// MaxOpenConns(1), since SQLite serializes writers anyway and the
// Feature Registry's insert-or-lookup is the only write-shared hot path
// (spec.md §5 "Shared-resource policy").
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// NewSQLiteStore opens (creating if necessary) the metadata database at
// path. An empty path opens an in-memory database, used by package tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; SQLite serializes concurrent writers regardless, and
	// a pool only adds lock-retry overhead under WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

	CREATE TABLE IF NOT EXISTS texts (
		id TEXT PRIMARY KEY,
		language TEXT NOT NULL,
		author TEXT,
		title TEXT,
		year INTEGER,
		is_prose INTEGER NOT NULL DEFAULT 0,
		hash TEXT NOT NULL,
		path TEXT,
		unit_types TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'init',
		message TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_texts_hash ON texts(hash);
	CREATE INDEX IF NOT EXISTS idx_texts_language ON texts(language);

	CREATE TABLE IF NOT EXISTS features (
		idx INTEGER NOT NULL,
		language TEXT NOT NULL,
		kind TEXT NOT NULL,
		token TEXT NOT NULL,
		PRIMARY KEY (language, kind, idx)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_features_token ON features(language, kind, token);

	CREATE TABLE IF NOT EXISTS feature_counts (
		language TEXT NOT NULL,
		kind TEXT NOT NULL,
		idx INTEGER NOT NULL,
		text_id TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (language, kind, idx, text_id)
	);
	CREATE INDEX IF NOT EXISTS idx_feature_counts_text ON feature_counts(text_id);

	CREATE TABLE IF NOT EXISTS units (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text_id TEXT NOT NULL REFERENCES texts(id) ON DELETE CASCADE,
		unit_type TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		snippet TEXT NOT NULL DEFAULT '',
		tokens TEXT NOT NULL DEFAULT '[]',
		features TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_units_text_type_ord ON units(text_id, unit_type, ordinal);

	CREATE TABLE IF NOT EXISTS searches (
		id TEXT PRIMARY KEY,
		results_id TEXT,
		search_type TEXT NOT NULL,
		params TEXT NOT NULL,
		cache_key TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'init',
		message TEXT,
		stages TEXT NOT NULL DEFAULT '[]',
		max_score REAL NOT NULL DEFAULT 0,
		last_queried_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_searches_cache_key ON searches(cache_key);
	CREATE INDEX IF NOT EXISTS idx_searches_results_id ON searches(results_id);
	CREATE INDEX IF NOT EXISTS idx_searches_last_queried ON searches(last_queried_at);

	CREATE TABLE IF NOT EXISTS search_sources (
		search_id TEXT NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
		text_id TEXT NOT NULL,
		role TEXT NOT NULL -- 'source' | 'target' | 'scope'
	);
	CREATE INDEX IF NOT EXISTS idx_search_sources_text ON search_sources(text_id);

	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		search_id TEXT NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
		source_unit_id INTEGER NOT NULL,
		target_unit_id INTEGER NOT NULL,
		source_tag TEXT NOT NULL,
		target_tag TEXT NOT NULL,
		source_snippet TEXT NOT NULL,
		target_snippet TEXT NOT NULL,
		matched_tokens TEXT NOT NULL DEFAULT '[]',
		highlights TEXT NOT NULL DEFAULT '[]',
		score REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_matches_search ON matches(search_id, score DESC);
	CREATE INDEX IF NOT EXISTS idx_matches_units ON matches(source_unit_id, target_unit_id);

	CREATE TABLE IF NOT EXISTS multi_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id INTEGER NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
		feature_a TEXT NOT NULL,
		feature_b TEXT NOT NULL,
		units TEXT NOT NULL DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_multi_results_match ON multi_results(match_id);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// DB exposes the underlying connection for packages (feature, unit,
// search, match) that need direct prepared-statement access.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any returned error or panic.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
