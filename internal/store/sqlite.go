package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	noteerr "github.com/noterank/noterank/internal/errors"
)

// Store is the single-file SQLite persistence layer: files, passages,
// embeddings, clusters, modules, and a small key-value state table. It
// owns the write lock (see lock.go) and the lexical InvertedIndex
// implementation configured alongside it.
type Store struct {
	mu         sync.RWMutex
	db         *sql.DB
	path       string
	lexBackend string
	lex        InvertedIndex
	closed     bool
}

// Open opens (creating if needed) the SQLite store at path, validating
// integrity and initializing schema. lexBackend selects the InvertedIndex
// implementation: "sqlite" (default, FTS5 in the same file) or "bleve" (a
// sibling Bolt-backed index next to path).
func Open(path string, lexBackend string) (*Store, error) {
	if path == "" {
		return nil, noteerr.New(noteerr.ErrCodeStoreMigration, "store path must not be empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, noteerr.StoreMigration(fmt.Errorf("create store directory: %w", err))
	}

	if err := validateIntegrity(path); err != nil {
		logCorruption(path, err)
		return nil, noteerr.StoreCorrupt(err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, noteerr.StoreMigration(fmt.Errorf("open database: %w", err))
	}

	// A single writer connection avoids SQLITE_BUSY under the coarse build
	// lock; concurrent readers are served by WAL mode.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, noteerr.StoreMigration(fmt.Errorf("set pragma %q: %w", p, err))
		}
	}

	s := &Store{db: db, path: path, lexBackend: lexBackend}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, noteerr.StoreMigration(err)
	}

	lex, err := s.openLexicalIndex()
	if err != nil {
		db.Close()
		return nil, err
	}
	s.lex = lex

	return s, nil
}

func (s *Store) openLexicalIndex() (InvertedIndex, error) {
	switch s.lexBackend {
	case "", "sqlite":
		return newSQLiteFTS(s.db)
	case "bleve":
		return newBleveIndex(s.path + ".bleve")
	default:
		return nil, noteerr.New(noteerr.ErrCodeStoreMigration, fmt.Sprintf("unknown lexical backend %q", s.lexBackend))
	}
}

// Lexical returns the configured InvertedIndex implementation.
func (s *Store) Lexical() InvertedIndex {
	return s.lex
}

func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open for integrity check: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		path TEXT PRIMARY KEY,
		mtime INTEGER NOT NULL,
		size INTEGER NOT NULL,
		hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
		heading TEXT,
		has_heading INTEGER NOT NULL DEFAULT 0,
		ordinal INTEGER NOT NULL,
		content TEXT NOT NULL,
		content_len INTEGER NOT NULL,
		UNIQUE(file_path, ordinal)
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_file_ordinal ON chunks(file_path, ordinal);

	CREATE TABLE IF NOT EXISTS embeddings (
		chunk_id INTEGER PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
		model TEXT NOT NULL,
		dims INTEGER NOT NULL,
		vec_blob BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS clusters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		method TEXT NOT NULL,
		k INTEGER NOT NULL,
		name TEXT NOT NULL,
		summary TEXT,
		size INTEGER NOT NULL,
		centroid_blob BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cluster_members (
		cluster_id INTEGER NOT NULL REFERENCES clusters(id) ON DELETE CASCADE,
		chunk_id INTEGER NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
		PRIMARY KEY (cluster_id, chunk_id)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_cluster_members_chunk ON cluster_members(chunk_id);

	CREATE TABLE IF NOT EXISTS modules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS file_modules (
		file_path TEXT PRIMARY KEY REFERENCES files(path) ON DELETE CASCADE,
		module_id INTEGER NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
		score REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database and lexical index handles.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var lexErr error
	if s.lex != nil {
		lexErr = s.lex.Close()
	}
	s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	dbErr := s.db.Close()
	if lexErr != nil {
		return lexErr
	}
	return dbErr
}

// DB exposes the underlying handle for packages (such as the frontend's
// file tree) that run their own queries against the same connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// GetState reads a value from the key-value state table.
func (s *Store) GetState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetState upserts a value in the key-value state table.
func (s *Store) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetFileByPath looks up a tracked file's metadata, returning (nil, nil) if
// absent.
func (s *Store) GetFileByPath(ctx context.Context, path string) (*File, error) {
	var f File
	var mtimeUnix int64
	err := s.db.QueryRowContext(ctx,
		`SELECT path, mtime, size, hash FROM files WHERE path = ?`, path,
	).Scan(&f.Path, &mtimeUnix, &f.Size, &f.Hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f.MTime = unixToTime(mtimeUnix)
	return &f, nil
}

// Stats reports the coarse figures backing "noterank store info".
type Stats struct {
	FileCount      int
	PassageCount   int
	EmbeddingCount int
	ClusterCount   int
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&st.FileCount); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.PassageCount); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&st.EmbeddingCount); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clusters`).Scan(&st.ClusterCount); err != nil {
		return st, err
	}
	return st, nil
}

func logCorruption(path string, cause error) {
	slog.Warn("store_corruption_detected", slog.String("path", path), slog.String("error", cause.Error()))
}
