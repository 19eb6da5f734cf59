package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/kurtheiz/agistme/pkg/cache"
	"github.com/kurtheiz/agistme/pkg/db"
	"github.com/kurtheiz/agistme/pkg/log"
)

// DatabaseFile is the cache database name inside the storage directory.
const DatabaseFile = "cache.db"

var logger = log.ForService("storage")

// SQLiteBackend is a cache.Backend persisted in a SQLite file. Payloads are
// stored as zstd frames.
type SQLiteBackend struct {
	db      *sql.DB
	path    string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

var _ cache.Backend = (*SQLiteBackend)(nil)

// OpenDir opens (creating if needed) the cache database in storageDir.
func OpenDir(storageDir string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return Open(filepath.Join(storageDir, DatabaseFile))
}

// connPragmas are applied by the driver to every connection in the pool.
var connPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(30000)",
	"cache_size(-16000)", // 16MB cache
	"temp_store(memory)",
}

// dsn builds the file: URI for dbPath carrying connPragmas.
func dsn(dbPath string) string {
	q := url.Values{"_pragma": connPragmas}
	return "file:" + (&url.URL{Path: filepath.ToSlash(dbPath)}).EscapedPath() + "?" + q.Encode()
}

// Open opens the cache database at dbPath and applies pending migrations.
func Open(dbPath string) (*SQLiteBackend, error) {
	conn, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.InitializeDatabase(conn); err != nil {
		conn.Close()
		return nil, err
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	logger.Debugf("opened cache database %s", dbPath)
	return &SQLiteBackend{db: conn, path: dbPath, encoder: encoder, decoder: decoder}, nil
}

// Path returns the database file path.
func (s *SQLiteBackend) Path() string {
	return s.path
}

// DB returns the underlying connection, for migration status.
func (s *SQLiteBackend) DB() *sql.DB {
	return s.db
}

func (s *SQLiteBackend) Get(namespace, key string) (cache.Entry, bool, error) {
	var (
		storedAt int64
		payload  []byte
	)
	err := s.db.QueryRow(
		"SELECT stored_at, payload FROM cache_entries WHERE namespace = ? AND key = ?",
		namespace, key,
	).Scan(&storedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("querying entry: %w", err)
	}

	raw, err := s.decoder.DecodeAll(payload, nil)
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("decompressing entry: %w", err)
	}
	return cache.Entry{
		Namespace: namespace,
		Key:       key,
		StoredAt:  time.UnixMilli(storedAt),
		Payload:   raw,
	}, true, nil
}

func (s *SQLiteBackend) Put(e cache.Entry) error {
	compressed := s.encoder.EncodeAll(e.Payload, nil)
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO cache_entries (namespace, key, stored_at, payload, raw_size)
		VALUES (?, ?, ?, ?, ?)
	`, e.Namespace, e.Key, e.StoredAt.UnixMilli(), compressed, len(e.Payload))
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Delete(namespace, key string) error {
	if _, err := s.db.Exec("DELETE FROM cache_entries WHERE namespace = ? AND key = ?", namespace, key); err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Clear(namespace string) error {
	var err error
	if namespace == "" {
		_, err = s.db.Exec("DELETE FROM cache_entries")
	} else {
		_, err = s.db.Exec("DELETE FROM cache_entries WHERE namespace = ?", namespace)
	}
	if err != nil {
		return fmt.Errorf("clearing entries: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) PruneBefore(namespace string, cutoff time.Time) (int, error) {
	var (
		res sql.Result
		err error
	)
	if namespace == "" {
		res, err = s.db.Exec("DELETE FROM cache_entries WHERE stored_at < ?", cutoff.UnixMilli())
	} else {
		res, err = s.db.Exec("DELETE FROM cache_entries WHERE namespace = ? AND stored_at < ?", namespace, cutoff.UnixMilli())
	}
	if err != nil {
		return 0, fmt.Errorf("pruning entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned entries: %w", err)
	}
	return int(n), nil
}

// Stats reports per-namespace counts. Bytes is the uncompressed size.
func (s *SQLiteBackend) Stats() ([]cache.NamespaceStats, error) {
	rows, err := s.db.Query(`
		SELECT namespace, COUNT(*), COALESCE(SUM(raw_size), 0), MIN(stored_at), MAX(stored_at)
		FROM cache_entries
		GROUP BY namespace
		ORDER BY namespace
	`)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()

	var stats []cache.NamespaceStats
	for rows.Next() {
		var (
			st             cache.NamespaceStats
			oldest, newest int64
		)
		if err := rows.Scan(&st.Namespace, &st.Entries, &st.Bytes, &oldest, &newest); err != nil {
			return nil, fmt.Errorf("scanning stats row: %w", err)
		}
		st.Oldest = time.UnixMilli(oldest)
		st.Newest = time.UnixMilli(newest)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Optimize runs VACUUM and ANALYZE, for `agistme cache prune`.
func (s *SQLiteBackend) Optimize() error {
	for _, stmt := range []string{"VACUUM", "ANALYZE"} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("running %s: %w", stmt, err)
		}
	}
	return nil
}

func (s *SQLiteBackend) Close() error {
	s.decoder.Close()
	if err := s.encoder.Close(); err != nil {
		logger.Warnf("failed to close zstd encoder: %v", err)
	}
	return s.db.Close()
}
