package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
	"github.com/agent-next/behavior-driven-testing/internal/ledger"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a ledger database to version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order for every version above the database's
// user_version. schema.sql already holds their end state, so each
// statement must be a no-op on a fresh database.
var migrations = []migration{
	{1, "entries status index", `CREATE INDEX IF NOT EXISTS idx_entries_status ON entries(status)`},
	{2, "meta table", `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`},
}

// currentSchemaVersion is the user_version of a fully migrated ledger.
var currentSchemaVersion = migrations[len(migrations)-1].version

// Store is the SQLite implementation of ledger.Store.
type Store struct {
	db *sql.DB
}

var _ ledger.Store = (*Store)(nil)

// dsn adds the connection settings to path. go-sqlite3 applies them to
// every connection it opens:
//   - WAL journal, so report and history reads run beside a writer
//   - NORMAL synchronous mode
//   - 5 second busy timeout for a second bdt process on the same file
//   - foreign keys, so events cannot outlive their entry
//   - BEGIN IMMEDIATE, so a transaction that reads before it writes
//     takes the write lock up front
func dsn(path string) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	return path + "?" + q.Encode()
}

// Open creates or opens the ledger database at path, migrating it to the
// current schema. Opening an up-to-date ledger changes nothing but the
// recorded engine version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer and the ledger
	// serialises per scenario anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// init applies the schema and pending migrations, then stamps the meta
// table.
func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("ledger schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := s.db.ExecContext(ctx, m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
	}
	// PRAGMA does not take bound parameters.
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return s.stampMeta(ctx)
}

// stampMeta records which record format and engine last opened the ledger.
func (s *Store) stampMeta(ctx context.Context) error {
	const upsert = `INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	for key, value := range map[string]string{
		"schema_version": ir.SchemaVersion,
		"engine_version": ir.EngineVersion,
	} {
		if _, err := s.db.ExecContext(ctx, upsert, key, value); err != nil {
			return fmt.Errorf("write meta %s: %w", key, err)
		}
	}
	return nil
}

// Meta returns the ledger's meta table.
func (s *Store) Meta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM meta ORDER BY key")
	if err != nil {
		return nil, ir.NewStoreUnavailableError("load_meta", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, ir.NewStoreUnavailableError("load_meta", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, ir.NewStoreUnavailableError("load_meta", err)
	}
	return meta, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database for ad hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// pragma reads a connection setting.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to query %s: %w", name, err)
	}
	return value, nil
}
