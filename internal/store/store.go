package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a database whose user_version is below version.
// Statements must be idempotent: schema.sql may already have created what
// they add.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations in ascending version order. The last version is the current
// schema version.
var migrations = []migration{
	{
		version: 1,
		name:    "index policy checks by policy name",
		stmt:    `CREATE INDEX IF NOT EXISTS idx_policy_checks_policy ON policy_checks(policy)`,
	},
}

// pragmas are applied on every open.
var pragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},   // readers never block the single writer
	{"synchronous", "NORMAL"}, // safe with WAL
	{"busy_timeout", "5000"},  // milliseconds
	{"foreign_keys", "ON"},    // checks reference computations
}

// Store is a content-addressed catalog of computations and the policy
// checks recorded against them.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path, applies pragmas and
// brings the schema up to date. Opening the same path again is harmless.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite has a single writer and pragmas are
	// per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", p.name, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	version, err := migrate(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	Logger().Debug("store opened", zap.String("path", path), zap.Int("schema_version", version))
	return &Store{db: db}, nil
}

// Close closes the database. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle for tests and ad hoc inspection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate runs every migration above the database's user_version, each in
// its own transaction, and returns the resulting version.
func migrate(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return 0, fmt.Errorf("migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("migration %d: set user_version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("migration %d: %w", m.version, err)
		}
		Logger().Info("store migrated", zap.Int("version", m.version), zap.String("migration", m.name))
		version = m.version
	}
	return version, nil
}

// pragma reads the current value of a pragma.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to query %s: %w", name, err)
	}
	return value, nil
}
