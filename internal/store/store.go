package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// LedgerVersion is stamped into user_version of every ledger this package
// creates. Bump it whenever schema.sql changes incompatibly.
const LedgerVersion = 1

// ErrLedgerVersion is returned by Open for a ledger written by an
// incompatible twinshot.
var ErrLedgerVersion = errors.New("unsupported ledger version")

// Store is a run ledger backed by a single SQLite file.
type Store struct {
	db *sql.DB
}

// Create removes any ledger at path and opens a fresh one. Use it at the
// start of a run so the file never holds history.
func Create(path string) (*Store, error) {
	for _, p := range []string{path, path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove previous ledger: %w", err)
		}
	}
	return Open(path)
}

// Open opens the ledger at path, creating it if needed.
//
// The ledger keeps the rollback journal (not WAL) so a finished run is one
// self-contained file that can be archived or handed to `twinshot report`
// elsewhere.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One writer per run; pragmas are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = DELETE",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if err := initLedger(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initLedger creates the tables of a fresh file and checks the version of
// an existing one. A version of 0 means the file has never been stamped.
func initLedger(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read ledger version: %w", err)
	}
	if version != 0 && version != LedgerVersion {
		return fmt.Errorf("%w: %d (want %d)", ErrLedgerVersion, version, LedgerVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", LedgerVersion)); err != nil {
		return fmt.Errorf("failed to stamp ledger version: %w", err)
	}
	return nil
}
