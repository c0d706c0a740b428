package shared

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteParams enables cascading deletes of stored matches and waits on a locked history file
// instead of failing when two runs finish at once.
const sqliteParams = "_foreign_keys=on&_busy_timeout=5000"

// NewDatabase opens the SQLite history database at path (":memory:" works for tests).
// Paths that already carry DSN parameters are used as given.
func NewDatabase(path string) (*sql.DB, error) {
	dsn := path
	if !strings.Contains(path, "?") {
		dsn = path + "?" + sqliteParams
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}

	return db, nil
}

// ConfigureDatabase applies the pool limits from [DatabaseConfig]. Non-positive values keep the
// database/sql defaults.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}
