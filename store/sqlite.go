package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

// OpenSQLite opens (creating if necessary) a SQLite-backed Store at path.
// Pass ":memory:" for an ephemeral in-memory database, used in tests.
func OpenSQLite(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite database: %w", err)
	}

	// The store is single-writer/many-reader per spec.md §4.2; SQLite's
	// own locking serializes writers, so one connection is sufficient
	// and avoids "database is locked" errors under modernc.org/sqlite.
	db.SetMaxOpenConns(1)

	return newSQLStore(db, sqliteDialect, schemaSQLite)
}
