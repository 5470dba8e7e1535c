// Package sqlite3 stores http sessions in the SQLite database.
package sqlite3

import (
	"database/sql"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// NewSessionStore creates the sessions table if required. The store deletes expired sessions every five minutes.
func NewSessionStore(db *sql.DB) (scs.Store, error) {

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			expiry REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	if err != nil {
		return nil, err
	}

	return sqlite3store.New(db), nil
}
