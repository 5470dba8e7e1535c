// Package sqldb implements the storage interfaces of package core on SQLite.
package sqldb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/srdaspradeep-gif/DMsDoc/core"
)

func mustPrepare(db *sql.DB, query string) *sql.Stmt {
	stmt, err := db.Prepare(query)
	if err != nil {
		panic(fmt.Sprintf("preparing %q: %v", query, err))
	}
	return stmt
}

func mustExec(db *sql.DB, schema string) {
	if _, err := db.Exec(schema); err != nil {
		panic(fmt.Sprintf("creating schema: %v", err))
	}
}

func newID() string {
	return uuid.NewString()
}

// notFound translates sql.ErrNoRows.
func notFound(err error, what, id string) error {
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s %s", core.ErrNotFound, what, id)
	}
	return err
}

// Timestamps are stored as unix nanoseconds.

func unix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullUnix(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	var t = fromUnix(n.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NewCoreDB creates all tables and wires the storage implementations into a CoreDB.
func NewCoreDB(db *sql.DB) *core.CoreDB {
	return &core.CoreDB{
		AccessDB:       NewAccessDB(db),
		FolderDB:       NewFolderDB(db),
		NotificationDB: NewNotificationDB(db),
		RuleDB:         NewRuleDB(db),
		UserDB:         NewUserDB(db),
		WorkflowDB:     NewWorkflowDB(db),
	}
}
