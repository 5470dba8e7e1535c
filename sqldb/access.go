package sqldb

import (
	"context"
	"database/sql"

	"github.com/srdaspradeep-gif/DMsDoc/core"
)

type AccessDB struct {
	db  *sql.DB
	get *sql.Stmt
	set *sql.Stmt
}

func NewAccessDB(db *sql.DB) *AccessDB {

	mustExec(db, `
		CREATE TABLE IF NOT EXISTS access (
			user_id TEXT NOT NULL,
			module TEXT NOT NULL,
			permission INTEGER NOT NULL,
			PRIMARY KEY (user_id, module)
		);`)

	var accessDB = &AccessDB{}
	accessDB.db = db
	accessDB.get = mustPrepare(db, "SELECT permission FROM access WHERE user_id = ? AND module = ?")
	accessDB.set = mustPrepare(db, "INSERT INTO access (user_id, module, permission) VALUES (?, ?, ?) ON CONFLICT (user_id, module) DO UPDATE SET permission = excluded.permission")
	return accessDB
}

func (e *AccessDB) GetPermission(ctx context.Context, userID, module string) (core.Permission, error) {
	var perm int
	err := e.get.QueryRowContext(ctx, userID, module).Scan(&perm)
	if err == sql.ErrNoRows {
		return core.PermNone, nil
	}
	if err != nil {
		return 0, err
	}
	return core.Permission(perm), nil
}

func (e *AccessDB) SetPermission(ctx context.Context, userID, module string, perm core.Permission) error {
	_, err := e.set.ExecContext(ctx, userID, module, int(perm))
	return err
}
