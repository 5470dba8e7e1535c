package sqldb

import (
	"context"
	"database/sql"

	"github.com/srdaspradeep-gif/DMsDoc/core"
)

type FolderDB struct {
	*sql.DB
	getFile      *sql.Stmt
	getFolder    *sql.Stmt
	insertFile   *sql.Stmt
	insertFolder *sql.Stmt
}

func NewFolderDB(db *sql.DB) *FolderDB {

	mustExec(db, `
		CREATE TABLE IF NOT EXISTS folder (
			id TEXT PRIMARY KEY,
			parent_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			created_by TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS folder_parent_idx ON folder(parent_id);
		CREATE TABLE IF NOT EXISTS file (
			id TEXT PRIMARY KEY,
			folder_id TEXT NOT NULL REFERENCES folder(id),
			name TEXT NOT NULL,
			created_by TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`)

	var folderDB = &FolderDB{}
	folderDB.DB = db
	folderDB.getFile = mustPrepare(db, "SELECT folder_id, name, created_by, created_at FROM file WHERE id = ? LIMIT 1")
	folderDB.getFolder = mustPrepare(db, "SELECT parent_id, name, created_by, created_at FROM folder WHERE id = ? LIMIT 1")
	folderDB.insertFile = mustPrepare(db, "INSERT INTO file (id, folder_id, name, created_by, created_at) VALUES (?, ?, ?, ?, ?)")
	folderDB.insertFolder = mustPrepare(db, "INSERT INTO folder (id, parent_id, name, created_by, created_at) VALUES (?, ?, ?, ?, ?)")
	return folderDB
}

func (db *FolderDB) GetFile(ctx context.Context, id string) (*core.File, error) {
	var f = &core.File{
		ID: id,
	}
	var createdAt int64
	if err := db.getFile.QueryRowContext(ctx, id).Scan(&f.FolderID, &f.Name, &f.CreatedBy, &createdAt); err != nil {
		return nil, notFound(err, "file", id)
	}
	f.CreatedAt = fromUnix(createdAt)
	return f, nil
}

func (db *FolderDB) GetFolder(ctx context.Context, id string) (*core.Folder, error) {
	var f = &core.Folder{
		ID: id,
	}
	var createdAt int64
	if err := db.getFolder.QueryRowContext(ctx, id).Scan(&f.ParentID, &f.Name, &f.CreatedBy, &createdAt); err != nil {
		return nil, notFound(err, "folder", id)
	}
	f.CreatedAt = fromUnix(createdAt)
	return f, nil
}

func (db *FolderDB) InsertFile(ctx context.Context, f *core.File) error {
	var id = newID()
	if _, err := db.insertFile.ExecContext(ctx, id, f.FolderID, f.Name, f.CreatedBy, unix(f.CreatedAt)); err != nil {
		return err
	}
	f.ID = id
	return nil
}

func (db *FolderDB) InsertFolder(ctx context.Context, f *core.Folder) error {
	var id = newID()
	if _, err := db.insertFolder.ExecContext(ctx, id, f.ParentID, f.Name, f.CreatedBy, unix(f.CreatedAt)); err != nil {
		return err
	}
	f.ID = id
	return nil
}
