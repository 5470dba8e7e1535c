package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/srdaspradeep-gif/DMsDoc/core"
)

type RuleDB struct {
	*sql.DB
	active         *sql.Stmt
	approvers      *sql.Stmt
	clearApprovers *sql.Stmt
	delete         *sql.Stmt
	get            *sql.Stmt
	insert         *sql.Stmt
	insertApprover *sql.Stmt
	list           *sql.Stmt
	update         *sql.Stmt
}

func NewRuleDB(db *sql.DB) *RuleDB {

	mustExec(db, `
		CREATE TABLE IF NOT EXISTS folder_rule (
			id TEXT PRIMARY KEY,
			folder_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			resolution_text TEXT NOT NULL DEFAULT '',
			apply_to_subfolders INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_by TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS folder_rule_folder_idx ON folder_rule(folder_id, is_active);
		CREATE TABLE IF NOT EXISTS folder_rule_approver (
			id TEXT PRIMARY KEY,
			rule_id TEXT NOT NULL REFERENCES folder_rule(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			order_index INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS folder_rule_approver_rule_idx ON folder_rule_approver(rule_id);`)

	const columns = "id, folder_id, mode, resolution_text, apply_to_subfolders, is_active, created_by, created_at, updated_at"

	var ruleDB = &RuleDB{}
	ruleDB.DB = db
	ruleDB.active = mustPrepare(db, "SELECT "+columns+" FROM folder_rule WHERE folder_id = ? AND is_active = 1 ORDER BY created_at, rowid LIMIT 1")
	ruleDB.approvers = mustPrepare(db, "SELECT id, user_id, order_index FROM folder_rule_approver WHERE rule_id = ? ORDER BY order_index, rowid")
	ruleDB.clearApprovers = mustPrepare(db, "DELETE FROM folder_rule_approver WHERE rule_id = ?")
	ruleDB.delete = mustPrepare(db, "DELETE FROM folder_rule WHERE id = ?")
	ruleDB.get = mustPrepare(db, "SELECT "+columns+" FROM folder_rule WHERE id = ? LIMIT 1")
	ruleDB.insert = mustPrepare(db, "INSERT INTO folder_rule ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	ruleDB.insertApprover = mustPrepare(db, "INSERT INTO folder_rule_approver (id, rule_id, user_id, order_index) VALUES (?, ?, ?, ?)")
	ruleDB.list = mustPrepare(db, "SELECT "+columns+" FROM folder_rule WHERE (? = '' OR folder_id = ?) AND (? < 0 OR is_active = ?) ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?")
	ruleDB.update = mustPrepare(db, "UPDATE folder_rule SET mode = ?, resolution_text = ?, apply_to_subfolders = ?, is_active = ?, updated_at = ? WHERE id = ?")
	return ruleDB
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row scanner) (*core.FolderRule, error) {
	var r = &core.FolderRule{}
	var mode string
	var apply, active int
	var createdAt, updatedAt int64
	if err := row.Scan(&r.ID, &r.FolderID, &mode, &r.ResolutionText, &apply, &active, &r.CreatedBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.Mode = core.Mode(mode)
	r.ApplyToSubfolders = apply != 0
	r.IsActive = active != 0
	r.CreatedAt = fromUnix(createdAt)
	r.UpdatedAt = fromUnix(updatedAt)
	return r, nil
}

func (db *RuleDB) loadApprovers(ctx context.Context, r *core.FolderRule) error {

	rows, err := db.approvers.QueryContext(ctx, r.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	r.Approvers = []core.RuleApprover{}
	for rows.Next() {
		var a = core.RuleApprover{
			RuleID: r.ID,
		}
		if err = rows.Scan(&a.ID, &a.UserID, &a.OrderIndex); err != nil {
			return err
		}
		r.Approvers = append(r.Approvers, a)
	}
	return rows.Err()
}

func (db *RuleDB) ActiveRuleOf(ctx context.Context, folderID string) (*core.FolderRule, error) {
	r, err := scanRule(db.active.QueryRowContext(ctx, folderID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, db.loadApprovers(ctx, r)
}

func (db *RuleDB) GetRule(ctx context.Context, id string) (*core.FolderRule, error) {
	r, err := scanRule(db.get.QueryRowContext(ctx, id))
	if err != nil {
		return nil, notFound(err, "folder rule", id)
	}
	return r, db.loadApprovers(ctx, r)
}

func (db *RuleDB) ListRules(ctx context.Context, filter core.RuleFilter) ([]*core.FolderRule, error) {

	var active = -1
	if filter.IsActive != nil {
		active = boolInt(*filter.IsActive)
	}

	rows, err := db.list.QueryContext(ctx, filter.FolderID, filter.FolderID, active, active, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}

	var all = []*core.FolderRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		all = append(all, r)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for _, r := range all {
		if err = db.loadApprovers(ctx, r); err != nil {
			return nil, err
		}
	}
	return all, nil
}

func (db *RuleDB) writeApprovers(ctx context.Context, tx *sql.Tx, r *core.FolderRule) error {
	for i := range r.Approvers {
		var a = &r.Approvers[i]
		a.ID = newID()
		a.RuleID = r.ID
		if _, err := tx.StmtContext(ctx, db.insertApprover).ExecContext(ctx, a.ID, r.ID, a.UserID, a.OrderIndex); err != nil {
			return err
		}
	}
	return nil
}

func (db *RuleDB) InsertRule(ctx context.Context, r *core.FolderRule) error {

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	r.ID = newID()
	_, err = tx.StmtContext(ctx, db.insert).ExecContext(ctx, r.ID, r.FolderID, string(r.Mode), r.ResolutionText, boolInt(r.ApplyToSubfolders), boolInt(r.IsActive), r.CreatedBy, unix(r.CreatedAt), unix(r.UpdatedAt))
	if err != nil {
		tx.Rollback()
		r.ID = ""
		return err
	}

	if err = db.writeApprovers(ctx, tx, r); err != nil {
		tx.Rollback()
		r.ID = ""
		return err
	}

	return tx.Commit()
}

func (db *RuleDB) UpdateRule(ctx context.Context, r *core.FolderRule) error {

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	res, err := tx.StmtContext(ctx, db.update).ExecContext(ctx, string(r.Mode), r.ResolutionText, boolInt(r.ApplyToSubfolders), boolInt(r.IsActive), unix(r.UpdatedAt), r.ID)
	if err != nil {
		tx.Rollback()
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return fmt.Errorf("%w: folder rule %s", core.ErrNotFound, r.ID)
	}

	_, err = tx.StmtContext(ctx, db.clearApprovers).ExecContext(ctx, r.ID)
	if err != nil {
		tx.Rollback()
		return err
	}

	if err = db.writeApprovers(ctx, tx, r); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (db *RuleDB) DeleteRule(ctx context.Context, id string) error {

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.StmtContext(ctx, db.clearApprovers).ExecContext(ctx, id)
	if err != nil {
		tx.Rollback()
		return err
	}

	res, err := tx.StmtContext(ctx, db.delete).ExecContext(ctx, id)
	if err != nil {
		tx.Rollback()
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return fmt.Errorf("%w: folder rule %s", core.ErrNotFound, id)
	}

	return tx.Commit()
}
