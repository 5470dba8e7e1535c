package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/srdaspradeep-gif/DMsDoc/core"
)

// maxAttempts bounds the retries of UpdateWorkflow after a lost race.
const maxAttempts = 5

var errVersionMismatch = errors.New("version mismatch")

type WorkflowDB struct {
	*sql.DB
	delete      *sql.Stmt
	deleteSteps *sql.Stmt
	get         *sql.Stmt
	insert      *sql.Stmt
	insertStep  *sql.Stmt
	list        *sql.Stmt
	pendingOf   *sql.Stmt
	stepOwner   *sql.Stmt
	steps       *sql.Stmt
	update      *sql.Stmt
	updateStep  *sql.Stmt
}

func NewWorkflowDB(db *sql.DB) *WorkflowDB {

	mustExec(db, `
		CREATE TABLE IF NOT EXISTS approval_workflow (
			id TEXT PRIMARY KEY,
			file_id TEXT NOT NULL,
			initiated_by TEXT NOT NULL,
			mode TEXT NOT NULL,
			resolution_text TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			completed_at INTEGER,
			version INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS approval_workflow_file_idx ON approval_workflow(file_id);
		CREATE TABLE IF NOT EXISTS approval_step (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL REFERENCES approval_workflow(id) ON DELETE CASCADE,
			approver_id TEXT NOT NULL,
			order_index INTEGER NOT NULL,
			status TEXT NOT NULL,
			comment TEXT NOT NULL DEFAULT '',
			acted_at INTEGER,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS approval_step_workflow_idx ON approval_step(workflow_id);
		CREATE INDEX IF NOT EXISTS approval_step_approver_idx ON approval_step(approver_id, status);`)

	var workflowDB = &WorkflowDB{}
	workflowDB.DB = db
	workflowDB.delete = mustPrepare(db, "DELETE FROM approval_workflow WHERE id = ?")
	workflowDB.deleteSteps = mustPrepare(db, "DELETE FROM approval_step WHERE workflow_id = ?")
	workflowDB.get = mustPrepare(db, "SELECT file_id, initiated_by, mode, resolution_text, status, created_at, updated_at, completed_at, version FROM approval_workflow WHERE id = ? LIMIT 1")
	workflowDB.insert = mustPrepare(db, "INSERT INTO approval_workflow (id, file_id, initiated_by, mode, resolution_text, status, created_at, updated_at, completed_at, version) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)")
	workflowDB.insertStep = mustPrepare(db, "INSERT INTO approval_step (id, workflow_id, approver_id, order_index, status, comment, acted_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	workflowDB.list = mustPrepare(db, "SELECT id FROM approval_workflow WHERE (? = '' OR file_id = ?) AND (? = '' OR status = ?) ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?")
	workflowDB.pendingOf = mustPrepare(db, "SELECT DISTINCT w.id FROM approval_workflow w JOIN approval_step s ON s.workflow_id = w.id WHERE w.status = 'pending' AND s.status = 'pending' AND s.approver_id = ?")
	workflowDB.stepOwner = mustPrepare(db, "SELECT workflow_id FROM approval_step WHERE id = ? LIMIT 1")
	workflowDB.steps = mustPrepare(db, "SELECT id, approver_id, order_index, status, comment, acted_at, created_at FROM approval_step WHERE workflow_id = ? ORDER BY order_index, rowid")
	workflowDB.update = mustPrepare(db, "UPDATE approval_workflow SET status = ?, updated_at = ?, completed_at = ?, version = version + 1 WHERE id = ? AND version = ?")
	workflowDB.updateStep = mustPrepare(db, "UPDATE approval_step SET status = ?, comment = ?, acted_at = ? WHERE id = ? AND workflow_id = ?")
	return workflowDB
}

// load reads a workflow and its steps. If tx is not nil, it is used for all queries.
func (db *WorkflowDB) load(ctx context.Context, tx *sql.Tx, id string) (*core.Workflow, error) {

	var get, steps = db.get, db.steps
	if tx != nil {
		get = tx.StmtContext(ctx, db.get)
		steps = tx.StmtContext(ctx, db.steps)
	}

	var w = &core.Workflow{
		ID: id,
	}
	var mode, status string
	var createdAt, updatedAt int64
	var completedAt sql.NullInt64
	err := get.QueryRowContext(ctx, id).Scan(&w.FileID, &w.InitiatedBy, &mode, &w.ResolutionText, &status, &createdAt, &updatedAt, &completedAt, &w.Version)
	if err != nil {
		return nil, notFound(err, "workflow", id)
	}
	w.Mode = core.Mode(mode)
	w.Status = core.WorkflowStatus(status)
	w.CreatedAt = fromUnix(createdAt)
	w.UpdatedAt = fromUnix(updatedAt)
	w.CompletedAt = fromNullUnix(completedAt)

	rows, err := steps.QueryContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s = &core.Step{
			WorkflowID: id,
		}
		var stepStatus string
		var actedAt sql.NullInt64
		var stepCreatedAt int64
		if err = rows.Scan(&s.ID, &s.ApproverID, &s.OrderIndex, &stepStatus, &s.Comment, &actedAt, &stepCreatedAt); err != nil {
			return nil, err
		}
		s.Status = core.StepStatus(stepStatus)
		s.ActedAt = fromNullUnix(actedAt)
		s.CreatedAt = fromUnix(stepCreatedAt)
		w.Steps = append(w.Steps, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	w.SortSteps()
	return w, nil
}

func (db *WorkflowDB) loadAll(ctx context.Context, ids []string) ([]*core.Workflow, error) {
	var all = []*core.Workflow{}
	for _, id := range ids {
		w, err := db.load(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		all = append(all, w)
	}
	return all, nil
}

func queryIDs(ctx context.Context, stmt *sql.Stmt, args ...interface{}) ([]string, error) {

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids = []string{}
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (db *WorkflowDB) GetWorkflow(ctx context.Context, id string) (*core.Workflow, error) {
	return db.load(ctx, nil, id)
}

func (db *WorkflowDB) GetStepWorkflowID(ctx context.Context, stepID string) (string, error) {
	var workflowID string
	if err := db.stepOwner.QueryRowContext(ctx, stepID).Scan(&workflowID); err != nil {
		return "", notFound(err, "approval step", stepID)
	}
	return workflowID, nil
}

func (db *WorkflowDB) ListWorkflows(ctx context.Context, filter core.WorkflowFilter) ([]*core.Workflow, error) {
	ids, err := queryIDs(ctx, db.list, filter.FileID, filter.FileID, string(filter.Status), string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return db.loadAll(ctx, ids)
}

func (db *WorkflowDB) PendingWorkflowsOf(ctx context.Context, approverID string) ([]*core.Workflow, error) {
	ids, err := queryIDs(ctx, db.pendingOf, approverID)
	if err != nil {
		return nil, err
	}
	return db.loadAll(ctx, ids)
}

func (db *WorkflowDB) InsertWorkflow(ctx context.Context, w *core.Workflow) error {

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	var id = newID()
	_, err = tx.StmtContext(ctx, db.insert).ExecContext(ctx, id, w.FileID, w.InitiatedBy, string(w.Mode), w.ResolutionText, string(w.Status), unix(w.CreatedAt), unix(w.UpdatedAt), nullUnix(w.CompletedAt))
	if err != nil {
		tx.Rollback()
		return err
	}

	var stepIDs = make([]string, len(w.Steps))
	for i, s := range w.Steps {
		stepIDs[i] = newID()
		_, err = tx.StmtContext(ctx, db.insertStep).ExecContext(ctx, stepIDs[i], id, s.ApproverID, s.OrderIndex, string(s.Status), s.Comment, nullUnix(s.ActedAt), unix(s.CreatedAt))
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	w.ID = id
	w.Version = 0
	for i, s := range w.Steps {
		s.ID = stepIDs[i]
		s.WorkflowID = id
	}
	return nil
}

// UpdateWorkflow runs a read-modify-write of a workflow in one transaction. The workflow row is only written if its version
// is unchanged since it was read. On a mismatch, the whole transaction is retried.
//
// Open the database with _txlock=immediate, so concurrent writers queue up at BEGIN.
func (db *WorkflowDB) UpdateWorkflow(ctx context.Context, id string, fn func(w *core.Workflow) error) (*core.Workflow, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		w, err := db.updateOnce(ctx, id, fn)
		if errors.Is(err, errVersionMismatch) {
			continue
		}
		return w, err
	}
	return nil, fmt.Errorf("%w: workflow %s is modified concurrently, try again", core.ErrConflict, id)
}

func (db *WorkflowDB) updateOnce(ctx context.Context, id string, fn func(w *core.Workflow) error) (*core.Workflow, error) {

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	w, err := db.load(ctx, tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	var version = w.Version
	if err = fn(w); err != nil {
		tx.Rollback()
		return nil, err
	}

	res, err := tx.StmtContext(ctx, db.update).ExecContext(ctx, string(w.Status), unix(w.UpdatedAt), nullUnix(w.CompletedAt), id, version)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		tx.Rollback()
		return nil, errVersionMismatch
	}

	for _, s := range w.Steps {
		_, err = tx.StmtContext(ctx, db.updateStep).ExecContext(ctx, string(s.Status), s.Comment, nullUnix(s.ActedAt), s.ID, id)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	w.Version = version + 1
	return w, nil
}

func (db *WorkflowDB) DeleteWorkflow(ctx context.Context, id string) error {

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.StmtContext(ctx, db.deleteSteps).ExecContext(ctx, id)
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
		return fmt.Errorf("%w: workflow %s", core.ErrNotFound, id)
	}

	return tx.Commit()
}
