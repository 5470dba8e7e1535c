package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CoreDB glues the storage interfaces together. Many of its methods shadow storage methods and add validation,
// notifications and logging.
type CoreDB struct {
	AccessDB
	FolderDB
	NotificationDB
	RuleDB
	UserDB
	WorkflowDB

	Log       *zap.Logger
	Publisher Publisher        // optional
	Now       func() time.Time // for tests, defaults to time.Now
}

// Init sets defaults for unset optional fields.
func (c *CoreDB) Init() {
	if c.Log == nil {
		c.Log = zap.NewNop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

func (c *CoreDB) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}

// A WorkflowDB stores workflows together with their steps.
type WorkflowDB interface {
	DeleteWorkflow(ctx context.Context, id string) error
	GetStepWorkflowID(ctx context.Context, stepID string) (string, error)
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	InsertWorkflow(ctx context.Context, w *Workflow) error // sets the ids of w and its steps
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*Workflow, error)
	PendingWorkflowsOf(ctx context.Context, approverID string) ([]*Workflow, error) // pending workflows with a pending step of the approver

	// UpdateWorkflow loads the workflow, calls fn and stores the result atomically.
	// Concurrent updates of the same workflow are serialized. fn may be called more than once and must only modify its argument.
	UpdateWorkflow(ctx context.Context, id string, fn func(w *Workflow) error) (*Workflow, error)
}

type WorkflowFilter struct {
	FileID string         // optional
	Status WorkflowStatus // optional
	Limit  int
	Offset int
}

// Paging defaults of list operations.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
