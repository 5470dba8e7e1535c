package core

import (
	"fmt"
	"sort"
	"time"
)

// Mode determines whether the steps of a workflow are actionable one after another or all at once.
type Mode string

const (
	Serial   Mode = "serial"
	Parallel Mode = "parallel"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case Serial, Parallel:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalid, s)
}

type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowApproved  WorkflowStatus = "approved"
	WorkflowRejected  WorkflowStatus = "rejected"
	WorkflowCancelled WorkflowStatus = "cancelled"
)

func ParseWorkflowStatus(s string) (WorkflowStatus, error) {
	switch st := WorkflowStatus(s); st {
	case WorkflowPending, WorkflowApproved, WorkflowRejected, WorkflowCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown workflow status %q", ErrInvalid, s)
}

// Terminal returns true for every status except pending.
func (s WorkflowStatus) Terminal() bool {
	return s != WorkflowPending
}

type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepApproved StepStatus = "approved"
	StepRejected StepStatus = "rejected"
	StepSkipped  StepStatus = "skipped"
)

type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case Approve, Reject:
		return d, nil
	}
	return "", fmt.Errorf("%w: unknown decision %q", ErrInvalid, s)
}

// Past returns "approved" or "rejected".
func (d Decision) Past() string {
	switch d {
	case Approve:
		return "approved"
	case Reject:
		return "rejected"
	}
	return string(d)
}

// A Workflow is one sign-off process for one file. It owns its steps.
//
// Status is derived from the steps. Mutate a workflow only through Decide and Cancel,
// which recompute it.
type Workflow struct {
	ID             string
	FileID         string
	InitiatedBy    string
	Mode           Mode
	ResolutionText string
	Status         WorkflowStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
	Version        int     // incremented by the storage layer on every update
	Steps          []*Step // sorted by OrderIndex
}

// A Step is the slot of one approver within a workflow.
type Step struct {
	ID         string
	WorkflowID string
	ApproverID string
	OrderIndex int
	Status     StepStatus
	Comment    string
	ActedAt    *time.Time
	CreatedAt  time.Time
}

// SortSteps sorts the steps by OrderIndex. Steps with equal OrderIndex keep their relative order.
func (w *Workflow) SortSteps() {
	sort.SliceStable(w.Steps, func(i, j int) bool {
		return w.Steps[i].OrderIndex < w.Steps[j].OrderIndex
	})
}

// Step returns the step with the given id, or nil.
func (w *Workflow) Step(id string) *Step {
	for _, s := range w.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Actionable returns whether step can be decided right now.
//
// In parallel mode, this is every pending step. In serial mode, every step with a lower OrderIndex must be approved.
// The scan stops at the first step with the same OrderIndex, so steps sharing an OrderIndex are not checked against each other.
func (w *Workflow) Actionable(step *Step) bool {
	if w.Status != WorkflowPending || step.Status != StepPending {
		return false
	}
	return w.previousApproved(step)
}

func (w *Workflow) previousApproved(step *Step) bool {
	if w.Mode != Serial {
		return true
	}
	for _, s := range w.Steps {
		if s.OrderIndex < step.OrderIndex {
			if s.Status != StepApproved {
				return false
			}
		} else if s.OrderIndex == step.OrderIndex {
			break
		}
	}
	return true
}

// NextPendingAfter returns the first pending step whose OrderIndex is greater than the one of step, or nil.
func (w *Workflow) NextPendingAfter(step *Step) *Step {
	for _, s := range w.Steps {
		if s.OrderIndex > step.OrderIndex && s.Status == StepPending {
			return s
		}
	}
	return nil
}

// Recompute derives the workflow status from the full step set.
// A rejected step rejects the workflow and skips all pending steps.
func (w *Workflow) Recompute(now time.Time) {

	var allApproved = true

	for _, s := range w.Steps {
		if s.Status == StepRejected {
			w.finish(WorkflowRejected, now)
			return
		}
		if s.Status != StepApproved {
			allApproved = false
		}
	}

	if allApproved {
		w.finish(WorkflowApproved, now)
		return
	}

	w.Status = WorkflowPending
	w.CompletedAt = nil
}

// finish sets a terminal status and skips the remaining pending steps.
func (w *Workflow) finish(status WorkflowStatus, now time.Time) {
	w.Status = status
	if w.CompletedAt == nil {
		w.CompletedAt = &now
	}
	for _, s := range w.Steps {
		if s.Status == StepPending {
			s.Status = StepSkipped
		}
	}
}

// Decide records the decision of userID on the step with the given id and recomputes the workflow status.
func (w *Workflow) Decide(stepID, userID string, decision Decision, comment string, now time.Time) (*Step, error) {

	var step = w.Step(stepID)
	if step == nil {
		return nil, fmt.Errorf("%w: approval step %s", ErrNotFound, stepID)
	}

	if step.ApproverID != userID {
		return nil, fmt.Errorf("%w: not authorized to decide this step", ErrForbidden)
	}

	if step.Status != StepPending {
		return nil, fmt.Errorf("%w: step is already %s", ErrConflict, step.Status)
	}

	if w.Status != WorkflowPending {
		return nil, fmt.Errorf("%w: workflow is already %s", ErrConflict, w.Status)
	}

	if !w.previousApproved(step) {
		return nil, fmt.Errorf("%w: previous approvers must approve first", ErrConflict)
	}

	switch decision {
	case Approve:
		step.Status = StepApproved
	case Reject:
		step.Status = StepRejected
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalid, decision)
	}
	step.Comment = comment
	step.ActedAt = &now

	w.Recompute(now)
	w.UpdatedAt = now
	return step, nil
}

// Cancel cancels a pending workflow. Only the initiator may do that.
func (w *Workflow) Cancel(userID string, now time.Time) error {

	if w.InitiatedBy != userID {
		return fmt.Errorf("%w: only the initiator can cancel the workflow", ErrForbidden)
	}

	if w.Status != WorkflowPending {
		return fmt.Errorf("%w: cannot cancel workflow with status %s", ErrConflict, w.Status)
	}

	w.finish(WorkflowCancelled, now)
	w.UpdatedAt = now
	return nil
}
