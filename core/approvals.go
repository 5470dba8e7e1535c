package core

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultResolutionText is used for workflows created from a rule without resolution text.
const DefaultResolutionText = "Automatic approval required"

// A cases.Caser must not be used concurrently.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// WorkflowRequest holds the input of CreateWorkflow.
type WorkflowRequest struct {
	FileID         string
	Mode           Mode
	ResolutionText string
	Approvers      []ApproverInput
}

// CreateWorkflow creates a pending workflow with one pending step per approver and notifies the approvers whose turn it is.
func (c *CoreDB) CreateWorkflow(ctx context.Context, req WorkflowRequest, initiator string) (*Workflow, error) {
	return c.createWorkflow(ctx, req, initiator, "manual")
}

func (c *CoreDB) createWorkflow(ctx context.Context, req WorkflowRequest, initiator, origin string) (*Workflow, error) {

	file, err := c.FolderDB.GetFile(ctx, req.FileID)
	if err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}

	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	if err := c.checkApprovers(ctx, req.Approvers); err != nil {
		return nil, err
	}

	var now = c.now()
	var workflow = &Workflow{
		FileID:         file.ID,
		InitiatedBy:    initiator,
		Mode:           mode,
		ResolutionText: req.ResolutionText,
		Status:         WorkflowPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, a := range req.Approvers {
		workflow.Steps = append(workflow.Steps, &Step{
			ApproverID: a.UserID,
			OrderIndex: a.OrderIndex,
			Status:     StepPending,
			CreatedAt:  now,
		})
	}
	workflow.SortSteps()

	if err := c.WorkflowDB.InsertWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	workflowsCreated.WithLabelValues(string(mode), origin).Inc()
	c.Log.Info("workflow created",
		zap.String("workflow", workflow.ID),
		zap.String("file", file.ID),
		zap.String("mode", string(mode)),
		zap.Int("steps", len(workflow.Steps)),
		zap.String("origin", origin),
	)

	for _, step := range workflow.Steps {
		if workflow.Actionable(step) {
			c.notifyBestEffort(ctx, step.ApproverID, NotificationAssigned,
				"New Approval Request",
				"You have been assigned to approve: "+file.Name,
				workflow.ID)
		}
	}

	return workflow, nil
}

// Decide records a decision on an approval step. The read-modify-write of the workflow is serialized by the WorkflowDB.
// Notifications are sent after the decision is stored. Their failure does not affect the result.
func (c *CoreDB) Decide(ctx context.Context, stepID, userID string, decision Decision, comment string) (*Step, error) {

	// unknown step before invalid decision
	workflowID, err := c.WorkflowDB.GetStepWorkflowID(ctx, stepID)
	if err != nil {
		return nil, err
	}

	if _, err := ParseDecision(string(decision)); err != nil {
		return nil, err
	}

	var decided *Step
	workflow, err := c.WorkflowDB.UpdateWorkflow(ctx, workflowID, func(w *Workflow) error {
		step, err := w.Decide(stepID, userID, decision, comment, c.now())
		decided = step
		return err
	})
	if err != nil {
		return nil, err
	}

	decisionsTotal.WithLabelValues(string(decision)).Inc()
	c.Log.Info("approval decided",
		zap.String("workflow", workflow.ID),
		zap.String("step", decided.ID),
		zap.String("user", userID),
		zap.String("decision", string(decision)),
		zap.String("workflow_status", string(workflow.Status)),
	)
	if workflow.Status.Terminal() {
		workflowsCompleted.WithLabelValues(string(workflow.Status)).Inc()
	}

	c.notifyDecision(ctx, workflow, decided, decision)
	return decided, nil
}

func (c *CoreDB) notifyDecision(ctx context.Context, workflow *Workflow, step *Step, decision Decision) {

	var fileName = workflow.FileID
	if file, err := c.FolderDB.GetFile(ctx, workflow.FileID); err == nil {
		fileName = file.Name
	}

	var typ = NotificationApproved
	if decision == Reject {
		typ = NotificationRejected
	}
	c.notifyBestEffort(ctx, workflow.InitiatedBy, typ,
		"Approval "+titleCase(decision.Past()),
		c.displayName(ctx, step.ApproverID)+" "+decision.Past()+": "+fileName,
		workflow.ID)

	if workflow.Status == WorkflowApproved || workflow.Status == WorkflowRejected {
		for _, s := range workflow.Steps {
			if s.ApproverID != step.ApproverID {
				c.notifyBestEffort(ctx, s.ApproverID, NotificationCompleted,
					"Workflow "+titleCase(string(workflow.Status)),
					fmt.Sprintf("Approval workflow for %s is %s", fileName, workflow.Status),
					workflow.ID)
			}
		}
	}

	if workflow.Mode == Serial && decision == Approve && workflow.Status == WorkflowPending {
		if next := workflow.NextPendingAfter(step); next != nil {
			c.notifyBestEffort(ctx, next.ApproverID, NotificationAssigned,
				"Your Turn to Approve",
				"You can now approve: "+fileName,
				workflow.ID)
		}
	}
}

// CancelWorkflow cancels a pending workflow on behalf of its initiator.
func (c *CoreDB) CancelWorkflow(ctx context.Context, workflowID, userID string) (*Workflow, error) {

	workflow, err := c.WorkflowDB.UpdateWorkflow(ctx, workflowID, func(w *Workflow) error {
		return w.Cancel(userID, c.now())
	})
	if err != nil {
		return nil, err
	}

	workflowsCompleted.WithLabelValues(string(WorkflowCancelled)).Inc()
	c.Log.Info("workflow cancelled", zap.String("workflow", workflowID), zap.String("user", userID))
	return workflow, nil
}

// PendingApproval is a step which its approver can decide right now.
type PendingApproval struct {
	Step     *Step
	Workflow *Workflow
}

// ListMyPending returns the steps of the user which are actionable now, oldest first.
// Steps of serial workflows are only included when all previous steps are approved.
func (c *CoreDB) ListMyPending(ctx context.Context, userID string, limit, offset int) ([]PendingApproval, error) {

	limit, offset = clampPage(limit, offset)

	workflows, err := c.WorkflowDB.PendingWorkflowsOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	var result []PendingApproval
	for _, w := range workflows {
		for _, s := range w.Steps {
			if s.ApproverID == userID && w.Actionable(s) {
				result = append(result, PendingApproval{
					Step:     s,
					Workflow: w,
				})
			}
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Step.CreatedAt.Before(result[j].Step.CreatedAt)
	})

	if offset >= len(result) {
		return []PendingApproval{}, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListWorkflows shadows WorkflowDB.ListWorkflows.
func (c *CoreDB) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*Workflow, error) {
	if filter.Status != "" {
		if _, err := ParseWorkflowStatus(string(filter.Status)); err != nil {
			return nil, err
		}
	}
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return c.WorkflowDB.ListWorkflows(ctx, filter)
}

// DeleteWorkflow shadows WorkflowDB.DeleteWorkflow. Steps are deleted with the workflow, notifications are kept.
func (c *CoreDB) DeleteWorkflow(ctx context.Context, workflowID, userID string) error {
	if err := c.WorkflowDB.DeleteWorkflow(ctx, workflowID); err != nil {
		return err
	}
	c.Log.Info("workflow deleted", zap.String("workflow", workflowID), zap.String("user", userID))
	return nil
}

// AutoCreateForFile creates a workflow for a new file if a folder rule applies. It returns nil, nil if not.
func (c *CoreDB) AutoCreateForFile(ctx context.Context, fileID, folderID, initiator string) (*Workflow, error) {

	rule, err := c.ApplicableRule(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if rule == nil || len(rule.Approvers) == 0 {
		return nil, nil
	}

	var req = WorkflowRequest{
		FileID:         fileID,
		Mode:           rule.Mode,
		ResolutionText: rule.ResolutionText,
	}
	if req.ResolutionText == "" {
		req.ResolutionText = DefaultResolutionText
	}
	for _, a := range rule.Approvers {
		req.Approvers = append(req.Approvers, ApproverInput{
			UserID:     a.UserID,
			OrderIndex: a.OrderIndex,
		})
	}

	c.Log.Debug("folder rule applies", zap.String("file", fileID), zap.String("folder", folderID), zap.String("rule", rule.ID))
	return c.createWorkflow(ctx, req, initiator, "rule")
}
