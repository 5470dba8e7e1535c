package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// A FolderRule creates an approval workflow when a file lands in its folder, or in a subfolder if ApplyToSubfolders is set.
type FolderRule struct {
	ID                string
	FolderID          string
	Mode              Mode
	ResolutionText    string
	ApplyToSubfolders bool
	IsActive          bool
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Approvers         []RuleApprover // sorted by OrderIndex
}

type RuleApprover struct {
	ID         string
	RuleID     string
	UserID     string
	OrderIndex int
}

// A RuleDB stores folder rules together with their approvers.
type RuleDB interface {
	ActiveRuleOf(ctx context.Context, folderID string) (*FolderRule, error) // nil, nil if the folder has no active rule
	DeleteRule(ctx context.Context, id string) error
	GetRule(ctx context.Context, id string) (*FolderRule, error)
	InsertRule(ctx context.Context, r *FolderRule) error // sets the ids of r and its approvers
	ListRules(ctx context.Context, filter RuleFilter) ([]*FolderRule, error)
	UpdateRule(ctx context.Context, r *FolderRule) error // replaces the approvers
}

type RuleFilter struct {
	FolderID string // optional
	IsActive *bool  // optional
	Limit    int
	Offset   int
}

// ApplicableRule returns the rule which applies to new files in the given folder, or nil.
//
// The folder's own active rule always applies. Otherwise the nearest ancestor with an active rule that has ApplyToSubfolders set wins.
func (c *CoreDB) ApplicableRule(ctx context.Context, folderID string) (*FolderRule, error) {

	rule, err := c.RuleDB.ActiveRuleOf(ctx, folderID)
	if err != nil || rule != nil {
		return rule, err
	}

	var visited = map[string]struct{}{folderID: {}}
	var current = folderID

	for depth := 0; depth < MaxFolderDepth; depth++ {

		folder, err := c.FolderDB.GetFolder(ctx, current)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if folder.ParentID == "" {
			return nil, nil
		}
		if _, ok := visited[folder.ParentID]; ok {
			c.Log.Warn("folder cycle", zap.String("folder", folderID), zap.String("parent", folder.ParentID))
			return nil, nil
		}
		visited[folder.ParentID] = struct{}{}
		current = folder.ParentID

		rule, err := c.RuleDB.ActiveRuleOf(ctx, current)
		if err != nil {
			return nil, err
		}
		if rule != nil && rule.ApplyToSubfolders {
			return rule, nil
		}
	}

	c.Log.Warn("folder hierarchy too deep", zap.String("folder", folderID), zap.Int("max_depth", MaxFolderDepth))
	return nil, nil
}

// RuleRequest holds the input of CreateRule and UpdateRule. In UpdateRule, nil fields are left unchanged.
type RuleRequest struct {
	FolderID          string
	Mode              *Mode
	ResolutionText    *string
	ApplyToSubfolders *bool
	IsActive          *bool
	Approvers         []ApproverInput // replaces all approvers if not nil
}

// ApproverInput assigns a user to an order index.
type ApproverInput struct {
	UserID     string `json:"user_id"`
	OrderIndex int    `json:"order_index"`
}

func (c *CoreDB) checkApprovers(ctx context.Context, approvers []ApproverInput) error {
	if len(approvers) == 0 {
		return fmt.Errorf("%w: at least one approver is required", ErrInvalid)
	}
	for _, a := range approvers {
		if _, err := c.UserDB.GetUser(ctx, a.UserID); err != nil {
			return fmt.Errorf("approver %s: %w", a.UserID, err)
		}
	}
	return nil
}

// checkSingleActive returns ErrConflict if another active rule exists on the folder.
func (c *CoreDB) checkSingleActive(ctx context.Context, folderID, ruleID string) error {
	existing, err := c.RuleDB.ActiveRuleOf(ctx, folderID)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != ruleID {
		return fmt.Errorf("%w: duplicate active rule on folder %s", ErrConflict, folderID)
	}
	return nil
}

func toRuleApprovers(in []ApproverInput) []RuleApprover {
	var out = make([]RuleApprover, len(in))
	for i, a := range in {
		out[i] = RuleApprover{
			UserID:     a.UserID,
			OrderIndex: a.OrderIndex,
		}
	}
	return out
}

// CreateRule shadows RuleDB.InsertRule. New rules are active unless req.IsActive says otherwise.
func (c *CoreDB) CreateRule(ctx context.Context, req RuleRequest, creator string) (*FolderRule, error) {

	if _, err := c.FolderDB.GetFolder(ctx, req.FolderID); err != nil {
		return nil, fmt.Errorf("folder: %w", err)
	}

	var rule = &FolderRule{
		FolderID:  req.FolderID,
		Mode:      Serial,
		IsActive:  true,
		CreatedBy: creator,
		CreatedAt: c.now(),
		UpdatedAt: c.now(),
	}
	if req.Mode != nil {
		mode, err := ParseMode(string(*req.Mode))
		if err != nil {
			return nil, err
		}
		rule.Mode = mode
	}
	if req.ResolutionText != nil {
		rule.ResolutionText = *req.ResolutionText
	}
	if req.ApplyToSubfolders != nil {
		rule.ApplyToSubfolders = *req.ApplyToSubfolders
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := c.checkApprovers(ctx, req.Approvers); err != nil {
		return nil, err
	}
	rule.Approvers = toRuleApprovers(req.Approvers)

	if rule.IsActive {
		if err := c.checkSingleActive(ctx, rule.FolderID, ""); err != nil {
			return nil, err
		}
	}

	if err := c.RuleDB.InsertRule(ctx, rule); err != nil {
		return nil, err
	}

	c.Log.Info("folder rule created", zap.String("rule", rule.ID), zap.String("folder", rule.FolderID), zap.String("by", creator))
	return rule, nil
}

// UpdateRule shadows RuleDB.UpdateRule. The folder of a rule can't be changed.
func (c *CoreDB) UpdateRule(ctx context.Context, id string, req RuleRequest) (*FolderRule, error) {

	rule, err := c.RuleDB.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Mode != nil {
		mode, err := ParseMode(string(*req.Mode))
		if err != nil {
			return nil, err
		}
		rule.Mode = mode
	}
	if req.ResolutionText != nil {
		rule.ResolutionText = *req.ResolutionText
	}
	if req.ApplyToSubfolders != nil {
		rule.ApplyToSubfolders = *req.ApplyToSubfolders
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.Approvers != nil {
		if err := c.checkApprovers(ctx, req.Approvers); err != nil {
			return nil, err
		}
		rule.Approvers = toRuleApprovers(req.Approvers)
	}

	if rule.IsActive {
		if err := c.checkSingleActive(ctx, rule.FolderID, rule.ID); err != nil {
			return nil, err
		}
	}

	rule.UpdatedAt = c.now()
	if err := c.RuleDB.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// ListRules shadows RuleDB.ListRules.
func (c *CoreDB) ListRules(ctx context.Context, filter RuleFilter) ([]*FolderRule, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return c.RuleDB.ListRules(ctx, filter)
}
