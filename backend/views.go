package backend

import (
	"time"

	"github.com/srdaspradeep-gif/DMsDoc/core"
)

type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func newUserView(u *core.User) userView {
	return userView{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	}
}

type stepView struct {
	ID               string     `json:"id"`
	WorkflowID       string     `json:"workflow_id"`
	ApproverID       string     `json:"approver_user_id"`
	ApproverUsername string     `json:"approver_username,omitempty"`
	ApproverEmail    string     `json:"approver_email,omitempty"`
	OrderIndex       int        `json:"order_index"`
	Status           string     `json:"status"`
	Comment          string     `json:"comment,omitempty"`
	ActedAt          *time.Time `json:"acted_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

type workflowView struct {
	ID             string     `json:"id"`
	FileID         string     `json:"file_id"`
	FileName       string     `json:"file_name,omitempty"`
	InitiatedBy    string     `json:"initiated_by"`
	Mode           string     `json:"mode"`
	ResolutionText string     `json:"resolution_text"`
	ResolutionHTML string     `json:"resolution_html,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	Steps          []stepView `json:"steps"`
}

func newStepView(s *core.Step) stepView {
	return stepView{
		ID:         s.ID,
		WorkflowID: s.WorkflowID,
		ApproverID: s.ApproverID,
		OrderIndex: s.OrderIndex,
		Status:     string(s.Status),
		Comment:    s.Comment,
		ActedAt:    s.ActedAt,
		CreatedAt:  s.CreatedAt,
	}
}

func newWorkflowView(w *core.Workflow) workflowView {
	var v = workflowView{
		ID:             w.ID,
		FileID:         w.FileID,
		InitiatedBy:    w.InitiatedBy,
		Mode:           string(w.Mode),
		ResolutionText: w.ResolutionText,
		Status:         string(w.Status),
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
		CompletedAt:    w.CompletedAt,
		Steps:          []stepView{},
	}
	for _, s := range w.Steps {
		v.Steps = append(v.Steps, newStepView(s))
	}
	return v
}

// enrich adds file name, approver details and rendered resolution text. Lookup failures leave the fields empty.
func (ctx *context) enrich(v *workflowView) {
	var c = ctx.req.Context()
	if file, err := ctx.db.GetFile(c, v.FileID); err == nil {
		v.FileName = file.Name
	}
	v.ResolutionHTML = core.RenderResolution(v.ResolutionText)
	var users = map[string]*core.User{}
	for i := range v.Steps {
		var s = &v.Steps[i]
		u, ok := users[s.ApproverID]
		if !ok {
			u, _ = ctx.db.GetUser(c, s.ApproverID)
			users[s.ApproverID] = u
		}
		if u != nil {
			s.ApproverUsername = u.Username
			s.ApproverEmail = u.Email
		}
	}
}

type ruleApproverView struct {
	UserID     string `json:"user_id"`
	OrderIndex int    `json:"order_index"`
}

type ruleView struct {
	ID                string             `json:"id"`
	FolderID          string             `json:"folder_id"`
	Mode              string             `json:"mode"`
	ResolutionText    string             `json:"resolution_text"`
	ApplyToSubfolders bool               `json:"apply_to_subfolders"`
	IsActive          bool               `json:"is_active"`
	CreatedBy         string             `json:"created_by"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	Approvers         []ruleApproverView `json:"approvers"`
}

func newRuleView(r *core.FolderRule) ruleView {
	var v = ruleView{
		ID:                r.ID,
		FolderID:          r.FolderID,
		Mode:              string(r.Mode),
		ResolutionText:    r.ResolutionText,
		ApplyToSubfolders: r.ApplyToSubfolders,
		IsActive:          r.IsActive,
		CreatedBy:         r.CreatedBy,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		Approvers:         []ruleApproverView{},
	}
	for _, a := range r.Approvers {
		v.Approvers = append(v.Approvers, ruleApproverView{
			UserID:     a.UserID,
			OrderIndex: a.OrderIndex,
		})
	}
	return v
}

type notificationView struct {
	ID                string     `json:"id"`
	Type              string     `json:"notification_type"`
	Title             string     `json:"title"`
	Message           string     `json:"message"`
	RelatedEntityType string     `json:"related_entity_type,omitempty"`
	RelatedEntityID   string     `json:"related_entity_id,omitempty"`
	IsRead            bool       `json:"is_read"`
	ReadAt            *time.Time `json:"read_at"`
	CreatedAt         time.Time  `json:"created_at"`
}

func newNotificationView(n *core.Notification) notificationView {
	return notificationView{
		ID:                n.ID,
		Type:              string(n.Type),
		Title:             n.Title,
		Message:           n.Message,
		RelatedEntityType: n.RelatedEntityType,
		RelatedEntityID:   n.RelatedEntityID,
		IsRead:            n.IsRead,
		ReadAt:            n.ReadAt,
		CreatedAt:         n.CreatedAt,
	}
}

type settingsView struct {
	EventType     string `json:"event_type"`
	Mode          string `json:"mode"`
	GroupInterval string `json:"group_interval,omitempty"`
}

func newSettingsView(s core.NotificationSettings) settingsView {
	return settingsView{
		EventType:     s.EventType,
		Mode:          string(s.Mode),
		GroupInterval: string(s.GroupInterval),
	}
}
