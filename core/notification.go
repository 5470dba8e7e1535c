package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/srdaspradeep-gif/DMsDoc/util"
	"go.uber.org/zap"
)

type NotificationType string

const (
	NotificationAssigned  NotificationType = "approval_assigned"
	NotificationApproved  NotificationType = "approval_approved"
	NotificationRejected  NotificationType = "approval_rejected"
	NotificationCompleted NotificationType = "approval_completed"
	NotificationReminder  NotificationType = "reminder_due"
)

// EventApproval is the settings event type which covers all approval notifications.
const EventApproval = "approval"

// RelatedWorkflow is the related entity type of approval notifications.
const RelatedWorkflow = "workflow"

// MaxTitleLength is the maximum length of a notification title in runes.
const MaxTitleLength = 200

type NotificationMode string

const (
	NotifyInstant NotificationMode = "instant"
	NotifyGrouped NotificationMode = "grouped"
	NotifyOff     NotificationMode = "off"
)

type GroupInterval string

const (
	IntervalNone   GroupInterval = ""
	IntervalDaily  GroupInterval = "daily"
	IntervalWeekly GroupInterval = "weekly"
)

type NotificationSettings struct {
	UserID        string
	EventType     string
	Mode          NotificationMode
	GroupInterval GroupInterval // only used in grouped mode
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DefaultSettings applies if a user has no settings for an event type.
func DefaultSettings(userID, eventType string) NotificationSettings {
	return NotificationSettings{
		UserID:    userID,
		EventType: eventType,
		Mode:      NotifyInstant,
	}
}

func (s NotificationSettings) validate() error {
	switch s.Mode {
	case NotifyInstant, NotifyOff:
		if s.GroupInterval != IntervalNone {
			return fmt.Errorf("%w: group interval requires grouped mode", ErrInvalid)
		}
	case NotifyGrouped:
		if s.GroupInterval != IntervalDaily && s.GroupInterval != IntervalWeekly {
			return fmt.Errorf("%w: unknown group interval %q", ErrInvalid, s.GroupInterval)
		}
	default:
		return fmt.Errorf("%w: unknown notification mode %q", ErrInvalid, s.Mode)
	}
	if s.EventType == "" {
		return fmt.Errorf("%w: event type can't be empty", ErrInvalid)
	}
	return nil
}

type Notification struct {
	ID                string
	UserID            string
	Type              NotificationType
	Title             string
	Message           string
	RelatedEntityType string
	RelatedEntityID   string
	IsRead            bool
	ReadAt            *time.Time
	CreatedAt         time.Time
}

// A NotificationDB stores notifications and notification settings.
type NotificationDB interface {
	CountUnread(ctx context.Context, userID string) (int, error)
	GetSettings(ctx context.Context, userID, eventType string) (NotificationSettings, error) // wraps ErrNotFound if absent
	InsertNotification(ctx context.Context, n *Notification) error                         // sets n.ID
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]*Notification, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error)
	MarkRead(ctx context.Context, userID, id string, at time.Time) (*Notification, error) // wraps ErrNotFound if the notification is not the user's
	PutSettings(ctx context.Context, s NotificationSettings) error
}

type NotificationFilter struct {
	UserID string
	IsRead *bool // optional
	Limit  int
	Offset int
}

// A Publisher hands persisted notifications to a delivery worker.
type Publisher interface {
	Publish(ctx context.Context, n *Notification, settings NotificationSettings) error
}

// Settings returns the notification settings of the user, or the defaults.
func (c *CoreDB) Settings(ctx context.Context, userID, eventType string) (NotificationSettings, error) {
	settings, err := c.NotificationDB.GetSettings(ctx, userID, eventType)
	if errors.Is(err, ErrNotFound) {
		return DefaultSettings(userID, eventType), nil
	}
	return settings, err
}

// GetNotificationSettings is like Settings. The event type defaults to EventApproval.
func (c *CoreDB) GetNotificationSettings(ctx context.Context, userID, eventType string) (NotificationSettings, error) {
	if eventType == "" {
		eventType = EventApproval
	}
	return c.Settings(ctx, userID, eventType)
}

// PutNotificationSettings validates and stores the settings.
func (c *CoreDB) PutNotificationSettings(ctx context.Context, s NotificationSettings) (NotificationSettings, error) {
	if s.EventType == "" {
		s.EventType = EventApproval
	}
	if err := s.validate(); err != nil {
		return s, err
	}
	s.UpdatedAt = c.now()
	if err := c.NotificationDB.PutSettings(ctx, s); err != nil {
		return s, err
	}
	return c.NotificationDB.GetSettings(ctx, s.UserID, s.EventType)
}

// Notify records a notification for the user, unless the user has turned approval notifications off.
// It returns nil, nil in that case.
func (c *CoreDB) Notify(ctx context.Context, userID string, typ NotificationType, title, message, relatedType, relatedID string) (*Notification, error) {

	settings, err := c.Settings(ctx, userID, EventApproval)
	if err != nil {
		return nil, err
	}
	if settings.Mode == NotifyOff {
		notificationsTotal.WithLabelValues("off").Inc()
		return nil, nil
	}

	var n = &Notification{
		UserID:            userID,
		Type:              typ,
		Title:             util.Trunc(title, MaxTitleLength),
		Message:           message,
		RelatedEntityType: relatedType,
		RelatedEntityID:   relatedID,
		CreatedAt:         c.now(),
	}
	if err := c.NotificationDB.InsertNotification(ctx, n); err != nil {
		return nil, err
	}
	notificationsTotal.WithLabelValues("stored").Inc()

	if c.Publisher != nil {
		if err := c.Publisher.Publish(ctx, n, settings); err != nil {
			c.Log.Warn("publishing notification", zap.String("notification", n.ID), zap.Error(err))
		}
	}
	return n, nil
}

// notifyBestEffort calls Notify and logs errors instead of returning them.
func (c *CoreDB) notifyBestEffort(ctx context.Context, userID string, typ NotificationType, title, message, workflowID string) {
	if _, err := c.Notify(ctx, userID, typ, title, message, RelatedWorkflow, workflowID); err != nil {
		notificationsTotal.WithLabelValues("failed").Inc()
		c.Log.Error("notification failed", zap.String("user", userID), zap.String("type", string(typ)), zap.String("workflow", workflowID), zap.Error(err))
	}
}

// ListNotifications shadows NotificationDB.ListNotifications.
func (c *CoreDB) ListNotifications(ctx context.Context, filter NotificationFilter) ([]*Notification, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return c.NotificationDB.ListNotifications(ctx, filter)
}

// MarkNotificationRead shadows NotificationDB.MarkRead.
func (c *CoreDB) MarkNotificationRead(ctx context.Context, userID, id string) (*Notification, error) {
	return c.NotificationDB.MarkRead(ctx, userID, id, c.now())
}

// MarkAllNotificationsRead shadows NotificationDB.MarkAllRead.
func (c *CoreDB) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	return c.NotificationDB.MarkAllRead(ctx, userID, c.now())
}
