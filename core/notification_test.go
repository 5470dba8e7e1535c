package core_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/srdaspradeep-gif/DMsDoc/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	n        *core.Notification
	settings core.NotificationSettings
}

type fakePublisher struct {
	sync.Mutex
	all []published
	err error
}

func (p *fakePublisher) Publish(ctx context.Context, n *core.Notification, settings core.NotificationSettings) error {
	p.Lock()
	defer p.Unlock()
	p.all = append(p.all, published{n, settings})
	return p.err
}

func TestNotifyDefaults(t *testing.T) {

	var f = newFixture(t, "alice")
	var publisher = &fakePublisher{}
	f.db.Publisher = publisher

	n, err := f.db.Notify(f.ctx, f.users["alice"], core.NotificationReminder, strings.Repeat("x", 300), "msg", "", "")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Len(t, []rune(n.Title), core.MaxTitleLength)
	assert.False(t, n.IsRead)

	require.Len(t, publisher.all, 1)
	assert.Equal(t, n.ID, publisher.all[0].n.ID)
	assert.Equal(t, core.NotifyInstant, publisher.all[0].settings.Mode)
}

func TestNotifyPublishFailure(t *testing.T) {

	var f = newFixture(t, "alice")
	f.db.Publisher = &fakePublisher{err: errors.New("connection refused")}

	n, err := f.db.Notify(f.ctx, f.users["alice"], core.NotificationReminder, "Reminder", "", "", "")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Len(t, f.notifications("alice"), 1)
}

func TestNotificationSettings(t *testing.T) {

	var f = newFixture(t, "alice", "bob")
	var publisher = &fakePublisher{}
	f.db.Publisher = publisher

	_, err := f.db.NotificationDB.GetSettings(f.ctx, f.users["alice"], core.EventApproval)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	settings, err := f.db.GetNotificationSettings(f.ctx, f.users["alice"], "")
	require.NoError(t, err)
	assert.Equal(t, core.NotifyInstant, settings.Mode)
	assert.Equal(t, core.EventApproval, settings.EventType)

	_, err = f.db.PutNotificationSettings(f.ctx, core.NotificationSettings{
		UserID: f.users["alice"],
		Mode:   core.NotifyGrouped,
	})
	assert.True(t, errors.Is(err, core.ErrInvalid))

	_, err = f.db.PutNotificationSettings(f.ctx, core.NotificationSettings{
		UserID:        f.users["alice"],
		Mode:          core.NotifyInstant,
		GroupInterval: core.IntervalDaily,
	})
	assert.True(t, errors.Is(err, core.ErrInvalid))

	_, err = f.db.PutNotificationSettings(f.ctx, core.NotificationSettings{
		UserID: f.users["alice"],
		Mode:   "loud",
	})
	assert.True(t, errors.Is(err, core.ErrInvalid))

	stored, err := f.db.PutNotificationSettings(f.ctx, core.NotificationSettings{
		UserID:        f.users["alice"],
		Mode:          core.NotifyGrouped,
		GroupInterval: core.IntervalWeekly,
	})
	require.NoError(t, err)
	assert.Equal(t, core.EventApproval, stored.EventType)
	assert.Equal(t, core.IntervalWeekly, stored.GroupInterval)

	_, err = f.db.PutNotificationSettings(f.ctx, core.NotificationSettings{
		UserID: f.users["bob"],
		Mode:   core.NotifyOff,
	})
	require.NoError(t, err)

	f.create(core.Parallel, "alice", "bob")

	// grouped notifications are stored and handed to the publisher with the settings
	assert.Len(t, f.notifications("alice"), 1)
	require.Len(t, publisher.all, 1)
	assert.Equal(t, f.users["alice"], publisher.all[0].n.UserID)
	assert.Equal(t, core.NotifyGrouped, publisher.all[0].settings.Mode)
	assert.Equal(t, core.IntervalWeekly, publisher.all[0].settings.GroupInterval)

	assert.Empty(t, f.notifications("bob"))

	n, err := f.db.Notify(f.ctx, f.users["bob"], core.NotificationReminder, "Reminder", "", "", "")
	assert.NoError(t, err)
	assert.Nil(t, n)
}

func TestNotificationsOff(t *testing.T) {

	var names = []string{"initiator", "alice", "bob", "carol"}
	var f = newFixture(t, names[1:]...)
	var publisher = &fakePublisher{}
	f.db.Publisher = publisher

	for _, name := range names {
		_, err := f.db.PutNotificationSettings(f.ctx, core.NotificationSettings{
			UserID: f.users[name],
			Mode:   core.NotifyOff,
		})
		require.NoError(t, err)
	}

	// serial approve-all: decisions, next turn, completion
	var serial = f.create(core.Serial, "alice", "bob", "carol")
	for _, name := range names[1:] {
		_, err := f.db.Decide(f.ctx, f.stepOf(serial, name).ID, f.users[name], core.Approve, "")
		require.NoError(t, err)
	}

	var parallel = f.create(core.Parallel, "alice", "bob", "carol")
	_, err := f.db.Decide(f.ctx, f.stepOf(parallel, "bob").ID, f.users["bob"], core.Reject, "")
	require.NoError(t, err)

	var cancelled = f.create(core.Serial, "alice", "bob")
	_, err = f.db.CancelWorkflow(f.ctx, cancelled.ID, f.users["initiator"])
	require.NoError(t, err)

	for _, name := range names {
		assert.Empty(t, f.notifications(name), name)
	}
	assert.Empty(t, publisher.all)
}

func TestMarkRead(t *testing.T) {

	var f = newFixture(t, "alice", "bob")
	f.create(core.Parallel, "alice")
	f.create(core.Parallel, "alice")

	var ns = f.notifications("alice")
	require.Len(t, ns, 2)

	count, err := f.db.CountUnread(f.ctx, f.users["alice"])
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = f.db.MarkNotificationRead(f.ctx, f.users["bob"], ns[0].ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	read, err := f.db.MarkNotificationRead(f.ctx, f.users["alice"], ns[0].ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	assert.NotNil(t, read.ReadAt)

	// marking again is fine
	again, err := f.db.MarkNotificationRead(f.ctx, f.users["alice"], ns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, read.ReadAt, again.ReadAt)

	unread, err := f.db.ListNotifications(f.ctx, core.NotificationFilter{UserID: f.users["alice"], IsRead: boolPtr(false)})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, ns[1].ID, unread[0].ID)

	n, err := f.db.MarkAllNotificationsRead(f.ctx, f.users["alice"])
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err = f.db.CountUnread(f.ctx, f.users["alice"])
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
