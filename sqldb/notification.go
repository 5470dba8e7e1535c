package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/srdaspradeep-gif/DMsDoc/core"
)

type NotificationDB struct {
	*sql.DB
	countUnread *sql.Stmt
	get         *sql.Stmt
	getSettings *sql.Stmt
	insert      *sql.Stmt
	list        *sql.Stmt
	markAllRead *sql.Stmt
	markRead    *sql.Stmt
	putSettings *sql.Stmt
}

func NewNotificationDB(db *sql.DB) *NotificationDB {

	mustExec(db, `
		CREATE TABLE IF NOT EXISTS notification (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			related_entity_type TEXT NOT NULL DEFAULT '',
			related_entity_id TEXT NOT NULL DEFAULT '',
			is_read INTEGER NOT NULL DEFAULT 0,
			read_at INTEGER,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS notification_user_idx ON notification(user_id, is_read);
		CREATE TABLE IF NOT EXISTS notification_settings (
			user_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			mode TEXT NOT NULL,
			group_interval TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, event_type)
		);`)

	const columns = "id, user_id, type, title, message, related_entity_type, related_entity_id, is_read, read_at, created_at"

	var notificationDB = &NotificationDB{}
	notificationDB.DB = db
	notificationDB.countUnread = mustPrepare(db, "SELECT COUNT(*) FROM notification WHERE user_id = ? AND is_read = 0")
	notificationDB.get = mustPrepare(db, "SELECT "+columns+" FROM notification WHERE id = ? AND user_id = ? LIMIT 1")
	notificationDB.getSettings = mustPrepare(db, "SELECT mode, group_interval, created_at, updated_at FROM notification_settings WHERE user_id = ? AND event_type = ? LIMIT 1")
	notificationDB.insert = mustPrepare(db, "INSERT INTO notification ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL, ?)")
	notificationDB.list = mustPrepare(db, "SELECT "+columns+" FROM notification WHERE user_id = ? AND (? < 0 OR is_read = ?) ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?")
	notificationDB.markAllRead = mustPrepare(db, "UPDATE notification SET is_read = 1, read_at = ? WHERE user_id = ? AND is_read = 0")
	notificationDB.markRead = mustPrepare(db, "UPDATE notification SET is_read = 1, read_at = ? WHERE id = ? AND user_id = ? AND is_read = 0")
	notificationDB.putSettings = mustPrepare(db, `
		INSERT INTO notification_settings (user_id, event_type, mode, group_interval, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, event_type) DO UPDATE SET mode = excluded.mode, group_interval = excluded.group_interval, updated_at = excluded.updated_at`)
	return notificationDB
}

func scanNotification(row scanner) (*core.Notification, error) {
	var n = &core.Notification{}
	var typ string
	var isRead int
	var readAt sql.NullInt64
	var createdAt int64
	if err := row.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &n.RelatedEntityType, &n.RelatedEntityID, &isRead, &readAt, &createdAt); err != nil {
		return nil, err
	}
	n.Type = core.NotificationType(typ)
	n.IsRead = isRead != 0
	n.ReadAt = fromNullUnix(readAt)
	n.CreatedAt = fromUnix(createdAt)
	return n, nil
}

func (db *NotificationDB) InsertNotification(ctx context.Context, n *core.Notification) error {
	var id = newID()
	_, err := db.insert.ExecContext(ctx, id, n.UserID, string(n.Type), n.Title, n.Message, n.RelatedEntityType, n.RelatedEntityID, unix(n.CreatedAt))
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

func (db *NotificationDB) ListNotifications(ctx context.Context, filter core.NotificationFilter) ([]*core.Notification, error) {

	var read = -1
	if filter.IsRead != nil {
		read = boolInt(*filter.IsRead)
	}

	rows, err := db.list.QueryContext(ctx, filter.UserID, read, read, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all = []*core.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, n)
	}
	return all, rows.Err()
}

func (db *NotificationDB) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	return count, db.countUnread.QueryRowContext(ctx, userID).Scan(&count)
}

// MarkRead marks a notification of the user as read. Notifications which are read already keep their ReadAt.
func (db *NotificationDB) MarkRead(ctx context.Context, userID, id string, at time.Time) (*core.Notification, error) {
	if _, err := db.markRead.ExecContext(ctx, unix(at), id, userID); err != nil {
		return nil, err
	}
	n, err := scanNotification(db.get.QueryRowContext(ctx, id, userID))
	if err != nil {
		return nil, notFound(err, "notification", id)
	}
	return n, nil
}

func (db *NotificationDB) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	res, err := db.markAllRead.ExecContext(ctx, unix(at), userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (db *NotificationDB) GetSettings(ctx context.Context, userID, eventType string) (core.NotificationSettings, error) {
	var s = core.NotificationSettings{
		UserID:    userID,
		EventType: eventType,
	}
	var mode, interval string
	var createdAt, updatedAt int64
	err := db.getSettings.QueryRowContext(ctx, userID, eventType).Scan(&mode, &interval, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return s, fmt.Errorf("%w: notification settings of user %s for %s", core.ErrNotFound, userID, eventType)
	}
	if err != nil {
		return s, err
	}
	s.Mode = core.NotificationMode(mode)
	s.GroupInterval = core.GroupInterval(interval)
	s.CreatedAt = fromUnix(createdAt)
	s.UpdatedAt = fromUnix(updatedAt)
	return s, nil
}

func (db *NotificationDB) PutSettings(ctx context.Context, s core.NotificationSettings) error {
	var createdAt = s.UpdatedAt
	if !s.CreatedAt.IsZero() {
		createdAt = s.CreatedAt
	}
	_, err := db.putSettings.ExecContext(ctx, s.UserID, s.EventType, string(s.Mode), string(s.GroupInterval), unix(createdAt), unix(s.UpdatedAt))
	return err
}
