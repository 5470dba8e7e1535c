// Package pubsub hands stored notifications to delivery workers through Redis.
//
// Instant notifications are published on a channel. Notifications of users in grouped mode are appended to a
// per-user digest list instead, which a digest worker drains daily or weekly.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/srdaspradeep-gif/DMsDoc/core"
)

const DefaultPrefix = "dmsdoc"

type Message struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Type              string    `json:"notification_type"`
	Title             string    `json:"title"`
	Message           string    `json:"message"`
	RelatedEntityType string    `json:"related_entity_type,omitempty"`
	RelatedEntityID   string    `json:"related_entity_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	Mode              string    `json:"mode"`
	GroupInterval     string    `json:"group_interval,omitempty"`
}

func NewMessage(n *core.Notification, settings core.NotificationSettings) Message {
	return Message{
		ID:                n.ID,
		UserID:            n.UserID,
		Type:              string(n.Type),
		Title:             n.Title,
		Message:           n.Message,
		RelatedEntityType: n.RelatedEntityType,
		RelatedEntityID:   n.RelatedEntityID,
		CreatedAt:         n.CreatedAt,
		Mode:              string(settings.Mode),
		GroupInterval:     string(settings.GroupInterval),
	}
}

// RedisPublisher implements core.Publisher.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher connects to the Redis server at url, like "redis://localhost:6379/0".
func NewRedisPublisher(ctx context.Context, url, prefix string) (*RedisPublisher, error) {

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	var client = redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &RedisPublisher{
		client: client,
		prefix: prefix,
	}, nil
}

// Channel is the pub/sub channel of instant notifications.
func (p *RedisPublisher) Channel() string {
	return p.prefix + ":notifications"
}

// DigestKey is the list which collects the notifications of a user in grouped mode.
func (p *RedisPublisher) DigestKey(interval core.GroupInterval, userID string) string {
	return p.prefix + ":digest:" + string(interval) + ":" + userID
}

func (p *RedisPublisher) Publish(ctx context.Context, n *core.Notification, settings core.NotificationSettings) error {

	payload, err := json.Marshal(NewMessage(n, settings))
	if err != nil {
		return err
	}

	switch settings.Mode {
	case core.NotifyGrouped:
		return p.client.RPush(ctx, p.DigestKey(settings.GroupInterval, n.UserID), payload).Err()
	case core.NotifyOff:
		return nil
	default:
		return p.client.Publish(ctx, p.Channel(), payload).Err()
	}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
