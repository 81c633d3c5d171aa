package persistent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"petfeed/services/notification/internal/entity"

	"github.com/redis/go-redis/v9"
)

const (
	inboxSize = 100
	inboxTTL  = 30 * 24 * time.Hour
)

// InboxRepository keeps each user's newest notifications in a Redis list
// and announces new ones on a pub/sub channel of the same name.
type InboxRepository interface {
	Push(ctx context.Context, n *entity.Notification) error
	List(ctx context.Context, userID string, limit, offset int) ([]entity.Notification, int64, error)
	RemoveByPost(ctx context.Context, userID, postID string) (int, error)
}

type inboxRepository struct {
	client *redis.Client
}

func NewInboxRepository(client *redis.Client) InboxRepository {
	return &inboxRepository{client: client}
}

func InboxKey(userID string) string {
	return fmt.Sprintf("notifications:%s", userID)
}

func (r *inboxRepository) Push(ctx context.Context, n *entity.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	key := InboxKey(n.UserID)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, inboxSize-1)
	pipe.Expire(ctx, key, inboxTTL)
	pipe.Publish(ctx, key, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

func (r *inboxRepository) List(ctx context.Context, userID string, limit, offset int) ([]entity.Notification, int64, error) {
	key := InboxKey(userID)
	raw, err := r.client.LRange(ctx, key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get notifications: %w", err)
	}

	notifications := make([]entity.Notification, 0, len(raw))
	for _, item := range raw {
		var n entity.Notification
		if err := json.Unmarshal([]byte(item), &n); err == nil {
			notifications = append(notifications, n)
		}
	}

	total, err := r.client.LLen(ctx, key).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return notifications, total, nil
}

// RemoveByPost drops every notification about postID. LREM removes by exact
// value, so each matching entry is removed as stored.
func (r *inboxRepository) RemoveByPost(ctx context.Context, userID, postID string) (int, error) {
	key := InboxKey(userID)
	raw, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get notifications: %w", err)
	}

	removed := 0
	for _, item := range raw {
		var n entity.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil || n.PostID != postID {
			continue
		}
		count, err := r.client.LRem(ctx, key, 1, item).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to remove notification: %w", err)
		}
		removed += int(count)
	}
	return removed, nil
}
