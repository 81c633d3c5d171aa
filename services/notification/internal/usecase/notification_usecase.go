package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"petfeed/pkg/logger"
	"petfeed/pkg/queue"
	"petfeed/services/notification/internal/entity"
	"petfeed/services/notification/internal/repo/persistent"
)

type NotificationUseCase interface {
	HandleTask(ctx context.Context, task map[string]interface{}) error
	HandleLikeNotification(ctx context.Context, task map[string]interface{}) error
	GetNotifications(ctx context.Context, userID string, limit, offset int) ([]entity.Notification, int64, error)
	DeleteNotificationsByPost(ctx context.Context, userID, postID string) (int, error)
}

type notificationUseCase struct {
	inbox  persistent.InboxRepository
	users  persistent.UserRepository
	logger *logger.Logger
	now    func() time.Time
}

func NewNotificationUseCase(inbox persistent.InboxRepository, users persistent.UserRepository, logger *logger.Logger) NotificationUseCase {
	return &notificationUseCase{
		inbox:  inbox,
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// HandleTask routes a queue task by its "type". Invalid tasks are marked
// unprocessable so the queue drops them.
func (uc *notificationUseCase) HandleTask(ctx context.Context, task map[string]interface{}) error {
	err := uc.route(ctx, task)
	if errors.Is(err, entity.ErrInvalidTask) {
		return fmt.Errorf("%w: %w", queue.ErrUnprocessable, err)
	}
	return err
}

func (uc *notificationUseCase) route(ctx context.Context, task map[string]interface{}) error {
	taskType, _ := task["type"].(string)
	switch taskType {
	case entity.TypeLike:
		return uc.HandleLikeNotification(ctx, task)
	case entity.TypePostDeleted:
		ownerID, _ := task["owner_id"].(string)
		postID, _ := task["post_id"].(string)
		if ownerID == "" || postID == "" {
			return fmt.Errorf("%w: missing owner_id or post_id", entity.ErrInvalidTask)
		}
		_, err := uc.DeleteNotificationsByPost(ctx, ownerID, postID)
		return err
	default:
		uc.logger.Error("[NOTIFICATION HANDLER] Unknown notification type: %q, task=%+v", taskType, task)
		return fmt.Errorf("%w: unknown type %q", entity.ErrInvalidTask, taskType)
	}
}

func (uc *notificationUseCase) HandleLikeNotification(ctx context.Context, task map[string]interface{}) error {
	ownerID, _ := task["owner_id"].(string)
	likerID, _ := task["liker_id"].(string)
	postID, _ := task["post_id"].(string)
	if ownerID == "" || likerID == "" || postID == "" {
		uc.logger.Error("[NOTIFICATION HANDLER] Invalid like task: %+v", task)
		return fmt.Errorf("%w: missing owner_id, liker_id or post_id", entity.ErrInvalidTask)
	}

	// JSON numbers decode as float64.
	likeCount := 0
	if v, ok := task["like_count"].(float64); ok {
		likeCount = int(v)
	}

	likerName, err := uc.users.GetUserName(likerID)
	if err != nil || likerName == "" {
		likerName = "Someone"
	}

	notification := &entity.Notification{
		UserID:    ownerID,
		Title:     "New Like!",
		Message:   fmt.Sprintf("%s liked your post", likerName),
		Type:      entity.TypeLike,
		PostID:    postID,
		ActorID:   likerID,
		LikeCount: likeCount,
		CreatedAt: uc.now().UTC(),
	}

	if err := uc.inbox.Push(ctx, notification); err != nil {
		uc.logger.Error("[NOTIFICATION HANDLER] Failed to store like notification for user %s: %v", ownerID, err)
		return err
	}

	uc.logger.Info("[NOTIFICATION HANDLER] Like notification stored: owner=%s, liker=%s, post=%s", ownerID, likerID, postID)
	return nil
}

func (uc *notificationUseCase) GetNotifications(ctx context.Context, userID string, limit, offset int) ([]entity.Notification, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return uc.inbox.List(ctx, userID, limit, offset)
}

func (uc *notificationUseCase) DeleteNotificationsByPost(ctx context.Context, userID, postID string) (int, error) {
	removed, err := uc.inbox.RemoveByPost(ctx, userID, postID)
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		uc.logger.Info("Removed %d notifications about post %s for user %s", removed, postID, userID)
	}
	return removed, nil
}
