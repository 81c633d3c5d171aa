package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"petfeed/pkg/logger"
	"petfeed/pkg/queue"
	"petfeed/services/notification/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockInbox struct {
	mock.Mock
}

func (m *MockInbox) Push(ctx context.Context, n *entity.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockInbox) List(ctx context.Context, userID string, limit, offset int) ([]entity.Notification, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Notification), args.Get(1).(int64), args.Error(2)
}

func (m *MockInbox) RemoveByPost(ctx context.Context, userID, postID string) (int, error) {
	args := m.Called(ctx, userID, postID)
	return args.Int(0), args.Error(1)
}

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetUserName(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func newUseCase(inbox *MockInbox, users *MockUsers) *notificationUseCase {
	uc := NewNotificationUseCase(inbox, users, logger.New()).(*notificationUseCase)
	uc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return uc
}

// likeTask mirrors what the post service publishes after a JSON round trip.
func likeTask() map[string]interface{} {
	return map[string]interface{}{
		"type":       "like",
		"post_id":    "p1",
		"owner_id":   "owner",
		"liker_id":   "liker",
		"like_count": float64(4),
		"priority":   float64(3),
	}
}

func TestHandleTask_Like(t *testing.T) {
	inbox, users := new(MockInbox), new(MockUsers)
	uc := newUseCase(inbox, users)
	ctx := context.Background()

	users.On("GetUserName", "liker").Return("Aiko", nil)
	inbox.On("Push", ctx, mock.MatchedBy(func(n *entity.Notification) bool {
		return n.UserID == "owner" &&
			n.PostID == "p1" &&
			n.ActorID == "liker" &&
			n.LikeCount == 4 &&
			n.Message == "Aiko liked your post" &&
			n.CreatedAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	})).Return(nil)

	require.NoError(t, uc.HandleTask(ctx, likeTask()))
	inbox.AssertExpectations(t)
}

func TestHandleLikeNotification_UnknownLiker(t *testing.T) {
	inbox, users := new(MockInbox), new(MockUsers)
	uc := newUseCase(inbox, users)

	users.On("GetUserName", "liker").Return("", errors.New("record not found"))
	inbox.On("Push", mock.Anything, mock.MatchedBy(func(n *entity.Notification) bool {
		return n.Message == "Someone liked your post"
	})).Return(nil)

	require.NoError(t, uc.HandleLikeNotification(context.Background(), likeTask()))
}

func TestHandleTask_Invalid(t *testing.T) {
	uc := newUseCase(new(MockInbox), new(MockUsers))
	ctx := context.Background()

	err := uc.HandleTask(ctx, map[string]interface{}{"type": "new_post"})
	assert.ErrorIs(t, err, entity.ErrInvalidTask)
	assert.ErrorIs(t, err, queue.ErrUnprocessable)

	task := likeTask()
	delete(task, "owner_id")
	err = uc.HandleTask(ctx, task)
	assert.ErrorIs(t, err, entity.ErrInvalidTask)
	assert.ErrorIs(t, err, queue.ErrUnprocessable)
}

func TestHandleTask_PostDeletedClearsOwnerInbox(t *testing.T) {
	inbox := new(MockInbox)
	uc := newUseCase(inbox, new(MockUsers))
	ctx := context.Background()

	inbox.On("RemoveByPost", ctx, "owner", "p1").Return(2, nil)

	err := uc.HandleTask(ctx, map[string]interface{}{"type": "post_deleted", "post_id": "p1", "owner_id": "owner"})
	require.NoError(t, err)
	inbox.AssertExpectations(t)

	err = uc.HandleTask(ctx, map[string]interface{}{"type": "post_deleted", "post_id": "p1"})
	assert.ErrorIs(t, err, entity.ErrInvalidTask)
}

func TestHandleTask_StoreFailureIsReturned(t *testing.T) {
	inbox, users := new(MockInbox), new(MockUsers)
	uc := newUseCase(inbox, users)

	users.On("GetUserName", "liker").Return("Aiko", nil)
	inbox.On("Push", mock.Anything, mock.Anything).Return(errors.New("redis down"))

	err := uc.HandleTask(context.Background(), likeTask())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, queue.ErrUnprocessable)
}

func TestGetNotifications_ClampsPaging(t *testing.T) {
	inbox := new(MockInbox)
	uc := newUseCase(inbox, new(MockUsers))
	ctx := context.Background()

	inbox.On("List", ctx, "owner", 20, 0).Return([]entity.Notification{}, int64(0), nil)

	_, _, err := uc.GetNotifications(ctx, "owner", 500, -3)
	require.NoError(t, err)
	inbox.AssertExpectations(t)
}
