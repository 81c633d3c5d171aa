package usecase

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"petfeed/pkg/feed"
	"petfeed/pkg/logger"
	"petfeed/pkg/queue"
	"petfeed/services/post/internal/entity"
	"petfeed/services/post/internal/repo/persistent"

	"github.com/google/uuid"
)

type PostUseCase interface {
	CreatePost(userID, userName, caption string, image *multipart.FileHeader) (*entity.Post, error)
	GetPost(postID string) (*entity.Post, error)
	ListPosts(cursor string, limit int) ([]*entity.Post, string, error)
	UpdateCaption(postID, userID, caption string) (*entity.Post, error)
	DeletePost(postID, userID string) error
	DeleteLikes(postID, userID string) (int64, error)
	LikePost(postID, userID string) error
	UnlikePost(postID, userID string) error
	IsLiked(postID, userID string) (bool, error)
	GetUserPosts(userID string, limit, offset int) ([]*entity.Post, error)
	GetLikedPosts(userID string, limit, offset int) ([]*entity.Post, error)
}

// BlobStore is satisfied by *s3.Client.
type BlobStore interface {
	UploadFile(key string, body io.Reader, contentType string) (string, error)
	DeleteFile(key string) error
}

// Publisher is satisfied by *queue.Client.
type Publisher interface {
	PublishNotificationTask(routingKey string, task map[string]interface{}) error
}

type postUseCase struct {
	postRepo  persistent.PostRepository
	blobs     BlobStore
	publisher Publisher
	cursors   *feed.CursorCodec
	logger    *logger.Logger
}

func NewPostUseCase(
	postRepo persistent.PostRepository,
	blobs BlobStore,
	publisher Publisher,
	cursors *feed.CursorCodec,
	logger *logger.Logger,
) PostUseCase {
	return &postUseCase{
		postRepo:  postRepo,
		blobs:     blobs,
		publisher: publisher,
		cursors:   cursors,
		logger:    logger,
	}
}

func (uc *postUseCase) CreatePost(userID, userName, caption string, image *multipart.FileHeader) (*entity.Post, error) {
	if strings.TrimSpace(caption) == "" {
		return nil, entity.ErrEmptyCaption
	}
	if image == nil {
		return nil, entity.ErrInvalidImage
	}

	src, err := image.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	fileKey := fmt.Sprintf("posts/%s/%s%s", userID, uuid.New().String(), strings.ToLower(filepath.Ext(image.Filename)))
	contentType := image.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, entity.ErrInvalidImage
	}

	imageURL, err := uc.blobs.UploadFile(fileKey, src, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file to S3: %w", err)
	}

	post := &entity.Post{
		Caption:        caption,
		ImageURL:       imageURL,
		PostedUserID:   userID,
		PostedUserName: userName,
	}

	if err := uc.postRepo.Create(post); err != nil {
		if delErr := uc.blobs.DeleteFile(fileKey); delErr != nil {
			uc.logger.Warn("Failed to remove orphaned image %s: %v", fileKey, delErr)
		}
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	uc.logger.Info("Post %s created by user %s", post.ID, userID)
	return post, nil
}

func (uc *postUseCase) GetPost(postID string) (*entity.Post, error) {
	return uc.postRepo.GetByID(postID)
}

// ListPosts returns one feed page and the cursor for the next one. The
// cursor is empty once the last post has been returned.
func (uc *postUseCase) ListPosts(cursor string, limit int) ([]*entity.Post, string, error) {
	limit = feed.ClampPageSize(limit)

	var after *feed.Position
	if cursor != "" {
		pos, err := uc.cursors.Decode(feed.Cursor(cursor))
		if err != nil {
			return nil, "", err
		}
		after = &pos
	}

	posts, err := uc.postRepo.ListPage(after, limit+1)
	if err != nil {
		return nil, "", err
	}

	posts, next := feed.TrimPage(uc.cursors, posts, limit, func(p *entity.Post) feed.Position {
		return feed.Position{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return posts, string(next), nil
}

func (uc *postUseCase) UpdateCaption(postID, userID, caption string) (*entity.Post, error) {
	if strings.TrimSpace(caption) == "" {
		return nil, entity.ErrEmptyCaption
	}

	post, err := uc.postRepo.GetByID(postID)
	if err != nil {
		return nil, err
	}
	if post.PostedUserID != userID {
		return nil, entity.ErrNotOwner
	}

	updatedAt := time.Now().UTC()
	if err := uc.postRepo.UpdateCaption(postID, caption, updatedAt); err != nil {
		return nil, err
	}

	post.Caption = caption
	post.UpdatedAt = updatedAt
	return post, nil
}

func (uc *postUseCase) DeletePost(postID, userID string) error {
	post, err := uc.postRepo.GetByID(postID)
	if err != nil {
		return err
	}
	if post.PostedUserID != userID {
		return entity.ErrNotOwner
	}

	if err := uc.postRepo.Delete(postID); err != nil {
		return err
	}
	uc.logger.Info("Post %s deleted by user %s", postID, userID)

	if uc.publisher != nil {
		task := map[string]interface{}{
			"type":     "post_deleted",
			"post_id":  postID,
			"owner_id": userID,
			"priority": 1,
		}
		if err := uc.publisher.PublishNotificationTask(queue.RoutingKeyPostDeleted, task); err != nil {
			uc.logger.Warn("[NOTIFICATION QUEUE] Failed to publish post_deleted task for post %s: %v", postID, err)
		}
	}
	return nil
}

// DeleteLikes removes every like of a post. The post is usually already
// deleted, so ownership is checked against the soft-deleted row.
func (uc *postUseCase) DeleteLikes(postID, userID string) (int64, error) {
	post, err := uc.postRepo.GetByIDUnscoped(postID)
	if err != nil {
		return 0, err
	}
	if post.PostedUserID != userID {
		return 0, entity.ErrNotOwner
	}

	removed, err := uc.postRepo.DeleteLikes(postID)
	if err != nil {
		return 0, err
	}
	uc.logger.Info("Removed %d likes of post %s", removed, postID)
	return removed, nil
}

func (uc *postUseCase) LikePost(postID, userID string) error {
	if err := uc.postRepo.Like(postID, userID); err != nil {
		return err
	}

	if uc.publisher == nil {
		return nil
	}
	post, err := uc.postRepo.GetByID(postID)
	if err != nil {
		uc.logger.Warn("Skipping like notification for post %s: %v", postID, err)
		return nil
	}
	if post.PostedUserID != userID {
		uc.publishLikeNotification(post, userID)
	}
	return nil
}

func (uc *postUseCase) UnlikePost(postID, userID string) error {
	return uc.postRepo.Unlike(postID, userID)
}

func (uc *postUseCase) IsLiked(postID, userID string) (bool, error) {
	if _, err := uc.postRepo.GetByID(postID); err != nil {
		return false, err
	}
	return uc.postRepo.IsLiked(postID, userID)
}

func (uc *postUseCase) GetUserPosts(userID string, limit, offset int) ([]*entity.Post, error) {
	return uc.postRepo.GetByUserID(userID, feed.ClampPageSize(limit), offset)
}

func (uc *postUseCase) GetLikedPosts(userID string, limit, offset int) ([]*entity.Post, error) {
	return uc.postRepo.GetLikedPosts(userID, feed.ClampPageSize(limit), offset)
}

func (uc *postUseCase) publishLikeNotification(post *entity.Post, likerID string) {
	task := map[string]interface{}{
		"type":       "like",
		"post_id":    post.ID,
		"owner_id":   post.PostedUserID,
		"liker_id":   likerID,
		"like_count": post.LikeCount,
		"priority":   3,
	}

	if err := uc.publisher.PublishNotificationTask(queue.RoutingKeyLike, task); err != nil {
		uc.logger.Error("[NOTIFICATION QUEUE] Failed to publish like task: %v (post_id=%s, liker_id=%s)", err, post.ID, likerID)
		return
	}
	uc.logger.Info("[NOTIFICATION QUEUE] Published like task: post_id=%s, liker_id=%s", post.ID, likerID)
}

// IsClientError reports whether err was caused by the request rather than
// the service.
func IsClientError(err error) bool {
	return errors.Is(err, entity.ErrEmptyCaption) ||
		errors.Is(err, entity.ErrInvalidImage) ||
		errors.Is(err, feed.ErrInvalidCursor)
}
