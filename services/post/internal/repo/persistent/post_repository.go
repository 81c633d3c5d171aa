package persistent

import (
	"errors"
	"time"

	"petfeed/pkg/feed"
	"petfeed/services/post/internal/entity"
	"petfeed/services/post/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostRepository interface {
	Create(post *entity.Post) error
	GetByID(id string) (*entity.Post, error)
	// GetByIDUnscoped also finds soft-deleted posts.
	GetByIDUnscoped(id string) (*entity.Post, error)
	// ListPage returns up to limit posts strictly after the given position in
	// (created_at DESC, id DESC) order. A nil position starts at the newest.
	ListPage(after *feed.Position, limit int) ([]*entity.Post, error)
	GetByUserID(userID string, limit, offset int) ([]*entity.Post, error)
	GetLikedPosts(userID string, limit, offset int) ([]*entity.Post, error)
	UpdateCaption(id, caption string, updatedAt time.Time) error
	Delete(id string) error
	Like(postID, userID string) error
	Unlike(postID, userID string) error
	IsLiked(postID, userID string) (bool, error)
	DeleteLikes(postID string) (int64, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(post *entity.Post) error {
	postModel := ToPostModel(post)
	if postModel.ID == "" {
		postModel.ID = uuid.New().String()
	}
	if postModel.CreatedAt.IsZero() {
		// Postgres keeps microseconds; truncating here keeps cursors exact.
		postModel.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	postModel.UpdatedAt = postModel.CreatedAt

	if err := r.db.Create(postModel).Error; err != nil {
		return err
	}
	*post = *ToPostEntity(postModel)
	return nil
}

func (r *postRepository) GetByID(id string) (*entity.Post, error) {
	var postModel model.PostModel
	if err := r.db.Where("id = ?", id).First(&postModel).Error; err != nil {
		return nil, notFound(err)
	}
	return ToPostEntity(&postModel), nil
}

func (r *postRepository) GetByIDUnscoped(id string) (*entity.Post, error) {
	var postModel model.PostModel
	if err := r.db.Unscoped().Where("id = ?", id).First(&postModel).Error; err != nil {
		return nil, notFound(err)
	}
	return ToPostEntity(&postModel), nil
}

func (r *postRepository) ListPage(after *feed.Position, limit int) ([]*entity.Post, error) {
	var postModels []model.PostModel
	query := r.db.Order("created_at DESC").Order("id DESC").Limit(limit)
	if after != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	if err := query.Find(&postModels).Error; err != nil {
		return nil, err
	}
	return toPostEntities(postModels), nil
}

func (r *postRepository) GetByUserID(userID string, limit, offset int) ([]*entity.Post, error) {
	var postModels []model.PostModel
	query := r.db.Where("posted_user_id = ?", userID).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&postModels).Error; err != nil {
		return nil, err
	}
	return toPostEntities(postModels), nil
}

func (r *postRepository) GetLikedPosts(userID string, limit, offset int) ([]*entity.Post, error) {
	var postModels []model.PostModel
	query := r.db.Model(&model.PostModel{}).
		Joins("INNER JOIN likes ON posts.id = likes.post_id").
		Where("likes.user_id = ?", userID).
		Order("likes.created_at DESC")

	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	if err := query.Find(&postModels).Error; err != nil {
		return nil, err
	}
	return toPostEntities(postModels), nil
}

func (r *postRepository) UpdateCaption(id, caption string, updatedAt time.Time) error {
	result := r.db.Model(&model.PostModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"caption":    caption,
		"updated_at": updatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entity.ErrPostNotFound
	}
	return nil
}

func (r *postRepository) Delete(id string) error {
	result := r.db.Delete(&model.PostModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entity.ErrPostNotFound
	}
	return nil
}

// Like inserts the like row and bumps the counter in one transaction.
func (r *postRepository) Like(postID, userID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.PostModel{}).Where("id = ?", postID).UpdateColumns(map[string]interface{}{
			"like_count": clause.Expr{SQL: "like_count + ?", Vars: []interface{}{1}},
			"updated_at": time.Now().UTC(),
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return entity.ErrPostNotFound
		}

		like := &model.LikeModel{PostID: postID, UserID: userID}
		if err := tx.Create(like).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return entity.ErrAlreadyLiked
			}
			return err
		}
		return nil
	})
}

// Unlike removes the like row and decrements the counter in one transaction.
func (r *postRepository) Unlike(postID, userID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var post model.PostModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", postID).First(&post).Error; err != nil {
			return notFound(err)
		}

		result := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&model.LikeModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return entity.ErrNotLiked
		}

		return tx.Model(&model.PostModel{}).Where("id = ? AND like_count > 0", postID).UpdateColumns(map[string]interface{}{
			"like_count": clause.Expr{SQL: "like_count - ?", Vars: []interface{}{1}},
			"updated_at": time.Now().UTC(),
		}).Error
	})
}

func (r *postRepository) IsLiked(postID, userID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.LikeModel{}).Where("post_id = ? AND user_id = ?", postID, userID).Count(&count).Error
	return count > 0, err
}

func (r *postRepository) DeleteLikes(postID string) (int64, error) {
	result := r.db.Where("post_id = ?", postID).Delete(&model.LikeModel{})
	return result.RowsAffected, result.Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.ErrPostNotFound
	}
	return err
}
