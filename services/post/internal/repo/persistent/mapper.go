package persistent

import (
	"petfeed/services/post/internal/entity"
	"petfeed/services/post/internal/model"
)

func ToPostEntity(m *model.PostModel) *entity.Post {
	if m == nil {
		return nil
	}

	return &entity.Post{
		ID:             m.ID,
		Caption:        m.Caption,
		ImageURL:       m.ImageURL,
		LikeCount:      m.LikeCount,
		PostedUserID:   m.PostedUserID,
		PostedUserName: m.PostedUserName,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func ToPostModel(e *entity.Post) *model.PostModel {
	if e == nil {
		return nil
	}

	return &model.PostModel{
		ID:             e.ID,
		Caption:        e.Caption,
		ImageURL:       e.ImageURL,
		LikeCount:      e.LikeCount,
		PostedUserID:   e.PostedUserID,
		PostedUserName: e.PostedUserName,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func toPostEntities(models []model.PostModel) []*entity.Post {
	posts := make([]*entity.Post, len(models))
	for i := range models {
		posts[i] = ToPostEntity(&models[i])
	}
	return posts
}
