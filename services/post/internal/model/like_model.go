package model

import "time"

// LikeModel is keyed by (post_id, user_id), so a user can like a post at
// most once. Rows are hard-deleted.
type LikeModel struct {
	PostID    string    `gorm:"type:uuid;primaryKey" json:"post_id"`
	UserID    string    `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (LikeModel) TableName() string {
	return "likes"
}
