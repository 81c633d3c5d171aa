package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostModel struct {
	ID             string         `gorm:"type:uuid;primary_key;index:idx_posts_feed_order,priority:2,sort:desc" json:"id"`
	Caption        string         `gorm:"type:text;not null" json:"caption"`
	ImageURL       string         `gorm:"type:varchar(500);not null" json:"image_url"`
	LikeCount      int            `gorm:"not null;default:0" json:"like_count"`
	PostedUserID   string         `gorm:"type:uuid;not null;index" json:"posted_user_id"`
	PostedUserName string         `gorm:"type:varchar(255)" json:"posted_user_name"`
	CreatedAt      time.Time      `gorm:"index:idx_posts_feed_order,priority:1,sort:desc" json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (PostModel) TableName() string {
	return "posts"
}

func (p *PostModel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
