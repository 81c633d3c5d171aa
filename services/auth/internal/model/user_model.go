package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserModel struct {
	ID          string         `gorm:"type:uuid;primary_key" json:"id"`
	Email       string         `gorm:"uniqueIndex;not null" json:"email"`
	Name        string         `gorm:"type:varchar(100);not null" json:"name"`
	PetName     string         `gorm:"type:varchar(100)" json:"pet_name"`
	PetImageURL string         `gorm:"type:varchar(500)" json:"pet_image_url"`
	Password    string         `gorm:"not null" json:"-"`
	Role        string         `gorm:"type:varchar(20);default:'member'" json:"role"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (UserModel) TableName() string {
	return "users"
}

func (u *UserModel) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}
