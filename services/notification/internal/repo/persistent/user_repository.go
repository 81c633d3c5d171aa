package persistent

import (
	"petfeed/services/notification/internal/model"

	"gorm.io/gorm"
)

type UserRepository interface {
	GetUserName(userID string) (string, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetUserName(userID string) (string, error) {
	var userModel model.UserModel
	if err := r.db.Where("id = ?", userID).Select("id", "name").First(&userModel).Error; err != nil {
		return "", err
	}
	return userModel.Name, nil
}
