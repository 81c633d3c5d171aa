package persistent

import (
	"petfeed/services/auth/internal/entity"
	"petfeed/services/auth/internal/model"
)

func ToUserEntity(m *model.UserModel) *entity.User {
	if m == nil {
		return nil
	}

	return &entity.User{
		ID:          m.ID,
		Email:       m.Email,
		Name:        m.Name,
		PetName:     m.PetName,
		PetImageURL: m.PetImageURL,
		Password:    m.Password,
		Role:        m.Role,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func ToUserModel(e *entity.User) *model.UserModel {
	if e == nil {
		return nil
	}

	return &model.UserModel{
		ID:          e.ID,
		Email:       e.Email,
		Name:        e.Name,
		PetName:     e.PetName,
		PetImageURL: e.PetImageURL,
		Password:    e.Password,
		Role:        e.Role,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}
