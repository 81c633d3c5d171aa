package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"petfeed/pkg/jwt"
	"petfeed/pkg/logger"
	"petfeed/services/auth/internal/entity"
	"petfeed/services/auth/internal/repo/persistent"

	"golang.org/x/crypto/bcrypt"
)

type AuthUseCase interface {
	Register(email, password, name, petName string) (*entity.User, string, error)
	Login(email, password string) (*entity.User, string, error)
	Logout(ctx context.Context, tokenID string, expiresAt time.Time) error
	GetUser(userID string) (*entity.User, error)
	UpdateProfile(userID string, name, petName *string) (*entity.User, error)
	UploadPetImage(userID string, fileReader io.Reader, fileKey string, contentType string) (*entity.User, error)
	DeleteAccount(userID string) error
}

// Uploader is satisfied by *s3.Client.
type Uploader interface {
	UploadFile(key string, body io.Reader, contentType string) (string, error)
}

// Revoker is satisfied by middleware.TokenRevoker.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
}

type authUseCase struct {
	userRepo   persistent.UserRepository
	jwtService *jwt.Service
	uploader   Uploader
	revoker    Revoker
	logger     *logger.Logger
}

func NewAuthUseCase(
	userRepo persistent.UserRepository,
	jwtService *jwt.Service,
	uploader Uploader,
	revoker Revoker,
	logger *logger.Logger,
) AuthUseCase {
	return &authUseCase{
		userRepo:   userRepo,
		jwtService: jwtService,
		uploader:   uploader,
		revoker:    revoker,
		logger:     logger,
	}
}

func (uc *authUseCase) Register(email, password, name, petName string) (*entity.User, string, error) {
	if _, err := uc.userRepo.GetByEmail(email); err == nil {
		return nil, "", entity.ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		uc.logger.Error("Failed to hash password: %v", err)
		return nil, "", fmt.Errorf("failed to process registration")
	}

	user := &entity.User{
		Email:    email,
		Name:     strings.TrimSpace(name),
		PetName:  strings.TrimSpace(petName),
		Password: string(hashedPassword),
		Role:     entity.RoleMember,
	}

	if err := uc.userRepo.Create(user); err != nil {
		if errors.Is(err, entity.ErrEmailTaken) {
			return nil, "", err
		}
		uc.logger.Error("Failed to create user: %v", err)
		return nil, "", fmt.Errorf("failed to create user")
	}

	token, err := uc.jwtService.GenerateNamedToken(user.ID, user.Role, user.Name)
	if err != nil {
		uc.logger.Error("Failed to generate token: %v", err)
		return nil, "", fmt.Errorf("failed to generate token")
	}

	uc.logger.Info("Registered user %s", user.ID)
	user.Password = ""
	return user, token, nil
}

func (uc *authUseCase) Login(email, password string) (*entity.User, string, error) {
	user, err := uc.userRepo.GetByEmail(email)
	if err != nil {
		return nil, "", entity.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", entity.ErrInvalidCredentials
	}

	token, err := uc.jwtService.GenerateNamedToken(user.ID, user.Role, user.Name)
	if err != nil {
		uc.logger.Error("Failed to generate token: %v", err)
		return nil, "", fmt.Errorf("failed to generate token")
	}

	user.Password = ""
	return user, token, nil
}

// Logout denies the token until it would have expired anyway.
func (uc *authUseCase) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return fmt.Errorf("token has no id")
	}
	if err := uc.revoker.Revoke(ctx, tokenID, time.Until(expiresAt)); err != nil {
		uc.logger.Error("Failed to revoke token %s: %v", tokenID, err)
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

func (uc *authUseCase) GetUser(userID string) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return user, nil
}

func (uc *authUseCase) UpdateProfile(userID string, name, petName *string) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	if name != nil {
		user.Name = strings.TrimSpace(*name)
	}
	if petName != nil {
		user.PetName = strings.TrimSpace(*petName)
	}

	if err := uc.userRepo.Update(user); err != nil {
		uc.logger.Error("Failed to update user: %v", err)
		return nil, fmt.Errorf("failed to update user")
	}

	user.Password = ""
	return user, nil
}

func (uc *authUseCase) UploadPetImage(userID string, fileReader io.Reader, fileKey string, contentType string) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	imageURL, err := uc.uploader.UploadFile(fileKey, fileReader, contentType)
	if err != nil {
		uc.logger.Error("Failed to upload pet image: %v", err)
		return nil, fmt.Errorf("failed to upload pet image")
	}

	user.PetImageURL = imageURL
	if err := uc.userRepo.Update(user); err != nil {
		uc.logger.Error("Failed to update user: %v", err)
		return nil, fmt.Errorf("failed to update user")
	}

	user.Password = ""
	return user, nil
}

func (uc *authUseCase) DeleteAccount(userID string) error {
	if err := uc.userRepo.Delete(userID); err != nil {
		return err
	}
	uc.logger.Info("Deleted user %s", userID)
	return nil
}
