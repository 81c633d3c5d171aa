package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"petfeed/pkg/logger"
	"petfeed/services/auth/internal/entity"
	"petfeed/services/auth/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAuthUseCase is a mock implementation of AuthUseCase
type MockAuthUseCase struct {
	mock.Mock
}

func (m *MockAuthUseCase) Register(email, password, name, petName string) (*entity.User, string, error) {
	args := m.Called(email, password, name, petName)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*entity.User), args.String(1), args.Error(2)
}

func (m *MockAuthUseCase) Login(email, password string) (*entity.User, string, error) {
	args := m.Called(email, password)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*entity.User), args.String(1), args.Error(2)
}

func (m *MockAuthUseCase) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	args := m.Called(ctx, tokenID, expiresAt)
	return args.Error(0)
}

func (m *MockAuthUseCase) GetUser(userID string) (*entity.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockAuthUseCase) UpdateProfile(userID string, name, petName *string) (*entity.User, error) {
	args := m.Called(userID, name, petName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockAuthUseCase) UploadPetImage(userID string, fileReader io.Reader, fileKey string, contentType string) (*entity.User, error) {
	args := m.Called(userID, fileReader, fileKey, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockAuthUseCase) DeleteAccount(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

var _ usecase.AuthUseCase = (*MockAuthUseCase)(nil)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func asUser(userID string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		h(c)
	}
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	payload, _ := json.Marshal(body)
	req, _ := http.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRegister_Success(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase, logger.New())
	router := setupTestRouter()
	router.POST("/auth/register", handler.Register)

	user := &entity.User{ID: "u1", Email: "mochi@example.com", Name: "Aiko", PetName: "Mochi"}
	mockUseCase.On("Register", "mochi@example.com", "secret1", "Aiko", "Mochi").Return(user, "token-abc", nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/auth/register", gin.H{
		"email": "mochi@example.com", "password": "secret1", "name": "Aiko", "pet_name": "Mochi",
	}))

	assert.Equal(t, http.StatusCreated, w.Code)
	var response AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "token-abc", response.Token)
	assert.Equal(t, "Mochi", response.User.PetName)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRegister_Validation(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase, logger.New())
	router := setupTestRouter()
	router.POST("/auth/register", handler.Register)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/auth/register", gin.H{
		"email": "not-an-email", "password": "123", "name": "Aiko",
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockUseCase.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_EmailTaken(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase, logger.New())
	router := setupTestRouter()
	router.POST("/auth/register", handler.Register)

	mockUseCase.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, "", entity.ErrEmailTaken)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/auth/register", gin.H{
		"email": "mochi@example.com", "password": "secret1", "name": "Aiko",
	}))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase, logger.New())
	router := setupTestRouter()
	router.POST("/auth/login", handler.Login)

	mockUseCase.On("Login", "mochi@example.com", "wrong").Return(nil, "", entity.ErrInvalidCredentials)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/auth/login", gin.H{"email": "mochi@example.com", "password": "wrong"}))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_Success(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase, logger.New())
	router := setupTestRouter()
	router.POST("/auth/login", handler.Login)

	mockUseCase.On("Login", "mochi@example.com", "secret1").Return(&entity.User{ID: "u1"}, "token-abc", nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/auth/login", gin.H{"email": "mochi@example.com", "password": "secret1"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "token-abc")
}

func TestLogout(t *testing.T) {
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	withToken := func(h gin.HandlerFunc) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set("user_id", "u1")
			c.Set("token_id", "tok-1")
			c.Set("token_expires_at", expires)
			h(c)
		}
	}

	t.Run("success", func(t *testing.T) {
		mockUseCase := new(MockAuthUseCase)
		handler := NewAuthHandler(mockUseCase, logger.New())
		router := setupTestRouter()
		router.POST("/auth/logout", withToken(handler.Logout))
		mockUseCase.On("Logout", mock.Anything, "tok-1", expires).Return(nil)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/auth/logout", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("revocation store down", func(t *testing.T) {
		mockUseCase := new(MockAuthUseCase)
		handler := NewAuthHandler(mockUseCase, logger.New())
		router := setupTestRouter()
		router.POST("/auth/logout", withToken(handler.Logout))
		mockUseCase.On("Logout", mock.Anything, "tok-1", expires).Return(errors.New("redis down"))

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/auth/logout", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestMe_NotFound(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase, logger.New())
	router := setupTestRouter()
	router.GET("/users/me", asUser("u1", handler.Me))

	mockUseCase.On("GetUser", "u1").Return(nil, entity.ErrUserNotFound)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/users/me", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUser_Success(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase, logger.New())
	router := setupTestRouter()
	router.GET("/users/:id", asUser("u1", handler.GetUser))

	mockUseCase.On("GetUser", "u2").Return(&entity.User{ID: "u2", PetName: "Biscuit"}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/users/u2", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Biscuit")
}

func TestUpdateProfile(t *testing.T) {
	t.Run("partial update", func(t *testing.T) {
		mockUseCase := new(MockAuthUseCase)
		handler := NewAuthHandler(mockUseCase, logger.New())
		router := setupTestRouter()
		router.PUT("/users/me", asUser("u1", handler.UpdateProfile))

		mockUseCase.On("UpdateProfile", "u1", (*string)(nil), mock.MatchedBy(func(p *string) bool {
			return p != nil && *p == "Biscuit"
		})).Return(&entity.User{ID: "u1", PetName: "Biscuit"}, nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest("PUT", "/users/me", gin.H{"pet_name": "Biscuit"}))

		assert.Equal(t, http.StatusOK, w.Code)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("blank name rejected", func(t *testing.T) {
		mockUseCase := new(MockAuthUseCase)
		handler := NewAuthHandler(mockUseCase, logger.New())
		router := setupTestRouter()
		router.PUT("/users/me", asUser("u1", handler.UpdateProfile))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest("PUT", "/users/me", gin.H{"name": "   "}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockUseCase.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUploadPetImage(t *testing.T) {
	upload := func(t *testing.T, filename string) *http.Request {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, _ = part.Write([]byte("fake-image"))
		require.NoError(t, writer.Close())

		req, _ := http.NewRequest("POST", "/users/me/pet-image", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req
	}

	t.Run("stores under the user's prefix", func(t *testing.T) {
		mockUseCase := new(MockAuthUseCase)
		handler := NewAuthHandler(mockUseCase, logger.New())
		router := setupTestRouter()
		router.POST("/users/me/pet-image", asUser("u1", handler.UploadPetImage))

		mockUseCase.On("UploadPetImage", "u1", mock.Anything, mock.MatchedBy(func(key string) bool {
			return len(key) > len("pets/u1/") && key[:len("pets/u1/")] == "pets/u1/"
		}), mock.Anything).Return(&entity.User{ID: "u1", PetImageURL: "http://s3/pets/u1/x.png"}, nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, upload(t, "dog.PNG"))

		assert.Equal(t, http.StatusOK, w.Code)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("rejects other formats", func(t *testing.T) {
		mockUseCase := new(MockAuthUseCase)
		handler := NewAuthHandler(mockUseCase, logger.New())
		router := setupTestRouter()
		router.POST("/users/me/pet-image", asUser("u1", handler.UploadPetImage))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, upload(t, "dog.bmp"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteAccount(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase, logger.New())
	router := setupTestRouter()
	router.DELETE("/users/me", asUser("u1", handler.DeleteAccount))

	mockUseCase.On("DeleteAccount", "u1").Return(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/users/me", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockUseCase.AssertExpectations(t)
}
