package http

import (
	"errors"
	"net/http"
	"strconv"

	"petfeed/pkg/logger"
	"petfeed/services/post/internal/entity"
	"petfeed/services/post/internal/usecase"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	postUseCase usecase.PostUseCase
	logger      *logger.Logger
}

func NewPostHandler(postUseCase usecase.PostUseCase, logger *logger.Logger) *PostHandler {
	return &PostHandler{
		postUseCase: postUseCase,
		logger:      logger,
	}
}

// respondError maps use case errors to status codes. Anything unknown is
// logged and reported as fallback.
func (h *PostHandler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, entity.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
	case errors.Is(err, entity.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, entity.ErrAlreadyLiked), errors.Is(err, entity.ErrNotLiked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case usecase.IsClientError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("%s: %v", fallback, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func queryInt(c *gin.Context, name string, def int) int {
	if raw := c.Query(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			return v
		}
	}
	return def
}

type CreatePostRequest struct {
	Caption string `form:"caption" binding:"required"`
}

type UpdatePostRequest struct {
	Caption string `json:"caption" binding:"required"`
}

// CreatePost godoc
// @Summary      Create a new post
// @Description  Upload a pet photo with a caption. The image is stored in S3 and the post starts with zero likes.
// @Tags         posts
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        caption formData string true "Post caption"
// @Param        image formData file true "Image file (jpg/jpeg/png)"
// @Success      201  {object}  entity.Post
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /posts [post]
func (h *PostHandler) CreatePost(c *gin.Context) {
	userID := c.GetString("user_id")
	userName := c.GetString("user_name")

	var req CreatePostRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	image, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file is required"})
		return
	}

	post, err := h.postUseCase.CreatePost(userID, userName, req.Caption, image)
	if err != nil {
		h.respondError(c, err, "Failed to create post")
		return
	}

	c.JSON(http.StatusCreated, post)
}

// ListPosts godoc
// @Summary      List feed page
// @Description  Posts newest first. Pass next_cursor from the previous page to continue; an empty next_cursor means the end of the feed.
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Page size (max 100)"
// @Param        cursor query string false "Cursor from the previous page"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /posts [get]
func (h *PostHandler) ListPosts(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	cursor := c.Query("cursor")

	posts, next, err := h.postUseCase.ListPosts(cursor, limit)
	if err != nil {
		h.respondError(c, err, "Failed to fetch posts")
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts), "next_cursor": next})
}

// GetPost godoc
// @Summary      Get post by ID
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Post ID"
// @Success      200  {object}  entity.Post
// @Failure      404  {object}  map[string]string
// @Router       /posts/{id} [get]
func (h *PostHandler) GetPost(c *gin.Context) {
	post, err := h.postUseCase.GetPost(c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Failed to fetch post")
		return
	}

	c.JSON(http.StatusOK, post)
}

// UpdatePost godoc
// @Summary      Update caption
// @Description  Replace the caption of a post. Only the owner can edit.
// @Tags         posts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Post ID"
// @Param        request body UpdatePostRequest true "New caption"
// @Success      200  {object}  entity.Post
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /posts/{id} [patch]
func (h *PostHandler) UpdatePost(c *gin.Context) {
	postID := c.Param("id")
	userID := c.GetString("user_id")

	var req UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.postUseCase.UpdateCaption(postID, userID, req.Caption)
	if err != nil {
		h.respondError(c, err, "Failed to update post")
		return
	}

	c.JSON(http.StatusOK, post)
}

// DeletePost godoc
// @Summary      Delete post
// @Description  Delete a post. Only the owner can delete. Likes are removed separately with DELETE /posts/{id}/likes.
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Post ID"
// @Success      200  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /posts/{id} [delete]
func (h *PostHandler) DeletePost(c *gin.Context) {
	postID := c.Param("id")
	userID := c.GetString("user_id")

	if err := h.postUseCase.DeletePost(postID, userID); err != nil {
		h.respondError(c, err, "Failed to delete post")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// DeleteLikes godoc
// @Summary      Delete all likes of a post
// @Description  Cascade cleanup after a delete. Only the owner can run it.
// @Tags         likes
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Post ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /posts/{id}/likes [delete]
func (h *PostHandler) DeleteLikes(c *gin.Context) {
	postID := c.Param("id")
	userID := c.GetString("user_id")

	removed, err := h.postUseCase.DeleteLikes(postID, userID)
	if err != nil {
		h.respondError(c, err, "Failed to delete likes")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Likes deleted", "removed": removed})
}

// LikePost godoc
// @Summary      Like a post
// @Description  Creates the like and increments like_count in one transaction.
// @Tags         likes
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Post ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /posts/{id}/like [post]
func (h *PostHandler) LikePost(c *gin.Context) {
	postID := c.Param("id")
	userID := c.GetString("user_id")

	if err := h.postUseCase.LikePost(postID, userID); err != nil {
		h.respondError(c, err, "Failed to like post")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post liked", "liked": true})
}

// UnlikePost godoc
// @Summary      Unlike a post
// @Description  Deletes the like and decrements like_count in one transaction.
// @Tags         likes
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Post ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /posts/{id}/like [delete]
func (h *PostHandler) UnlikePost(c *gin.Context) {
	postID := c.Param("id")
	userID := c.GetString("user_id")

	if err := h.postUseCase.UnlikePost(postID, userID); err != nil {
		h.respondError(c, err, "Failed to unlike post")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post unliked", "liked": false})
}

// IsLiked godoc
// @Summary      Liked status
// @Tags         likes
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Post ID"
// @Success      200  {object}  map[string]bool
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /posts/{id}/liked [get]
func (h *PostHandler) IsLiked(c *gin.Context) {
	postID := c.Param("id")
	userID := c.GetString("user_id")

	liked, err := h.postUseCase.IsLiked(postID, userID)
	if err != nil {
		h.respondError(c, err, "Failed to check like")
		return
	}

	c.JSON(http.StatusOK, gin.H{"liked": liked})
}

// GetUserPosts godoc
// @Summary      Posts by user
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        user_id path string true "User ID"
// @Param        limit query int false "Number of posts to return (max 100)"
// @Param        offset query int false "Offset for pagination"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /posts/user/{user_id} [get]
func (h *PostHandler) GetUserPosts(c *gin.Context) {
	userID := c.Param("user_id")
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	posts, err := h.postUseCase.GetUserPosts(userID, limit, offset)
	if err != nil {
		h.respondError(c, err, "Failed to fetch posts")
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts), "offset": offset})
}

// GetLikedPosts godoc
// @Summary      Get liked posts
// @Description  Get all posts liked by the authenticated user
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Number of posts to return (max 100)"
// @Param        offset query int false "Offset for pagination"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /posts/liked [get]
func (h *PostHandler) GetLikedPosts(c *gin.Context) {
	userID := c.GetString("user_id")
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	posts, err := h.postUseCase.GetLikedPosts(userID, limit, offset)
	if err != nil {
		h.respondError(c, err, "Failed to fetch liked posts")
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts), "offset": offset})
}
