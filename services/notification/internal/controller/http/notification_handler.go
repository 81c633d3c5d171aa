package http

import (
	"net/http"
	"strconv"

	"petfeed/pkg/logger"
	"petfeed/services/notification/internal/usecase"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationUseCase usecase.NotificationUseCase
	logger              *logger.Logger
}

func NewNotificationHandler(notificationUseCase usecase.NotificationUseCase, logger *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
		logger:              logger,
	}
}

// QueueInspector is satisfied by *queue.Client.
type QueueInspector interface {
	GetQueueLength() (int, error)
}

// Health reports the number of tasks waiting in the notification queue, or
// 503 when the queue cannot be inspected.
func Health(queue QueueInspector, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		length, err := queue.GetQueueLength()
		if err != nil {
			log.Error("Failed to inspect notification queue: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "Notification queue unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "queue_length": length})
	}
}

// GetNotifications godoc
// @Summary      List notifications
// @Description  Newest first. Only the last 100 notifications are kept.
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Number of notifications (max 100)"
// @Param        offset query int false "Offset"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications [get]
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	notifications, total, err := h.notificationUseCase.GetNotifications(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to get notifications: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"count":         len(notifications),
		"total":         total,
	})
}

// DeleteNotificationsByPost godoc
// @Summary      Dismiss notifications about a post
// @Description  Called after a post is deleted so its likes stop showing up.
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        post_id path string true "Post ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications/{post_id} [delete]
func (h *NotificationHandler) DeleteNotificationsByPost(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	removed, err := h.notificationUseCase.DeleteNotificationsByPost(c.Request.Context(), userID, c.Param("post_id"))
	if err != nil {
		h.logger.Error("Failed to delete notifications: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notifications deleted", "removed": removed})
}
