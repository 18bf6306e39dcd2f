package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emilythestrangee/qna-forum/backend/internal/notify"
)

type NotificationHandler struct {
	notifications *notify.Service
	logger        *zap.SugaredLogger
}

func NewNotificationHandler(svc *notify.Service, logger *zap.SugaredLogger) *NotificationHandler {
	return &NotificationHandler{notifications: svc, logger: logger}
}

// GetNotifications lists the caller's notifications, newest first
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	unreadOnly := c.Query("unread") == "true"

	items, total, err := h.notifications.List(c.Request.Context(), userID, page, limit, unreadOnly)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "total": total, "page": page})
}

func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	count, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	n, err := h.notifications.MarkRead(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	updated, err := h.notifications.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	if err := h.notifications.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}
