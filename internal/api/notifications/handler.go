// Package notifications provides REST API handlers for listing and managing
// user notifications.
package notifications

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classquest/classquest/internal/models"
	notificationsvc "github.com/classquest/classquest/internal/service/notifications"
	"github.com/classquest/classquest/pkg/logger"
)

// NotificationService interface for notification operations.
type NotificationService interface {
	ListForRecipient(ctx context.Context, recipient uint, unreadOnly bool, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipient uint) (int64, error)
	MarkRead(ctx context.Context, recipient, id uint) error
	MarkAllRead(ctx context.Context, recipient uint) (int64, error)
	Delete(ctx context.Context, recipient, id uint) error
}

// Handler handles notification API requests.
type Handler struct {
	notificationService NotificationService
	log                 *logger.Logger
}

// NewHandler creates a new notification handler.
func NewHandler(notificationService *notificationsvc.Service, log *logger.Logger) *Handler {
	return &Handler{notificationService: notificationService, log: log}
}

// NewHandlerWithInterfaces creates a new notification handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(notificationService NotificationService, log *logger.Logger) *Handler {
	return &Handler{notificationService: notificationService, log: log}
}

// RegisterRoutes attaches the notification endpoints to a router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users/:id/notifications", h.ListNotifications)
	rg.POST("/users/:id/notifications/:notifID/read", h.MarkRead)
	rg.POST("/users/:id/notifications/read-all", h.MarkAllRead)
	rg.DELETE("/users/:id/notifications/:notifID", h.Delete)
}

// ListNotifications returns a recipient's notifications, newest first.
// GET /api/v1/users/:id/notifications?unread=true&limit=50.
func (h *Handler) ListNotifications(c *gin.Context) {
	recipient, err := h.parseID(c, "id", "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	unreadOnly := c.Query("unread") == "true"
	limit, err := h.parseLimit(c, 50)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.notificationService.ListForRecipient(c.Request.Context(), recipient, unreadOnly, limit)
	if err != nil {
		h.log.Error().Err(err).Uint("recipient", recipient).Msg("Failed to list notifications")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve notifications")
		return
	}

	unread, err := h.notificationService.CountUnread(c.Request.Context(), recipient)
	if err != nil {
		h.log.Error().Err(err).Uint("recipient", recipient).Msg("Failed to count unread notifications")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": rows,
		"total":         len(rows),
		"unread":        unread,
		"generated_at":  time.Now().UTC(),
	})
}

// MarkRead marks one notification as read.
// POST /api/v1/users/:id/notifications/:notifID/read.
func (h *Handler) MarkRead(c *gin.Context) {
	recipient, err := h.parseID(c, "id", "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	notificationID, err := h.parseID(c, "notifID", "notification")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), recipient, notificationID); err != nil {
		h.log.Error().Err(err).
			Uint("recipient", recipient).
			Uint("notification_id", notificationID).
			Msg("Failed to mark notification as read")
		h.errorResponse(c, http.StatusNotFound, "Notification not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "read",
		"generated_at": time.Now().UTC(),
	})
}

// MarkAllRead marks every unread notification of a recipient as read.
// POST /api/v1/users/:id/notifications/read-all.
func (h *Handler) MarkAllRead(c *gin.Context) {
	recipient, err := h.parseID(c, "id", "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.notificationService.MarkAllRead(c.Request.Context(), recipient)
	if err != nil {
		h.log.Error().Err(err).Uint("recipient", recipient).Msg("Failed to mark notifications as read")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to update notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "read",
		"updated":      updated,
		"generated_at": time.Now().UTC(),
	})
}

// Delete removes one notification.
// DELETE /api/v1/users/:id/notifications/:notifID.
func (h *Handler) Delete(c *gin.Context) {
	recipient, err := h.parseID(c, "id", "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	notificationID, err := h.parseID(c, "notifID", "notification")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.notificationService.Delete(c.Request.Context(), recipient, notificationID); err != nil {
		h.log.Error().Err(err).
			Uint("recipient", recipient).
			Uint("notification_id", notificationID).
			Msg("Failed to delete notification")
		h.errorResponse(c, http.StatusNotFound, "Notification not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "deleted",
		"generated_at": time.Now().UTC(),
	})
}

// Helper functions

// parseID extracts and validates a numeric ID from a URL parameter.
func (h *Handler) parseID(c *gin.Context, param, label string) (uint, error) {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s ID: %s", label, idStr)
	}
	return uint(id), nil
}

// parseLimit extracts and validates the limit query parameter.
func (h *Handler) parseLimit(c *gin.Context, defaultLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}
	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}
	if limit > 1000 {
		return 0, fmt.Errorf("limit cannot exceed 1000")
	}

	return limit, nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
