// Package missions provides REST API handlers for mission listings, action
// tracking, and per-user progress.
package missions

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classquest/classquest/internal/models"
	"github.com/classquest/classquest/internal/service/progress"
	"github.com/classquest/classquest/pkg/logger"
)

// ProgressService interface for mission progress operations.
type ProgressService interface {
	LoadActiveMissions(ctx context.Context, classID string) ([]models.Mission, error)
	TrackAction(ctx context.Context, req progress.TrackRequest) error
	GetUserProgress(ctx context.Context, userID uint) ([]progress.ProgressEntry, error)
}

// Handler handles mission API requests.
type Handler struct {
	progressService ProgressService
	log             *logger.Logger
}

// NewHandler creates a new mission handler.
func NewHandler(progressService *progress.Service, log *logger.Logger) *Handler {
	return &Handler{progressService: progressService, log: log}
}

// NewHandlerWithInterfaces creates a new mission handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(progressService ProgressService, log *logger.Logger) *Handler {
	return &Handler{progressService: progressService, log: log}
}

// RegisterRoutes attaches the mission endpoints to a router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/classes/:id/missions", h.ListClassMissions)
	rg.POST("/actions", h.TrackAction)
	rg.GET("/users/:id/progress", h.GetUserProgress)
}

// ListClassMissions returns the active missions for a class.
// GET /api/v1/classes/:id/missions.
func (h *Handler) ListClassMissions(c *gin.Context) {
	classID := c.Param("id")
	if classID == "" {
		h.errorResponse(c, http.StatusBadRequest, "class ID is required")
		return
	}

	missions, err := h.progressService.LoadActiveMissions(c.Request.Context(), classID)
	if err != nil {
		h.log.Error().Err(err).Str("class_id", classID).Msg("Failed to load class missions")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve missions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"class_id":     classID,
		"missions":     missions,
		"total":        len(missions),
		"generated_at": time.Now().UTC(),
	})
}

// trackActionRequest is the JSON body for POST /actions.
type trackActionRequest struct {
	UserID    uint                   `json:"user_id" binding:"required"`
	ClassID   string                 `json:"class_id" binding:"required"`
	Type      string                 `json:"type" binding:"required"`
	Increment int                    `json:"increment"`
	ActionKey string                 `json:"action_key"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// TrackAction applies one gamified action against the user's active missions.
// POST /api/v1/actions.
func (h *Handler) TrackAction(c *gin.Context) {
	var req trackActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err.Error()))
		return
	}

	if req.Increment == 0 {
		req.Increment = 1
	}
	if req.Increment < 0 {
		h.errorResponse(c, http.StatusBadRequest, "increment must be positive")
		return
	}

	err := h.progressService.TrackAction(c.Request.Context(), progress.TrackRequest{
		UserID:    req.UserID,
		ClassID:   req.ClassID,
		Type:      req.Type,
		Increment: req.Increment,
		ActionKey: req.ActionKey,
		Metadata:  req.Metadata,
	})
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", req.UserID).Str("type", req.Type).Msg("Failed to track action")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to track action")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":       "tracked",
		"user_id":      req.UserID,
		"type":         req.Type,
		"generated_at": time.Now().UTC(),
	})
}

// GetUserProgress returns the user's progress across their missions.
// GET /api/v1/users/:id/progress.
func (h *Handler) GetUserProgress(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.progressService.GetUserProgress(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user progress")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve progress")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"progress":     entries,
		"total":        len(entries),
		"generated_at": time.Now().UTC(),
	})
}

// Helper functions

// parseUserID extracts and validates the user ID from the URL parameter.
func (h *Handler) parseUserID(c *gin.Context) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID: %s", idStr)
	}
	return uint(id), nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
