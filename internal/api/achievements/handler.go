// Package achievements provides REST API handlers for the achievement
// catalog, UI event ingestion, and unlock acknowledgement.
package achievements

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classquest/classquest/internal/models"
	achievementsvc "github.com/classquest/classquest/internal/service/achievements"
	"github.com/classquest/classquest/pkg/logger"
)

// AchievementService interface for achievement operations.
type AchievementService interface {
	RecordEvent(ctx context.Context, userID uint, event achievementsvc.UIEvent) ([]achievementsvc.Unlocked, error)
	ListForUser(userID uint) ([]models.UserAchievement, error)
	MarkSeen(userID, achievementID uint) error
	HolderCount(achievementID uint) (int64, error)
}

// CatalogRepository lists the visible achievement definitions.
type CatalogRepository interface {
	ListActiveDefinitions() ([]models.AchievementDefinition, error)
}

// Handler handles achievement API requests.
type Handler struct {
	achievementService AchievementService
	catalog            CatalogRepository
	log                *logger.Logger
}

// NewHandler creates a new achievement handler.
func NewHandler(achievementService *achievementsvc.Service, catalog CatalogRepository, log *logger.Logger) *Handler {
	return &Handler{achievementService: achievementService, catalog: catalog, log: log}
}

// NewHandlerWithInterfaces creates a new achievement handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(achievementService AchievementService, catalog CatalogRepository, log *logger.Logger) *Handler {
	return &Handler{achievementService: achievementService, catalog: catalog, log: log}
}

// RegisterRoutes attaches the achievement endpoints to a router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/achievements", h.GetCatalog)
	rg.GET("/achievements/:defID/holders", h.GetHolderCount)
	rg.GET("/users/:id/achievements", h.GetUserAchievements)
	rg.POST("/events", h.RecordEvent)
	rg.POST("/users/:id/achievements/:defID/seen", h.MarkSeen)
}

// GetCatalog returns the active achievement definitions. Trigger
// configurations are not exposed; easter eggs stay hidden until found.
// GET /api/v1/achievements.
func (h *Handler) GetCatalog(c *gin.Context) {
	defs, err := h.catalog.ListActiveDefinitions()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load achievement catalog")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve achievements")
		return
	}

	type catalogEntry struct {
		ID     uint   `json:"id"`
		Name   string `json:"name"`
		Title  string `json:"title"`
		Icon   string `json:"icon"`
		Points int    `json:"points"`
	}
	entries := make([]catalogEntry, 0, len(defs))
	for _, def := range defs {
		entries = append(entries, catalogEntry{
			ID:     def.ID,
			Name:   def.Name,
			Title:  def.Title,
			Icon:   def.Icon,
			Points: def.Points,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"achievements": entries,
		"total":        len(entries),
		"generated_at": time.Now().UTC(),
	})
}

// GetHolderCount reports how many users have unlocked one achievement,
// a rarity signal for the catalog UI.
// GET /api/v1/achievements/:defID/holders.
func (h *Handler) GetHolderCount(c *gin.Context) {
	achievementID, err := h.parseID(c, "defID", "achievement")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	count, err := h.achievementService.HolderCount(achievementID)
	if err != nil {
		h.log.Error().Err(err).Uint("achievement_id", achievementID).Msg("Failed to count achievement holders")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to count achievement holders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"achievement_id": achievementID,
		"holders":        count,
		"generated_at":   time.Now().UTC(),
	})
}

// GetUserAchievements returns the achievements a user has unlocked.
// GET /api/v1/users/:id/achievements.
func (h *Handler) GetUserAchievements(c *gin.Context) {
	userID, err := h.parseID(c, "id", "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.achievementService.ListForUser(userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to list user achievements")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve achievements")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"achievements": rows,
		"total":        len(rows),
		"generated_at": time.Now().UTC(),
	})
}

// recordEventRequest is the JSON body for POST /events.
type recordEventRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Kind   string `json:"kind" binding:"required"`
	Target string `json:"target"`
	Key    string `json:"key"`
}

// RecordEvent ingests one UI interaction and reports any fresh unlocks.
// POST /api/v1/events.
func (h *Handler) RecordEvent(c *gin.Context) {
	var req recordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err.Error()))
		return
	}

	if req.Kind != achievementsvc.EventKindClick && req.Kind != achievementsvc.EventKindKey {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("unknown event kind: %s", req.Kind))
		return
	}

	unlocked, err := h.achievementService.RecordEvent(c.Request.Context(), req.UserID, achievementsvc.UIEvent{
		Kind:   req.Kind,
		Target: req.Target,
		Key:    req.Key,
		At:     time.Now(),
	})
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", req.UserID).Msg("Failed to record UI event")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to record event")
		return
	}

	type unlockedEntry struct {
		AchievementID uint   `json:"achievement_id"`
		Name          string `json:"name"`
		Title         string `json:"title"`
		Icon          string `json:"icon"`
		Points        int    `json:"points"`
	}
	entries := make([]unlockedEntry, 0, len(unlocked))
	for _, u := range unlocked {
		entries = append(entries, unlockedEntry{
			AchievementID: u.Definition.ID,
			Name:          u.Definition.Name,
			Title:         u.Definition.Title,
			Icon:          u.Definition.Icon,
			Points:        u.Definition.Points,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"unlocked":     entries,
		"generated_at": time.Now().UTC(),
	})
}

// MarkSeen acknowledges the unlock toast for one achievement.
// POST /api/v1/users/:id/achievements/:defID/seen.
func (h *Handler) MarkSeen(c *gin.Context) {
	userID, err := h.parseID(c, "id", "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	achievementID, err := h.parseID(c, "defID", "achievement")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.achievementService.MarkSeen(userID, achievementID); err != nil {
		h.log.Error().Err(err).
			Uint("user_id", userID).
			Uint("achievement_id", achievementID).
			Msg("Failed to mark achievement as seen")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to acknowledge achievement")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "seen",
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

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
