//nolint:noctx // Test file uses http.NewRequest for simplicity
package achievements

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/classquest/classquest/internal/models"
	achievementsvc "github.com/classquest/classquest/internal/service/achievements"
	"github.com/classquest/classquest/pkg/logger"
)

// Mock Achievement Service
type mockAchievementService struct {
	unlocks    map[uint][]models.UserAchievement
	holders    map[uint]int64
	toUnlock   []achievementsvc.Unlocked
	events     []achievementsvc.UIEvent
	seenCalled [][2]uint
}

func newMockAchievementService() *mockAchievementService {
	return &mockAchievementService{
		unlocks: make(map[uint][]models.UserAchievement),
		holders: make(map[uint]int64),
	}
}

func (m *mockAchievementService) RecordEvent(ctx context.Context, userID uint, event achievementsvc.UIEvent) ([]achievementsvc.Unlocked, error) {
	m.events = append(m.events, event)
	return m.toUnlock, nil
}

func (m *mockAchievementService) ListForUser(userID uint) ([]models.UserAchievement, error) {
	rows, exists := m.unlocks[userID]
	if !exists {
		return []models.UserAchievement{}, nil
	}
	return rows, nil
}

func (m *mockAchievementService) MarkSeen(userID, achievementID uint) error {
	m.seenCalled = append(m.seenCalled, [2]uint{userID, achievementID})
	return nil
}

func (m *mockAchievementService) HolderCount(achievementID uint) (int64, error) {
	return m.holders[achievementID], nil
}

// Mock Catalog
type mockCatalog struct {
	defs []models.AchievementDefinition
}

func (m *mockCatalog) ListActiveDefinitions() ([]models.AchievementDefinition, error) {
	return m.defs, nil
}

// Test Setup
func setupTestHandler() (*Handler, *mockAchievementService, *mockCatalog) {
	achievementService := newMockAchievementService()
	catalog := &mockCatalog{}
	log := logger.New("debug", "console", "stdout")

	handler := NewHandlerWithInterfaces(achievementService, catalog, log)

	return handler, achievementService, catalog
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return router
}

// Tests

func TestGetCatalog_HidesTriggerConfig(t *testing.T) {
	handler, _, catalog := setupTestHandler()
	router := setupRouter(handler)

	catalog.defs = []models.AchievementDefinition{
		{
			ID:            1,
			Name:          "logo-triple",
			Title:         "Triple click",
			TriggerType:   models.TriggerTypeClicks,
			TriggerConfig: json.RawMessage(`{"target":"logo","required_clicks":3}`),
			Points:        25,
			IsActive:      true,
		},
	}

	req, _ := http.NewRequest("GET", "/api/v1/achievements", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	// The hidden trigger pattern must not leak to clients.
	assert.NotContains(t, w.Body.String(), "required_clicks")
	assert.NotContains(t, w.Body.String(), "trigger")

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, float64(1), response["total"])
}

func TestGetUserAchievements_Success(t *testing.T) {
	handler, achievementService, _ := setupTestHandler()
	router := setupRouter(handler)

	achievementService.unlocks[7] = []models.UserAchievement{
		{ID: 1, UserID: 7, AchievementID: 1, UnlockedAt: time.Now(), IsNew: true},
	}

	req, _ := http.NewRequest("GET", "/api/v1/users/7/achievements", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, float64(1), response["total"])
}

func TestRecordEvent_ReturnsUnlocks(t *testing.T) {
	handler, achievementService, _ := setupTestHandler()
	router := setupRouter(handler)

	achievementService.toUnlock = []achievementsvc.Unlocked{
		{
			Definition: &models.AchievementDefinition{ID: 1, Name: "logo-triple", Title: "Triple click", Points: 25},
			Awarded:    &models.UserAchievement{ID: 1, UserID: 7, AchievementID: 1, IsNew: true},
		},
	}

	body, _ := json.Marshal(map[string]interface{}{
		"user_id": 7,
		"kind":    "click",
		"target":  "logo",
	})

	req, _ := http.NewRequest("POST", "/api/v1/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, achievementService.events, 1)
	assert.Equal(t, achievementsvc.EventKindClick, achievementService.events[0].Kind)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	unlocked := response["unlocked"].([]interface{})
	assert.Len(t, unlocked, 1)
}

func TestRecordEvent_RejectsUnknownKind(t *testing.T) {
	handler, achievementService, _ := setupTestHandler()
	router := setupRouter(handler)

	body, _ := json.Marshal(map[string]interface{}{
		"user_id": 7,
		"kind":    "hover",
	})

	req, _ := http.NewRequest("POST", "/api/v1/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, achievementService.events)
}

func TestGetHolderCount_Success(t *testing.T) {
	handler, achievementService, _ := setupTestHandler()
	router := setupRouter(handler)

	achievementService.holders[3] = 12

	req, _ := http.NewRequest("GET", "/api/v1/achievements/3/holders", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, float64(3), response["achievement_id"])
	assert.Equal(t, float64(12), response["holders"])
}

func TestGetHolderCount_InvalidID(t *testing.T) {
	handler, _, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("GET", "/api/v1/achievements/abc/holders", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkSeen_Success(t *testing.T) {
	handler, achievementService, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("POST", "/api/v1/users/7/achievements/3/seen", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, achievementService.seenCalled, 1)
	assert.Equal(t, [2]uint{7, 3}, achievementService.seenCalled[0])
}
