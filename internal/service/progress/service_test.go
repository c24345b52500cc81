package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/classquest/classquest/internal/metrics"
	"github.com/classquest/classquest/internal/models"
	"github.com/classquest/classquest/internal/realtime"
	"github.com/classquest/classquest/internal/repository"
	"github.com/classquest/classquest/pkg/logger"
)

// Mock repositories for testing

type mockMissionRepository struct {
	missions map[uint]*models.Mission
}

func newMockMissionRepository() *mockMissionRepository {
	return &mockMissionRepository{missions: make(map[uint]*models.Mission)}
}

func (m *mockMissionRepository) ListActiveByClass(classID string) ([]models.Mission, error) {
	var result []models.Mission
	for _, mission := range m.missions {
		if mission.ClassID == classID && mission.Status == models.MissionStatusActive {
			result = append(result, *mission)
		}
	}
	return result, nil
}

func (m *mockMissionRepository) ListActiveByClassAndType(classID, missionType string) ([]models.Mission, error) {
	var result []models.Mission
	for _, mission := range m.missions {
		if mission.ClassID == classID && mission.Status == models.MissionStatusActive && mission.Type == missionType {
			result = append(result, *mission)
		}
	}
	return result, nil
}

func (m *mockMissionRepository) GetByID(id uint) (*models.Mission, error) {
	if mission, ok := m.missions[id]; ok {
		return mission, nil
	}
	return nil, fmt.Errorf("mission not found")
}

type mockProgressRepository struct {
	rows           map[uint]*models.MissionProgress
	nextID         uint
	failForMission map[uint]bool // missions whose progress operations fail
	missionLookup  map[uint]*models.Mission
}

func newMockProgressRepository() *mockProgressRepository {
	return &mockProgressRepository{
		rows:           make(map[uint]*models.MissionProgress),
		nextID:         1,
		failForMission: make(map[uint]bool),
	}
}

func (m *mockProgressRepository) GetOrCreate(missionID, userID uint) (*models.MissionProgress, error) {
	if m.failForMission[missionID] {
		return nil, errors.New("store unavailable")
	}
	for _, row := range m.rows {
		if row.MissionID == missionID && row.UserID == userID {
			copied := *row
			return &copied, nil
		}
	}
	row := &models.MissionProgress{
		ID:        m.nextID,
		MissionID: missionID,
		UserID:    userID,
		Status:    models.ProgressStatusInProgress,
	}
	m.nextID++
	m.rows[row.ID] = row
	copied := *row
	return &copied, nil
}

func (m *mockProgressRepository) GetByID(id uint) (*models.MissionProgress, error) {
	if row, ok := m.rows[id]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, fmt.Errorf("progress not found")
}

func (m *mockProgressRepository) Increment(id uint, delta int) error {
	row, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("progress not found")
	}
	row.CurrentValue += delta
	return nil
}

func (m *mockProgressRepository) MarkCompleted(id uint, completedAt time.Time) (bool, error) {
	row, ok := m.rows[id]
	if !ok {
		return false, fmt.Errorf("progress not found")
	}
	if row.Status == models.ProgressStatusCompleted {
		return false, nil
	}
	row.Status = models.ProgressStatusCompleted
	row.CompletedAt = &completedAt
	return true, nil
}

func (m *mockProgressRepository) ListByUser(userID uint) ([]models.MissionProgress, error) {
	var result []models.MissionProgress
	for _, row := range m.rows {
		if row.UserID == userID {
			copied := *row
			if mission, ok := m.missionLookup[row.MissionID]; ok {
				copied.Mission = *mission
			}
			result = append(result, copied)
		}
	}
	return result, nil
}

type mockActionRepository struct {
	entries     []models.ActionLog
	failCreates int // fail this many Create calls before recovering
}

func newMockActionRepository() *mockActionRepository {
	return &mockActionRepository{}
}

func (m *mockActionRepository) Create(entry *models.ActionLog) error {
	if m.failCreates > 0 {
		m.failCreates--
		return errors.New("store unavailable")
	}
	if entry.ActionKey != nil {
		for _, e := range m.entries {
			if e.UserID == entry.UserID &&
				e.MissionID != nil && entry.MissionID != nil && *e.MissionID == *entry.MissionID &&
				e.ActionKey != nil && *e.ActionKey == *entry.ActionKey {
				return repository.ErrDuplicateActionKey
			}
		}
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockActionRepository) countByAction(action string) int {
	count := 0
	for _, e := range m.entries {
		if e.Action == action {
			count++
		}
	}
	return count
}

type mockUserRepository struct {
	points map[uint]int
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{points: make(map[uint]int)}
}

func (m *mockUserRepository) GetByID(id uint) (*models.User, error) {
	return &models.User{ID: id, Username: "user"}, nil
}

func (m *mockUserRepository) AddPoints(userID uint, points int) error {
	m.points[userID] += points
	return nil
}

type mockNotifier struct {
	notifications []models.Notification
}

func (m *mockNotifier) Notify(_ context.Context, n *models.Notification) error {
	m.notifications = append(m.notifications, *n)
	return nil
}

type mockPublisher struct {
	events []realtime.Event
}

func (m *mockPublisher) PublishToUser(_ uint, event realtime.Event) {
	m.events = append(m.events, event)
}

// mockCache is an in-memory Cache used instead of a real Redis instance.
type mockCache struct {
	mu   sync.RWMutex
	data map[string]string
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string]string)}
}

func (m *mockCache) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key], nil
}

func (m *mockCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := value.(string); ok {
		m.data[key] = s
	}
	return nil
}

func (m *mockCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

// Test setup helper
func setupTestService() (*Service, *mockMissionRepository, *mockProgressRepository, *mockActionRepository, *mockUserRepository, *mockNotifier, *mockPublisher) {
	missionRepo := newMockMissionRepository()
	progressRepo := newMockProgressRepository()
	progressRepo.missionLookup = missionRepo.missions
	actionRepo := newMockActionRepository()
	userRepo := newMockUserRepository()
	notifier := &mockNotifier{}
	publisher := &mockPublisher{}
	log := logger.New("debug", "console", "stdout")

	service := NewServiceWithInterfaces(
		missionRepo, progressRepo, actionRepo, userRepo,
		notifier, publisher, newMockCache(), time.Minute, log,
	)

	return service, missionRepo, progressRepo, actionRepo, userRepo, notifier, publisher
}

func addMission(repo *mockMissionRepository, id uint, classID, missionType string, target, reward int) *models.Mission {
	mission := &models.Mission{
		ID:           id,
		ClassID:      classID,
		Title:        fmt.Sprintf("Mission %d", id),
		Type:         missionType,
		TargetValue:  target,
		RewardPoints: reward,
		Status:       models.MissionStatusActive,
	}
	repo.missions[id] = mission
	return mission
}

func TestTrackAction_IncrementsProgress(t *testing.T) {
	service, missionRepo, progressRepo, actionRepo, _, _, _ := setupTestService()

	addMission(missionRepo, 1, "class-1", models.MissionTypeMessageSent, 10, 50)

	err := service.TrackAction(context.Background(), TrackRequest{
		UserID:    7,
		ClassID:   "class-1",
		Type:      models.MissionTypeMessageSent,
		Increment: 1,
	})
	if err != nil {
		t.Fatalf("TrackAction() failed: %v", err)
	}

	row, err := progressRepo.GetByID(1)
	if err != nil {
		t.Fatalf("Expected progress row to exist: %v", err)
	}
	if row.CurrentValue != 1 {
		t.Errorf("Expected current_value 1, got %d", row.CurrentValue)
	}
	if actionRepo.countByAction(models.ActionProgress) != 1 {
		t.Errorf("Expected 1 progress action entry, got %d", actionRepo.countByAction(models.ActionProgress))
	}
}

func TestTrackAction_RejectsNonPositiveIncrement(t *testing.T) {
	service, _, _, _, _, _, _ := setupTestService()

	err := service.TrackAction(context.Background(), TrackRequest{
		UserID:    7,
		ClassID:   "class-1",
		Type:      models.MissionTypeMessageSent,
		Increment: 0,
	})
	if err == nil {
		t.Error("Expected error for zero increment")
	}
}

func TestTrackAction_CompletionSideEffectsOnce(t *testing.T) {
	service, missionRepo, _, actionRepo, userRepo, notifier, publisher := setupTestService()

	addMission(missionRepo, 1, "class-1", models.MissionTypeMessageSent, 3, 50)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := service.TrackAction(ctx, TrackRequest{
			UserID:    7,
			ClassID:   "class-1",
			Type:      models.MissionTypeMessageSent,
			Increment: 1,
		})
		if err != nil {
			t.Fatalf("TrackAction() call %d failed: %v", i, err)
		}
	}

	// Completion fired exactly once even though tracking continued past the target.
	if got := actionRepo.countByAction(models.ActionCompleteMission); got != 1 {
		t.Errorf("Expected exactly 1 complete_mission action, got %d", got)
	}
	if userRepo.points[7] != 50 {
		t.Errorf("Expected 50 points awarded once, got %d", userRepo.points[7])
	}
	if len(publisher.events) != 1 {
		t.Errorf("Expected 1 celebration event, got %d", len(publisher.events))
	}
	if len(notifier.notifications) != 1 {
		t.Errorf("Expected 1 completion notification, got %d", len(notifier.notifications))
	}
	if len(publisher.events) == 1 && publisher.events[0].Type != realtime.EventMissionCompleted {
		t.Errorf("Expected mission_completed event, got %q", publisher.events[0].Type)
	}
}

func TestTrackAction_PerMissionFailureIsolation(t *testing.T) {
	service, missionRepo, progressRepo, _, _, _, _ := setupTestService()

	broken := addMission(missionRepo, 1, "class-1", models.MissionTypeMessageSent, 10, 50)
	addMission(missionRepo, 2, "class-1", models.MissionTypeMessageSent, 10, 50)
	progressRepo.failForMission[broken.ID] = true

	err := service.TrackAction(context.Background(), TrackRequest{
		UserID:    7,
		ClassID:   "class-1",
		Type:      models.MissionTypeMessageSent,
		Increment: 1,
	})
	if err != nil {
		t.Fatalf("TrackAction() failed: %v", err)
	}

	// The healthy mission still advanced.
	var healthy *models.MissionProgress
	for _, row := range progressRepo.rows {
		if row.MissionID == 2 {
			healthy = row
		}
	}
	if healthy == nil {
		t.Fatal("Expected progress row for healthy mission")
	}
	if healthy.CurrentValue != 1 {
		t.Errorf("Expected healthy mission progress 1, got %d", healthy.CurrentValue)
	}
}

func TestTrackAction_ActionKeyDeduplicates(t *testing.T) {
	service, missionRepo, progressRepo, _, _, _, _ := setupTestService()

	addMission(missionRepo, 1, "class-1", models.MissionTypeMessageSent, 10, 50)
	ctx := context.Background()

	req := TrackRequest{
		UserID:    7,
		ClassID:   "class-1",
		Type:      models.MissionTypeMessageSent,
		Increment: 1,
		ActionKey: "msg-42",
	}

	for i := 0; i < 3; i++ {
		if err := service.TrackAction(ctx, req); err != nil {
			t.Fatalf("TrackAction() failed: %v", err)
		}
	}

	row, err := progressRepo.GetByID(1)
	if err != nil {
		t.Fatalf("Expected progress row: %v", err)
	}
	if row.CurrentValue != 1 {
		t.Errorf("Expected replayed action to count once, got current_value %d", row.CurrentValue)
	}
}

func TestTrackAction_KeyedRetryAfterFailedWriteCountsOnce(t *testing.T) {
	service, missionRepo, progressRepo, actionRepo, _, _, _ := setupTestService()

	addMission(missionRepo, 1, "class-1", models.MissionTypeMessageSent, 10, 50)
	ctx := context.Background()

	req := TrackRequest{
		UserID:    7,
		ClassID:   "class-1",
		Type:      models.MissionTypeMessageSent,
		Increment: 1,
		ActionKey: "msg-42",
	}

	// First delivery fails before the key is reserved, so nothing counts.
	actionRepo.failCreates = 1
	if err := service.TrackAction(ctx, req); err != nil {
		t.Fatalf("TrackAction() failed: %v", err)
	}
	if len(progressRepo.rows) != 0 {
		t.Fatalf("Expected no progress before the key is reserved, got %d rows", len(progressRepo.rows))
	}

	// The redelivery and a later replay count exactly once between them.
	for i := 0; i < 2; i++ {
		if err := service.TrackAction(ctx, req); err != nil {
			t.Fatalf("TrackAction() redelivery %d failed: %v", i, err)
		}
	}

	row, err := progressRepo.GetByID(1)
	if err != nil {
		t.Fatalf("Expected progress row: %v", err)
	}
	if row.CurrentValue != 1 {
		t.Errorf("Expected keyed retry to count once, got current_value %d", row.CurrentValue)
	}
	if got := actionRepo.countByAction(models.ActionProgress); got != 1 {
		t.Errorf("Expected 1 recorded action entry, got %d", got)
	}
}

func TestTrackAction_PersistsMetadata(t *testing.T) {
	service, missionRepo, _, actionRepo, _, _, _ := setupTestService()

	addMission(missionRepo, 1, "class-1", models.MissionTypeMessageSent, 10, 50)

	err := service.TrackAction(context.Background(), TrackRequest{
		UserID:    7,
		ClassID:   "class-1",
		Type:      models.MissionTypeMessageSent,
		Increment: 1,
		Metadata:  map[string]interface{}{"channel": "general"},
	})
	if err != nil {
		t.Fatalf("TrackAction() failed: %v", err)
	}

	if len(actionRepo.entries) != 1 {
		t.Fatalf("Expected 1 action entry, got %d", len(actionRepo.entries))
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(actionRepo.entries[0].Metadata, &decoded); err != nil {
		t.Fatalf("Expected metadata to be valid JSON: %v", err)
	}
	if decoded["channel"] != "general" {
		t.Errorf("Expected metadata channel %q, got %v", "general", decoded["channel"])
	}
}

func TestTrackAction_RecordsErrorWhenAllMissionsFail(t *testing.T) {
	service, missionRepo, progressRepo, _, _, _, _ := setupTestService()

	broken := addMission(missionRepo, 1, "class-1", models.MissionTypeLoginStreak, 10, 0)
	progressRepo.failForMission[broken.ID] = true

	errBefore := testutil.ToFloat64(metrics.ActionsTrackedTotal.WithLabelValues(models.MissionTypeLoginStreak, "error"))
	okBefore := testutil.ToFloat64(metrics.ActionsTrackedTotal.WithLabelValues(models.MissionTypeLoginStreak, "success"))

	err := service.TrackAction(context.Background(), TrackRequest{
		UserID:    7,
		ClassID:   "class-1",
		Type:      models.MissionTypeLoginStreak,
		Increment: 1,
	})
	if err != nil {
		t.Fatalf("TrackAction() failed: %v", err)
	}

	errAfter := testutil.ToFloat64(metrics.ActionsTrackedTotal.WithLabelValues(models.MissionTypeLoginStreak, "error"))
	okAfter := testutil.ToFloat64(metrics.ActionsTrackedTotal.WithLabelValues(models.MissionTypeLoginStreak, "success"))

	if errAfter-errBefore != 1 {
		t.Errorf("Expected error count to increase by 1, got %v", errAfter-errBefore)
	}
	if okAfter != okBefore {
		t.Errorf("Expected success count unchanged, got delta %v", okAfter-okBefore)
	}
}

func TestTrackAction_IgnoresOtherTypes(t *testing.T) {
	service, missionRepo, progressRepo, _, _, _, _ := setupTestService()

	addMission(missionRepo, 1, "class-1", models.MissionTypeForumPost, 10, 50)

	err := service.TrackAction(context.Background(), TrackRequest{
		UserID:    7,
		ClassID:   "class-1",
		Type:      models.MissionTypeMessageSent,
		Increment: 1,
	})
	if err != nil {
		t.Fatalf("TrackAction() failed: %v", err)
	}

	if len(progressRepo.rows) != 0 {
		t.Errorf("Expected no progress rows for unmatched mission type, got %d", len(progressRepo.rows))
	}
}

func TestLoadActiveMissions_CachesResult(t *testing.T) {
	service, missionRepo, _, _, _, _, _ := setupTestService()

	addMission(missionRepo, 1, "class-1", models.MissionTypeMessageSent, 10, 50)

	ctx := context.Background()
	missions, err := service.LoadActiveMissions(ctx, "class-1")
	if err != nil {
		t.Fatalf("LoadActiveMissions() failed: %v", err)
	}
	if len(missions) != 1 {
		t.Fatalf("Expected 1 mission, got %d", len(missions))
	}

	// Remove from the store; the cached list still serves.
	delete(missionRepo.missions, 1)

	missions, err = service.LoadActiveMissions(ctx, "class-1")
	if err != nil {
		t.Fatalf("LoadActiveMissions() second call failed: %v", err)
	}
	if len(missions) != 1 {
		t.Errorf("Expected cached mission list with 1 entry, got %d", len(missions))
	}

	// After invalidation the store is authoritative again.
	service.InvalidateMissionCache(ctx, "class-1")
	missions, err = service.LoadActiveMissions(ctx, "class-1")
	if err != nil {
		t.Fatalf("LoadActiveMissions() third call failed: %v", err)
	}
	if len(missions) != 0 {
		t.Errorf("Expected empty list after invalidation, got %d", len(missions))
	}
}

func TestGetUserProgress(t *testing.T) {
	service, missionRepo, _, _, _, _, _ := setupTestService()

	addMission(missionRepo, 1, "class-1", models.MissionTypeMessageSent, 10, 50)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := service.TrackAction(ctx, TrackRequest{
			UserID:    7,
			ClassID:   "class-1",
			Type:      models.MissionTypeMessageSent,
			Increment: 1,
		}); err != nil {
			t.Fatalf("TrackAction() failed: %v", err)
		}
	}

	entries, err := service.GetUserProgress(ctx, 7)
	if err != nil {
		t.Fatalf("GetUserProgress() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 progress entry, got %d", len(entries))
	}
	if entries[0].CurrentValue != 5 {
		t.Errorf("Expected current_value 5, got %d", entries[0].CurrentValue)
	}
	if entries[0].Percentage != 50 {
		t.Errorf("Expected 50%%, got %v", entries[0].Percentage)
	}
	if entries[0].IsCompleted {
		t.Error("Expected mission not completed at 50%")
	}
}
