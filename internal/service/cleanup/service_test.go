package cleanup

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/classquest/classquest/internal/models"
	"github.com/classquest/classquest/pkg/logger"
)

// Mock repositories for testing

type storedNotification struct {
	id        uint
	read      bool
	createdAt time.Time
}

type mockNotificationRepository struct {
	rows       map[uint]storedNotification
	nextID     uint
	selectErr  error
	deleteErr  error
	deleteCall int
}

func newMockNotificationRepository() *mockNotificationRepository {
	return &mockNotificationRepository{rows: make(map[uint]storedNotification), nextID: 1}
}

func (m *mockNotificationRepository) add(read bool, age time.Duration) uint {
	id := m.nextID
	m.nextID++
	m.rows[id] = storedNotification{id: id, read: read, createdAt: time.Now().Add(-age)}
	return id
}

func (m *mockNotificationRepository) ListStaleReadIDs(cutoff time.Time, limit int) ([]uint, error) {
	if m.selectErr != nil {
		return nil, m.selectErr
	}
	var ids []uint
	for _, n := range m.rows {
		if n.read && n.createdAt.Before(cutoff) {
			ids = append(ids, n.id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *mockNotificationRepository) DeleteByIDs(ids []uint) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deleteCall++
	var deleted int64
	for _, id := range ids {
		if _, ok := m.rows[id]; ok {
			delete(m.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

type mockCleanupLogRepository struct {
	entries []*models.CleanupLog
}

func (m *mockCleanupLogRepository) Create(entry *models.CleanupLog) error {
	m.entries = append(m.entries, entry)
	return nil
}

// Test setup helper
func setupTestService(retentionDays, batchSize int) (*Service, *mockNotificationRepository, *mockCleanupLogRepository) {
	notificationRepo := newMockNotificationRepository()
	cleanupLogRepo := &mockCleanupLogRepository{}
	log := logger.New("debug", "console", "stdout")

	service := NewServiceWithInterfaces(notificationRepo, cleanupLogRepo, retentionDays, batchSize, log)

	return service, notificationRepo, cleanupLogRepo
}

func TestRun_DeletesOnlyStaleRead(t *testing.T) {
	service, notificationRepo, cleanupLogRepo := setupTestService(30, 500)

	staleRead := notificationRepo.add(true, 40*24*time.Hour)
	recentRead := notificationRepo.add(true, 5*24*time.Hour)
	staleUnread := notificationRepo.add(false, 40*24*time.Hour)

	entry, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if _, ok := notificationRepo.rows[staleRead]; ok {
		t.Error("Expected stale read notification to be deleted")
	}
	if _, ok := notificationRepo.rows[recentRead]; !ok {
		t.Error("Expected recent read notification to be kept")
	}
	if _, ok := notificationRepo.rows[staleUnread]; !ok {
		t.Error("Expected stale unread notification to be kept")
	}

	if entry.RecordsDeleted != 1 {
		t.Errorf("Expected audit row with 1 deletion, got %d", entry.RecordsDeleted)
	}
	if entry.Status != models.CleanupStatusSuccess {
		t.Errorf("Expected success status, got %s", entry.Status)
	}
	if entry.JobType != JobTypeNotificationCleanup {
		t.Errorf("Expected job type %s, got %s", JobTypeNotificationCleanup, entry.JobType)
	}
	if len(cleanupLogRepo.entries) != 1 {
		t.Fatalf("Expected 1 audit row, got %d", len(cleanupLogRepo.entries))
	}
}

func TestRun_Rerun_DeletesNothing(t *testing.T) {
	service, notificationRepo, cleanupLogRepo := setupTestService(30, 500)
	notificationRepo.add(true, 40*24*time.Hour)
	notificationRepo.add(true, 35*24*time.Hour)

	first, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("First Run() failed: %v", err)
	}
	if first.RecordsDeleted != 2 {
		t.Fatalf("Expected 2 deletions, got %d", first.RecordsDeleted)
	}

	second, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("Second Run() failed: %v", err)
	}
	if second.RecordsDeleted != 0 {
		t.Errorf("Expected rerun to delete 0, got %d", second.RecordsDeleted)
	}
	if second.Status != models.CleanupStatusSuccess {
		t.Errorf("Expected empty run to be a success, got %s", second.Status)
	}
	if len(cleanupLogRepo.entries) != 2 {
		t.Errorf("Expected one audit row per run, got %d", len(cleanupLogRepo.entries))
	}
}

func TestRun_BatchesUntilDrained(t *testing.T) {
	service, notificationRepo, _ := setupTestService(30, 3)

	for i := 0; i < 7; i++ {
		notificationRepo.add(true, 40*24*time.Hour)
	}

	entry, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if entry.RecordsDeleted != 7 {
		t.Errorf("Expected 7 deletions across batches, got %d", entry.RecordsDeleted)
	}
	if notificationRepo.deleteCall != 3 {
		t.Errorf("Expected 3 delete batches, got %d", notificationRepo.deleteCall)
	}
	if len(notificationRepo.rows) != 0 {
		t.Errorf("Expected all stale rows gone, got %d left", len(notificationRepo.rows))
	}
}

func TestRun_CapsConfiguredBatchSize(t *testing.T) {
	service, _, _ := setupTestService(30, 10000)
	if service.batchSize != maxBatchSize {
		t.Errorf("Expected batch size capped at %d, got %d", maxBatchSize, service.batchSize)
	}
}

func TestRun_SelectFailureWritesErrorAudit(t *testing.T) {
	service, notificationRepo, cleanupLogRepo := setupTestService(30, 500)
	notificationRepo.selectErr = errors.New("store unavailable")

	entry, err := service.Run(context.Background())
	if err == nil {
		t.Fatal("Expected Run() to report the failure")
	}
	if entry.Status != models.CleanupStatusError {
		t.Errorf("Expected error status, got %s", entry.Status)
	}
	if len(cleanupLogRepo.entries) != 1 {
		t.Errorf("Expected an audit row despite the failure, got %d", len(cleanupLogRepo.entries))
	}
}

func TestRun_CancelledContextStops(t *testing.T) {
	service, notificationRepo, _ := setupTestService(30, 500)
	notificationRepo.add(true, 40*24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entry, err := service.Run(ctx)
	if err == nil {
		t.Fatal("Expected cancelled context to surface an error")
	}
	if entry.RecordsDeleted != 0 {
		t.Errorf("Expected no deletions after cancellation, got %d", entry.RecordsDeleted)
	}
	if len(notificationRepo.rows) != 1 {
		t.Errorf("Expected row untouched, got %d rows", len(notificationRepo.rows))
	}
}
