package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/classquest/classquest/internal/metrics"
	"github.com/classquest/classquest/internal/models"
	"github.com/classquest/classquest/internal/realtime"
	"github.com/classquest/classquest/internal/repository"
	"github.com/classquest/classquest/pkg/cache"
	"github.com/classquest/classquest/pkg/logger"
)

// MissionRepository interface for mission operations.
type MissionRepository interface {
	ListActiveByClass(classID string) ([]models.Mission, error)
	ListActiveByClassAndType(classID, missionType string) ([]models.Mission, error)
	GetByID(id uint) (*models.Mission, error)
}

// ProgressRepository interface for progress operations.
type ProgressRepository interface {
	GetOrCreate(missionID, userID uint) (*models.MissionProgress, error)
	GetByID(id uint) (*models.MissionProgress, error)
	Increment(id uint, delta int) error
	MarkCompleted(id uint, completedAt time.Time) (bool, error)
	ListByUser(userID uint) ([]models.MissionProgress, error)
}

// ActionRepository interface for gamification action logging.
type ActionRepository interface {
	Create(entry *models.ActionLog) error
}

// UserRepository interface for user operations.
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	AddPoints(userID uint, points int) error
}

// Notifier creates notification records for completion events.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// Publisher pushes realtime events to a user's connected clients.
type Publisher interface {
	PublishToUser(userID uint, event realtime.Event)
}

// TrackRequest describes one gamified user action to apply against missions.
type TrackRequest struct {
	UserID    uint
	ClassID   string
	Type      string // mission type the action counts toward
	Increment int
	ActionKey string // optional; deduplicates replayed deliveries
	Metadata  map[string]interface{}
}

// ProgressEntry is one mission's progress as presented to the UI.
type ProgressEntry struct {
	Mission      models.Mission `json:"mission"`
	CurrentValue int            `json:"current_value"`
	Percentage   float64        `json:"percentage"`
	IsCompleted  bool           `json:"is_completed"`
	CompletedAt  *time.Time     `json:"completed_at"`
}

// Service orchestrates mission progress tracking.
type Service struct {
	missionRepo  MissionRepository
	progressRepo ProgressRepository
	actionRepo   ActionRepository
	userRepo     UserRepository
	notifier     Notifier
	publisher    Publisher
	cache        cache.Cache
	cacheTTL     time.Duration
	log          *logger.Logger
}

// NewService creates a new progress service.
func NewService(
	missionRepo *repository.MissionRepository,
	progressRepo *repository.ProgressRepository,
	actionRepo *repository.ActionRepository,
	userRepo *repository.UserRepository,
	notifier Notifier,
	publisher Publisher,
	c cache.Cache,
	cacheTTL time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		missionRepo:  missionRepo,
		progressRepo: progressRepo,
		actionRepo:   actionRepo,
		userRepo:     userRepo,
		notifier:     notifier,
		publisher:    publisher,
		cache:        c,
		cacheTTL:     cacheTTL,
		log:          log,
	}
}

// NewServiceWithInterfaces creates a new progress service with interface
// dependencies (useful for testing).
func NewServiceWithInterfaces(
	missionRepo MissionRepository,
	progressRepo ProgressRepository,
	actionRepo ActionRepository,
	userRepo UserRepository,
	notifier Notifier,
	publisher Publisher,
	c cache.Cache,
	cacheTTL time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		missionRepo:  missionRepo,
		progressRepo: progressRepo,
		actionRepo:   actionRepo,
		userRepo:     userRepo,
		notifier:     notifier,
		publisher:    publisher,
		cache:        c,
		cacheTTL:     cacheTTL,
		log:          log,
	}
}

// LoadActiveMissions returns the active missions for a class. Results are
// cached briefly; cache failures degrade to direct reads. A store failure
// returns an empty list and the error, with no automatic retry.
func (s *Service) LoadActiveMissions(ctx context.Context, classID string) ([]models.Mission, error) {
	cacheKey := "missions:active:" + classID

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			s.log.Warn().Err(err).Str("class_id", classID).Msg("Mission cache read failed")
		} else if cached != "" {
			var missions []models.Mission
			if err := json.Unmarshal([]byte(cached), &missions); err == nil {
				return missions, nil
			}
			s.log.Warn().Str("class_id", classID).Msg("Discarding malformed mission cache entry")
		}
	}

	missions, err := s.missionRepo.ListActiveByClass(classID)
	if err != nil {
		s.log.Error().Err(err).Str("class_id", classID).Msg("Failed to load active missions")
		return []models.Mission{}, fmt.Errorf("failed to load active missions: %w", err)
	}

	metrics.SetActiveMissions(classID, len(missions))

	if s.cache != nil {
		if payload, err := json.Marshal(missions); err == nil {
			if err := s.cache.Set(ctx, cacheKey, string(payload), s.cacheTTL); err != nil {
				s.log.Warn().Err(err).Str("class_id", classID).Msg("Mission cache write failed")
			}
		}
	}

	return missions, nil
}

// TrackAction applies one user action to every active mission matching its
// type. Each mission is processed independently: one mission's failure is
// logged and skipped, never blocking the rest of the batch.
func (s *Service) TrackAction(ctx context.Context, req TrackRequest) error {
	if req.Increment <= 0 {
		return fmt.Errorf("increment must be positive, got %d", req.Increment)
	}

	missions, err := s.missionRepo.ListActiveByClassAndType(req.ClassID, req.Type)
	if err != nil {
		metrics.RecordActionTracked(req.Type, "error")
		return fmt.Errorf("failed to list missions for action: %w", err)
	}

	failed := 0
	for i := range missions {
		if err := s.trackMission(ctx, &missions[i], req); err != nil {
			s.log.Error().
				Err(err).
				Uint("mission_id", missions[i].ID).
				Uint("user_id", req.UserID).
				Str("type", req.Type).
				Msg("Failed to track action for mission")
			failed++
			continue
		}
	}

	status := "success"
	if len(missions) > 0 && failed == len(missions) {
		status = "error"
	}
	metrics.RecordActionTracked(req.Type, status)
	return nil
}

// trackMission applies one action to a single mission's progress row.
//
// The read-then-write sequence of the original client raced under concurrent
// invocations and could under-count. The increment here is a single atomic
// UPDATE expression, which removes the lost-update window for the counter
// itself; completion detection still re-reads and relies on MarkCompleted's
// conditional transition to keep side effects at-most-once.
func (s *Service) trackMission(ctx context.Context, mission *models.Mission, req TrackRequest) error {
	// Keyed deliveries write the action entry before the increment: the
	// unique index on (user_id, mission_id, action_key) reserves the key,
	// so a replay hits ErrDuplicateActionKey and never increments. A failed
	// reservation leaves no key behind and the retry starts over.
	if req.ActionKey != "" {
		err := s.actionRepo.Create(s.actionEntry(mission, req))
		if errors.Is(err, repository.ErrDuplicateActionKey) {
			s.log.Debug().
				Str("action_key", req.ActionKey).
				Uint("mission_id", mission.ID).
				Msg("Duplicate action delivery ignored")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to reserve action key: %w", err)
		}
	}

	row, err := s.progressRepo.GetOrCreate(mission.ID, req.UserID)
	if err != nil {
		return fmt.Errorf("failed to get progress: %w", err)
	}

	alreadyCompleted := row.Status == models.ProgressStatusCompleted

	if err := s.progressRepo.Increment(row.ID, req.Increment); err != nil {
		return fmt.Errorf("failed to increment progress: %w", err)
	}

	if req.ActionKey == "" {
		if err := s.actionRepo.Create(s.actionEntry(mission, req)); err != nil {
			// The increment already landed; a lost audit entry is logged, not fatal.
			s.log.Warn().
				Err(err).
				Uint("mission_id", mission.ID).
				Uint("user_id", req.UserID).
				Msg("Failed to record progress action")
		}
	}

	if alreadyCompleted {
		return nil
	}

	updated, err := s.progressRepo.GetByID(row.ID)
	if err != nil {
		return fmt.Errorf("failed to re-read progress: %w", err)
	}

	if updated.CurrentValue >= mission.TargetValue {
		s.completeMission(ctx, mission, updated)
	}

	return nil
}

// actionEntry builds the audit row for one tracked action.
func (s *Service) actionEntry(mission *models.Mission, req TrackRequest) *models.ActionLog {
	entry := &models.ActionLog{
		UserID:    req.UserID,
		MissionID: &mission.ID,
		Action:    models.ActionProgress,
		Points:    0,
	}
	if req.ActionKey != "" {
		key := req.ActionKey
		entry.ActionKey = &key
	}
	if len(req.Metadata) > 0 {
		if payload, err := json.Marshal(req.Metadata); err == nil {
			entry.Metadata = payload
		}
	}
	return entry
}

// completeMission runs the one-time completion side effects: reward points,
// a complete_mission action entry, a celebration event, and a notification.
func (s *Service) completeMission(ctx context.Context, mission *models.Mission, row *models.MissionProgress) {
	transitioned, err := s.progressRepo.MarkCompleted(row.ID, time.Now())
	if err != nil {
		s.log.Error().
			Err(err).
			Uint("mission_id", mission.ID).
			Uint("user_id", row.UserID).
			Msg("Failed to mark mission completed")
		return
	}
	if !transitioned {
		// Another invocation got here first; points were already awarded.
		return
	}

	entry := &models.ActionLog{
		UserID:    row.UserID,
		MissionID: &mission.ID,
		Action:    models.ActionCompleteMission,
		Points:    mission.RewardPoints,
	}
	if err := s.actionRepo.Create(entry); err != nil {
		s.log.Error().
			Err(err).
			Uint("mission_id", mission.ID).
			Uint("user_id", row.UserID).
			Msg("Failed to record mission completion action")
	}

	if err := s.userRepo.AddPoints(row.UserID, mission.RewardPoints); err != nil {
		s.log.Error().
			Err(err).
			Uint("user_id", row.UserID).
			Int("points", mission.RewardPoints).
			Msg("Failed to award mission points")
	}

	metrics.RecordMissionCompleted(mission.Type)

	if s.publisher != nil {
		s.publisher.PublishToUser(row.UserID, realtime.Event{
			Type: realtime.EventMissionCompleted,
			Payload: map[string]interface{}{
				"mission_id":    mission.ID,
				"title":         mission.Title,
				"reward_points": mission.RewardPoints,
			},
		})
	}

	if s.notifier != nil {
		n := &models.Notification{
			Recipient:  row.UserID,
			Title:      "Mission complete!",
			Content:    fmt.Sprintf("You completed %q and earned %d points", mission.Title, mission.RewardPoints),
			Type:       models.NotificationTypeAchievement,
			SourceType: models.SourceTypeClass,
			SourceID:   fmt.Sprintf("%d", mission.ID),
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.Warn().
				Err(err).
				Uint("user_id", row.UserID).
				Msg("Failed to create mission completion notification")
		}
	}

	s.log.Info().
		Uint("mission_id", mission.ID).
		Uint("user_id", row.UserID).
		Int("reward_points", mission.RewardPoints).
		Msg("Mission completed")
}

// GetUserProgress returns a user's progress across all their missions.
func (s *Service) GetUserProgress(ctx context.Context, userID uint) ([]ProgressEntry, error) {
	rows, err := s.progressRepo.ListByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user progress: %w", err)
	}

	entries := make([]ProgressEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, ProgressEntry{
			Mission:      row.Mission,
			CurrentValue: row.CurrentValue,
			Percentage:   Percentage(row.CurrentValue, row.Mission.TargetValue),
			IsCompleted:  IsCompleted(row.Status, row.CurrentValue, row.Mission.TargetValue),
			CompletedAt:  row.CompletedAt,
		})
	}
	return entries, nil
}

// InvalidateMissionCache drops the cached mission list for a class, used
// after teacher-side mission edits.
func (s *Service) InvalidateMissionCache(ctx context.Context, classID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, "missions:active:"+classID); err != nil {
		s.log.Warn().Err(err).Str("class_id", classID).Msg("Failed to invalidate mission cache")
	}
}
