package achievements

import (
	"context"
	"errors"
	"fmt"

	"github.com/classquest/classquest/internal/metrics"
	"github.com/classquest/classquest/internal/models"
	"github.com/classquest/classquest/internal/realtime"
	"github.com/classquest/classquest/internal/repository"
	"github.com/classquest/classquest/pkg/logger"
)

// AchievementRepository interface for achievement persistence.
type AchievementRepository interface {
	ListActiveDefinitions() ([]models.AchievementDefinition, error)
	GetDefinitionByID(id uint) (*models.AchievementDefinition, error)
	UpsertDefinition(def *models.AchievementDefinition) error
	Unlock(userID, achievementID uint, points int) (*models.UserAchievement, error)
	ListForUser(userID uint) ([]models.UserAchievement, error)
	MarkSeen(userID, achievementID uint) error
	CountHolders(achievementID uint) (int64, error)
}

// UserRepository interface for granting reward points.
type UserRepository interface {
	AddPoints(userID uint, points int) error
}

// Notifier creates the unlock notification record.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// Publisher pushes realtime toast events to a user's connected clients.
type Publisher interface {
	PublishToUser(userID uint, event realtime.Event)
}

// Unlocked describes a fresh unlock produced by RecordEvent.
type Unlocked struct {
	Definition *models.AchievementDefinition
	Awarded    *models.UserAchievement
}

// Service evaluates UI events against active definitions and unlocks
// achievements exactly once per user.
type Service struct {
	achievementRepo AchievementRepository
	userRepo        UserRepository
	notifier        Notifier
	publisher       Publisher
	state           *triggerState
	log             *logger.Logger
}

// NewService creates a new achievement service.
func NewService(
	achievementRepo *repository.AchievementRepository,
	userRepo *repository.UserRepository,
	notifier Notifier,
	publisher Publisher,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(achievementRepo, userRepo, notifier, publisher, log)
}

// NewServiceWithInterfaces creates a new achievement service with interface
// dependencies (useful for testing).
func NewServiceWithInterfaces(
	achievementRepo AchievementRepository,
	userRepo UserRepository,
	notifier Notifier,
	publisher Publisher,
	log *logger.Logger,
) *Service {
	return &Service{
		achievementRepo: achievementRepo,
		userRepo:        userRepo,
		notifier:        notifier,
		publisher:       publisher,
		state:           newTriggerState(),
		log:             log,
	}
}

// SeedDefinitions upserts configured definitions at startup so config edits
// take effect without losing unlock history.
func (s *Service) SeedDefinitions(defs []models.AchievementDefinition) error {
	for i := range defs {
		def := defs[i]
		if _, err := newTrigger(&def); err != nil {
			return fmt.Errorf("seed achievement %q: %w", def.Name, err)
		}
		if err := s.achievementRepo.UpsertDefinition(&def); err != nil {
			return fmt.Errorf("seed achievement %q: %w", def.Name, err)
		}
	}
	s.log.Info().Int("count", len(defs)).Msg("Achievement definitions seeded")
	return nil
}

// RecordEvent feeds one UI event through every active definition's trigger
// for the user and unlocks whichever patterns complete. Unlocks the user
// already holds are silently skipped.
func (s *Service) RecordEvent(ctx context.Context, userID uint, event UIEvent) ([]Unlocked, error) {
	defs, err := s.achievementRepo.ListActiveDefinitions()
	if err != nil {
		return nil, fmt.Errorf("failed to list achievement definitions: %w", err)
	}

	ut := s.state.forUser(userID)
	ut.mu.Lock()
	defer ut.mu.Unlock()

	var unlocked []Unlocked
	for i := range defs {
		def := defs[i]

		tr, ok := ut.triggers[def.ID]
		if !ok {
			tr, err = newTrigger(&def)
			if err != nil {
				s.log.Warn().Err(err).Str("achievement", def.Name).Msg("Skipping definition with invalid trigger config")
				continue
			}
			ut.triggers[def.ID] = tr
		}

		if !tr.observe(event) {
			continue
		}
		tr.reset()

		awarded, err := s.unlock(ctx, userID, &def)
		if err != nil {
			s.log.Error().Err(err).
				Uint("user_id", userID).
				Str("achievement", def.Name).
				Msg("Failed to unlock achievement")
			continue
		}
		if awarded != nil {
			unlocked = append(unlocked, Unlocked{Definition: &def, Awarded: awarded})
		}
	}

	return unlocked, nil
}

// Unlock grants a definition to a user directly, bypassing trigger matching.
// Returns nil without error when the user already holds the achievement.
func (s *Service) Unlock(ctx context.Context, userID, achievementID uint) (*models.UserAchievement, error) {
	def, err := s.achievementRepo.GetDefinitionByID(achievementID)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievement definition: %w", err)
	}
	return s.unlock(ctx, userID, def)
}

// unlock performs the grant with its side effects. A duplicate grant is
// benign: it returns (nil, nil) and produces no notification or toast.
func (s *Service) unlock(ctx context.Context, userID uint, def *models.AchievementDefinition) (*models.UserAchievement, error) {
	awarded, err := s.achievementRepo.Unlock(userID, def.ID, def.Points)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyUnlocked) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to unlock achievement: %w", err)
	}

	if def.Points > 0 {
		if err := s.userRepo.AddPoints(userID, def.Points); err != nil {
			s.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to grant achievement reward points")
		}
	}

	metrics.RecordAchievementUnlocked(def.Name)

	s.publisher.PublishToUser(userID, realtime.Event{
		Type: realtime.EventAchievementUnlocked,
		Payload: map[string]interface{}{
			"achievement_id": def.ID,
			"name":           def.Name,
			"title":          def.Title,
			"icon":           def.Icon,
			"points":         def.Points,
		},
	})

	notification := &models.Notification{
		Recipient:  userID,
		Title:      "Achievement unlocked!",
		Content:    fmt.Sprintf("You earned %q", def.Title),
		Type:       models.NotificationTypeAchievement,
		SourceType: models.SourceTypeSystem,
		SourceID:   fmt.Sprintf("%d", def.ID),
	}
	if err := s.notifier.Notify(ctx, notification); err != nil {
		s.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to create achievement notification")
	}

	s.log.Info().
		Uint("user_id", userID).
		Str("achievement", def.Name).
		Int("points", def.Points).
		Msg("Achievement unlocked")

	return awarded, nil
}

// ListForUser returns every achievement the user holds, newest first.
func (s *Service) ListForUser(userID uint) ([]models.UserAchievement, error) {
	rows, err := s.achievementRepo.ListForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user achievements: %w", err)
	}
	return rows, nil
}

// MarkSeen acknowledges the unlock toast so it is shown only once.
func (s *Service) MarkSeen(userID, achievementID uint) error {
	if err := s.achievementRepo.MarkSeen(userID, achievementID); err != nil {
		return fmt.Errorf("failed to mark achievement as seen: %w", err)
	}
	return nil
}

// HolderCount reports how many users hold a given achievement.
func (s *Service) HolderCount(achievementID uint) (int64, error) {
	count, err := s.achievementRepo.CountHolders(achievementID)
	if err != nil {
		return 0, fmt.Errorf("failed to count achievement holders: %w", err)
	}
	return count, nil
}
