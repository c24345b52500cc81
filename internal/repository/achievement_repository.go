package repository

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/classquest/classquest/internal/models"
)

// ErrAlreadyUnlocked is returned by Unlock when the (user, achievement) pair
// already exists. Callers treat it as "already unlocked", not a failure.
var ErrAlreadyUnlocked = errors.New("achievement already unlocked")

// AchievementRepository handles achievement database operations.
type AchievementRepository struct {
	db *DB
}

// NewAchievementRepository creates a new achievement repository.
func NewAchievementRepository(db *DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// CreateDefinition creates a new achievement definition.
func (r *AchievementRepository) CreateDefinition(def *models.AchievementDefinition) error {
	return r.db.Create(def).Error
}

// UpsertDefinition creates a definition or updates it by unique name.
// Used on startup to seed definitions from configuration.
func (r *AchievementRepository) UpsertDefinition(def *models.AchievementDefinition) error {
	var existing models.AchievementDefinition
	err := r.db.Where("name = ?", def.Name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(def).Error
	}
	if err != nil {
		return err
	}
	def.ID = existing.ID
	def.CreatedAt = existing.CreatedAt
	return r.db.Save(def).Error
}

// GetDefinitionByID retrieves a definition by its ID.
func (r *AchievementRepository) GetDefinitionByID(id uint) (*models.AchievementDefinition, error) {
	var def models.AchievementDefinition
	err := r.db.First(&def, id).Error
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// GetDefinitionByName retrieves a definition by its unique name.
func (r *AchievementRepository) GetDefinitionByName(name string) (*models.AchievementDefinition, error) {
	var def models.AchievementDefinition
	err := r.db.Where("name = ?", name).First(&def).Error
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// ListActiveDefinitions retrieves all active definitions.
func (r *AchievementRepository) ListActiveDefinitions() ([]models.AchievementDefinition, error) {
	var defs []models.AchievementDefinition
	err := r.db.
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&defs).Error
	return defs, err
}

// ListDefinitions retrieves all definitions.
func (r *AchievementRepository) ListDefinitions() ([]models.AchievementDefinition, error) {
	var defs []models.AchievementDefinition
	err := r.db.Order("created_at ASC").Find(&defs).Error
	return defs, err
}

// Unlock creates the UserAchievement row for a first unlock. The store's
// uniqueness constraint is the source of truth for "first unlock wins":
// a duplicate create attempt returns ErrAlreadyUnlocked.
func (r *AchievementRepository) Unlock(userID, achievementID uint, points int) (*models.UserAchievement, error) {
	ua := &models.UserAchievement{
		UserID:        userID,
		AchievementID: achievementID,
		UnlockedAt:    time.Now(),
		IsNew:         true,
		Points:        points,
	}
	err := r.db.Create(ua).Error
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyUnlocked
		}
		return nil, err
	}
	return ua, nil
}

// HasUnlocked checks if a user has already unlocked an achievement.
func (r *AchievementRepository) HasUnlocked(userID, achievementID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserAchievement{}).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListForUser retrieves all achievements unlocked by a user with definitions preloaded.
func (r *AchievementRepository) ListForUser(userID uint) ([]models.UserAchievement, error) {
	var rows []models.UserAchievement
	err := r.db.
		Where("user_id = ?", userID).
		Preload("Achievement").
		Order("unlocked_at DESC").
		Find(&rows).Error
	return rows, err
}

// MarkSeen clears the is_new flag once the celebratory UI has been shown.
func (r *AchievementRepository) MarkSeen(userID, achievementID uint) error {
	return r.db.Model(&models.UserAchievement{}).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Update("is_new", false).Error
}

// CountHolders returns how many users have unlocked an achievement.
func (r *AchievementRepository) CountHolders(achievementID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.UserAchievement{}).
		Where("achievement_id = ?", achievementID).
		Count(&count).Error
	return count, err
}

// isUniqueViolation detects duplicate-key errors across postgres and the
// sqlite driver used in tests.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
