package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/classquest/classquest/internal/models"
)

// ProgressRepository handles mission progress database operations.
type ProgressRepository struct {
	db *DB
}

// NewProgressRepository creates a new progress repository.
func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// GetOrCreate fetches the progress row for a (mission, user) pair, creating
// it lazily on first tracked action. The unique index on the pair makes
// concurrent first-creates converge on a single row.
func (r *ProgressRepository) GetOrCreate(missionID, userID uint) (*models.MissionProgress, error) {
	var progress models.MissionProgress
	err := r.db.
		Where("mission_id = ? AND user_id = ?", missionID, userID).
		First(&progress).Error
	if err == nil {
		return &progress, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	progress = models.MissionProgress{
		MissionID:    missionID,
		UserID:       userID,
		CurrentValue: 0,
		Status:       models.ProgressStatusInProgress,
	}
	err = r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mission_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&progress).Error
	if err != nil {
		return nil, err
	}

	// Re-read in case the conflict clause fired and another writer owns the row.
	err = r.db.
		Where("mission_id = ? AND user_id = ?", missionID, userID).
		First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// GetByMissionAndUser retrieves the progress row for a (mission, user) pair.
func (r *ProgressRepository) GetByMissionAndUser(missionID, userID uint) (*models.MissionProgress, error) {
	var progress models.MissionProgress
	err := r.db.
		Where("mission_id = ? AND user_id = ?", missionID, userID).
		First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// Increment applies an atomic server-side increment to current_value. The
// read-modify-write race of the original client is narrowed to a single
// UPDATE expression; callers still re-read for completion evaluation.
func (r *ProgressRepository) Increment(id uint, delta int) error {
	return r.db.Model(&models.MissionProgress{}).
		Where("id = ?", id).
		UpdateColumn("current_value", gorm.Expr("current_value + ?", delta)).Error
}

// GetByID retrieves a progress row by its ID.
func (r *ProgressRepository) GetByID(id uint) (*models.MissionProgress, error) {
	var progress models.MissionProgress
	err := r.db.First(&progress, id).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// MarkCompleted flips a progress row to completed if it is not already.
// Returns true when this call performed the transition, false when the row
// was already completed; the caller uses this to keep completion side
// effects at-most-once.
func (r *ProgressRepository) MarkCompleted(id uint, completedAt time.Time) (bool, error) {
	result := r.db.Model(&models.MissionProgress{}).
		Where("id = ? AND status <> ?", id, models.ProgressStatusCompleted).
		Updates(map[string]interface{}{
			"status":       models.ProgressStatusCompleted,
			"completed_at": completedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListByUser retrieves all progress rows for a user with missions preloaded.
func (r *ProgressRepository) ListByUser(userID uint) ([]models.MissionProgress, error) {
	var rows []models.MissionProgress
	err := r.db.
		Where("user_id = ?", userID).
		Preload("Mission").
		Order("updated_at DESC").
		Find(&rows).Error
	return rows, err
}

// ListByMission retrieves all progress rows for a mission.
func (r *ProgressRepository) ListByMission(missionID uint) ([]models.MissionProgress, error) {
	var rows []models.MissionProgress
	err := r.db.
		Where("mission_id = ?", missionID).
		Order("current_value DESC").
		Find(&rows).Error
	return rows, err
}

// CountCompleted returns how many users have completed a mission.
func (r *ProgressRepository) CountCompleted(missionID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.MissionProgress{}).
		Where("mission_id = ? AND status = ?", missionID, models.ProgressStatusCompleted).
		Count(&count).Error
	return count, err
}
