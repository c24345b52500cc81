package repository

import (
	"time"

	"github.com/classquest/classquest/internal/models"
)

// MissionRepository handles mission-related database operations.
type MissionRepository struct {
	db *DB
}

// NewMissionRepository creates a new mission repository.
func NewMissionRepository(db *DB) *MissionRepository {
	return &MissionRepository{db: db}
}

// Create creates a new mission.
func (r *MissionRepository) Create(mission *models.Mission) error {
	return r.db.Create(mission).Error
}

// GetByID retrieves a mission by its ID.
func (r *MissionRepository) GetByID(id uint) (*models.Mission, error) {
	var mission models.Mission
	err := r.db.First(&mission, id).Error
	if err != nil {
		return nil, err
	}
	return &mission, nil
}

// Update updates an existing mission.
func (r *MissionRepository) Update(mission *models.Mission) error {
	return r.db.Save(mission).Error
}

// UpdateStatus updates only the lifecycle status of a mission. Missions are
// immutable once referenced by progress records except for status fields.
func (r *MissionRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.Mission{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// ListActiveByClass retrieves active missions for a class.
func (r *MissionRepository) ListActiveByClass(classID string) ([]models.Mission, error) {
	var missions []models.Mission
	err := r.db.
		Where("class_id = ? AND status = ?", classID, models.MissionStatusActive).
		Order("created_at ASC").
		Find(&missions).Error
	return missions, err
}

// ListActiveByClassAndType retrieves active missions for a class matching an action type.
func (r *MissionRepository) ListActiveByClassAndType(classID, missionType string) ([]models.Mission, error) {
	var missions []models.Mission
	err := r.db.
		Where("class_id = ? AND status = ? AND type = ?", classID, models.MissionStatusActive, missionType).
		Order("created_at ASC").
		Find(&missions).Error
	return missions, err
}

// ListActiveByType retrieves all active missions matching an action type,
// regardless of class.
func (r *MissionRepository) ListActiveByType(missionType string) ([]models.Mission, error) {
	var missions []models.Mission
	err := r.db.
		Where("status = ? AND type = ?", models.MissionStatusActive, missionType).
		Order("created_at ASC").
		Find(&missions).Error
	return missions, err
}

// ListExpiredActive retrieves active missions whose end date has passed.
func (r *MissionRepository) ListExpiredActive(now time.Time) ([]models.Mission, error) {
	var missions []models.Mission
	err := r.db.
		Where("status = ? AND ends_at IS NOT NULL AND ends_at < ?", models.MissionStatusActive, now).
		Find(&missions).Error
	return missions, err
}

// Delete deletes a mission by its ID.
func (r *MissionRepository) Delete(id uint) error {
	return r.db.Delete(&models.Mission{}, id).Error
}
