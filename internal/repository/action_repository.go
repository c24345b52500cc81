package repository

import (
	"errors"
	"time"

	"github.com/classquest/classquest/internal/models"
)

// ErrDuplicateActionKey is returned by Create when the (user, mission,
// action key) triple already exists. Callers treat it as "already applied",
// not a failure.
var ErrDuplicateActionKey = errors.New("action key already recorded")

// ActionRepository handles gamification action log operations.
type ActionRepository struct {
	db *DB
}

// NewActionRepository creates a new action repository.
func NewActionRepository(db *DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// Create records a gamification action. When the entry carries an action
// key, the unique index on (user_id, mission_id, action_key) arbitrates
// replays: a second insert with the same key returns ErrDuplicateActionKey.
func (r *ActionRepository) Create(entry *models.ActionLog) error {
	err := r.db.Create(entry).Error
	if err != nil && entry.ActionKey != nil && isUniqueViolation(err) {
		return ErrDuplicateActionKey
	}
	return err
}

// HasActionKey checks whether an action with this key was already recorded
// for the (user, mission) pair.
func (r *ActionRepository) HasActionKey(userID uint, missionID uint, actionKey string) (bool, error) {
	var count int64
	err := r.db.Model(&models.ActionLog{}).
		Where("user_id = ? AND mission_id = ? AND action_key = ?", userID, missionID, actionKey).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByUser retrieves a user's recorded actions, newest first.
func (r *ActionRepository) ListByUser(userID uint, since time.Time) ([]models.ActionLog, error) {
	var rows []models.ActionLog
	err := r.db.
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// SumPoints totals the points a user has earned from recorded actions.
func (r *ActionRepository) SumPoints(userID uint) (int64, error) {
	var total *int64
	err := r.db.Model(&models.ActionLog{}).
		Where("user_id = ?", userID).
		Select("SUM(points)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
