package repository

import (
	"time"

	"github.com/classquest/classquest/internal/models"
)

// NotificationRepository handles notification database operations.
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create persists a notification record.
func (r *NotificationRepository) Create(n *models.Notification) error {
	return r.db.Create(n).Error
}

// GetByID retrieves a notification by its ID.
func (r *NotificationRepository) GetByID(id uint) (*models.Notification, error) {
	var n models.Notification
	err := r.db.First(&n, id).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListForRecipient retrieves notifications for a recipient, newest first.
// When unreadOnly is true only unread records are returned.
func (r *NotificationRepository) ListForRecipient(recipient uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := r.db.Where("recipient = ?", recipient)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.Notification
	err := query.Order("created_at DESC").Find(&rows).Error
	return rows, err
}

// CountUnread returns the number of unread notifications for a recipient.
func (r *NotificationRepository) CountUnread(recipient uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("recipient = ? AND read = ?", recipient, false).
		Count(&count).Error
	return count, err
}

// MarkRead marks a single notification as read.
func (r *NotificationRepository) MarkRead(id uint, readAt time.Time) error {
	return r.db.Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": readAt,
		}).Error
}

// MarkAllRead marks every unread notification for a recipient as read.
// Returns the number of rows updated.
func (r *NotificationRepository) MarkAllRead(recipient uint, readAt time.Time) (int64, error) {
	result := r.db.Model(&models.Notification{}).
		Where("recipient = ? AND read = ?", recipient, false).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": readAt,
		})
	return result.RowsAffected, result.Error
}

// Delete removes a notification by its ID. Deleting an already-deleted row
// is a no-op.
func (r *NotificationRepository) Delete(id uint) error {
	return r.db.Delete(&models.Notification{}, id).Error
}

// ListStaleReadIDs returns IDs of read notifications created before the
// cutoff, bounded by limit. The cleanup job deletes in these bounded batches.
func (r *NotificationRepository) ListStaleReadIDs(cutoff time.Time, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Notification{}).
		Where("read = ? AND created_at < ?", true, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// DeleteByIDs removes notifications by their IDs and reports rows deleted.
func (r *NotificationRepository) DeleteByIDs(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Delete(&models.Notification{}, ids)
	return result.RowsAffected, result.Error
}

// CleanupLogRepository handles cleanup audit records.
type CleanupLogRepository struct {
	db *DB
}

// NewCleanupLogRepository creates a new cleanup log repository.
func NewCleanupLogRepository(db *DB) *CleanupLogRepository {
	return &CleanupLogRepository{db: db}
}

// Create writes one audit record for a job run.
func (r *CleanupLogRepository) Create(entry *models.CleanupLog) error {
	return r.db.Create(entry).Error
}

// ListRecent retrieves the most recent audit records for a job type.
func (r *CleanupLogRepository) ListRecent(jobType string, limit int) ([]models.CleanupLog, error) {
	var rows []models.CleanupLog
	err := r.db.
		Where("job_type = ?", jobType).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
