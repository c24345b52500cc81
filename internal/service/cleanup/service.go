// Package cleanup deletes old read notifications in bounded batches and
// records an audit row per run.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/classquest/classquest/internal/metrics"
	"github.com/classquest/classquest/internal/models"
	"github.com/classquest/classquest/internal/repository"
	"github.com/classquest/classquest/pkg/logger"
)

// JobTypeNotificationCleanup identifies the cleanup job in audit rows.
const JobTypeNotificationCleanup = "notification_cleanup"

// maxBatchSize caps a single delete statement regardless of configuration.
const maxBatchSize = 500

// NotificationRepository interface for stale notification selection and
// deletion.
type NotificationRepository interface {
	ListStaleReadIDs(cutoff time.Time, limit int) ([]uint, error)
	DeleteByIDs(ids []uint) (int64, error)
}

// CleanupLogRepository interface for audit rows.
type CleanupLogRepository interface {
	Create(entry *models.CleanupLog) error
}

// Service deletes read notifications older than the retention period.
type Service struct {
	notificationRepo NotificationRepository
	cleanupLogRepo   CleanupLogRepository
	retention        time.Duration
	batchSize        int
	log              *logger.Logger
}

// NewService creates a new cleanup service.
func NewService(
	notificationRepo *repository.NotificationRepository,
	cleanupLogRepo *repository.CleanupLogRepository,
	retentionDays int,
	batchSize int,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(notificationRepo, cleanupLogRepo, retentionDays, batchSize, log)
}

// NewServiceWithInterfaces creates a new cleanup service with interface
// dependencies (useful for testing).
func NewServiceWithInterfaces(
	notificationRepo NotificationRepository,
	cleanupLogRepo CleanupLogRepository,
	retentionDays int,
	batchSize int,
	log *logger.Logger,
) *Service {
	if batchSize <= 0 || batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}
	return &Service{
		notificationRepo: notificationRepo,
		cleanupLogRepo:   cleanupLogRepo,
		retention:        time.Duration(retentionDays) * 24 * time.Hour,
		batchSize:        batchSize,
		log:              log,
	}
}

// Run deletes read notifications created before now minus the retention
// period, in batches, until none remain or the context is cancelled. One
// audit row is written per run. A run that finds nothing to delete is a
// normal success.
func (s *Service) Run(ctx context.Context) (*models.CleanupLog, error) {
	start := time.Now()
	cutoff := start.UTC().Add(-s.retention)

	var deleted int64
	var runErr error

	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		ids, err := s.notificationRepo.ListStaleReadIDs(cutoff, s.batchSize)
		if err != nil {
			runErr = fmt.Errorf("failed to select stale notifications: %w", err)
			break
		}
		if len(ids) == 0 {
			break
		}

		n, err := s.notificationRepo.DeleteByIDs(ids)
		if err != nil {
			runErr = fmt.Errorf("failed to delete notification batch: %w", err)
			break
		}
		deleted += n

		s.log.Debug().
			Int("batch", len(ids)).
			Int64("deleted", n).
			Msg("Notification cleanup batch done")

		if len(ids) < s.batchSize {
			break
		}
	}

	entry := &models.CleanupLog{
		JobType:         JobTypeNotificationCleanup,
		RecordsDeleted:  int(deleted),
		ExecutionTimeMS: time.Since(start).Milliseconds(),
		Status:          models.CleanupStatusSuccess,
		Details:         fmt.Sprintf("retention %s, cutoff %s", s.retention, cutoff.Format(time.RFC3339)),
	}
	if runErr != nil {
		entry.Status = models.CleanupStatusError
		entry.Details = runErr.Error()
	}

	if err := s.cleanupLogRepo.Create(entry); err != nil {
		s.log.Error().Err(err).Msg("Failed to write cleanup audit row")
	}

	if deleted > 0 {
		metrics.RecordNotificationsCleaned(int(deleted))
	}

	event := s.log.Info()
	if runErr != nil {
		event = s.log.Error().Err(runErr)
	}
	event.
		Int64("deleted", deleted).
		Str("status", entry.Status).
		Dur("duration", time.Since(start)).
		Msg("Notification cleanup finished")

	return entry, runErr
}
