// Package notifications creates, lists, and fans out user notifications.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/classquest/classquest/internal/metrics"
	"github.com/classquest/classquest/internal/models"
	"github.com/classquest/classquest/internal/realtime"
	"github.com/classquest/classquest/internal/repository"
	"github.com/classquest/classquest/pkg/logger"
)

// NotificationRepository interface for notification persistence.
type NotificationRepository interface {
	Create(n *models.Notification) error
	GetByID(id uint) (*models.Notification, error)
	ListForRecipient(recipient uint, unreadOnly bool, limit int) ([]models.Notification, error)
	CountUnread(recipient uint) (int64, error)
	MarkRead(id uint, readAt time.Time) error
	MarkAllRead(recipient uint, readAt time.Time) (int64, error)
	Delete(id uint) error
}

// UserRepository resolves @mention usernames to users.
type UserRepository interface {
	GetByUsername(username string) (*models.User, error)
}

// Publisher pushes realtime notification events to connected clients.
type Publisher interface {
	PublishToUser(userID uint, event realtime.Event)
}

// Service is the notification application service.
type Service struct {
	notificationRepo NotificationRepository
	userRepo         UserRepository
	publisher        Publisher
	log              *logger.Logger
}

// NewService creates a new notification service.
func NewService(
	notificationRepo *repository.NotificationRepository,
	userRepo *repository.UserRepository,
	publisher Publisher,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(notificationRepo, userRepo, publisher, log)
}

// NewServiceWithInterfaces creates a new notification service with interface
// dependencies (useful for testing).
func NewServiceWithInterfaces(
	notificationRepo NotificationRepository,
	userRepo UserRepository,
	publisher Publisher,
	log *logger.Logger,
) *Service {
	return &Service{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		publisher:        publisher,
		log:              log,
	}
}

// Notify validates and persists one notification, then pushes it to the
// recipient's connected clients. Unknown type or source_type values are
// rejected at this boundary.
func (s *Service) Notify(ctx context.Context, n *models.Notification) error {
	if n.Recipient == 0 {
		return fmt.Errorf("notification requires a recipient")
	}
	if !models.ValidNotificationType(n.Type) {
		return fmt.Errorf("unknown notification type %q", n.Type)
	}
	if n.SourceType != "" && !models.ValidSourceType(n.SourceType) {
		return fmt.Errorf("unknown notification source type %q", n.SourceType)
	}

	if err := s.notificationRepo.Create(n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	metrics.RecordNotificationCreated(n.Type)

	s.publisher.PublishToUser(n.Recipient, realtime.Event{
		Type:    realtime.EventNotification,
		Payload: map[string]interface{}{"notification": n},
	})

	s.log.Debug().
		Uint("recipient", n.Recipient).
		Str("type", n.Type).
		Msg("Notification created")

	return nil
}

// ListForRecipient returns a recipient's notifications, newest first.
func (s *Service) ListForRecipient(ctx context.Context, recipient uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	rows, err := s.notificationRepo.ListForRecipient(recipient, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return rows, nil
}

// CountUnread returns the recipient's unread notification count.
func (s *Service) CountUnread(ctx context.Context, recipient uint) (int64, error) {
	count, err := s.notificationRepo.CountUnread(recipient)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification as read, verifying it belongs to the
// requesting recipient.
func (s *Service) MarkRead(ctx context.Context, recipient, id uint) error {
	n, err := s.notificationRepo.GetByID(id)
	if err != nil {
		return fmt.Errorf("failed to load notification: %w", err)
	}
	if n.Recipient != recipient {
		return fmt.Errorf("notification %d does not belong to recipient %d", id, recipient)
	}
	if n.Read {
		return nil
	}
	if err := s.notificationRepo.MarkRead(id, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification of a recipient as read and
// returns how many were updated.
func (s *Service) MarkAllRead(ctx context.Context, recipient uint) (int64, error) {
	updated, err := s.notificationRepo.MarkAllRead(recipient, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	return updated, nil
}

// Delete removes one notification, verifying ownership first.
func (s *Service) Delete(ctx context.Context, recipient, id uint) error {
	n, err := s.notificationRepo.GetByID(id)
	if err != nil {
		return fmt.Errorf("failed to load notification: %w", err)
	}
	if n.Recipient != recipient {
		return fmt.Errorf("notification %d does not belong to recipient %d", id, recipient)
	}
	if err := s.notificationRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}
