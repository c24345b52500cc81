// Package scheduler runs the periodic notification cleanup and mission
// expiry jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/classquest/classquest/internal/config"
	prommetrics "github.com/classquest/classquest/internal/metrics"
	"github.com/classquest/classquest/internal/models"
	"github.com/classquest/classquest/pkg/logger"
)

// Job names used in logs and metrics.
const (
	jobCleanup       = "notification_cleanup"
	jobMissionExpiry = "mission_expiry"
)

// CleanupRunner executes one notification cleanup pass.
type CleanupRunner interface {
	Run(ctx context.Context) (*models.CleanupLog, error)
}

// MissionRepository interface for the mission expiry sweep.
type MissionRepository interface {
	ListExpiredActive(now time.Time) ([]models.Mission, error)
	UpdateStatus(id uint, status string) error
}

// CacheInvalidator drops the cached active-mission list for a class.
type CacheInvalidator interface {
	InvalidateMissionCache(ctx context.Context, classID string)
}

// Service handles scheduled background jobs.
type Service struct {
	config      *config.Config
	cleanup     CleanupRunner
	missionRepo MissionRepository
	invalidator CacheInvalidator
	log         *logger.Logger
	cron        *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(
	cfg *config.Config,
	cleanup CleanupRunner,
	missionRepo MissionRepository,
	invalidator CacheInvalidator,
	log *logger.Logger,
) *Service {
	return &Service{
		config:      cfg,
		cleanup:     cleanup,
		missionRepo: missionRepo,
		invalidator: invalidator,
		log:         log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Scheduler.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.Scheduler.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Scheduler.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	// Register notification cleanup job
	_, err = s.cron.AddFunc(s.config.Scheduler.CleanupSchedule, func() {
		s.runCleanup(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to register cleanup job: %w", err)
	}

	// Register daily mission expiry sweep if configured
	if s.config.Scheduler.MissionExpiryTime != "" {
		expiryExpr, err := buildDailyCronExpression(s.config.Scheduler.MissionExpiryTime)
		if err != nil {
			return fmt.Errorf("failed to build mission expiry schedule: %w", err)
		}
		_, err = s.cron.AddFunc(expiryExpr, func() {
			s.runMissionExpiry(context.Background())
		})
		if err != nil {
			return fmt.Errorf("failed to register mission expiry job: %w", err)
		}
		s.log.Info().
			Str("schedule", expiryExpr).
			Msg("Mission expiry job registered")
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("cleanup_schedule", s.config.Scheduler.CleanupSchedule).
		Str("timezone", s.config.Scheduler.Timezone).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildDailyCronExpression converts "HH:MM" into an every-day cron spec.
func buildDailyCronExpression(at string) (string, error) {
	parts := strings.Split(at, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", at)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// runCleanup executes the notification cleanup job.
func (s *Service) runCleanup(ctx context.Context) {
	start := time.Now()

	defer func() {
		prommetrics.ObserveSchedulerJobDuration(jobCleanup, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(jobCleanup)
	}()

	s.log.Info().Msg("Running notification cleanup job")

	entry, err := s.cleanup.Run(ctx)
	if err != nil {
		s.log.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Notification cleanup job failed")
		prommetrics.RecordSchedulerJobRun(jobCleanup, "error")
		return
	}

	prommetrics.RecordSchedulerJobRun(jobCleanup, "success")

	s.log.Info().
		Int("records_deleted", entry.RecordsDeleted).
		Dur("duration", time.Since(start)).
		Msg("Notification cleanup job completed successfully")
}

// runMissionExpiry flips active missions past their end date to expired.
func (s *Service) runMissionExpiry(ctx context.Context) {
	start := time.Now()

	defer func() {
		prommetrics.ObserveSchedulerJobDuration(jobMissionExpiry, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(jobMissionExpiry)
	}()

	s.log.Info().Msg("Running mission expiry job")

	missions, err := s.missionRepo.ListExpiredActive(time.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list expired missions")
		prommetrics.RecordSchedulerJobRun(jobMissionExpiry, "error")
		return
	}

	expired := 0
	classes := make(map[string]struct{})
	for i := range missions {
		mission := &missions[i]
		if err := s.missionRepo.UpdateStatus(mission.ID, models.MissionStatusExpired); err != nil {
			s.log.Error().
				Err(err).
				Uint("mission_id", mission.ID).
				Msg("Failed to expire mission")
			continue
		}
		expired++
		classes[mission.ClassID] = struct{}{}
	}

	if s.invalidator != nil {
		for classID := range classes {
			s.invalidator.InvalidateMissionCache(ctx, classID)
		}
	}

	status := "success"
	if expired < len(missions) {
		status = "error"
	}
	prommetrics.RecordSchedulerJobRun(jobMissionExpiry, status)

	s.log.Info().
		Int("expired", expired).
		Int("found", len(missions)).
		Dur("duration", time.Since(start)).
		Msg("Mission expiry job completed")
}
