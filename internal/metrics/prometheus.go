// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the gamification service.
var (
	// Counters.
	ActionsTrackedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamification_actions_tracked_total",
			Help: "Total number of gamification actions tracked",
		},
		[]string{"action_type", "status"},
	)

	MissionsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "missions_completed_total",
			Help: "Total number of mission completions",
		},
		[]string{"mission_type"},
	)

	AchievementsUnlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_unlocked_total",
			Help: "Total number of achievements unlocked",
		},
		[]string{"achievement"},
	)

	NotificationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of notification records created",
		},
		[]string{"type"},
	)

	NotificationsCleanedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_cleaned_total",
			Help: "Total number of stale notifications deleted by the cleanup job",
		},
	)

	// Gauges.
	RealtimeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_subscribers",
			Help: "Current number of connected realtime subscribers",
		},
	)

	ActiveMissions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_missions",
			Help: "Current number of active missions per class",
		},
		[]string{"class"},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Time taken to execute scheduled jobs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
		[]string{"job"},
	)

	SchedulerLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp",
			Help: "Unix timestamp of last run per job",
		},
		[]string{"job"},
	)
)

// RecordActionTracked records a tracked gamification action.
func RecordActionTracked(actionType, status string) {
	ActionsTrackedTotal.WithLabelValues(actionType, status).Inc()
}

// RecordMissionCompleted records a mission completion.
func RecordMissionCompleted(missionType string) {
	MissionsCompletedTotal.WithLabelValues(missionType).Inc()
}

// RecordAchievementUnlocked records an achievement unlock.
func RecordAchievementUnlocked(achievement string) {
	AchievementsUnlockedTotal.WithLabelValues(achievement).Inc()
}

// RecordNotificationCreated records a notification fan-out write.
func RecordNotificationCreated(notificationType string) {
	NotificationsCreatedTotal.WithLabelValues(notificationType).Inc()
}

// RecordNotificationsCleaned adds deleted rows to the cleanup counter.
func RecordNotificationsCleaned(count int) {
	NotificationsCleanedTotal.Add(float64(count))
}

// SetRealtimeSubscribers sets the connected subscriber gauge.
func SetRealtimeSubscribers(count int) {
	RealtimeSubscribers.Set(float64(count))
}

// SetActiveMissions sets the active mission gauge for a class.
func SetActiveMissions(class string, count int) {
	ActiveMissions.WithLabelValues(class).Set(float64(count))
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// ObserveSchedulerJobDuration observes the duration of a scheduled job.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// SetSchedulerLastRun sets the timestamp of the last run for a job.
func SetSchedulerLastRun(job string) {
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}
