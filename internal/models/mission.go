// Package models defines domain models for the classroom gamification system.
package models

import (
	"encoding/json"
	"time"
)

// Mission represents a teacher-defined goal for a class.
type Mission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ClassID      string     `gorm:"size:100;not null;index" json:"class_id"`
	Title        string     `gorm:"type:text;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	Type         string     `gorm:"size:50;not null;index" json:"type"` // see MissionType constants
	TargetValue  int        `gorm:"not null" json:"target_value"`
	RewardPoints int        `gorm:"default:0" json:"reward_points"`
	Status       string     `gorm:"size:50;index" json:"status"` // 'active', 'completed', 'expired', 'paused'
	CreatedBy    *uint      `gorm:"index" json:"created_by"`
	Creator      *User      `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	StartsAt     *time.Time `json:"starts_at"`
	EndsAt       *time.Time `json:"ends_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Relationships
	Progress []MissionProgress `gorm:"foreignKey:MissionID" json:"progress,omitempty"`
}

// TableName specifies the table name for Mission model.
func (Mission) TableName() string {
	return "class_missions"
}

// MissionProgress represents one student's advancement toward a mission target.
// One row per (mission, user) pair.
type MissionProgress struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	MissionID    uint       `gorm:"not null;uniqueIndex:ux_mission_user,priority:1" json:"mission_id"`
	Mission      Mission    `gorm:"foreignKey:MissionID" json:"mission,omitempty"`
	UserID       uint       `gorm:"not null;uniqueIndex:ux_mission_user,priority:2;index" json:"user_id"`
	User         User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CurrentValue int        `gorm:"not null;default:0" json:"current_value"`
	Status       string     `gorm:"size:50;index" json:"status"` // 'in_progress', 'completed'
	CompletedAt  *time.Time `json:"completed_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName specifies the table name for MissionProgress model.
func (MissionProgress) TableName() string {
	return "student_mission_progress"
}

// ActionLog records a gamification action (progress increments, mission
// completions) for auditing and point accounting. ActionKey, when supplied
// by the caller, deduplicates replayed deliveries of the same action.
type ActionLog struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;index;uniqueIndex:ux_action_key,priority:1" json:"user_id"`
	User      User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	MissionID *uint           `gorm:"index;uniqueIndex:ux_action_key,priority:2" json:"mission_id"`
	Action    string          `gorm:"size:50;not null" json:"action"` // see Action constants
	Points    int             `gorm:"default:0" json:"points"`
	ActionKey *string         `gorm:"size:255;uniqueIndex:ux_action_key,priority:3" json:"action_key"`
	Metadata  json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"` // caller-supplied action context
	CreatedAt time.Time       `json:"created_at"`
}

// TableName specifies the table name for ActionLog model.
func (ActionLog) TableName() string {
	return "gamification_actions"
}

// MissionStatus constants.
const (
	MissionStatusActive    = "active"
	MissionStatusCompleted = "completed"
	MissionStatusExpired   = "expired"
	MissionStatusPaused    = "paused"
)

// ProgressStatus constants.
const (
	ProgressStatusInProgress = "in_progress"
	ProgressStatusCompleted  = "completed"
)

// MissionType constants.
const (
	MissionTypeMessageSent       = "message_sent"
	MissionTypeExerciseCompleted = "exercise_completed"
	MissionTypeForumPost         = "forum_post"
	MissionTypeLoginStreak       = "login_streak"
	MissionTypeCustom            = "custom"
)

// Action constants for ActionLog entries.
const (
	ActionProgress        = "mission_progress"
	ActionCompleteMission = "complete_mission"
)
