package models

import (
	"encoding/json"
	"time"
)

// Notification represents a user-facing notification record. The field set is
// a stable contract the frontend relies on.
type Notification struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Recipient  uint            `gorm:"not null;index" json:"recipient"`
	Sender     *uint           `json:"sender"`
	Title      string          `gorm:"type:text" json:"title"`
	Content    string          `gorm:"type:text" json:"content"`
	Type       string          `gorm:"size:50;not null;index" json:"type"`
	Read       bool            `gorm:"default:false;index" json:"read"`
	SourceType string          `gorm:"size:50" json:"source_type"`
	SourceID   string          `gorm:"size:255" json:"source_id"`
	SourceURL  string          `gorm:"type:text" json:"source_url"`
	Metadata   json.RawMessage `gorm:"type:jsonb" json:"metadata"`
	ReadAt     *time.Time      `json:"read_at"`
	CreatedAt  time.Time       `gorm:"index" json:"created"`
}

// TableName specifies the table name for Notification model.
func (Notification) TableName() string {
	return "notifications"
}

// Notification type constants.
const (
	NotificationTypeMessage     = "message"
	NotificationTypeMention     = "mention"
	NotificationTypeComment     = "comment"
	NotificationTypeReply       = "reply"
	NotificationTypeForumReply  = "forum_reply"
	NotificationTypeClassInvite = "class_invite"
	NotificationTypeSystem      = "system"
	NotificationTypeAchievement = "achievement"
	NotificationTypeAssignment  = "assignment"
	NotificationTypeGrade       = "grade"
)

// Notification source type constants.
const (
	SourceTypeChatMessage     = "chat_message"
	SourceTypeForumPost       = "forum_post"
	SourceTypeForumComment    = "forum_comment"
	SourceTypeExercise        = "exercise"
	SourceTypeExerciseComment = "exercise_comment"
	SourceTypeClass           = "class"
	SourceTypeAssignment      = "assignment"
	SourceTypeWhiteboard      = "whiteboard"
	SourceTypeNote            = "note"
	SourceTypeSystem          = "system"
)

// ValidNotificationType reports whether t is a known notification type.
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationTypeMessage, NotificationTypeMention, NotificationTypeComment,
		NotificationTypeReply, NotificationTypeForumReply, NotificationTypeClassInvite,
		NotificationTypeSystem, NotificationTypeAchievement, NotificationTypeAssignment,
		NotificationTypeGrade:
		return true
	}
	return false
}

// ValidSourceType reports whether s is a known notification source type.
func ValidSourceType(s string) bool {
	switch s {
	case SourceTypeChatMessage, SourceTypeForumPost, SourceTypeForumComment,
		SourceTypeExercise, SourceTypeExerciseComment, SourceTypeClass,
		SourceTypeAssignment, SourceTypeWhiteboard, SourceTypeNote, SourceTypeSystem:
		return true
	}
	return false
}

// CleanupLog records one execution of a scheduled cleanup job.
type CleanupLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	JobType         string    `gorm:"size:100;not null;index" json:"job_type"`
	RecordsDeleted  int       `gorm:"default:0" json:"records_deleted"`
	ExecutionTimeMS int64     `gorm:"column:execution_time_ms" json:"execution_time_ms"`
	Status          string    `gorm:"size:50" json:"status"` // 'success' or 'error'
	Details         string    `gorm:"type:text" json:"details"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName specifies the table name for CleanupLog model.
func (CleanupLog) TableName() string {
	return "cleanup_log"
}

// CleanupLog status constants.
const (
	CleanupStatusSuccess = "success"
	CleanupStatusError   = "error"
)
