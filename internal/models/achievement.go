package models

import (
	"encoding/json"
	"time"
)

// AchievementDefinition represents a hidden interaction pattern (easter egg)
// that unlocks a one-time reward when matched.
type AchievementDefinition struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Title         string          `gorm:"type:text" json:"title"`
	Description   string          `gorm:"type:text" json:"description"`
	Icon          string          `gorm:"size:50" json:"icon"`
	TriggerType   string          `gorm:"size:50;not null" json:"trigger_type"` // 'clicks' or 'sequence'
	TriggerConfig json.RawMessage `gorm:"type:jsonb" json:"trigger_config"`
	Points        int             `gorm:"default:0" json:"points"`
	IsActive      bool            `gorm:"default:true;index" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for AchievementDefinition model.
func (AchievementDefinition) TableName() string {
	return "achievement_definitions"
}

// TriggerType constants.
const (
	TriggerTypeClicks   = "clicks"
	TriggerTypeSequence = "sequence"
)

// ClickTriggerConfig is the trigger_config payload for 'clicks' definitions.
type ClickTriggerConfig struct {
	Target         string `json:"target"`          // UI element identifier the clicks must land on
	RequiredClicks int    `json:"required_clicks"`
	WindowMS       int    `json:"window_ms"`       // qualifying clicks must fall within this window
	ResetOnDelay   bool   `json:"reset_on_delay"`  // reset the counter after inactivity, or keep counting
}

// SequenceTriggerConfig is the trigger_config payload for 'sequence' definitions.
type SequenceTriggerConfig struct {
	Sequence []string `json:"sequence"` // ordered key identifiers, e.g. konami-style codes
}

// UserAchievement represents an achievement unlocked by a user.
// The (user, achievement) uniqueness constraint is the source of truth for
// "first unlock wins".
type UserAchievement struct {
	ID            uint                  `gorm:"primaryKey" json:"id"`
	UserID        uint                  `gorm:"not null;uniqueIndex:ux_user_achievement,priority:1;index" json:"user_id"`
	User          User                  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	AchievementID uint                  `gorm:"not null;uniqueIndex:ux_user_achievement,priority:2" json:"achievement_id"`
	Achievement   AchievementDefinition `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
	UnlockedAt    time.Time             `gorm:"not null" json:"unlocked_at"`
	IsNew         bool                  `gorm:"default:true" json:"is_new"` // gates the celebratory toast on the read path
	Points        int                   `gorm:"default:0" json:"points"`
}

// TableName specifies the table name for UserAchievement model.
func (UserAchievement) TableName() string {
	return "user_achievements"
}
