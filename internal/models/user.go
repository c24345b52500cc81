package models

import (
	"time"
)

// User represents a platform user in the system.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"uniqueIndex;not null;size:255" json:"username"`
	Email       string    `gorm:"size:255" json:"email"`
	Role        string    `gorm:"size:50" json:"role"` // 'student' or 'teacher'
	ClassID     string    `gorm:"size:100;index" json:"class_id"`
	TotalPoints int       `gorm:"default:0" json:"total_points"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}

// User role constants.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)
