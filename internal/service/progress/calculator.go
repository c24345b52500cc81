// Package progress provides mission progress calculation and tracking.
package progress

import (
	"github.com/classquest/classquest/internal/models"
)

// Percentage maps a (current, target) pair to a completion percentage,
// clamped to [0, 100]. A non-positive target yields 0.
func Percentage(current, target int) float64 {
	if target <= 0 {
		return 0
	}
	if current <= 0 {
		return 0
	}
	pct := float64(current) / float64(target) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// IsCompleted reports whether a progress row counts as completed: either its
// status already says so, or the current value has reached the target.
func IsCompleted(status string, current, target int) bool {
	if status == models.ProgressStatusCompleted {
		return true
	}
	return Percentage(current, target) >= 100
}
