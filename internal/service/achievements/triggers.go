// Package achievements provides easter-egg trigger matching and one-time
// achievement unlocking.
package achievements

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/classquest/classquest/internal/models"
)

// UIEvent is a single client-observed interaction.
type UIEvent struct {
	Kind   string // "click" or "key"
	Target string // clicked element identifier, for click events
	Key    string // pressed key identifier, for key events
	At     time.Time
}

// UIEvent kind constants.
const (
	EventKindClick = "click"
	EventKindKey   = "key"
)

// trigger evaluates a stream of UI events against one definition's pattern.
// Implementations keep their own state and are not safe for concurrent use;
// the tracker serializes access per user.
type trigger interface {
	// observe feeds one event in and reports whether the pattern matched.
	observe(event UIEvent) bool
	// reset clears accumulated state after an unlock.
	reset()
}

// clickTrigger counts qualifying clicks, optionally inside a rolling window.
type clickTrigger struct {
	cfg       models.ClickTriggerConfig
	count     int
	windowEnd time.Time
}

func (t *clickTrigger) observe(event UIEvent) bool {
	if event.Kind != EventKindClick || event.Target != t.cfg.Target {
		return false
	}

	window := time.Duration(t.cfg.WindowMS) * time.Millisecond

	if t.cfg.ResetOnDelay && t.count > 0 && window > 0 && event.At.After(t.windowEnd) {
		// Inactivity passed; this click starts a fresh run.
		t.count = 0
	}

	if t.count == 0 && window > 0 {
		t.windowEnd = event.At.Add(window)
	}
	t.count++

	return t.count >= t.cfg.RequiredClicks
}

func (t *clickTrigger) reset() {
	t.count = 0
	t.windowEnd = time.Time{}
}

// sequenceTrigger matches an ordered key sequence. A wrong key resets the
// match position, re-checking whether the key restarts the sequence.
type sequenceTrigger struct {
	cfg models.SequenceTriggerConfig
	pos int
}

func (t *sequenceTrigger) observe(event UIEvent) bool {
	if event.Kind != EventKindKey || len(t.cfg.Sequence) == 0 {
		return false
	}

	if event.Key == t.cfg.Sequence[t.pos] {
		t.pos++
	} else if event.Key == t.cfg.Sequence[0] {
		t.pos = 1
	} else {
		t.pos = 0
	}

	if t.pos >= len(t.cfg.Sequence) {
		t.pos = 0
		return true
	}
	return false
}

func (t *sequenceTrigger) reset() {
	t.pos = 0
}

// newTrigger builds the matcher for a definition's trigger configuration.
func newTrigger(def *models.AchievementDefinition) (trigger, error) {
	switch def.TriggerType {
	case models.TriggerTypeClicks:
		var cfg models.ClickTriggerConfig
		if err := json.Unmarshal(def.TriggerConfig, &cfg); err != nil {
			return nil, fmt.Errorf("invalid click trigger config for %q: %w", def.Name, err)
		}
		if cfg.RequiredClicks <= 0 {
			return nil, fmt.Errorf("click trigger %q requires a positive click count", def.Name)
		}
		return &clickTrigger{cfg: cfg}, nil
	case models.TriggerTypeSequence:
		var cfg models.SequenceTriggerConfig
		if err := json.Unmarshal(def.TriggerConfig, &cfg); err != nil {
			return nil, fmt.Errorf("invalid sequence trigger config for %q: %w", def.Name, err)
		}
		if len(cfg.Sequence) == 0 {
			return nil, fmt.Errorf("sequence trigger %q has an empty sequence", def.Name)
		}
		return &sequenceTrigger{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown trigger type %q for %q", def.TriggerType, def.Name)
	}
}

// userTriggers holds one user's live trigger state, keyed by definition ID.
type userTriggers struct {
	mu       sync.Mutex
	triggers map[uint]trigger
}

// triggerState is the per-user trigger registry for the whole service.
type triggerState struct {
	mu    sync.Mutex
	users map[uint]*userTriggers
}

func newTriggerState() *triggerState {
	return &triggerState{users: make(map[uint]*userTriggers)}
}

func (s *triggerState) forUser(userID uint) *userTriggers {
	s.mu.Lock()
	defer s.mu.Unlock()

	ut, ok := s.users[userID]
	if !ok {
		ut = &userTriggers{triggers: make(map[uint]trigger)}
		s.users[userID] = ut
	}
	return ut
}
