package notifications

import (
	"context"
	"regexp"

	"github.com/classquest/classquest/internal/models"
)

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9][A-Za-z0-9_.-]*)`)

// ParseMentions extracts the distinct usernames mentioned in text, in order
// of first appearance.
func ParseMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var usernames []string
	for _, match := range matches {
		username := match[1]
		if _, ok := seen[username]; ok {
			continue
		}
		seen[username] = struct{}{}
		usernames = append(usernames, username)
	}
	return usernames
}

// MentionRequest describes a message whose @mentions should fan out.
type MentionRequest struct {
	SenderID   uint
	Text       string
	Title      string
	SourceType string
	SourceID   string
	SourceURL  string
}

// NotifyMentions creates a mention notification for each distinct user
// mentioned in the text. The sender never notifies themselves, unknown
// usernames are skipped, and one failing recipient does not block the rest.
// It returns how many notifications were created.
func (s *Service) NotifyMentions(ctx context.Context, req MentionRequest) (int, error) {
	usernames := ParseMentions(req.Text)
	if len(usernames) == 0 {
		return 0, nil
	}

	created := 0
	for _, username := range usernames {
		user, err := s.userRepo.GetByUsername(username)
		if err != nil {
			s.log.Debug().Str("username", username).Msg("Mentioned username not found, skipping")
			continue
		}
		if user.ID == req.SenderID {
			continue
		}

		sender := req.SenderID
		n := &models.Notification{
			Recipient:  user.ID,
			Sender:     &sender,
			Title:      req.Title,
			Content:    req.Text,
			Type:       models.NotificationTypeMention,
			SourceType: req.SourceType,
			SourceID:   req.SourceID,
			SourceURL:  req.SourceURL,
		}
		if err := s.Notify(ctx, n); err != nil {
			s.log.Error().Err(err).
				Uint("recipient", user.ID).
				Str("username", username).
				Msg("Failed to create mention notification")
			continue
		}
		created++
	}

	s.log.Info().
		Uint("sender", req.SenderID).
		Int("mentions", len(usernames)).
		Int("created", created).
		Msg("Mention fan-out complete")

	return created, nil
}
