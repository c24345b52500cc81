package achievements

import (
	"encoding/json"
	"fmt"

	"github.com/classquest/classquest/internal/config"
	"github.com/classquest/classquest/internal/models"
)

// DefinitionsFromConfig converts configured seed achievements into model
// definitions, marshalling each trigger block to its JSON form.
func DefinitionsFromConfig(seeds []config.AchievementConfig) ([]models.AchievementDefinition, error) {
	defs := make([]models.AchievementDefinition, 0, len(seeds))
	for _, seed := range seeds {
		triggerConfig, err := json.Marshal(seed.Trigger)
		if err != nil {
			return nil, fmt.Errorf("achievement %q: %w", seed.Name, err)
		}
		defs = append(defs, models.AchievementDefinition{
			Name:          seed.Name,
			Title:         seed.Title,
			Description:   seed.Description,
			Icon:          seed.Icon,
			TriggerType:   seed.TriggerType,
			TriggerConfig: triggerConfig,
			Points:        seed.Points,
			IsActive:      true,
		})
	}
	return defs, nil
}
