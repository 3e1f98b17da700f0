package scenario

import (
	"strings"

	"ecoplay/internal/models"
)

// DefaultHealthPenalty is deducted for catalog entries that only flag the
// penalty in their consequence text.
const DefaultHealthPenalty = 20

var penaltyMarkers = []string{
	"santé financière",
	"financial health",
}

// HealthPenalty returns how much financial health a choice costs.
// The explicit HealthPenalty field wins; otherwise a consequence that
// mentions financial health costs DefaultHealthPenalty.
func HealthPenalty(c models.Choice) int {
	if c.HealthPenalty > 0 {
		return c.HealthPenalty
	}
	text := strings.ToLower(c.Consequence)
	for _, marker := range penaltyMarkers {
		if strings.Contains(text, marker) {
			return DefaultHealthPenalty
		}
	}
	return 0
}
