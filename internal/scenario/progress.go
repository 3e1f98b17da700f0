package scenario

import (
	"time"

	"ecoplay/internal/models"
)

// Status is where a user stands on a scenario
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ScenarioProgress joins a catalog scenario with the user's progress record
type ScenarioProgress struct {
	Scenario    models.Scenario `json:"scenario"`
	Status      Status          `json:"status"`
	XPEarned    int             `json:"xp_earned"`
	CurrentStep int             `json:"current_step"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	Unlocked    bool            `json:"unlocked"`
}

// Completed reports whether the scenario has been finished
func (p ScenarioProgress) Completed() bool {
	return p.Status == StatusCompleted
}

// Merge joins the ordered catalog with the user's progress records by
// scenario ID. Scenarios without a record are StatusNotStarted. The unlock
// flag of each entry is filled in.
func Merge(scenarios []models.Scenario, records []models.ProgressRecord) []ScenarioProgress {
	byScenario := make(map[int64]models.ProgressRecord, len(records))
	for _, rec := range records {
		byScenario[rec.ScenarioID] = rec
	}

	view := make([]ScenarioProgress, len(scenarios))
	for i, sc := range scenarios {
		entry := ScenarioProgress{
			Scenario: sc,
			Status:   StatusNotStarted,
		}
		if rec, ok := byScenario[sc.ID]; ok {
			entry.Status = StatusInProgress
			if rec.Completed {
				entry.Status = StatusCompleted
			}
			entry.XPEarned = rec.XPEarned
			entry.CurrentStep = rec.CurrentStep
			entry.FinishedAt = rec.FinishedAt
		}
		view[i] = entry
	}

	for i := range view {
		view[i].Unlocked = IsUnlocked(view, i)
	}
	return view
}

// IsUnlocked reports whether the scenario at catalog position i may be
// played: the first always is, the others once their predecessor is
// completed.
func IsUnlocked(view []ScenarioProgress, i int) bool {
	if i < 0 || i >= len(view) {
		return false
	}
	if i == 0 {
		return true
	}
	return view[i-1].Completed()
}

// IndexOf returns the catalog position of scenarioID, or -1
func IndexOf(view []ScenarioProgress, scenarioID int64) int {
	for i, p := range view {
		if p.Scenario.ID == scenarioID {
			return i
		}
	}
	return -1
}
