package models

import "time"

// Difficulty is the tier a scenario is filed under in the catalog
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known tiers
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Scenario represents a themed sequence of financial decisions
type Scenario struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  Difficulty `json:"difficulty"`
	Position    int        `json:"position"`
	Steps       []Step     `json:"steps,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Step is one decision point within a scenario
type Step struct {
	ID         int64    `json:"id"`
	ScenarioID int64    `json:"scenario_id"`
	StepOrder  int      `json:"step_order"`
	Question   string   `json:"question"`
	Choices    []Choice `json:"choices,omitempty"`
}

// Choice is one selectable option at a step
type Choice struct {
	ID              int64  `json:"id"`
	StepID          int64  `json:"step_id"`
	Label           string `json:"label"`
	XPReward        int    `json:"xp_reward"`
	FinancialImpact int    `json:"financial_impact"`
	Consequence     string `json:"consequence"`
	HealthPenalty   int    `json:"health_penalty"`
}

// HasChoice reports whether the step offers the given choice
func (s *Step) HasChoice(choiceID int64) bool {
	for _, c := range s.Choices {
		if c.ID == choiceID {
			return true
		}
	}
	return false
}

// FindChoice returns the step's choice with the given ID
func (s *Step) FindChoice(choiceID int64) (Choice, bool) {
	for _, c := range s.Choices {
		if c.ID == choiceID {
			return c, true
		}
	}
	return Choice{}, false
}
