// Package scenario drives a single play-through of a scenario and derives
// the catalog view (progress status and unlock gate) for a user.
package scenario

import (
	"fmt"
	"sort"

	"ecoplay/internal/models"
)

const (
	InitialBudget = 1000
	InitialHealth = 100
	MaxHealth     = 100
)

// RecordedChoice is one resolved step in the choice log
type RecordedChoice struct {
	StepID   int64 `json:"step_id"`
	ChoiceID int64 `json:"choice_id"`
	XPEarned int   `json:"xp_earned"`
}

// State is a snapshot of a play-through
type State struct {
	ScenarioID       int64            `json:"scenario_id"`
	CurrentStepIndex int              `json:"current_step_index"`
	StepCount        int              `json:"step_count"`
	Budget           int              `json:"budget"`
	FinancialHealth  int              `json:"financial_health"`
	XPEarned         int              `json:"xp_earned"`
	RecordedChoices  []RecordedChoice `json:"recorded_choices"`
	Completed        bool             `json:"completed"`
}

// Completed carries the final totals of a finished scenario
type Completed struct {
	ScenarioID     int64 `json:"scenario_id"`
	TotalXP        int   `json:"total_xp"`
	FinalBudget    int   `json:"final_budget"`
	FinalHealth    int   `json:"final_health"`
	StepsCompleted int   `json:"steps_completed"`
}

// Runner owns the state of one play-through. It is not safe for
// concurrent use; callers serialize access.
type Runner struct {
	scenario models.Scenario
	state    State
}

// NewRunner prepares a play-through of s. Steps are played in ascending
// step_order.
func NewRunner(s *models.Scenario) (*Runner, error) {
	if s == nil {
		return nil, ErrDataUnavailable
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("%w: scenario %d has no steps", ErrDataUnavailable, s.ID)
	}

	sc := *s
	sc.Steps = make([]models.Step, len(s.Steps))
	copy(sc.Steps, s.Steps)
	sort.SliceStable(sc.Steps, func(i, j int) bool {
		return sc.Steps[i].StepOrder < sc.Steps[j].StepOrder
	})

	r := &Runner{scenario: sc}
	r.Reset()
	return r, nil
}

// Reset discards any progress and starts the scenario over
func (r *Runner) Reset() {
	r.state = State{
		ScenarioID:       r.scenario.ID,
		CurrentStepIndex: 0,
		StepCount:        len(r.scenario.Steps),
		Budget:           InitialBudget,
		FinancialHealth:  InitialHealth,
		XPEarned:         0,
		RecordedChoices:  []RecordedChoice{},
		Completed:        false,
	}
}

// Scenario returns the scenario being played
func (r *Runner) Scenario() models.Scenario {
	return r.scenario
}

// State returns a copy of the current state
func (r *Runner) State() State {
	st := r.state
	st.RecordedChoices = make([]RecordedChoice, len(r.state.RecordedChoices))
	copy(st.RecordedChoices, r.state.RecordedChoices)
	return st
}

// CurrentStep returns the step awaiting a choice, false once completed
func (r *Runner) CurrentStep() (models.Step, bool) {
	if r.state.Completed || r.state.CurrentStepIndex >= len(r.scenario.Steps) {
		return models.Step{}, false
	}
	return r.scenario.Steps[r.state.CurrentStepIndex], true
}

// ResolveChoiceID resolves the current step with the choice it offers
// under choiceID.
func (r *Runner) ResolveChoiceID(choiceID int64) (State, *Completed, error) {
	step, ok := r.CurrentStep()
	if !ok {
		return r.State(), nil, ErrScenarioCompleted
	}
	choice, ok := step.FindChoice(choiceID)
	if !ok {
		return r.State(), nil, fmt.Errorf("%w: choice %d, step %d", ErrChoiceNotInStep, choiceID, step.ID)
	}
	return r.ResolveChoice(choice)
}

// ResolveChoice applies choice to the current step. When it resolves the
// last step the returned Completed is non-nil.
func (r *Runner) ResolveChoice(choice models.Choice) (State, *Completed, error) {
	step, ok := r.CurrentStep()
	if !ok {
		return r.State(), nil, ErrScenarioCompleted
	}
	// Steps loaded without their choices cannot be checked.
	if len(step.Choices) > 0 && !step.HasChoice(choice.ID) {
		return r.State(), nil, fmt.Errorf("%w: choice %d, step %d", ErrChoiceNotInStep, choice.ID, step.ID)
	}

	r.state.Budget += choice.FinancialImpact

	if penalty := HealthPenalty(choice); penalty > 0 {
		r.state.FinancialHealth = clampHealth(r.state.FinancialHealth - penalty)
	}

	reward := choice.XPReward
	if reward < 0 {
		reward = 0
	}
	r.state.XPEarned += reward

	r.state.RecordedChoices = append(r.state.RecordedChoices, RecordedChoice{
		StepID:   step.ID,
		ChoiceID: choice.ID,
		XPEarned: reward,
	})

	if r.state.CurrentStepIndex == len(r.scenario.Steps)-1 {
		r.state.Completed = true
		r.state.CurrentStepIndex = len(r.scenario.Steps)
		return r.State(), &Completed{
			ScenarioID:     r.scenario.ID,
			TotalXP:        r.state.XPEarned,
			FinalBudget:    r.state.Budget,
			FinalHealth:    r.state.FinancialHealth,
			StepsCompleted: len(r.scenario.Steps),
		}, nil
	}

	r.state.CurrentStepIndex++
	return r.State(), nil, nil
}

func clampHealth(h int) int {
	if h < 0 {
		return 0
	}
	if h > MaxHealth {
		return MaxHealth
	}
	return h
}
