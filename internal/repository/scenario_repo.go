package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ecoplay/internal/database"
	"ecoplay/internal/models"
)

// ScenarioRepository handles the scenario catalog: scenarios, steps and choices
type ScenarioRepository struct {
	db *database.DB
}

// NewScenarioRepository creates a new scenario repository
func NewScenarioRepository(db *database.DB) *ScenarioRepository {
	return &ScenarioRepository{db: db}
}

// ListScenarios returns the catalog in unlock order
func (r *ScenarioRepository) ListScenarios(ctx context.Context) ([]models.Scenario, error) {
	query := `
		SELECT id, title, description, difficulty, catalog_position, created_at
		FROM scenarios
		ORDER BY catalog_position, id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []models.Scenario
	for rows.Next() {
		var s models.Scenario
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.Difficulty, &s.Position, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, rows.Err()
}

// GetScenario retrieves a scenario without its steps, nil when absent
func (r *ScenarioRepository) GetScenario(ctx context.Context, id int64) (*models.Scenario, error) {
	query := `
		SELECT id, title, description, difficulty, catalog_position, created_at
		FROM scenarios
		WHERE id = ?
	`
	s := &models.Scenario{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Title, &s.Description, &s.Difficulty, &s.Position, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	return s, nil
}

// ListSteps returns the steps of a scenario ordered by step_order
func (r *ScenarioRepository) ListSteps(ctx context.Context, scenarioID int64) ([]models.Step, error) {
	query := `
		SELECT id, scenario_id, step_order, question
		FROM steps
		WHERE scenario_id = ?
		ORDER BY step_order, id
	`
	rows, err := r.db.QueryContext(ctx, query, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var steps []models.Step
	for rows.Next() {
		var st models.Step
		if err := rows.Scan(&st.ID, &st.ScenarioID, &st.StepOrder, &st.Question); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// GetStep retrieves a single step, nil when absent
func (r *ScenarioRepository) GetStep(ctx context.Context, stepID int64) (*models.Step, error) {
	query := `SELECT id, scenario_id, step_order, question FROM steps WHERE id = ?`
	st := &models.Step{}
	err := r.db.QueryRowContext(ctx, query, stepID).Scan(&st.ID, &st.ScenarioID, &st.StepOrder, &st.Question)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	return st, nil
}

const choiceColumns = `c.id, c.step_id, c.label, c.xp_reward, c.financial_impact, c.consequence, c.health_penalty`

// ListChoices returns the choices offered at a step
func (r *ScenarioRepository) ListChoices(ctx context.Context, stepID int64) ([]models.Choice, error) {
	query := "SELECT " + choiceColumns + " FROM choices c WHERE c.step_id = ? ORDER BY c.id"
	return r.queryChoices(ctx, query, stepID)
}

// ListChoicesForScenario returns every choice of every step of a scenario
func (r *ScenarioRepository) ListChoicesForScenario(ctx context.Context, scenarioID int64) ([]models.Choice, error) {
	query := "SELECT " + choiceColumns + `
		FROM choices c
		JOIN steps s ON s.id = c.step_id
		WHERE s.scenario_id = ?
		ORDER BY s.step_order, c.id`
	return r.queryChoices(ctx, query, scenarioID)
}

func (r *ScenarioRepository) queryChoices(ctx context.Context, query string, arg int64) ([]models.Choice, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list choices: %w", err)
	}
	defer rows.Close()

	var choices []models.Choice
	for rows.Next() {
		var c models.Choice
		if err := rows.Scan(&c.ID, &c.StepID, &c.Label, &c.XPReward, &c.FinancialImpact, &c.Consequence, &c.HealthPenalty); err != nil {
			return nil, fmt.Errorf("failed to scan choice: %w", err)
		}
		choices = append(choices, c)
	}
	return choices, rows.Err()
}

// CountScenarios returns the number of scenarios in the catalog
func (r *ScenarioRepository) CountScenarios(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scenarios").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scenarios: %w", err)
	}
	return count, nil
}

// CreateScenario inserts a scenario with its steps and choices in one transaction
// and fills in the generated IDs.
func (r *ScenarioRepository) CreateScenario(ctx context.Context, scenario *models.Scenario) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		return insertScenario(ctx, tx, scenario, false)
	})
}

// insertScenario writes a scenario tree. With keepIDs the IDs already set on
// the scenario, steps and choices are used instead of generated ones.
func insertScenario(ctx context.Context, tx database.DBTX, scenario *models.Scenario, keepIDs bool) error {
	if scenario.CreatedAt.IsZero() {
		scenario.CreatedAt = time.Now().UTC()
	}

	if keepIDs {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO scenarios (id, title, description, difficulty, catalog_position, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			scenario.ID, scenario.Title, scenario.Description, scenario.Difficulty, scenario.Position, scenario.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert scenario %q: %w", scenario.Title, err)
		}
	} else {
		id, err := tx.ExecReturningID(ctx,
			"INSERT INTO scenarios (title, description, difficulty, catalog_position, created_at) VALUES (?, ?, ?, ?, ?)",
			scenario.Title, scenario.Description, scenario.Difficulty, scenario.Position, scenario.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert scenario %q: %w", scenario.Title, err)
		}
		scenario.ID = id
	}

	for i := range scenario.Steps {
		step := &scenario.Steps[i]
		step.ScenarioID = scenario.ID

		if keepIDs {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO steps (id, scenario_id, step_order, question) VALUES (?, ?, ?, ?)",
				step.ID, step.ScenarioID, step.StepOrder, step.Question)
			if err != nil {
				return fmt.Errorf("failed to insert step %d: %w", step.StepOrder, err)
			}
		} else {
			id, err := tx.ExecReturningID(ctx,
				"INSERT INTO steps (scenario_id, step_order, question) VALUES (?, ?, ?)",
				step.ScenarioID, step.StepOrder, step.Question)
			if err != nil {
				return fmt.Errorf("failed to insert step %d: %w", step.StepOrder, err)
			}
			step.ID = id
		}

		for j := range step.Choices {
			choice := &step.Choices[j]
			choice.StepID = step.ID

			if keepIDs {
				_, err := tx.ExecContext(ctx,
					"INSERT INTO choices (id, step_id, label, xp_reward, financial_impact, consequence, health_penalty) VALUES (?, ?, ?, ?, ?, ?, ?)",
					choice.ID, choice.StepID, choice.Label, choice.XPReward, choice.FinancialImpact, choice.Consequence, choice.HealthPenalty)
				if err != nil {
					return fmt.Errorf("failed to insert choice %q: %w", choice.Label, err)
				}
				continue
			}

			id, err := tx.ExecReturningID(ctx,
				"INSERT INTO choices (step_id, label, xp_reward, financial_impact, consequence, health_penalty) VALUES (?, ?, ?, ?, ?, ?)",
				choice.StepID, choice.Label, choice.XPReward, choice.FinancialImpact, choice.Consequence, choice.HealthPenalty)
			if err != nil {
				return fmt.Errorf("failed to insert choice %q: %w", choice.Label, err)
			}
			choice.ID = id
		}
	}

	return nil
}
