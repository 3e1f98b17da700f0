package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ecoplay/internal/models"
	"ecoplay/internal/scenario"
)

//go:embed seed/default_catalog.json
var defaultCatalog []byte

// CatalogService serves the scenario catalog and the per-user overview
type CatalogService struct {
	store    CatalogStore
	progress ProgressStore
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store CatalogStore, progress ProgressStore, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{store: store, progress: progress, logger: logger.Named("catalog")}
}

// ListScenarios returns the catalog in unlock order
func (s *CatalogService) ListScenarios(ctx context.Context) ([]models.Scenario, error) {
	scenarios, err := s.store.ListScenarios(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	if scenarios == nil {
		scenarios = []models.Scenario{}
	}
	return scenarios, nil
}

// ListSteps returns the ordered steps of a scenario
func (s *CatalogService) ListSteps(ctx context.Context, scenarioID int64) ([]models.Step, error) {
	var sc *models.Scenario
	var steps []models.Step

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sc, err = s.store.GetScenario(gctx, scenarioID)
		return err
	})
	g.Go(func() error {
		var err error
		steps, err = s.store.ListSteps(gctx, scenarioID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, unavailable(err)
	}

	if sc == nil {
		return nil, fmt.Errorf("scenario %d: %w", scenarioID, ErrNotFound)
	}
	if steps == nil {
		steps = []models.Step{}
	}
	return steps, nil
}

// ListChoices returns the choices offered at a step
func (s *CatalogService) ListChoices(ctx context.Context, stepID int64) ([]models.Choice, error) {
	var step *models.Step
	var choices []models.Choice

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		step, err = s.store.GetStep(gctx, stepID)
		return err
	})
	g.Go(func() error {
		var err error
		choices, err = s.store.ListChoices(gctx, stepID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, unavailable(err)
	}

	if step == nil {
		return nil, fmt.Errorf("step %d: %w", stepID, ErrNotFound)
	}
	if choices == nil {
		choices = []models.Choice{}
	}
	return choices, nil
}

// LoadScenario fetches a scenario, its steps and all their choices
// concurrently and assembles the full tree. Any failed fetch fails the whole load.
func (s *CatalogService) LoadScenario(ctx context.Context, scenarioID int64) (*models.Scenario, error) {
	var sc *models.Scenario
	var steps []models.Step
	var choices []models.Choice

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sc, err = s.store.GetScenario(gctx, scenarioID)
		return err
	})
	g.Go(func() error {
		var err error
		steps, err = s.store.ListSteps(gctx, scenarioID)
		return err
	})
	g.Go(func() error {
		var err error
		choices, err = s.store.ListChoicesForScenario(gctx, scenarioID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("scenario load failed", zap.Int64("scenario_id", scenarioID), zap.Error(err))
		return nil, unavailable(err)
	}

	if sc == nil {
		return nil, fmt.Errorf("scenario %d: %w", scenarioID, ErrNotFound)
	}

	byStep := make(map[int64][]models.Choice, len(steps))
	for _, c := range choices {
		byStep[c.StepID] = append(byStep[c.StepID], c)
	}
	for i := range steps {
		steps[i].Choices = byStep[steps[i].ID]
	}
	sc.Steps = steps
	return sc, nil
}

// Overview merges the catalog with the user's progress and computes unlock flags
func (s *CatalogService) Overview(ctx context.Context, userID int64) ([]scenario.ScenarioProgress, error) {
	var scenarios []models.Scenario
	var records []models.ProgressRecord

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		scenarios, err = s.store.ListScenarios(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = s.progress.GetUserProgress(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, unavailable(err)
	}

	return scenario.Merge(scenarios, records), nil
}

type catalogFile struct {
	Scenarios []models.Scenario `json:"scenarios"`
}

// SeedDefaultCatalog loads the built-in scenarios into an empty catalog.
// It returns how many scenarios were created.
func (s *CatalogService) SeedDefaultCatalog(ctx context.Context) (int, error) {
	count, err := s.store.CountScenarios(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Debug("catalog already populated", zap.Int("scenarios", count))
		return 0, nil
	}

	var file catalogFile
	if err := json.Unmarshal(defaultCatalog, &file); err != nil {
		return 0, fmt.Errorf("failed to parse default catalog: %w", err)
	}

	for i := range file.Scenarios {
		sc := &file.Scenarios[i]
		sc.Position = i
		if !sc.Difficulty.Valid() {
			return i, fmt.Errorf("scenario %q has invalid difficulty %q", sc.Title, sc.Difficulty)
		}
		if err := s.store.CreateScenario(ctx, sc); err != nil {
			return i, fmt.Errorf("failed to seed scenario %q: %w", sc.Title, err)
		}
	}

	s.logger.Info("default catalog seeded", zap.Int("scenarios", len(file.Scenarios)))
	return len(file.Scenarios), nil
}
