package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ecoplay/internal/metrics"
	"ecoplay/internal/models"
	"ecoplay/internal/scenario"
)

// PlayView is what a client needs to render a play-through
type PlayView struct {
	Scenario    models.Scenario     `json:"scenario"`
	State       scenario.State      `json:"state"`
	CurrentStep *models.Step        `json:"current_step,omitempty"`
	Completed   *scenario.Completed `json:"completed,omitempty"`
}

// PlayService runs scenario play-throughs and persists their completion
type PlayService struct {
	catalog        *CatalogService
	users          UserStore
	progress       ProgressStore
	sessions       *sessionRegistry
	persistTimeout time.Duration
	now            func() time.Time
	logger         *zap.Logger
	wg             sync.WaitGroup
}

// NewPlayService creates a new play service. Completion writes are abandoned
// after persistTimeout.
func NewPlayService(catalog *CatalogService, users UserStore, progress ProgressStore, persistTimeout time.Duration, logger *zap.Logger) *PlayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlayService{
		catalog:        catalog,
		users:          users,
		progress:       progress,
		sessions:       newSessionRegistry(),
		persistTimeout: persistTimeout,
		now:            time.Now,
		logger:         logger.Named("play"),
	}
}

// Start begins, or restarts from scratch, the user's play-through of a scenario.
// Scenario data, the user and the user's progress are loaded together and the
// start fails as a unit if any of them cannot be fetched.
func (s *PlayService) Start(ctx context.Context, userID, scenarioID int64) (*PlayView, error) {
	var (
		full      *models.Scenario
		user      *models.User
		scenarios []models.Scenario
		records   []models.ProgressRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		full, err = s.catalog.LoadScenario(gctx, scenarioID)
		return err
	})
	g.Go(func() error {
		var err error
		user, err = s.users.GetUserByID(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		scenarios, err = s.catalog.ListScenarios(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = s.progress.GetUserProgress(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, unavailable(err)
	}

	if user == nil {
		return nil, ErrUnauthorized
	}

	records = withLiveCompletions(records, userID, s.sessions.completedScenarios(userID))
	view := scenario.Merge(scenarios, records)
	idx := scenario.IndexOf(view, scenarioID)
	if idx < 0 {
		return nil, fmt.Errorf("scenario %d: %w", scenarioID, ErrNotFound)
	}
	if !scenario.IsUnlocked(view, idx) {
		return nil, fmt.Errorf("scenario %d: %w", scenarioID, ErrScenarioLocked)
	}

	runner, err := scenario.NewRunner(full)
	if err != nil {
		return nil, err
	}

	session := s.sessions.put(sessionKey{userID: userID, scenarioID: scenarioID}, runner, s.now())
	metrics.ScenariosStartedTotal.Inc()
	s.logger.Info("scenario started",
		zap.Int64("user_id", userID),
		zap.Int64("scenario_id", scenarioID),
		zap.Int("steps", len(full.Steps)),
	)

	session.mu.Lock()
	defer session.mu.Unlock()
	return viewOf(session.runner, nil), nil
}

// Choose resolves the current step of the user's live play-through with choiceID.
// Finishing the last step hands the completion record to the progress store in
// the background; the returned view does not wait for it.
func (s *PlayService) Choose(ctx context.Context, userID, scenarioID, choiceID int64) (*PlayView, error) {
	session, ok := s.sessions.get(sessionKey{userID: userID, scenarioID: scenarioID})
	if !ok {
		return nil, ErrNoActiveSession
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	session.touch(s.now())

	_, completed, err := session.runner.ResolveChoiceID(choiceID)
	if err != nil {
		return nil, err
	}

	if completed != nil {
		metrics.ScenariosCompletedTotal.Inc()
		s.logger.Info("scenario completed",
			zap.Int64("user_id", userID),
			zap.Int64("scenario_id", scenarioID),
			zap.Int("xp", completed.TotalXP),
			zap.Int("budget", completed.FinalBudget),
			zap.Int("health", completed.FinalHealth),
		)
		s.persistCompletion(session, userID, completed)
	}

	return viewOf(session.runner, completed), nil
}

// State returns the current snapshot of the user's play-through
func (s *PlayService) State(userID, scenarioID int64) (*PlayView, error) {
	session, ok := s.sessions.get(sessionKey{userID: userID, scenarioID: scenarioID})
	if !ok {
		return nil, ErrNoActiveSession
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	session.touch(s.now())
	return viewOf(session.runner, nil), nil
}

// Abandon discards the user's play-through without persisting anything
func (s *PlayService) Abandon(userID, scenarioID int64) error {
	if !s.sessions.remove(sessionKey{userID: userID, scenarioID: scenarioID}) {
		return ErrNoActiveSession
	}
	return nil
}

// Wait blocks until every in-flight completion write has finished
func (s *PlayService) Wait() {
	s.wg.Wait()
}

// RunSessionJanitor drops play-throughs left idle for longer than idleTTL until
// ctx is done
func (s *PlayService) RunSessionJanitor(ctx context.Context, idleTTL time.Duration) {
	ticker := time.NewTicker(max(idleTTL/2, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if n := s.sessions.sweep(s.now().Add(-idleTTL)); n > 0 {
			s.logger.Debug("idle play sessions dropped", zap.Int("count", n))
		}
	}
}

// persistCompletion must be called with session.mu held
func (s *PlayService) persistCompletion(session *playSession, userID int64, completed *scenario.Completed) {
	finishedAt := s.now().UTC()
	rec := &models.ProgressRecord{
		UserID:      userID,
		ScenarioID:  completed.ScenarioID,
		Completed:   true,
		XPEarned:    completed.TotalXP,
		CurrentStep: completed.StepsCompleted,
		FinishedAt:  &finishedAt,
	}

	session.persisting++
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			session.mu.Lock()
			session.persisting--
			session.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
		defer cancel()

		if err := s.progress.UpsertProgress(ctx, rec); err != nil {
			metrics.ProgressPersistFailuresTotal.Inc()
			s.logger.Error("failed to persist scenario completion",
				zap.Int64("user_id", rec.UserID),
				zap.Int64("scenario_id", rec.ScenarioID),
				zap.Int("xp", rec.XPEarned),
				zap.Error(err),
			)
			return
		}
		s.logger.Debug("scenario completion persisted",
			zap.Int64("user_id", rec.UserID),
			zap.Int64("scenario_id", rec.ScenarioID),
		)
	}()
}

// withLiveCompletions marks the scenarios finished in a live session as
// completed, since their background write may not have landed yet
func withLiveCompletions(records []models.ProgressRecord, userID int64, completed []int64) []models.ProgressRecord {
	if len(completed) == 0 {
		return records
	}

	merged := make([]models.ProgressRecord, len(records), len(records)+len(completed))
	copy(merged, records)
	for _, scenarioID := range completed {
		found := false
		for i := range merged {
			if merged[i].ScenarioID == scenarioID {
				merged[i].Completed = true
				found = true
			}
		}
		if !found {
			merged = append(merged, models.ProgressRecord{UserID: userID, ScenarioID: scenarioID, Completed: true})
		}
	}
	return merged
}

func viewOf(runner *scenario.Runner, completed *scenario.Completed) *PlayView {
	view := &PlayView{
		Scenario:  runner.Scenario(),
		State:     runner.State(),
		Completed: completed,
	}
	if step, ok := runner.CurrentStep(); ok {
		view.CurrentStep = &step
	}
	return view
}
