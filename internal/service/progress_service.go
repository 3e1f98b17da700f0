package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ecoplay/internal/models"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100
	weeklyWindow           = 7 * 24 * time.Hour
)

// ProgressService reads and writes progress records and derives rankings
type ProgressService struct {
	progress ProgressStore
	catalog  CatalogStore
	users    UserStore
	now      func() time.Time
}

// NewProgressService creates a new progress service
func NewProgressService(progress ProgressStore, catalog CatalogStore, users UserStore) *ProgressService {
	return &ProgressService{progress: progress, catalog: catalog, users: users, now: time.Now}
}

// GetUserProgress returns every progress record of the user
func (s *ProgressService) GetUserProgress(ctx context.Context, userID int64) ([]models.ProgressRecord, error) {
	records, err := s.progress.GetUserProgress(ctx, userID)
	if err != nil {
		return nil, unavailable(err)
	}
	if records == nil {
		records = []models.ProgressRecord{}
	}
	return records, nil
}

// PutProgress creates or overwrites the record of (rec.UserID, rec.ScenarioID)
func (s *ProgressService) PutProgress(ctx context.Context, rec *models.ProgressRecord) (*models.ProgressRecord, error) {
	if rec.XPEarned < 0 {
		return nil, fmt.Errorf("%w: xp_earned must not be negative", ErrInvalidProgress)
	}
	if rec.CurrentStep < 0 {
		return nil, fmt.Errorf("%w: current_step must not be negative", ErrInvalidProgress)
	}

	sc, err := s.catalog.GetScenario(ctx, rec.ScenarioID)
	if err != nil {
		return nil, unavailable(err)
	}
	if sc == nil {
		return nil, fmt.Errorf("scenario %d: %w", rec.ScenarioID, ErrNotFound)
	}

	now := s.now().UTC()
	if rec.Completed && rec.FinishedAt == nil {
		rec.FinishedAt = &now
	}
	if !rec.Completed {
		rec.FinishedAt = nil
	}
	rec.UpdatedAt = now

	if err := s.progress.UpsertProgress(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Leaderboard returns the top players. limit is clamped to [1, MaxLeaderboardSize].
func (s *ProgressService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}

	entries, err := s.progress.Leaderboard(ctx, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	return entries, nil
}

// Profile assembles the dashboard figures of a user
func (s *ProgressService) Profile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	var user *models.User
	var summary models.XPSummary
	var finished []time.Time

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.users.GetUserByID(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = s.progress.XPSummary(gctx, userID, s.now().Add(-weeklyWindow))
		return err
	})
	g.Go(func() error {
		var err error
		finished, err = s.progress.FinishedTimes(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, unavailable(err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}

	rank, err := s.progress.RankOf(ctx, summary.TotalXP)
	if err != nil {
		return nil, unavailable(err)
	}

	return &models.UserProfile{
		User:                *user,
		TotalXP:             summary.TotalXP,
		Level:               models.LevelForXP(summary.TotalXP),
		WeeklyXP:            summary.WeeklyXP,
		StreakDays:          models.StreakDays(finished, s.now()),
		ScenariosCompleted:  summary.ScenariosCompleted,
		LeaderboardPosition: rank,
	}, nil
}
