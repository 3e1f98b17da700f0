package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoplay/internal/models"
)

func newProgressFixture(t *testing.T) (*ProgressService, *memUserStore, *memProgressStore) {
	t.Helper()
	users := newMemUserStore()
	progress := newMemProgressStore(users)
	svc := NewProgressService(progress, twoScenarioCatalog(), users)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return svc, users, progress
}

func TestPutProgress(t *testing.T) {
	svc, users, _ := newProgressFixture(t)
	ctx := context.Background()
	user, err := users.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)

	rec, err := svc.PutProgress(ctx, &models.ProgressRecord{UserID: user.ID, ScenarioID: 1, CurrentStep: 1, XPEarned: 15})
	require.NoError(t, err)
	assert.Nil(t, rec.FinishedAt)
	assert.False(t, rec.UpdatedAt.IsZero())

	rec, err = svc.PutProgress(ctx, &models.ProgressRecord{UserID: user.ID, ScenarioID: 1, Completed: true, CurrentStep: 2, XPEarned: 20})
	require.NoError(t, err)
	require.NotNil(t, rec.FinishedAt)
	assert.Equal(t, svc.now(), *rec.FinishedAt)

	records, err := svc.GetUserProgress(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, records, 1, "a second write overwrites the first")
	assert.True(t, records[0].Completed)
	assert.Equal(t, 20, records[0].XPEarned)
}

func TestPutProgressRejectsInvalidRecords(t *testing.T) {
	svc, _, _ := newProgressFixture(t)
	ctx := context.Background()

	_, err := svc.PutProgress(ctx, &models.ProgressRecord{UserID: 1, ScenarioID: 1, XPEarned: -5})
	assert.True(t, errors.Is(err, ErrInvalidProgress))

	_, err = svc.PutProgress(ctx, &models.ProgressRecord{UserID: 1, ScenarioID: 1, CurrentStep: -1})
	assert.True(t, errors.Is(err, ErrInvalidProgress))

	_, err = svc.PutProgress(ctx, &models.ProgressRecord{UserID: 1, ScenarioID: 404})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetUserProgressEmpty(t *testing.T) {
	svc, _, _ := newProgressFixture(t)

	records, err := svc.GetUserProgress(context.Background(), 42)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestLeaderboardLimit(t *testing.T) {
	svc, users, progress := newProgressFixture(t)
	ctx := context.Background()

	for i, name := range []string{"alice", "bob", "carol"} {
		u, err := users.CreateUser(ctx, name, name+"@example.com", "hash")
		require.NoError(t, err)
		require.NoError(t, progress.UpsertProgress(ctx, &models.ProgressRecord{
			UserID: u.ID, ScenarioID: 1, Completed: true, XPEarned: (i + 1) * 100,
		}))
	}

	entries, err := svc.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 300, entries[0].TotalXP)
	assert.Equal(t, 1, entries[0].Rank)

	entries, err = svc.Leaderboard(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = svc.Leaderboard(ctx, 5000)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestProfile(t *testing.T) {
	svc, users, progress := newProgressFixture(t)
	ctx := context.Background()

	alice, err := users.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)
	bob, err := users.CreateUser(ctx, "bob", "bob@example.com", "hash")
	require.NoError(t, err)

	recent := svc.now().Add(-24 * time.Hour)
	old := svc.now().Add(-30 * 24 * time.Hour)
	require.NoError(t, progress.UpsertProgress(ctx, &models.ProgressRecord{UserID: alice.ID, ScenarioID: 1, Completed: true, XPEarned: 900, FinishedAt: &old}))
	require.NoError(t, progress.UpsertProgress(ctx, &models.ProgressRecord{UserID: alice.ID, ScenarioID: 8, Completed: true, XPEarned: 200, FinishedAt: &recent}))
	require.NoError(t, progress.UpsertProgress(ctx, &models.ProgressRecord{UserID: bob.ID, ScenarioID: 1, Completed: true, XPEarned: 2000, FinishedAt: &recent}))

	profile, err := svc.Profile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, 1100, profile.TotalXP)
	assert.Equal(t, 2, profile.Level)
	assert.Equal(t, 200, profile.WeeklyXP)
	assert.Equal(t, 1, profile.StreakDays, "a run ending yesterday still counts")
	assert.Equal(t, 2, profile.ScenariosCompleted)
	assert.Equal(t, 2, profile.LeaderboardPosition)

	_, err = svc.Profile(ctx, 999)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestProfileStreak(t *testing.T) {
	svc, users, progress := newProgressFixture(t)
	ctx := context.Background()

	alice, err := users.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)

	finish := func(scenarioID int64, daysAgo int) {
		at := svc.now().Add(-time.Duration(daysAgo) * 24 * time.Hour)
		require.NoError(t, progress.UpsertProgress(ctx, &models.ProgressRecord{
			UserID: alice.ID, ScenarioID: scenarioID, Completed: true, XPEarned: 10, FinishedAt: &at,
		}))
	}
	finish(1, 0)
	finish(2, 1)
	finish(3, 2)
	finish(4, 4)
	require.NoError(t, progress.UpsertProgress(ctx, &models.ProgressRecord{UserID: alice.ID, ScenarioID: 5, XPEarned: 5}))

	profile, err := svc.Profile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, profile.StreakDays)

	svc.now = func() time.Time { return time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC) }
	profile, err = svc.Profile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, profile.StreakDays, "a missed day resets the streak")
}
