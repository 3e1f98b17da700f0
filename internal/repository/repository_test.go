package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoplay/internal/database"
	"ecoplay/internal/models"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "ecoplay.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RunMigrations(context.Background()))
	return db
}

func budgetScenario(position int) *models.Scenario {
	return &models.Scenario{
		Title:       "Budget étudiant",
		Description: "Gérer son premier budget",
		Difficulty:  models.DifficultyEasy,
		Position:    position,
		Steps: []models.Step{
			{
				StepOrder: 2,
				Question:  "Sortie entre amis ?",
				Choices: []models.Choice{
					{Label: "Resto", XPReward: 5, FinancialImpact: -40, Consequence: "Budget entamé"},
					{Label: "Pique-nique", XPReward: 10, FinancialImpact: -10, Consequence: "Économique"},
				},
			},
			{
				StepOrder: 1,
				Question:  "Fournitures ?",
				Choices: []models.Choice{
					{Label: "Neuf", XPReward: 5, FinancialImpact: -60, HealthPenalty: 20},
					{Label: "Occasion", XPReward: 15, FinancialImpact: -20},
				},
			},
		},
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(openTestDB(t))

	user, err := repo.CreateUser(ctx, "alice", "Alice@Example.com", "hash")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)

	byEmail, err := repo.GetUserByEmail(ctx, "ALICE@example.com ")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byName, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byName)

	missing, err := repo.GetUserByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repo.CreateUser(ctx, "alice2", "alice@example.com", "hash")
	assert.True(t, errors.Is(err, ErrDuplicate), "expected ErrDuplicate, got %v", err)

	require.NoError(t, repo.LinkOAuthProvider(ctx, user.ID, "google", "sub-1"))
	linked, err := repo.GetUserByOAuth(ctx, "google", "sub-1")
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, user.ID, linked.ID)

	oauthUser, err := repo.CreateOAuthUser(ctx, "bob", "bob@example.com", "google", "sub-2")
	require.NoError(t, err)
	assert.Equal(t, "google", oauthUser.OAuthProvider)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestScenarioRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewScenarioRepository(openTestDB(t))

	second := budgetScenario(1)
	second.Title = "Premier loyer"
	require.NoError(t, repo.CreateScenario(ctx, second))
	first := budgetScenario(0)
	require.NoError(t, repo.CreateScenario(ctx, first))

	scenarios, err := repo.ListScenarios(ctx)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "Budget étudiant", scenarios[0].Title, "catalog is ordered by position")

	count, err := repo.CountScenarios(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	steps, err := repo.ListSteps(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].StepOrder)
	assert.Equal(t, "Fournitures ?", steps[0].Question)

	choices, err := repo.ListChoices(ctx, steps[0].ID)
	require.NoError(t, err)
	require.Len(t, choices, 2)
	assert.Equal(t, 20, choices[0].HealthPenalty)
	assert.Equal(t, -60, choices[0].FinancialImpact)

	all, err := repo.ListChoicesForScenario(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, steps[0].ID, all[0].StepID, "choices follow step order")

	step, err := repo.GetStep(ctx, steps[1].ID)
	require.NoError(t, err)
	require.NotNil(t, step)
	assert.Equal(t, first.ID, step.ScenarioID)

	missing, err := repo.GetScenario(ctx, 12345)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProgressRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := NewUserRepository(db)
	scenarios := NewScenarioRepository(db)
	repo := NewProgressRepository(db)

	alice, err := users.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)
	bob, err := users.CreateUser(ctx, "bob", "bob@example.com", "hash")
	require.NoError(t, err)
	carol, err := users.CreateUser(ctx, "carol", "carol@example.com", "hash")
	require.NoError(t, err)

	s1 := budgetScenario(0)
	require.NoError(t, scenarios.CreateScenario(ctx, s1))
	s2 := budgetScenario(1)
	require.NoError(t, scenarios.CreateScenario(ctx, s2))

	none, err := repo.GetProgress(ctx, alice.ID, s1.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	recent := time.Now().Add(-time.Hour)
	old := time.Now().Add(-30 * 24 * time.Hour)

	require.NoError(t, repo.UpsertProgress(ctx, &models.ProgressRecord{UserID: alice.ID, ScenarioID: s1.ID, XPEarned: 5, CurrentStep: 1}))
	require.NoError(t, repo.UpsertProgress(ctx, &models.ProgressRecord{UserID: alice.ID, ScenarioID: s1.ID, Completed: true, XPEarned: 25, CurrentStep: 2, FinishedAt: &recent}))
	require.NoError(t, repo.UpsertProgress(ctx, &models.ProgressRecord{UserID: alice.ID, ScenarioID: s2.ID, Completed: true, XPEarned: 10, CurrentStep: 2, FinishedAt: &old}))
	require.NoError(t, repo.UpsertProgress(ctx, &models.ProgressRecord{UserID: bob.ID, ScenarioID: s1.ID, Completed: true, XPEarned: 35, CurrentStep: 2, FinishedAt: &recent}))
	require.NoError(t, repo.UpsertProgress(ctx, &models.ProgressRecord{UserID: carol.ID, ScenarioID: s1.ID, XPEarned: 100, CurrentStep: 1}))

	rec, err := repo.GetProgress(ctx, alice.ID, s1.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Completed)
	assert.Equal(t, 25, rec.XPEarned)
	require.NotNil(t, rec.FinishedAt)
	assert.WithinDuration(t, recent, *rec.FinishedAt, time.Second)

	records, err := repo.GetUserProgress(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2, "upsert keeps one record per scenario")

	all, err := repo.ListAllProgress(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	board, err := repo.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, "alice", board[0].Username)
	assert.Equal(t, 35, board[0].TotalXP)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "bob", board[1].Username)
	assert.Equal(t, 1, board[1].Rank, "ties share a rank")
	assert.Equal(t, "carol", board[2].Username)
	assert.Equal(t, 0, board[2].TotalXP, "in-progress XP is not counted")
	assert.Equal(t, 3, board[2].Rank)

	summary, err := repo.XPSummary(ctx, alice.ID, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 35, summary.TotalXP)
	assert.Equal(t, 25, summary.WeeklyXP)
	assert.Equal(t, 2, summary.ScenariosCompleted)

	finished, err := repo.FinishedTimes(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, finished, 2, "only completed records have a finish time")
	assert.WithinDuration(t, recent, finished[0], time.Second)
	assert.WithinDuration(t, old, finished[1], time.Second)

	finished, err = repo.FinishedTimes(ctx, carol.ID)
	require.NoError(t, err)
	assert.Empty(t, finished)

	rank, err := repo.RankOf(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, rank)
	rank, err = repo.RankOf(ctx, 35)
	require.NoError(t, err)
	assert.Equal(t, 1, rank)
}

func TestBackupRepositoryRestore(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewBackupRepository(db)

	scenario := budgetScenario(0)
	scenario.ID = 7
	for i := range scenario.Steps {
		scenario.Steps[i].ID = int64(70 + i)
		for j := range scenario.Steps[i].Choices {
			scenario.Steps[i].Choices[j].ID = int64(700 + i*10 + j)
		}
	}
	finished := time.Now().UTC()
	users := []models.User{{ID: 3, Username: "alice", Email: "alice@example.com", PasswordHash: "hash", CreatedAt: finished, UpdatedAt: finished}}
	progress := []models.ProgressRecord{{UserID: 3, ScenarioID: 7, Completed: true, XPEarned: 25, CurrentStep: 2, FinishedAt: &finished}}

	require.NoError(t, repo.Restore(ctx, users, []models.Scenario{*scenario}, progress, true))
	// Restoring again without clearing skips rows that already exist
	require.NoError(t, repo.Restore(ctx, users, []models.Scenario{*scenario}, progress, false))

	restored, err := NewUserRepository(db).GetUserByID(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, "hash", restored.PasswordHash)

	choices, err := NewScenarioRepository(db).ListChoicesForScenario(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, choices, 4)

	// New rows continue after the restored IDs
	created, err := NewUserRepository(db).CreateUser(ctx, "bob", "bob@example.com", "hash")
	require.NoError(t, err)
	assert.Greater(t, created.ID, int64(3))
}
