package service

import (
	"context"
	"time"

	"ecoplay/internal/models"
)

// UserStore is the identity storage the services depend on
type UserStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	CreateOAuthUser(ctx context.Context, username, email, provider, subject string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByOAuth(ctx context.Context, provider, subject string) (*models.User, error)
	LinkOAuthProvider(ctx context.Context, userID int64, provider, subject string) error
}

// CatalogStore provides scenarios, steps and choices
type CatalogStore interface {
	ListScenarios(ctx context.Context) ([]models.Scenario, error)
	GetScenario(ctx context.Context, id int64) (*models.Scenario, error)
	ListSteps(ctx context.Context, scenarioID int64) ([]models.Step, error)
	GetStep(ctx context.Context, stepID int64) (*models.Step, error)
	ListChoices(ctx context.Context, stepID int64) ([]models.Choice, error)
	ListChoicesForScenario(ctx context.Context, scenarioID int64) ([]models.Choice, error)
	CountScenarios(ctx context.Context) (int, error)
	CreateScenario(ctx context.Context, scenario *models.Scenario) error
}

// ProgressStore persists completion records and ranks players
type ProgressStore interface {
	GetUserProgress(ctx context.Context, userID int64) ([]models.ProgressRecord, error)
	GetProgress(ctx context.Context, userID, scenarioID int64) (*models.ProgressRecord, error)
	UpsertProgress(ctx context.Context, rec *models.ProgressRecord) error
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	XPSummary(ctx context.Context, userID int64, since time.Time) (models.XPSummary, error)
	RankOf(ctx context.Context, totalXP int) (int, error)
	FinishedTimes(ctx context.Context, userID int64) ([]time.Time, error)
}

// NameFilter rejects offensive or reserved usernames
type NameFilter interface {
	IsBadWord(ctx context.Context, word string) (bool, error)
}

// Mailer sends transactional email
type Mailer interface {
	SendWelcomeEmail(ctx context.Context, toEmail, toName string) error
}
