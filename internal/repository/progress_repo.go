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

// ProgressRepository persists per-user scenario progress and derives rankings from it
type ProgressRepository struct {
	db *database.DB
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db *database.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

const progressSelect = `
	SELECT user_id, scenario_id, completed, xp_earned, current_step, finished_at, updated_at
	FROM user_progress
`

// GetUserProgress returns every progress record of a user
func (r *ProgressRepository) GetUserProgress(ctx context.Context, userID int64) ([]models.ProgressRecord, error) {
	rows, err := r.db.QueryContext(ctx, progressSelect+" WHERE user_id = ? ORDER BY scenario_id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user progress: %w", err)
	}
	defer rows.Close()
	return scanProgressRows(rows)
}

// ListAllProgress returns every progress record, for export
func (r *ProgressRepository) ListAllProgress(ctx context.Context) ([]models.ProgressRecord, error) {
	rows, err := r.db.QueryContext(ctx, progressSelect+" ORDER BY user_id, scenario_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()
	return scanProgressRows(rows)
}

// GetProgress returns one record, nil when the user never touched the scenario
func (r *ProgressRepository) GetProgress(ctx context.Context, userID, scenarioID int64) (*models.ProgressRecord, error) {
	rec, err := scanProgress(r.db.QueryRowContext(ctx, progressSelect+" WHERE user_id = ? AND scenario_id = ?", userID, scenarioID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return rec, nil
}

// UpsertProgress creates or overwrites the record keyed by (user, scenario)
func (r *ProgressRepository) UpsertProgress(ctx context.Context, rec *models.ProgressRecord) error {
	return upsertProgress(ctx, r.db, rec)
}

func upsertProgress(ctx context.Context, q database.DBTX, rec *models.ProgressRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()

	var finishedAt sql.NullTime
	if rec.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: rec.FinishedAt.UTC(), Valid: true}
	}

	_, err := q.ExecContext(ctx, q.GetDialect().UpsertProgressQuery(),
		rec.UserID,
		rec.ScenarioID,
		rec.Completed,
		rec.XPEarned,
		rec.CurrentStep,
		finishedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}
	return nil
}

const totalsQuery = `
	SELECT u.id, u.username,
		COALESCE(SUM(CASE WHEN p.completed THEN p.xp_earned ELSE 0 END), 0) AS total_xp,
		COALESCE(SUM(CASE WHEN p.completed THEN 1 ELSE 0 END), 0) AS completed_count
	FROM users u
	LEFT JOIN user_progress p ON p.user_id = u.id
	GROUP BY u.id, u.username
`

// Leaderboard ranks users by completed XP. Tied users share a rank.
func (r *ProgressRepository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := r.db.QueryContext(ctx, totalsQuery+" ORDER BY total_xp DESC, u.username ASC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.TotalXP, &e.ScenariosCompleted); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		e.Level = models.LevelForXP(e.TotalXP)
		e.Rank = len(entries) + 1
		if n := len(entries); n > 0 && entries[n-1].TotalXP == e.TotalXP {
			e.Rank = entries[n-1].Rank
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// XPSummary aggregates a user's completed XP, counting weekly XP from records finished at or after since
func (r *ProgressRepository) XPSummary(ctx context.Context, userID int64, since time.Time) (models.XPSummary, error) {
	query := `
		SELECT
			COALESCE(SUM(xp_earned), 0),
			COALESCE(SUM(CASE WHEN finished_at >= ? THEN xp_earned ELSE 0 END), 0),
			COUNT(*)
		FROM user_progress
		WHERE user_id = ? AND completed = ?
	`
	var s models.XPSummary
	err := r.db.QueryRowContext(ctx, query, since.UTC(), userID, true).Scan(&s.TotalXP, &s.WeeklyXP, &s.ScenariosCompleted)
	if err != nil {
		return models.XPSummary{}, fmt.Errorf("failed to summarize xp: %w", err)
	}
	return s, nil
}

// FinishedTimes returns when each of the user's completed scenarios was finished
func (r *ProgressRepository) FinishedTimes(ctx context.Context, userID int64) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT finished_at FROM user_progress
		WHERE user_id = ? AND completed = ? AND finished_at IS NOT NULL
		ORDER BY finished_at DESC
	`, userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get finish times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t sql.NullTime
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan finish time: %w", err)
		}
		if t.Valid {
			times = append(times, t.Time)
		}
	}
	return times, rows.Err()
}

// RankOf returns the leaderboard position a user with totalXP holds
func (r *ProgressRepository) RankOf(ctx context.Context, totalXP int) (int, error) {
	query := "SELECT COUNT(*) FROM (" + totalsQuery + ") totals WHERE totals.total_xp > ?"
	var ahead int
	if err := r.db.QueryRowContext(ctx, query, totalXP).Scan(&ahead); err != nil {
		return 0, fmt.Errorf("failed to compute rank: %w", err)
	}
	return ahead + 1, nil
}

func scanProgressRows(rows *sql.Rows) ([]models.ProgressRecord, error) {
	var records []models.ProgressRecord
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanProgress(row rowScanner) (*models.ProgressRecord, error) {
	rec := &models.ProgressRecord{}
	var finishedAt sql.NullTime
	err := row.Scan(&rec.UserID, &rec.ScenarioID, &rec.Completed, &rec.XPEarned, &rec.CurrentStep, &finishedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		rec.FinishedAt = &t
	}
	return rec, nil
}
