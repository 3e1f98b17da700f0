package repository

import (
	"context"
	"fmt"

	"ecoplay/internal/database"
	"ecoplay/internal/models"
)

// BackupRepository restores exported data with its original IDs
type BackupRepository struct {
	db *database.DB
}

// NewBackupRepository creates a new backup repository
func NewBackupRepository(db *database.DB) *BackupRepository {
	return &BackupRepository{db: db}
}

// Restore writes users, the catalog and progress in one transaction. With
// clear every existing row is removed first; otherwise rows whose ID is
// already taken are skipped and progress is upserted.
func (r *BackupRepository) Restore(ctx context.Context, users []models.User, scenarios []models.Scenario, progress []models.ProgressRecord, clear bool) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		if clear {
			// Reverse dependency order
			for _, table := range []string{"user_progress", "choices", "steps", "scenarios", "users"} {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
					return fmt.Errorf("failed to clear table %s: %w", table, err)
				}
			}
		}

		for _, u := range users {
			exists, err := rowExists(ctx, tx, "users", u.ID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO users (id, username, email, password_hash, oauth_provider, oauth_subject, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				u.ID, u.Username, u.Email, u.PasswordHash,
				nullString(u.OAuthProvider), nullString(u.OAuthSubject),
				u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("failed to restore user %d: %w", u.ID, err)
			}
		}

		for i := range scenarios {
			exists, err := rowExists(ctx, tx, "scenarios", scenarios[i].ID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := insertScenario(ctx, tx, &scenarios[i], true); err != nil {
				return err
			}
		}

		for i := range progress {
			if err := upsertProgress(ctx, tx, &progress[i]); err != nil {
				return err
			}
		}

		for _, table := range []string{"users", "scenarios", "steps", "choices"} {
			if query := tx.GetDialect().SyncSequenceQuery(table); query != "" {
				if _, err := tx.ExecContext(ctx, query); err != nil {
					return fmt.Errorf("failed to sync sequence for %s: %w", table, err)
				}
			}
		}
		return nil
	})
}

func rowExists(ctx context.Context, q database.DBTX, table string, id int64) (bool, error) {
	var count int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check %s %d: %w", table, id, err)
	}
	return count > 0, nil
}
