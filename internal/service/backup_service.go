package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"ecoplay/internal/models"
	"ecoplay/internal/repository"
)

const backupVersion = "1.0"

// BackupData represents the complete database backup structure
type BackupData struct {
	Version    string                  `json:"version"`
	ExportedAt time.Time               `json:"exported_at"`
	Users      []UserBackup            `json:"users"`
	Scenarios  []models.Scenario       `json:"scenarios"`
	Progress   []models.ProgressRecord `json:"progress"`
}

// UserBackup represents a user record for backup, credentials included
type UserBackup struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"password_hash"`
	OAuthProvider string    `json:"oauth_provider"`
	OAuthSubject  string    `json:"oauth_subject"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BackupService handles database backup and restore operations
type BackupService struct {
	users     *repository.UserRepository
	scenarios *repository.ScenarioRepository
	progress  *repository.ProgressRepository
	restore   *repository.BackupRepository
	logger    *zap.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(users *repository.UserRepository, scenarios *repository.ScenarioRepository, progress *repository.ProgressRepository, restore *repository.BackupRepository, logger *zap.Logger) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupService{
		users:     users,
		scenarios: scenarios,
		progress:  progress,
		restore:   restore,
		logger:    logger.Named("backup"),
	}
}

// Collect reads users, the full catalog and all progress
func (s *BackupService) Collect(ctx context.Context) (*BackupData, error) {
	backup := &BackupData{
		Version:    backupVersion,
		ExportedAt: time.Now().UTC(),
		Users:      []UserBackup{},
		Scenarios:  []models.Scenario{},
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}
	for _, u := range users {
		backup.Users = append(backup.Users, UserBackup{
			ID:            u.ID,
			Username:      u.Username,
			Email:         u.Email,
			PasswordHash:  u.PasswordHash,
			OAuthProvider: u.OAuthProvider,
			OAuthSubject:  u.OAuthSubject,
			CreatedAt:     u.CreatedAt,
			UpdatedAt:     u.UpdatedAt,
		})
	}

	scenarios, err := s.scenarios.ListScenarios(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export scenarios: %w", err)
	}
	for _, sc := range scenarios {
		steps, err := s.scenarios.ListSteps(ctx, sc.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to export steps of scenario %d: %w", sc.ID, err)
		}
		choices, err := s.scenarios.ListChoicesForScenario(ctx, sc.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to export choices of scenario %d: %w", sc.ID, err)
		}
		byStep := make(map[int64][]models.Choice)
		for _, c := range choices {
			byStep[c.StepID] = append(byStep[c.StepID], c)
		}
		for i := range steps {
			steps[i].Choices = byStep[steps[i].ID]
		}
		sc.Steps = steps
		backup.Scenarios = append(backup.Scenarios, sc)
	}

	backup.Progress, err = s.progress.ListAllProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export progress: %w", err)
	}
	if backup.Progress == nil {
		backup.Progress = []models.ProgressRecord{}
	}

	s.logger.Info("export collected",
		zap.Int("users", len(backup.Users)),
		zap.Int("scenarios", len(backup.Scenarios)),
		zap.Int("progress", len(backup.Progress)),
	)
	return backup, nil
}

// Export writes a complete backup as indented JSON
func (s *BackupService) Export(ctx context.Context, w io.Writer) error {
	backup, err := s.Collect(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// ExportFile writes a complete backup to outputPath
func (s *BackupService) ExportFile(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer file.Close()

	if err := s.Export(ctx, file); err != nil {
		return err
	}
	return file.Close()
}

// Import restores a backup read from r. With clear all existing rows are replaced.
func (s *BackupService) Import(ctx context.Context, r io.Reader, clear bool) error {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return fmt.Errorf("failed to parse backup: %w", err)
	}
	if backup.Version != backupVersion {
		return fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	users := make([]models.User, 0, len(backup.Users))
	for _, u := range backup.Users {
		users = append(users, models.User{
			ID:            u.ID,
			Username:      u.Username,
			Email:         u.Email,
			PasswordHash:  u.PasswordHash,
			OAuthProvider: u.OAuthProvider,
			OAuthSubject:  u.OAuthSubject,
			CreatedAt:     u.CreatedAt,
			UpdatedAt:     u.UpdatedAt,
		})
	}

	for _, sc := range backup.Scenarios {
		if !sc.Difficulty.Valid() {
			return fmt.Errorf("scenario %d has invalid difficulty %q", sc.ID, sc.Difficulty)
		}
	}

	if err := s.restore.Restore(ctx, users, backup.Scenarios, backup.Progress, clear); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}

	s.logger.Info("backup imported",
		zap.Int("users", len(users)),
		zap.Int("scenarios", len(backup.Scenarios)),
		zap.Int("progress", len(backup.Progress)),
		zap.Bool("cleared", clear),
	)
	return nil
}

// ImportFile restores the backup stored at inputPath
func (s *BackupService) ImportFile(ctx context.Context, inputPath string, clear bool) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer file.Close()

	return s.Import(ctx, file, clear)
}
