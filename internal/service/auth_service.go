package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"ecoplay/internal/metrics"
	"ecoplay/internal/models"
	"ecoplay/internal/repository"
	"ecoplay/internal/security"
	"ecoplay/internal/validation"
)

// ProfileSource builds the dashboard profile of a user
type ProfileSource interface {
	Profile(ctx context.Context, userID int64) (*models.UserProfile, error)
}

// AuthService handles registration, login and bearer token checks
type AuthService struct {
	users    UserStore
	names    NameFilter
	profiles ProfileSource
	tokens   *security.TokenManager
	denylist security.Denylist
	mailer   Mailer
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewAuthService creates a new auth service. names and mailer may be nil.
func NewAuthService(users UserStore, names NameFilter, profiles ProfileSource, tokens *security.TokenManager, denylist security.Denylist, mailer Mailer, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:    users,
		names:    names,
		profiles: profiles,
		tokens:   tokens,
		denylist: denylist,
		mailer:   mailer,
		logger:   logger.Named("auth"),
	}
}

// Register creates a new account and signs it in
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.AuthResult, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := validation.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := s.checkUsernameAllowed(ctx, username); err != nil {
		return nil, err
	}

	existingUser, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, ErrEmailTaken
	}

	existingName, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing username: %w", err)
	}
	if existingName != nil {
		return nil, ErrUsernameTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, username, email, passwordHash)
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost a race with a concurrent registration
		return nil, s.duplicateCause(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	metrics.RegistrationsTotal.Inc()
	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	s.sendWelcome(user)

	return s.issue(user)
}

// duplicateCause tells which unique column a failed insert collided with
func (s *AuthService) duplicateCause(ctx context.Context, email string) error {
	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return ErrEmailTaken
	}
	return ErrUsernameTaken
}

// Login checks credentials and returns a fresh token
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !security.CheckPassword(password, user.PasswordHash) {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, ErrInvalidCredentials
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return s.issue(user)
}

// Authenticate verifies a bearer token and that it has not been revoked
func (s *AuthService) Authenticate(ctx context.Context, token string) (*security.Claims, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", ErrUnauthorized)
	}
	return claims, nil
}

// Logout revokes the token until it would have expired
func (s *AuthService) Logout(ctx context.Context, claims *security.Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return ErrUnauthorized
	}
	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	s.logger.Info("user logged out", zap.Int64("user_id", claims.UserID))
	return nil
}

// CurrentUser returns the profile of the authenticated user
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (*models.UserProfile, error) {
	return s.profiles.Profile(ctx, userID)
}

// OAuthLogin signs in, links or creates the account behind an external identity
func (s *AuthService) OAuthLogin(ctx context.Context, provider, subject, email, name string) (*models.AuthResult, error) {
	if provider == "" || subject == "" {
		return nil, errors.New("missing oauth provider information")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByOAuth(ctx, provider, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup oauth user: %w", err)
	}

	if user == nil {
		existingUser, err := s.users.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing user: %w", err)
		}

		if existingUser != nil {
			if existingUser.OAuthProvider != "" && existingUser.OAuthProvider != provider {
				return nil, ErrEmailTaken
			}
			if err := s.users.LinkOAuthProvider(ctx, existingUser.ID, provider, subject); err != nil {
				return nil, fmt.Errorf("failed to link oauth provider: %w", err)
			}
			user = existingUser
		} else {
			username, err := s.availableUsername(ctx, name, email)
			if err != nil {
				return nil, err
			}
			user, err = s.users.CreateOAuthUser(ctx, username, email, provider, subject)
			if err != nil {
				return nil, fmt.Errorf("failed to create oauth user: %w", err)
			}
			metrics.RegistrationsTotal.Inc()
			s.logger.Info("user registered via oauth", zap.Int64("user_id", user.ID), zap.String("provider", provider))
			s.sendWelcome(user)
		}
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return s.issue(user)
}

// Wait blocks until pending welcome emails have been handed to the mailer
func (s *AuthService) Wait() {
	s.wg.Wait()
}

func (s *AuthService) issue(user *models.User) (*models.AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, err
	}
	return &models.AuthResult{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		Username:  user.Username,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *AuthService) checkUsernameAllowed(ctx context.Context, username string) error {
	if s.names == nil {
		return nil
	}
	bad, err := s.names.IsBadWord(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if bad {
		return ErrUsernameRejected
	}
	return nil
}

// availableUsername derives a valid, unused username from a display name or email
func (s *AuthService) availableUsername(ctx context.Context, name, email string) (string, error) {
	base := sanitizeUsername(name)
	if len([]rune(base)) < validation.MinUsernameLength {
		local, _, _ := strings.Cut(email, "@")
		base = sanitizeUsername(local)
	}
	if len([]rune(base)) < validation.MinUsernameLength {
		base = "player"
	}
	if runes := []rune(base); len(runes) > validation.MaxUsernameLength-4 {
		base = string(runes[:validation.MaxUsernameLength-4])
	}

	for i := 0; i < 100; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", base, i+1)
		}
		if s.checkUsernameAllowed(ctx, candidate) != nil {
			continue
		}
		existing, err := s.users.GetUserByUsername(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check existing username: %w", err)
		}
		if existing == nil {
			return candidate, nil
		}
	}
	return "", ErrUsernameTaken
}

func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '_', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	return b.String()
}

func (s *AuthService) sendWelcome(user *models.User) {
	if s.mailer == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.mailer.SendWelcomeEmail(ctx, user.Email, user.Username); err != nil {
			s.logger.Warn("failed to send welcome email", zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}()
}
