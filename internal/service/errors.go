package service

import (
	"errors"
	"fmt"

	"ecoplay/internal/scenario"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUsernameRejected   = errors.New("username not allowed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrScenarioLocked     = errors.New("scenario is locked")
	ErrNoActiveSession    = errors.New("no active play session")
	ErrInvalidProgress    = errors.New("invalid progress record")
)

// unavailable marks a failed catalog or progress fetch
func unavailable(err error) error {
	if errors.Is(err, scenario.ErrDataUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", scenario.ErrDataUnavailable, err)
}
