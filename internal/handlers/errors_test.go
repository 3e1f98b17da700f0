package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"ecoplay/internal/scenario"
	"ecoplay/internal/service"
	"ecoplay/internal/validation"
)

func TestRespondWithErrorWritesStatusAndBody(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondWithError(recorder, nil, 418, "Teapot", "", nil)

	assert.Equal(t, 418, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Teapot"}`, recorder.Body.String())
}

func TestRespondWithErrorLogsMessage(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	recorder := httptest.NewRecorder()

	respondWithError(recorder, zap.New(core), 500, "Internal server error", "", errors.New("boom"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Internal server error", entry.Message)
	assert.Equal(t, "boom", entry.ContextMap()["error"])
}

func TestRespondWithServiceError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{validation.ValidationError{Field: "email", Message: "invalid email format"}, http.StatusBadRequest},
		{fmt.Errorf("%w: xp", service.ErrInvalidProgress), http.StatusBadRequest},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("%w: token revoked", service.ErrUnauthorized), http.StatusUnauthorized},
		{service.ErrEmailTaken, http.StatusConflict},
		{service.ErrUsernameTaken, http.StatusConflict},
		{service.ErrUsernameRejected, http.StatusBadRequest},
		{fmt.Errorf("scenario 2: %w", service.ErrScenarioLocked), http.StatusForbidden},
		{fmt.Errorf("scenario 9: %w", service.ErrNotFound), http.StatusNotFound},
		{service.ErrNoActiveSession, http.StatusNotFound},
		{scenario.ErrScenarioCompleted, http.StatusConflict},
		{scenario.ErrChoiceNotInStep, http.StatusBadRequest},
		{fmt.Errorf("%w: db down", scenario.ErrDataUnavailable), http.StatusServiceUnavailable},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondWithServiceError(recorder, zap.NewNop(), tt.err)
			assert.Equal(t, tt.want, recorder.Code)
		})
	}
}
