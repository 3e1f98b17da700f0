package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"ecoplay/internal/scenario"
	"ecoplay/internal/service"
	"ecoplay/internal/validation"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondWithError(w http.ResponseWriter, logger *zap.Logger, status int, userMsg, logMsg string, err error) {
	if err != nil && logger != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		if status >= http.StatusInternalServerError {
			logger.Error(logMsg, zap.Int("status", status), zap.Error(err))
		} else {
			logger.Debug(logMsg, zap.Int("status", status), zap.Error(err))
		}
	}

	respondJSON(w, status, errorResponse{Error: userMsg})
}

// respondWithServiceError maps service and domain errors to a status code
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr validation.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithError(w, logger, http.StatusBadRequest, verr.Error(), "", err)
	case errors.Is(err, service.ErrInvalidProgress):
		respondWithError(w, logger, http.StatusBadRequest, err.Error(), "", err)
	case errors.Is(err, service.ErrInvalidCredentials):
		respondWithError(w, logger, http.StatusUnauthorized, "Invalid email or password", "", err)
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, logger, http.StatusUnauthorized, ErrUnauthorized, "", err)
	case errors.Is(err, service.ErrEmailTaken):
		respondWithError(w, logger, http.StatusConflict, "Email already registered", "", err)
	case errors.Is(err, service.ErrUsernameTaken):
		respondWithError(w, logger, http.StatusConflict, "Username already taken", "", err)
	case errors.Is(err, service.ErrUsernameRejected):
		respondWithError(w, logger, http.StatusBadRequest, "Username not allowed", "", err)
	case errors.Is(err, service.ErrScenarioLocked):
		respondWithError(w, logger, http.StatusForbidden, "Scenario is locked", "", err)
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, logger, http.StatusNotFound, "Not found", "", err)
	case errors.Is(err, service.ErrNoActiveSession):
		respondWithError(w, logger, http.StatusNotFound, "No active play session", "", err)
	case errors.Is(err, scenario.ErrScenarioCompleted):
		respondWithError(w, logger, http.StatusConflict, "Scenario already completed", "", err)
	case errors.Is(err, scenario.ErrChoiceNotInStep):
		respondWithError(w, logger, http.StatusBadRequest, "Choice does not belong to the current step", "", err)
	case errors.Is(err, scenario.ErrDataUnavailable):
		respondWithError(w, logger, http.StatusServiceUnavailable, "Data unavailable", "data fetch failed", err)
	default:
		respondWithError(w, logger, http.StatusInternalServerError, ErrInternalServerError, "", err)
	}
}
