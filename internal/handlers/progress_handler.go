package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"ecoplay/internal/models"
	"ecoplay/internal/service"
)

// ProgressHandler serves progress records and the leaderboard
type ProgressHandler struct {
	progress *service.ProgressService
	logger   *zap.Logger
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(progress *service.ProgressService, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{progress: progress, logger: logger.Named("progress")}
}

type progressRequest struct {
	Completed   bool       `json:"completed"`
	XPEarned    int        `json:"xp_earned"`
	CurrentStep int        `json:"current_step"`
	FinishedAt  *time.Time `json:"finished_at"`
}

// GetProgress returns every progress record of the caller
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	claims := GetClaimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, h.logger, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}

	records, err := h.progress.GetUserProgress(r.Context(), claims.UserID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// PutProgress creates or overwrites the caller's record for a scenario
func (h *ProgressHandler) PutProgress(w http.ResponseWriter, r *http.Request) {
	claims := GetClaimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, h.logger, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}

	scenarioID, err := pathID(r, "scenarioId")
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", err)
		return
	}

	var req progressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidRequestBody, "", err)
		return
	}

	rec, err := h.progress.PutProgress(r.Context(), &models.ProgressRecord{
		UserID:      claims.UserID,
		ScenarioID:  scenarioID,
		Completed:   req.Completed,
		XPEarned:    req.XPEarned,
		CurrentStep: req.CurrentStep,
		FinishedAt:  req.FinishedAt,
	})
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Leaderboard returns the top players; ?limit= bounds the list
func (h *ProgressHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, h.logger, http.StatusBadRequest, "Invalid limit", "", err)
			return
		}
		limit = n
	}

	entries, err := h.progress.Leaderboard(r.Context(), limit)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
