package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"ecoplay/internal/security"
	"ecoplay/internal/service"
)

// PlayHandler drives scenario play-throughs
type PlayHandler struct {
	play   *service.PlayService
	logger *zap.Logger
}

// NewPlayHandler creates a new play handler
func NewPlayHandler(play *service.PlayService, logger *zap.Logger) *PlayHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlayHandler{play: play, logger: logger.Named("play")}
}

type chooseRequest struct {
	ChoiceID int64 `json:"choice_id"`
}

// target extracts the caller and the scenario of a play request
func (h *PlayHandler) target(w http.ResponseWriter, r *http.Request) (*security.Claims, int64, bool) {
	claims := GetClaimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, h.logger, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return nil, 0, false
	}
	scenarioID, err := pathID(r, "scenarioId")
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", err)
		return nil, 0, false
	}
	return claims, scenarioID, true
}

// Start begins or restarts a play-through
func (h *PlayHandler) Start(w http.ResponseWriter, r *http.Request) {
	claims, scenarioID, ok := h.target(w, r)
	if !ok {
		return
	}

	view, err := h.play.Start(r.Context(), claims.UserID, scenarioID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

// State returns the current play-through snapshot
func (h *PlayHandler) State(w http.ResponseWriter, r *http.Request) {
	claims, scenarioID, ok := h.target(w, r)
	if !ok {
		return
	}

	view, err := h.play.State(claims.UserID, scenarioID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Choose resolves the current step with the submitted choice
func (h *PlayHandler) Choose(w http.ResponseWriter, r *http.Request) {
	claims, scenarioID, ok := h.target(w, r)
	if !ok {
		return
	}

	var req chooseRequest
	if err := decodeJSON(w, r, &req); err != nil || req.ChoiceID <= 0 {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidRequestBody, "", err)
		return
	}

	view, err := h.play.Choose(r.Context(), claims.UserID, scenarioID, req.ChoiceID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Abandon discards the play-through
func (h *PlayHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	claims, scenarioID, ok := h.target(w, r)
	if !ok {
		return
	}

	if err := h.play.Abandon(claims.UserID, scenarioID); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
