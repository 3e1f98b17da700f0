package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"ecoplay/internal/service"
)

// CatalogHandler serves scenarios, steps and choices
type CatalogHandler struct {
	catalog *service.CatalogService
	logger  *zap.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalog *service.CatalogService, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{catalog: catalog, logger: logger.Named("catalog")}
}

// ListScenarios returns the catalog in unlock order
func (h *CatalogHandler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := h.catalog.ListScenarios(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, scenarios)
}

// Overview returns the catalog merged with the caller's progress and unlock flags
func (h *CatalogHandler) Overview(w http.ResponseWriter, r *http.Request) {
	claims := GetClaimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, h.logger, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}

	view, err := h.catalog.Overview(r.Context(), claims.UserID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// ListSteps returns the ordered steps of a scenario
func (h *CatalogHandler) ListSteps(w http.ResponseWriter, r *http.Request) {
	scenarioID, err := pathID(r, "scenarioId")
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", err)
		return
	}

	steps, err := h.catalog.ListSteps(r.Context(), scenarioID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, steps)
}

// ListChoices returns the choices offered at a step
func (h *CatalogHandler) ListChoices(w http.ResponseWriter, r *http.Request) {
	stepID, err := pathID(r, "stepId")
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", err)
		return
	}

	choices, err := h.catalog.ListChoices(r.Context(), stepID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, choices)
}
