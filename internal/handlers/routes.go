package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Middleware *Middleware
	Auth       *AuthHandler
	OAuth      *OAuthHandler
	Catalog    *CatalogHandler
	Progress   *ProgressHandler
	Play       *PlayHandler
	Health     *HealthHandler
}

// NewRouter builds the API mux wrapped in CORS and request logging
func NewRouter(h Handlers, allowedOrigins []string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := h.Middleware
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /healthz", h.Health.Healthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/auth/register", m.RateLimit(h.Auth.Register))
	mux.HandleFunc("POST /api/auth/login", m.RateLimit(h.Auth.Login))
	if h.OAuth != nil {
		mux.HandleFunc("GET /api/auth/{provider}/start", m.RateLimit(h.OAuth.StartOAuth))
		mux.HandleFunc("GET /api/auth/{provider}/callback", m.RateLimit(h.OAuth.OAuthCallback))
	}

	// Protected routes
	mux.HandleFunc("POST /api/auth/logout", m.RequireAuth(h.Auth.Logout))
	mux.HandleFunc("GET /api/user/currentuser", m.RequireAuth(h.Auth.CurrentUser))

	mux.HandleFunc("GET /api/scenario", m.RequireAuth(h.Catalog.ListScenarios))
	mux.HandleFunc("GET /api/scenario/overview", m.RequireAuth(h.Catalog.Overview))
	mux.HandleFunc("GET /api/steps/{scenarioId}", m.RequireAuth(h.Catalog.ListSteps))
	mux.HandleFunc("GET /api/choices/step/{stepId}", m.RequireAuth(h.Catalog.ListChoices))

	mux.HandleFunc("GET /api/progress", m.RequireAuth(h.Progress.GetProgress))
	mux.HandleFunc("PUT /api/progress/{scenarioId}", m.RequireAuth(h.Progress.PutProgress))
	mux.HandleFunc("GET /api/leaderboard", m.RequireAuth(h.Progress.Leaderboard))

	mux.HandleFunc("POST /api/play/{scenarioId}/start", m.RequireAuth(h.Play.Start))
	mux.HandleFunc("GET /api/play/{scenarioId}", m.RequireAuth(h.Play.State))
	mux.HandleFunc("POST /api/play/{scenarioId}/choices", m.RequireAuth(h.Play.Choose))
	mux.HandleFunc("DELETE /api/play/{scenarioId}", m.RequireAuth(h.Play.Abandon))

	return CORS(allowedOrigins, Logging(logger, m.proxies, mux))
}
