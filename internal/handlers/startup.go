package handlers

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// StartupStep is one named initialization step
type StartupStep struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// StartupStatus tracks the initialization progress of the server
type StartupStatus struct {
	mu       sync.RWMutex
	current  string
	progress int
	steps    []StartupStep
}

// NewStartupStatus creates a tracker for the named steps
func NewStartupStatus(steps ...string) *StartupStatus {
	s := &StartupStatus{current: "Initializing..."}
	for _, name := range steps {
		s.steps = append(s.steps, StartupStep{Name: name})
	}
	return s
}

// SetCurrentStep updates the current initialization step
func (s *StartupStatus) SetCurrentStep(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = step
}

// CompleteStep marks a step as completed and updates progress
func (s *StartupStatus) CompleteStep(stepName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.steps {
		if s.steps[i].Name == stepName {
			s.steps[i].Completed = true
			break
		}
	}

	if len(s.steps) == 0 {
		return
	}
	completed := 0
	for _, step := range s.steps {
		if step.Completed {
			completed++
		}
	}
	s.progress = (completed * 100) / len(s.steps)
}

// MarkReady marks the server as fully initialized
func (s *StartupStatus) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = "Server ready"
	s.progress = 100
}

type healthResponse struct {
	Status   string        `json:"status"`
	Current  string        `json:"current,omitempty"`
	Progress int           `json:"progress"`
	Steps    []StartupStep `json:"steps,omitempty"`
}

func (s *StartupStatus) snapshot() healthResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return healthResponse{
		Status:   "starting",
		Current:  s.current,
		Progress: s.progress,
		Steps:    append([]StartupStep(nil), s.steps...),
	}
}

// Bootstrap is the server's handler while it initializes. /healthz reports
// the startup steps and every other route answers 503 until Install hands
// over the real router.
type Bootstrap struct {
	status *StartupStatus
	router atomic.Pointer[http.Handler]
}

// NewBootstrap creates a bootstrap handler reporting status
func NewBootstrap(status *StartupStatus) *Bootstrap {
	return &Bootstrap{status: status}
}

// Install routes every following request to router and marks startup done
func (b *Bootstrap) Install(router http.Handler) {
	b.router.Store(&router)
	b.status.MarkReady()
}

func (b *Bootstrap) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if router := b.router.Load(); router != nil {
		(*router).ServeHTTP(w, r)
		return
	}

	if r.URL.Path == "/healthz" {
		respondJSON(w, http.StatusServiceUnavailable, b.status.snapshot())
		return
	}
	w.Header().Set("Retry-After", "5")
	respondWithError(w, nil, http.StatusServiceUnavailable, ErrServiceStarting, "", nil)
}

// Pinger checks that a dependency is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports database reachability
type HealthHandler struct {
	db     Pinger
	logger *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{db: db, logger: logger.Named("health")}
}

// Healthz is 200 while the database answers
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("database ping failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "database unreachable", Progress: 100})
		return
	}
	respondJSON(w, http.StatusOK, healthResponse{Status: "ok", Progress: 100})
}
