package service

import (
	"sync"
	"time"

	"ecoplay/internal/metrics"
	"ecoplay/internal/scenario"
)

type sessionKey struct {
	userID     int64
	scenarioID int64
}

// playSession serializes every operation on one runner
type playSession struct {
	mu         sync.Mutex
	runner     *scenario.Runner
	lastActive time.Time
	persisting int // completion writes still in flight
}

func (p *playSession) touch(now time.Time) {
	p.lastActive = now
}

// sessionRegistry holds the live runners, one per (user, scenario)
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[sessionKey]*playSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[sessionKey]*playSession)}
}

// put installs runner for key, replacing any previous play-through
func (r *sessionRegistry) put(key sessionKey, runner *scenario.Runner, now time.Time) *playSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[key]; !exists {
		metrics.ActivePlaySessions.Inc()
	}
	session := &playSession{runner: runner, lastActive: now}
	r.sessions[key] = session
	return session
}

func (r *sessionRegistry) get(key sessionKey) (*playSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[key]
	return session, ok
}

func (r *sessionRegistry) remove(key sessionKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[key]; !ok {
		return false
	}
	delete(r.sessions, key)
	metrics.ActivePlaySessions.Dec()
	return true
}

// completedScenarios lists the scenarios userID has finished in a live session
func (r *sessionRegistry) completedScenarios(userID int64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []int64
	for key, session := range r.sessions {
		if key.userID != userID {
			continue
		}
		session.mu.Lock()
		done := session.runner.State().Completed
		session.mu.Unlock()
		if done {
			ids = append(ids, key.scenarioID)
		}
	}
	return ids
}

// sweep drops sessions untouched since before cutoff. Sessions with a
// completion write in flight are kept so the unlock they grant is not lost.
func (r *sessionRegistry) sweep(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, session := range r.sessions {
		session.mu.Lock()
		idle := session.persisting == 0 && session.lastActive.Before(cutoff)
		session.mu.Unlock()
		if idle {
			delete(r.sessions, key)
			metrics.ActivePlaySessions.Dec()
			removed++
		}
	}
	return removed
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
