package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"ecoplay/internal/models"
	"ecoplay/internal/repository"
)

var errStoreDown = errors.New("store down")

type memUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[int64]*models.User)}
}

func (s *memUserStore) add(u *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return nil, repository.ErrDuplicate
		}
	}
	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	s.users[u.ID] = &stored
	return u, nil
}

func (s *memUserStore) CreateUser(_ context.Context, username, email, passwordHash string) (*models.User, error) {
	return s.add(&models.User{Username: username, Email: strings.ToLower(email), PasswordHash: passwordHash})
}

func (s *memUserStore) CreateOAuthUser(_ context.Context, username, email, provider, subject string) (*models.User, error) {
	return s.add(&models.User{Username: username, Email: strings.ToLower(email), OAuthProvider: provider, OAuthSubject: subject})
}

func (s *memUserStore) find(match func(*models.User) bool) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			copied := *u
			return &copied
		}
	}
	return nil
}

func (s *memUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Email == strings.ToLower(email) }), nil
}

func (s *memUserStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Username == username }), nil
}

func (s *memUserStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.ID == id }), nil
}

func (s *memUserStore) GetUserByOAuth(_ context.Context, provider, subject string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.OAuthProvider == provider && u.OAuthSubject == subject }), nil
}

func (s *memUserStore) LinkOAuthProvider(_ context.Context, userID int64, provider, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return errors.New("no such user")
	}
	u.OAuthProvider = provider
	u.OAuthSubject = subject
	return nil
}

type memCatalogStore struct {
	mu        sync.Mutex
	nextID    int64
	scenarios []models.Scenario
	failSteps bool
}

func (s *memCatalogStore) CreateScenario(_ context.Context, sc *models.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sc.ID = s.nextID
	for i := range sc.Steps {
		s.nextID++
		sc.Steps[i].ID = s.nextID
		sc.Steps[i].ScenarioID = sc.ID
		for j := range sc.Steps[i].Choices {
			s.nextID++
			sc.Steps[i].Choices[j].ID = s.nextID
			sc.Steps[i].Choices[j].StepID = sc.Steps[i].ID
		}
	}
	s.scenarios = append(s.scenarios, *sc)
	return nil
}

func (s *memCatalogStore) ListScenarios(_ context.Context) ([]models.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Scenario
	for _, sc := range s.scenarios {
		sc.Steps = nil
		out = append(out, sc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *memCatalogStore) scenario(id int64) *models.Scenario {
	for i := range s.scenarios {
		if s.scenarios[i].ID == id {
			return &s.scenarios[i]
		}
	}
	return nil
}

func (s *memCatalogStore) GetScenario(_ context.Context, id int64) (*models.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.scenario(id)
	if sc == nil {
		return nil, nil
	}
	copied := *sc
	copied.Steps = nil
	return &copied, nil
}

func (s *memCatalogStore) ListSteps(_ context.Context, scenarioID int64) ([]models.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSteps {
		return nil, errStoreDown
	}
	sc := s.scenario(scenarioID)
	if sc == nil {
		return nil, nil
	}
	var steps []models.Step
	for _, st := range sc.Steps {
		st.Choices = nil
		steps = append(steps, st)
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })
	return steps, nil
}

func (s *memCatalogStore) GetStep(_ context.Context, stepID int64) (*models.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.scenarios {
		for _, st := range sc.Steps {
			if st.ID == stepID {
				st.Choices = nil
				return &st, nil
			}
		}
	}
	return nil, nil
}

func (s *memCatalogStore) ListChoices(_ context.Context, stepID int64) ([]models.Choice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.scenarios {
		for _, st := range sc.Steps {
			if st.ID == stepID {
				return append([]models.Choice(nil), st.Choices...), nil
			}
		}
	}
	return nil, nil
}

func (s *memCatalogStore) ListChoicesForScenario(_ context.Context, scenarioID int64) ([]models.Choice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.scenario(scenarioID)
	if sc == nil {
		return nil, nil
	}
	var out []models.Choice
	for _, st := range sc.Steps {
		out = append(out, st.Choices...)
	}
	return out, nil
}

func (s *memCatalogStore) CountScenarios(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scenarios), nil
}

type memProgressStore struct {
	mu         sync.Mutex
	records    map[[2]int64]models.ProgressRecord
	users      *memUserStore
	failUpsert error
	block      chan struct{}
	upserts    int
}

func newMemProgressStore(users *memUserStore) *memProgressStore {
	return &memProgressStore{records: make(map[[2]int64]models.ProgressRecord), users: users}
}

func (s *memProgressStore) GetUserProgress(_ context.Context, userID int64) ([]models.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ProgressRecord
	for key, rec := range s.records {
		if key[0] == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScenarioID < out[j].ScenarioID })
	return out, nil
}

func (s *memProgressStore) GetProgress(_ context.Context, userID, scenarioID int64) (*models.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[[2]int64{userID, scenarioID}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *memProgressStore) UpsertProgress(ctx context.Context, rec *models.ProgressRecord) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.failUpsert != nil {
		return s.failUpsert
	}
	s.records[[2]int64{rec.UserID, rec.ScenarioID}] = *rec
	return nil
}

func (s *memProgressStore) totals() map[int64]int {
	totals := make(map[int64]int)
	s.users.mu.Lock()
	for _, u := range s.users.users {
		totals[u.ID] = 0
	}
	s.users.mu.Unlock()
	for key, rec := range s.records {
		if rec.Completed {
			totals[key[0]] += rec.XPEarned
		}
	}
	return totals
}

func (s *memProgressStore) Leaderboard(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LeaderboardEntry
	for id, total := range s.totals() {
		out = append(out, models.LeaderboardEntry{UserID: id, TotalXP: total, Level: models.LevelForXP(total)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalXP > out[j].TotalXP })
	for i := range out {
		out[i].Rank = i + 1
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memProgressStore) XPSummary(_ context.Context, userID int64, since time.Time) (models.XPSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum models.XPSummary
	for key, rec := range s.records {
		if key[0] != userID || !rec.Completed {
			continue
		}
		sum.TotalXP += rec.XPEarned
		sum.ScenariosCompleted++
		if rec.FinishedAt != nil && !rec.FinishedAt.Before(since) {
			sum.WeeklyXP += rec.XPEarned
		}
	}
	return sum, nil
}

func (s *memProgressStore) RankOf(_ context.Context, totalXP int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ahead := 0
	for _, total := range s.totals() {
		if total > totalXP {
			ahead++
		}
	}
	return ahead + 1, nil
}

func (s *memProgressStore) FinishedTimes(_ context.Context, userID int64) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Time
	for key, rec := range s.records {
		if key[0] == userID && rec.Completed && rec.FinishedAt != nil {
			out = append(out, *rec.FinishedAt)
		}
	}
	return out, nil
}

type memNameFilter map[string]bool

func (f memNameFilter) IsBadWord(_ context.Context, word string) (bool, error) {
	return f[strings.ToLower(word)], nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) SendWelcomeEmail(_ context.Context, toEmail, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, toEmail)
	return nil
}

// twoScenarioCatalog seeds "Budget étudiant" (2 steps) and "Premier loyer" (1 step)
func twoScenarioCatalog() *memCatalogStore {
	store := &memCatalogStore{}
	ctx := context.Background()
	_ = store.CreateScenario(ctx, &models.Scenario{
		Title:      "Budget étudiant",
		Difficulty: models.DifficultyEasy,
		Position:   0,
		Steps: []models.Step{
			{StepOrder: 1, Question: "Livre ?", Choices: []models.Choice{
				{Label: "Neuf", XPReward: 5, FinancialImpact: -60},
				{Label: "Occasion", XPReward: 15, FinancialImpact: -20},
			}},
			{StepOrder: 2, Question: "Téléphone ?", Choices: []models.Choice{
				{Label: "Crédit", XPReward: 5, FinancialImpact: -40, Consequence: "Engagement long terme, santé financière -20"},
				{Label: "Attendre", XPReward: 20},
			}},
		},
	})
	_ = store.CreateScenario(ctx, &models.Scenario{
		Title:      "Premier loyer",
		Difficulty: models.DifficultyMedium,
		Position:   1,
		Steps: []models.Step{
			{StepOrder: 1, Question: "Appartement ?", Choices: []models.Choice{
				{Label: "Colocation", XPReward: 15, FinancialImpact: -400},
			}},
		},
	})
	return store
}
