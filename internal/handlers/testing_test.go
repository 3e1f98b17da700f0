package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ecoplay/internal/database"
	"ecoplay/internal/models"
	"ecoplay/internal/repository"
	"ecoplay/internal/security"
	"ecoplay/internal/service"
)

type testApp struct {
	db       *database.DB
	auth     *service.AuthService
	catalog  *service.CatalogService
	play     *service.PlayService
	progress *repository.ProgressRepository
	handler  http.Handler
}

type appOptions struct {
	limiter   *security.RateLimiter
	providers map[string]OAuthProvider
}

func newTestApp(t *testing.T, opts appOptions) *testApp {
	t.Helper()
	ctx := context.Background()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "ecoplay.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(ctx))

	users := repository.NewUserRepository(db)
	scenarios := repository.NewScenarioRepository(db)
	progress := repository.NewProgressRepository(db)

	tokens, err := security.NewTokenManager("handler-test-secret", time.Hour, nil)
	require.NoError(t, err)

	catalog := service.NewCatalogService(scenarios, progress, nil)
	_, err = catalog.SeedDefaultCatalog(ctx)
	require.NoError(t, err)

	progressService := service.NewProgressService(progress, scenarios, users)
	auth := service.NewAuthService(users, db, progressService, tokens, security.NewMemoryDenylist(), nil, nil)
	play := service.NewPlayService(catalog, users, progress, 5*time.Second, nil)

	var oauth *OAuthHandler
	if opts.providers != nil {
		oauth = NewOAuthHandler(auth, opts.providers, "http://api.test", "http://front.test", nil)
	}

	handler := NewRouter(Handlers{
		Middleware: NewMiddleware(auth, opts.limiter, nil, nil),
		Auth:       NewAuthHandler(auth, nil),
		OAuth:      oauth,
		Catalog:    NewCatalogHandler(catalog, nil),
		Progress:   NewProgressHandler(progressService, nil),
		Play:       NewPlayHandler(play, nil),
		Health:     NewHealthHandler(db, nil),
	}, []string{"http://front.test"}, nil)

	return &testApp{
		db:       db,
		auth:     auth,
		catalog:  catalog,
		play:     play,
		progress: progress,
		handler:  handler,
	}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) register(t *testing.T, username string) *models.AuthResult {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res models.AuthResult
	decodeBody(t, rec, &res)
	return &res
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}
