package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ecoplay/internal/config"
	"ecoplay/internal/database"
	"ecoplay/internal/handlers"
	"ecoplay/internal/logger"
	"ecoplay/internal/repository"
	"ecoplay/internal/security"
	"ecoplay/internal/service"
)

const (
	stepDatabase   = "Database connection"
	stepMigrations = "Running migrations"
	stepSeed       = "Seeding default catalog"
	stepServices   = "Initializing services"
)

func main() {
	envFile := flag.String("env", ".env", "Optional .env file to load before reading the environment")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		Encoding:   cfg.LogEncoding,
		OutputPath: cfg.LogOutput,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

// application is everything initialize builds behind the router
type application struct {
	router  http.Handler
	play    *service.PlayService
	auth    *service.AuthService
	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proxies, err := security.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	// Listen right away so /healthz reports progress while initializing
	status := handlers.NewStartupStatus(stepDatabase, stepMigrations, stepSeed, stepServices)
	boot := handlers.NewBootstrap(status)

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      boot,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	app, err := initialize(ctx, cfg, proxies, status, log)
	if err != nil {
		shutdown(server, log)
		return err
	}
	defer app.close()

	boot.Install(app.router)
	log.Info("server ready")

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdown(server, log)

	// Let in-flight completion writes and welcome emails finish
	app.play.Wait()
	app.auth.Wait()
	log.Info("server stopped")
	return nil
}

func shutdown(server *http.Server, log *zap.Logger) {
	log.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

// initialize opens storage and builds the services and router, reporting each
// step to status
func initialize(ctx context.Context, cfg *config.Config, proxies *security.TrustedProxies, status *handlers.StartupStatus, log *zap.Logger) (_ *application, err error) {
	app := &application{}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	// Initialize database with config (supports sqlite, postgres, mysql)
	status.SetCurrentStep(stepDatabase)
	db, err := database.InitializeWithConfig(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.closers = append(app.closers, func() { db.Close() })
	status.CompleteStep(stepDatabase)
	log.Info("database connection established", zap.String("type", cfg.DatabaseType))

	status.SetCurrentStep(stepMigrations)
	if err := db.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	status.CompleteStep(stepMigrations)
	log.Info("migrations completed")

	if err := db.SeedBadWords(ctx, cfg.BadWordsURL); err != nil {
		log.Warn("failed to seed bad words filter", zap.Error(err))
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	scenarioRepo := repository.NewScenarioRepository(db)
	progressRepo := repository.NewProgressRepository(db)

	catalogService := service.NewCatalogService(scenarioRepo, progressRepo, log)

	status.SetCurrentStep(stepSeed)
	if cfg.SeedCatalog {
		n, err := catalogService.SeedDefaultCatalog(ctx)
		if err != nil {
			log.Warn("failed to seed default catalog", zap.Error(err))
		} else if n > 0 {
			log.Info("default catalog seeded", zap.Int("scenarios", n))
		}
	}
	status.CompleteStep(stepSeed)

	status.SetCurrentStep(stepServices)
	tokens, err := security.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL, log)
	if err != nil {
		return nil, err
	}

	denylist, closeDenylist, err := newDenylist(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeDenylist)

	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.FrontendURL, log)
	if err != nil {
		log.Warn("email service unavailable", zap.Error(err))
	}
	var mailer service.Mailer
	if emailService != nil && emailService.IsEnabled() {
		mailer = emailService
	}

	progressService := service.NewProgressService(progressRepo, scenarioRepo, userRepo)
	app.auth = service.NewAuthService(userRepo, db, progressService, tokens, denylist, mailer, log)
	app.play = service.NewPlayService(catalogService, userRepo, progressRepo, cfg.PersistTimeout, log)
	go app.play.RunSessionJanitor(ctx, cfg.SessionIdleTTL)

	limiter := security.NewRateLimiter(ctx, cfg.AuthRateLimit, cfg.AuthRateWindow)

	var oauthHandler *handlers.OAuthHandler
	if cfg.GoogleOAuthEnabled() {
		providers := map[string]handlers.OAuthProvider{
			"google": handlers.GoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret),
		}
		oauthHandler = handlers.NewOAuthHandler(app.auth, providers, cfg.OAuthRedirectBaseURL, cfg.FrontendURL, log)
		log.Info("google sign-in enabled")
	}

	app.router = handlers.NewRouter(handlers.Handlers{
		Middleware: handlers.NewMiddleware(app.auth, limiter, proxies, log),
		Auth:       handlers.NewAuthHandler(app.auth, log),
		OAuth:      oauthHandler,
		Catalog:    handlers.NewCatalogHandler(catalogService, log),
		Progress:   handlers.NewProgressHandler(progressService, log),
		Play:       handlers.NewPlayHandler(app.play, log),
		Health:     handlers.NewHealthHandler(db, log),
	}, cfg.AllowedOrigins(), log.Named("http"))
	status.CompleteStep(stepServices)

	return app, nil
}

// newDenylist returns the Redis denylist when REDIS_ADDR is set and an
// in-memory one otherwise
func newDenylist(ctx context.Context, cfg *config.Config, log *zap.Logger) (security.Denylist, func(), error) {
	if cfg.RedisAddr == "" {
		log.Info("token denylist: in-memory")
		return security.NewMemoryDenylist(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	log.Info("token denylist: redis", zap.String("addr", cfg.RedisAddr))
	return security.NewRedisDenylist(client, log), func() { client.Close() }, nil
}
