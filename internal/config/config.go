package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Env        string `envconfig:"ENV" default:"development"`
	ServerPort string `envconfig:"PORT" default:"8000"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	LogOutput   string `envconfig:"LOG_OUTPUT"`

	// Database: sqlite (default), postgres or mysql
	DatabaseType string `envconfig:"DATABASE_TYPE" default:"sqlite"`
	DatabasePath string `envconfig:"DB_PATH" default:"./ecoplay.db"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`

	// Token revocation store. In-memory when RedisAddr is empty.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`

	AuthRateLimit  int           `envconfig:"AUTH_RATE_LIMIT" default:"10"`
	AuthRateWindow time.Duration `envconfig:"AUTH_RATE_WINDOW" default:"1m"`

	// Reverse proxies (IPs or CIDRs) allowed to set X-Forwarded-For and X-Real-IP
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`

	// Upper bound for the background write of a completed scenario
	PersistTimeout time.Duration `envconfig:"PERSIST_TIMEOUT" default:"10s"`
	SessionIdleTTL time.Duration `envconfig:"SESSION_IDLE_TTL" default:"30m"`

	SeedCatalog bool   `envconfig:"SEED_CATALOG" default:"true"`
	BadWordsURL string `envconfig:"BAD_WORDS_URL"`

	GoogleClientID       string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string `envconfig:"GOOGLE_CLIENT_SECRET"`
	OAuthRedirectBaseURL string `envconfig:"OAUTH_REDIRECT_BASE_URL" default:"http://localhost:8000"`
	FrontendURL          string `envconfig:"FRONTEND_URL" default:"http://localhost:5173"`

	AWSRegion    string `envconfig:"AWS_REGION" default:"eu-west-3"`
	SESFromEmail string `envconfig:"SES_FROM_EMAIL"`
	SESFromName  string `envconfig:"SES_FROM_NAME" default:"EcoPlay"`
}

// Load reads configuration from the environment, after loading envFile
// when it exists.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must not be empty")
	}

	switch strings.ToLower(cfg.DatabaseType) {
	case "postgres", "postgresql", "mysql":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for database type %s", cfg.DatabaseType)
		}
	}

	return &cfg, nil
}

// AllowedOrigins splits CORSAllowedOrigins on commas
func (c *Config) AllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// GoogleOAuthEnabled reports whether Google sign-in is configured
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
