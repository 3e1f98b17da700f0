package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.ServerPort)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "./ecoplay.db", cfg.DatabasePath)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.PersistTimeout)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTTL)
	assert.Empty(t, cfg.TrustedProxies)
	assert.True(t, cfg.SeedCatalog)
	assert.False(t, cfg.GoogleOAuthEnabled())
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRequiresURLForServerDatabases(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://ecoplay@localhost/ecoplay?sslmode=disable")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DatabaseType)
}

func TestLoadReadsEnvFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	// godotenv does not override variables that are already set.
	t.Setenv("PORT", "")
	os.Unsetenv("PORT")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PORT=9100\nJWT_SECRET=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PORT") })

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.ServerPort)
	assert.Equal(t, "from-env", cfg.JWTSecret)
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{CORSAllowedOrigins: "http://localhost:5173, https://ecoplay.example ,"}
	assert.Equal(t, []string{"http://localhost:5173", "https://ecoplay.example"}, cfg.AllowedOrigins())

	cfg.CORSAllowedOrigins = ""
	assert.Nil(t, cfg.AllowedOrigins())
}

func TestLoadTrustedProxies(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.168.1.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.5"}, cfg.TrustedProxies)
}
