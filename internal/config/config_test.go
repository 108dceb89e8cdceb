package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SergeiKhy/shortlinks/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_SECRET_KEY", "secret")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "http://localhost:8080", cfg.App.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Cache.LinkTTL)
	assert.Equal(t, 300*time.Second, cfg.Cache.StatsTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Links.DefaultTTL)
	assert.Equal(t, 8, cfg.Links.CodeLength)
	assert.Equal(t, 300*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, float64(10), cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 20, cfg.RateLimit.BurstSize)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("AUTH_SECRET_KEY", "")

	_, err := config.Load("")
	assert.ErrorIs(t, err, config.ErrMissingSecret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_SECRET_KEY", "secret")
	t.Setenv("APP_BASE_URL", "https://sho.rt/")
	t.Setenv("CACHE_LINK_TTL", "2m")
	t.Setenv("SWEEPER_INTERVAL", "10s")
	t.Setenv("LINK_BLOCKED_DOMAINS", "Malware.com, ,phishing.com")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://sho.rt", cfg.App.BaseURL)
	assert.Equal(t, 2*time.Minute, cfg.Cache.LinkTTL)
	assert.Equal(t, 10*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, []string{"malware.com", "phishing.com"}, cfg.Links.BlockedDomains)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("AUTH_SECRET_KEY=from-file\nDB_NAME=shortener\n"), 0o600))

	// godotenv не перезаписывает уже заданные переменные, поэтому очищаем их
	t.Setenv("AUTH_SECRET_KEY", "")
	os.Unsetenv("AUTH_SECRET_KEY")
	t.Setenv("DB_NAME", "")
	os.Unsetenv("DB_NAME")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Auth.SecretKey)
	assert.Equal(t, "shortener", cfg.DB.Name)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	t.Setenv("AUTH_SECRET_KEY", "secret")

	_, err := config.Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestDBConfig_URLs(t *testing.T) {
	db := config.DBConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "links"}

	assert.Equal(t, "postgres://u:p@db:5432/links?sslmode=disable", db.DSN())
	assert.Equal(t, "pgx5://u:p@db:5432/links?sslmode=disable", db.MigrationURL())
}
