package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingSecret = errors.New("AUTH_SECRET_KEY is required")

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Cache     CacheConfig
	Links     LinksConfig
	Sweeper   SweeperConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port    string
	Env     string
	BaseURL string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN строка подключения для pgxpool
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.sslMode(),
	)
}

// MigrationURL строка подключения для golang-migrate (драйвер pgx/v5)
func (c DBConfig) MigrationURL() string {
	return "pgx5" + strings.TrimPrefix(c.DSN(), "postgres")
}

func (c DBConfig) sslMode() string {
	if c.SSLMode == "" {
		return "disable"
	}
	return c.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	SecretKey string
	TokenTTL  time.Duration
}

type CacheConfig struct {
	LinkTTL  time.Duration
	StatsTTL time.Duration
}

type LinksConfig struct {
	DefaultTTL       time.Duration
	CodeLength       int
	MaxAllocAttempts int
	BlockedDomains   []string
}

type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("AUTH_TOKEN_TTL", time.Hour)
	v.SetDefault("CACHE_LINK_TTL", 60*time.Second)
	v.SetDefault("CACHE_STATS_TTL", 300*time.Second)
	v.SetDefault("LINK_DEFAULT_TTL", 30*24*time.Hour)
	v.SetDefault("LINK_CODE_LENGTH", 8)
	v.SetDefault("LINK_MAX_ALLOC_ATTEMPTS", 10)
	v.SetDefault("SWEEPER_INTERVAL", 300*time.Second)
	v.SetDefault("SWEEPER_BATCH_SIZE", 1000)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
}

// Load читает конфигурацию из окружения. Файл envFile (обычно .env) необязателен:
// если он существует, его значения попадают в окружение до чтения viper.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.Env = v.GetString("APP_ENV")
	cfg.App.BaseURL = strings.TrimRight(v.GetString("APP_BASE_URL"), "/")

	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")
	cfg.DB.SSLMode = v.GetString("DB_SSLMODE")

	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.Auth.SecretKey = v.GetString("AUTH_SECRET_KEY")
	cfg.Auth.TokenTTL = v.GetDuration("AUTH_TOKEN_TTL")

	cfg.Cache.LinkTTL = v.GetDuration("CACHE_LINK_TTL")
	cfg.Cache.StatsTTL = v.GetDuration("CACHE_STATS_TTL")

	cfg.Links.DefaultTTL = v.GetDuration("LINK_DEFAULT_TTL")
	cfg.Links.CodeLength = v.GetInt("LINK_CODE_LENGTH")
	cfg.Links.MaxAllocAttempts = v.GetInt("LINK_MAX_ALLOC_ATTEMPTS")
	cfg.Links.BlockedDomains = parseList(v.GetString("LINK_BLOCKED_DOMAINS"))

	cfg.Sweeper.Interval = v.GetDuration("SWEEPER_INTERVAL")
	cfg.Sweeper.BatchSize = v.GetInt("SWEEPER_BATCH_SIZE")

	cfg.RateLimit.RequestsPerSecond = v.GetFloat64("RATE_LIMIT_RPS")
	cfg.RateLimit.BurstSize = v.GetInt("RATE_LIMIT_BURST")

	if cfg.Auth.SecretKey == "" {
		return nil, ErrMissingSecret
	}

	return &cfg, nil
}

// parseList разбирает список через запятую: "a.com, b.com" -> [a.com b.com]
func parseList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
