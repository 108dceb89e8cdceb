package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/shortlinks/internal/auth"
	"github.com/SergeiKhy/shortlinks/internal/config"
	"github.com/SergeiKhy/shortlinks/internal/handler"
	"github.com/SergeiKhy/shortlinks/internal/middleware"
	"github.com/SergeiKhy/shortlinks/internal/repository"
	"github.com/SergeiKhy/shortlinks/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	gin.SetMode(gin.ReleaseMode)
	return zap.NewProduction()
}

func main() {
	// Загрузка конфига
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, err := newLogger(cfg.App.Env)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Миграции схемы
	if err := repository.Migrate(cfg.DB.MigrationURL(), logger); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(ctx, cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Подключение к Redis
	redis, err := repository.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// Инициализация репозиториев
	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewClickRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redis, cfg.Cache)

	// Обновление кэша статистики (Worker Pool)
	refresher := service.NewStatsRefresher(linkRepo, cacheRepo, 0, 0, logger)
	refresher.Start()
	defer refresher.Stop()

	// Инициализация сервисов
	allocator := service.NewAllocator(linkRepo, cfg.Links)
	linkService := service.NewLinkService(linkRepo, historyRepo, cacheRepo, allocator, cfg.Links, logger)
	redirectService := service.NewRedirectService(linkRepo, clickRepo, cacheRepo, refresher, logger)
	authService := service.NewAuthService(
		userRepo,
		auth.NewTokenManager(cfg.Auth.SecretKey, cfg.Auth.TokenTTL),
		auth.NewPasswordHasher(bcrypt.DefaultCost),
		logger,
	)

	// Перенос истёкших ссылок в историю
	sweeper := service.NewSweeper(linkRepo, historyRepo, cacheRepo, cfg.Sweeper, logger)
	sweeper.Start()
	defer sweeper.Stop()

	// Инициализация middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	}, logger)
	defer rateLimiter.Stop()

	// Настройка роутера
	router := handler.NewRouter(handler.RouterDeps{
		Links:       linkService,
		Redirects:   redirectService,
		Auth:        authService,
		RateLimiter: rateLimiter,
		BaseURL:     cfg.App.BaseURL,
		Logger:      logger,
	})

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Сначала HTTP, затем фоновые задачи и соединения (defer в обратном порядке)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
