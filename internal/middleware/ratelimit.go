package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiterConfig конфигурация rate limiter
type RateLimiterConfig struct {
	RequestsPerSecond float64       // Количество запросов в секунду
	BurstSize         int           // Максимальный размер burst
	CleanupInterval   time.Duration // Интервал очистки неактивных посетителей
}

// DefaultRateLimiterConfig конфигурация по умолчанию
var DefaultRateLimiterConfig = RateLimiterConfig{
	RequestsPerSecond: 10, // 10 запросов в секунду
	BurstSize:         20, // Burst до 20 запросов
	CleanupInterval:   time.Minute,
}

// visitor представляет rate limiter для одного клиента
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter middleware для ограничения запросов с использованием алгоритма Token Bucket
type RateLimiter struct {
	config   RateLimiterConfig
	visitors map[string]*visitor // ключ клиента -> visitor
	mu       sync.Mutex
	logger   *zap.Logger
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter создаёт rate limiter и запускает очистку; остановка через Stop
func NewRateLimiter(config RateLimiterConfig, logger *zap.Logger) *RateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultRateLimiterConfig.RequestsPerSecond
	}
	if config.BurstSize <= 0 {
		config.BurstSize = DefaultRateLimiterConfig.BurstSize
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimiterConfig.CleanupInterval
	}

	rl := &RateLimiter{
		config:   config,
		visitors: make(map[string]*visitor),
		logger:   logger,
		done:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop останавливает горутину очистки
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// cleanupLoop периодически удаляет неактивных посетителей
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			if removed := rl.cleanup(); removed > 0 {
				rl.logger.Debug("Rate limiter visitors cleaned up", zap.Int("removed", removed))
			}
		}
	}
}

// cleanup удаляет посетителей, которые не были активны долгое время
func (rl *RateLimiter) cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, v := range rl.visitors {
		if time.Since(v.lastSeen) > rl.config.CleanupInterval*3 {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// Visitors количество отслеживаемых клиентов
func (rl *RateLimiter) Visitors() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// getLimiter возвращает или создаёт rate limiter для данного ключа
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, exists := rl.visitors[key]; exists {
		v.lastSeen = time.Now()
		return v.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize)
	rl.visitors[key] = &visitor{
		limiter:  limiter,
		lastSeen: time.Now(),
	}

	return limiter
}

// Middleware ограничивает запросы по IP клиента
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return rl.MiddlewareWithKey(func(*gin.Context) string { return "" })
}

// MiddlewareWithKey возвращает rate limiter с кастомным ключом; пустой ключ заменяется IP
func (rl *RateLimiter) MiddlewareWithKey(getKey func(*gin.Context) string) gin.HandlerFunc {
	retryAfter := int(math.Ceil(1 / rl.config.RequestsPerSecond))

	return func(c *gin.Context) {
		key := getKey(c)
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.getLimiter(key).Allow() {
			rl.logger.Warn("Rate limit exceeded", zap.String("client", key), zap.String("path", c.FullPath()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests, try again later",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
