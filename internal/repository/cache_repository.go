package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/shortlinks/internal/config"
	"github.com/SergeiKhy/shortlinks/internal/models"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// CacheRepository кэш поверх Redis. Две группы ключей:
// link:{code} -> {original_url} и stats:{code} -> статистика переходов.
type CacheRepository interface {
	GetLink(ctx context.Context, code string) (*models.CachedLink, error)
	SetLink(ctx context.Context, code string, link *models.CachedLink) error
	DeleteLink(ctx context.Context, code string) error
	GetStats(ctx context.Context, code string) (*models.CachedStats, error)
	SetStats(ctx context.Context, code string, stats *models.CachedStats) error
	DeleteStats(ctx context.Context, code string) error
}

type cacheRepository struct {
	redis    *RedisDB
	linkTTL  time.Duration
	statsTTL time.Duration
}

func NewCacheRepository(redis *RedisDB, cfg config.CacheConfig) CacheRepository {
	return &cacheRepository{
		redis:    redis,
		linkTTL:  cfg.LinkTTL,
		statsTTL: cfg.StatsTTL,
	}
}

func LinkKey(code string) string {
	return "link:" + code
}

func StatsKey(code string) string {
	return "stats:" + code
}

func (r *cacheRepository) GetLink(ctx context.Context, code string) (*models.CachedLink, error) {
	var link models.CachedLink
	if err := r.get(ctx, LinkKey(code), &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *cacheRepository) SetLink(ctx context.Context, code string, link *models.CachedLink) error {
	return r.set(ctx, LinkKey(code), link, r.linkTTL)
}

func (r *cacheRepository) DeleteLink(ctx context.Context, code string) error {
	return r.redis.Client.Del(ctx, LinkKey(code)).Err()
}

func (r *cacheRepository) GetStats(ctx context.Context, code string) (*models.CachedStats, error) {
	var stats models.CachedStats
	if err := r.get(ctx, StatsKey(code), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *cacheRepository) SetStats(ctx context.Context, code string, stats *models.CachedStats) error {
	return r.set(ctx, StatsKey(code), stats, r.statsTTL)
}

func (r *cacheRepository) DeleteStats(ctx context.Context, code string) error {
	return r.redis.Client.Del(ctx, StatsKey(code)).Err()
}

func (r *cacheRepository) get(ctx context.Context, key string, dst any) error {
	data, err := r.redis.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to read %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}

	return nil
}

func (r *cacheRepository) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	return r.redis.Client.Set(ctx, key, data, ttl).Err()
}
