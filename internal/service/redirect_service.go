package service

import (
	"context"
	"errors"
	"time"

	"github.com/SergeiKhy/shortlinks/internal/models"
	"github.com/SergeiKhy/shortlinks/internal/repository"
	"go.uber.org/zap"
)

// RedirectService переходы по коротким ссылкам и статистика переходов
type RedirectService interface {
	Resolve(ctx context.Context, code string) (string, error)
	Stats(ctx context.Context, caller models.Identity, code string) (*models.LinkStats, error)
}

type redirectService struct {
	linkRepo  repository.LinkRepository
	clickRepo repository.ClickRepository
	cacheRepo repository.CacheRepository
	refresher StatsRefresher
	logger    *zap.Logger
}

func NewRedirectService(
	linkRepo repository.LinkRepository,
	clickRepo repository.ClickRepository,
	cacheRepo repository.CacheRepository,
	refresher StatsRefresher,
	logger *zap.Logger,
) RedirectService {
	return &redirectService{
		linkRepo:  linkRepo,
		clickRepo: clickRepo,
		cacheRepo: cacheRepo,
		refresher: refresher,
		logger:    logger,
	}
}

// Resolve возвращает оригинальный URL и засчитывает переход.
// Строка из БД читается всегда: кэш не знает о сроке жизни и счётчике.
func (s *redirectService) Resolve(ctx context.Context, code string) (string, error) {
	cached, err := s.cacheRepo.GetLink(ctx, code)
	if err != nil && !errors.Is(err, repository.ErrCacheMiss) {
		s.logger.Warn("Failed to read link cache", zap.String("short_code", code), zap.Error(err))
	}

	link, err := s.linkRepo.GetByShortCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}

	now := time.Now().UTC()
	if link.IsExpired(now) {
		return "", ErrExpired
	}

	originalURL := link.OriginalURL
	if cached != nil {
		originalURL = cached.OriginalURL
	} else if err := s.cacheRepo.SetLink(ctx, code, &models.CachedLink{OriginalURL: link.OriginalURL}); err != nil {
		s.logger.Warn("Failed to cache link", zap.String("short_code", code), zap.Error(err))
	}

	// Атомарный инкремент: параллельные переходы не теряют обновлений
	if _, err := s.clickRepo.IncrementClicks(ctx, code, now); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			// Ссылку удалили или она истекла между чтением и инкрементом
			return "", s.missingAfterRead(ctx, code)
		}
		return "", err
	}

	// Обновление stats:{code} не должно задерживать редирект
	if err := s.refresher.Enqueue(ctx, &models.StatsEvent{ShortCode: code}); err != nil {
		s.logger.Debug("Stats refresh not enqueued", zap.String("short_code", code), zap.Error(err))
	}

	return originalURL, nil
}

func (s *redirectService) missingAfterRead(ctx context.Context, code string) error {
	link, err := s.linkRepo.GetByShortCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return ErrNotFound
		}
		return err
	}
	if link.IsExpired(time.Now().UTC()) {
		return ErrExpired
	}
	return ErrNotFound
}

// Stats статистика переходов. Права владельца проверяются и при попадании в кэш:
// запись stats:{code} хранит owner_id.
func (s *redirectService) Stats(ctx context.Context, caller models.Identity, code string) (*models.LinkStats, error) {
	if caller.IsAnonymous() {
		return nil, ErrUnauthenticated
	}

	cached, err := s.cacheRepo.GetStats(ctx, code)
	switch {
	case err == nil:
		if !cached.OwnedBy(caller) {
			return nil, ErrForbidden
		}
		return &cached.LinkStats, nil
	case !errors.Is(err, repository.ErrCacheMiss):
		s.logger.Warn("Failed to read stats cache", zap.String("short_code", code), zap.Error(err))
	}

	link, err := s.linkRepo.GetByShortCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !link.OwnedBy(caller) {
		return nil, ErrForbidden
	}

	stats := models.NewCachedStats(link)
	if err := s.cacheRepo.SetStats(ctx, code, stats); err != nil {
		s.logger.Warn("Failed to cache stats", zap.String("short_code", code), zap.Error(err))
	}

	return &stats.LinkStats, nil
}
