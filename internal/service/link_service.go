package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/SergeiKhy/shortlinks/internal/config"
	"github.com/SergeiKhy/shortlinks/internal/models"
	"github.com/SergeiKhy/shortlinks/internal/repository"
	"go.uber.org/zap"
)

const defaultLinkTTL = 30 * 24 * time.Hour

// LinkService создание, изменение и удаление ссылок с проверкой владельца
type LinkService interface {
	CreateLink(ctx context.Context, caller models.Identity, input *models.CreateLinkInput) (*models.Link, error)
	GetLink(ctx context.Context, code string) (*models.Link, error)
	UpdateLink(ctx context.Context, caller models.Identity, code string, input *models.UpdateLinkInput) (*models.Link, error)
	DeleteLink(ctx context.Context, caller models.Identity, code string) error
	SearchLinks(ctx context.Context, caller models.Identity, originalURL string) ([]models.Link, error)
	ListExpired(ctx context.Context, caller models.Identity) ([]models.LinkHistory, error)
}

type linkService struct {
	linkRepo       repository.LinkRepository
	historyRepo    repository.HistoryRepository
	cacheRepo      repository.CacheRepository
	allocator      *Allocator
	defaultTTL     time.Duration
	blockedDomains []string
	logger         *zap.Logger
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(
	linkRepo repository.LinkRepository,
	historyRepo repository.HistoryRepository,
	cacheRepo repository.CacheRepository,
	allocator *Allocator,
	cfg config.LinksConfig,
	logger *zap.Logger,
) LinkService {
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = defaultLinkTTL
	}
	return &linkService{
		linkRepo:       linkRepo,
		historyRepo:    historyRepo,
		cacheRepo:      cacheRepo,
		allocator:      allocator,
		defaultTTL:     ttl,
		blockedDomains: cfg.BlockedDomains,
		logger:         logger,
	}
}

// CreateLink создаёт новую короткую ссылку. Аноним создаёт ссылку без владельца.
func (s *linkService) CreateLink(ctx context.Context, caller models.Identity, input *models.CreateLinkInput) (*models.Link, error) {
	if err := s.validateURL(input.OriginalURL); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.defaultTTL)
	if input.ExpiresAt != nil {
		expiresAt = input.ExpiresAt.UTC()
	}

	custom := input.CustomAlias != nil && *input.CustomAlias != ""

	link := &models.Link{
		OriginalURL: input.OriginalURL,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   &expiresAt,
		OwnerID:     caller.OwnerID(),
	}
	if custom {
		link.CustomAlias = input.CustomAlias
	}

	// Вставка может проиграть гонку за код: для alias это конфликт,
	// для сгенерированного кода берём новый в пределах бюджета попыток
	for attempt := 0; ; attempt++ {
		code, err := s.allocator.Allocate(ctx, input.CustomAlias)
		if err != nil {
			return nil, err
		}
		link.ShortCode = code

		err = s.linkRepo.Create(ctx, link)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrCodeExists) {
			return nil, err
		}
		if custom {
			return nil, ErrAliasConflict
		}
		if attempt+1 >= s.allocator.MaxAttempts() {
			return nil, ErrCodeSpaceExhausted
		}
	}

	// Кэширование
	if err := s.cacheRepo.SetLink(ctx, link.ShortCode, &models.CachedLink{OriginalURL: link.OriginalURL}); err != nil {
		s.logger.Warn("Failed to cache link", zap.String("short_code", link.ShortCode), zap.Error(err))
	}

	s.logger.Info("Link created",
		zap.String("short_code", link.ShortCode),
		zap.Stringer("owner", caller),
	)

	return link, nil
}

// GetLink активная ссылка по коду, истёкшие отдаются как ErrExpired
func (s *linkService) GetLink(ctx context.Context, code string) (*models.Link, error) {
	link, err := s.getLink(ctx, code)
	if err != nil {
		return nil, err
	}
	if link.IsExpired(time.Now().UTC()) {
		return nil, ErrExpired
	}
	return link, nil
}

// UpdateLink меняет alias и/или срок жизни. Короткий код меняется всегда: на
// новый alias, если он задан, иначе на сгенерированный. Старый код перестаёт
// работать, его кэш удаляется. Повтор текущего alias код не меняет.
func (s *linkService) UpdateLink(ctx context.Context, caller models.Identity, code string, input *models.UpdateLinkInput) (*models.Link, error) {
	link, err := s.getOwnedLink(ctx, caller, code)
	if err != nil {
		return nil, err
	}

	oldCode := link.ShortCode
	alias := input.CustomAlias != nil && *input.CustomAlias != ""
	generated := false

	switch {
	case alias && *input.CustomAlias == oldCode:
		link.CustomAlias = input.CustomAlias
	case alias:
		newCode, err := s.allocator.ReserveAlias(ctx, *input.CustomAlias)
		if err != nil {
			return nil, err
		}
		link.ShortCode = newCode
		link.CustomAlias = input.CustomAlias
	default:
		newCode, err := s.allocator.Generate(ctx)
		if err != nil {
			return nil, err
		}
		link.ShortCode = newCode
		link.CustomAlias = nil
		generated = true
	}

	if input.ExpiresAt != nil {
		// Храним время без часового пояса, в UTC
		expiresAt := input.ExpiresAt.UTC()
		link.ExpiresAt = &expiresAt
	}
	link.UpdatedAt = time.Now().UTC()

	for attempt := 0; ; attempt++ {
		err := s.linkRepo.Update(ctx, oldCode, link)
		if err == nil {
			break
		}
		switch {
		case errors.Is(err, repository.ErrLinkNotFound):
			return nil, ErrNotFound
		case !errors.Is(err, repository.ErrCodeExists):
			return nil, err
		case !generated || attempt+1 >= s.allocator.MaxAttempts():
			return nil, ErrAliasConflict
		}
		if link.ShortCode, err = s.allocator.Generate(ctx); err != nil {
			return nil, err
		}
	}

	s.invalidate(ctx, oldCode)
	if link.ShortCode != oldCode {
		if err := s.cacheRepo.SetLink(ctx, link.ShortCode, &models.CachedLink{OriginalURL: link.OriginalURL}); err != nil {
			s.logger.Warn("Failed to cache link", zap.String("short_code", link.ShortCode), zap.Error(err))
		}
	}

	s.logger.Info("Link updated",
		zap.String("old_short_code", oldCode),
		zap.String("short_code", link.ShortCode),
	)

	return link, nil
}

// DeleteLink удаляет ссылку владельца и её записи в кэше
func (s *linkService) DeleteLink(ctx context.Context, caller models.Identity, code string) error {
	link, err := s.getOwnedLink(ctx, caller, code)
	if err != nil {
		return err
	}

	if err := s.linkRepo.Delete(ctx, link.ShortCode); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.invalidate(ctx, link.ShortCode)
	return nil
}

// SearchLinks ссылки вызывающего с данным original_url. ErrNotFound, если таких
// ссылок нет ни у кого, ErrForbidden, если все они чужие.
func (s *linkService) SearchLinks(ctx context.Context, caller models.Identity, originalURL string) ([]models.Link, error) {
	if caller.IsAnonymous() {
		return nil, ErrUnauthenticated
	}

	links, err := s.linkRepo.FindByOriginalURL(ctx, originalURL)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, ErrNotFound
	}

	owned := make([]models.Link, 0, len(links))
	for _, link := range links {
		if link.OwnedBy(caller) {
			owned = append(owned, link)
		}
	}
	if len(owned) == 0 {
		return nil, ErrForbidden
	}

	return owned, nil
}

// ListExpired история истёкших ссылок вызывающего
func (s *linkService) ListExpired(ctx context.Context, caller models.Identity) ([]models.LinkHistory, error) {
	userID, ok := caller.UserID()
	if !ok {
		return nil, ErrUnauthenticated
	}

	history, err := s.historyRepo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, ErrNotFound
	}

	return history, nil
}

func (s *linkService) getLink(ctx context.Context, code string) (*models.Link, error) {
	link, err := s.linkRepo.GetByShortCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return link, nil
}

func (s *linkService) getOwnedLink(ctx context.Context, caller models.Identity, code string) (*models.Link, error) {
	if caller.IsAnonymous() {
		return nil, ErrUnauthenticated
	}

	link, err := s.getLink(ctx, code)
	if err != nil {
		return nil, err
	}
	if !link.OwnedBy(caller) {
		return nil, ErrForbidden
	}

	return link, nil
}

// invalidate удаляет link:{code} и stats:{code}; ошибки кэша только логируются
func (s *linkService) invalidate(ctx context.Context, code string) {
	if err := s.cacheRepo.DeleteLink(ctx, code); err != nil {
		s.logger.Warn("Failed to invalidate link cache", zap.String("short_code", code), zap.Error(err))
	}
	if err := s.cacheRepo.DeleteStats(ctx, code); err != nil {
		s.logger.Warn("Failed to invalidate stats cache", zap.String("short_code", code), zap.Error(err))
	}
}

// validateURL допускает только абсолютные http(s) URL с хостом
func (s *linkService) validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURL
	}
	if u.Hostname() == "" {
		return ErrInvalidURL
	}

	return s.checkBlockedDomain(u.Hostname())
}

// checkBlockedDomain проверяет хост и его родительские домены по чёрному списку
func (s *linkService) checkBlockedDomain(host string) error {
	host = strings.ToLower(host)
	for _, domain := range s.blockedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return ErrBlockedDomain
		}
	}
	return nil
}
