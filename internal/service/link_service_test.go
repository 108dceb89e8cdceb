package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SergeiKhy/shortlinks/internal/config"
	"github.com/SergeiKhy/shortlinks/internal/models"
	"github.com/SergeiKhy/shortlinks/internal/service"
	"github.com/SergeiKhy/shortlinks/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv сервисы поверх моковых репозиториев
type testEnv struct {
	links       service.LinkService
	redirects   service.RedirectService
	linkRepo    *mocks.MockLinkRepository
	historyRepo *mocks.MockHistoryRepository
	cacheRepo   *mocks.MockCacheRepository
	refresher   service.StatsRefresher
}

// setupTestService создаёт тестовое окружение с моковыми репозиториями
func setupTestService(t *testing.T) *testEnv {
	t.Helper()

	linkRepo := mocks.NewMockLinkRepository()
	historyRepo := mocks.NewMockHistoryRepository(linkRepo)
	cacheRepo := mocks.NewMockCacheRepository()
	logger := zap.NewNop()

	cfg := config.LinksConfig{
		DefaultTTL:       30 * 24 * time.Hour,
		CodeLength:       8,
		MaxAllocAttempts: 10,
		BlockedDomains:   []string{"malware.com", "phishing.com", "spam.com"},
	}
	allocator := service.NewAllocator(linkRepo, cfg)
	refresher := service.NewStatsRefresher(linkRepo, cacheRepo, 1, 100, logger)
	refresher.Start()
	t.Cleanup(refresher.Stop)

	return &testEnv{
		links:       service.NewLinkService(linkRepo, historyRepo, cacheRepo, allocator, cfg, logger),
		redirects:   service.NewRedirectService(linkRepo, linkRepo, cacheRepo, refresher, logger),
		linkRepo:    linkRepo,
		historyRepo: historyRepo,
		cacheRepo:   cacheRepo,
		refresher:   refresher,
	}
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// TestLinkService_CreateLink_Success проверяет успешное создание ссылки
func TestLinkService_CreateLink_Success(t *testing.T) {
	env := setupTestService(t)

	input := &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	}

	ctx := context.Background()
	link, err := env.links.CreateLink(ctx, models.Anonymous(), input)

	require.NoError(t, err)
	assert.Len(t, link.ShortCode, 8)
	assert.Equal(t, input.OriginalURL, link.OriginalURL)
	assert.Nil(t, link.OwnerID)
	assert.Nil(t, link.CustomAlias)
	assert.True(t, env.cacheRepo.HasLink(link.ShortCode))

	// Срок жизни по умолчанию 30 дней
	require.NotNil(t, link.ExpiresAt)
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), *link.ExpiresAt, time.Minute)
}

// TestLinkService_CreateLink_Owner проверяет, что владелец берётся из Identity
func TestLinkService_CreateLink_Owner(t *testing.T) {
	env := setupTestService(t)
	userID := uuid.New()

	link, err := env.links.CreateLink(context.Background(), models.Authenticated(userID),
		&models.CreateLinkInput{OriginalURL: "https://example.com"})

	require.NoError(t, err)
	require.NotNil(t, link.OwnerID)
	assert.Equal(t, userID, *link.OwnerID)
}

// TestLinkService_CreateLink_WithCustomAlias проверяет создание ссылки с alias
func TestLinkService_CreateLink_WithCustomAlias(t *testing.T) {
	env := setupTestService(t)

	link, err := env.links.CreateLink(context.Background(), models.Anonymous(), &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
		CustomAlias: strPtr("my-alias"),
	})

	require.NoError(t, err)
	assert.Equal(t, "my-alias", link.ShortCode)
	require.NotNil(t, link.CustomAlias)
	assert.Equal(t, "my-alias", *link.CustomAlias)
}

// TestLinkService_CreateLink_DuplicateAlias повторный alias даёт конфликт и не меняет хранилище
func TestLinkService_CreateLink_DuplicateAlias(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	_, err := env.links.CreateLink(ctx, models.Anonymous(), &models.CreateLinkInput{
		OriginalURL: "https://example.com/first",
		CustomAlias: strPtr("taken"),
	})
	require.NoError(t, err)

	_, err = env.links.CreateLink(ctx, models.Anonymous(), &models.CreateLinkInput{
		OriginalURL: "https://example.com/second",
		CustomAlias: strPtr("taken"),
	})
	assert.ErrorIs(t, err, service.ErrAliasConflict)

	link, err := env.linkRepo.GetByShortCode(ctx, "taken")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/first", link.OriginalURL)
	assert.Equal(t, 1, env.linkRepo.Count())
}

// TestLinkService_CreateLink_AliasInsertRace вставка, проигравшая гонку за alias, даёт конфликт
func TestLinkService_CreateLink_AliasInsertRace(t *testing.T) {
	env := setupTestService(t)
	env.linkRepo.Reserve("racy")

	_, err := env.links.CreateLink(context.Background(), models.Anonymous(), &models.CreateLinkInput{
		OriginalURL: "https://example.com",
		CustomAlias: strPtr("racy"),
	})

	assert.ErrorIs(t, err, service.ErrAliasConflict)
	assert.Equal(t, 0, env.linkRepo.Count())
}

// TestLinkService_CreateLink_WithExpiration проверяет явный срок жизни, в том числе в прошлом
func TestLinkService_CreateLink_WithExpiration(t *testing.T) {
	env := setupTestService(t)

	moscow := time.FixedZone("MSK", 3*60*60)
	expires := time.Date(2030, 1, 2, 15, 0, 0, 0, moscow)

	link, err := env.links.CreateLink(context.Background(), models.Anonymous(), &models.CreateLinkInput{
		OriginalURL: "https://example.com",
		ExpiresAt:   &expires,
	})

	require.NoError(t, err)
	require.NotNil(t, link.ExpiresAt)
	assert.Equal(t, time.UTC, link.ExpiresAt.Location())
	assert.True(t, expires.Equal(*link.ExpiresAt))

	past := time.Now().Add(-24 * time.Hour)
	_, err = env.links.CreateLink(context.Background(), models.Anonymous(), &models.CreateLinkInput{
		OriginalURL: "https://example.com",
		ExpiresAt:   &past,
	})
	assert.NoError(t, err)
}

// TestLinkService_CreateLink_InvalidAlias проверяет валидацию alias
func TestLinkService_CreateLink_InvalidAlias(t *testing.T) {
	env := setupTestService(t)

	// Невалидные alias: слишком короткий, слишком длинный, с недопустимыми символами
	for _, alias := range []string{"ab", "toolongalias123", "bad@alias"} {
		link, err := env.links.CreateLink(context.Background(), models.Anonymous(), &models.CreateLinkInput{
			OriginalURL: "https://example.com/test",
			CustomAlias: strPtr(alias),
		})

		assert.ErrorIs(t, err, service.ErrInvalidAlias, alias)
		assert.Nil(t, link)
	}
}

// TestLinkService_ValidateURL проверяет валидацию URL
func TestLinkService_ValidateURL(t *testing.T) {
	validURLs := []string{
		"https://example.com",
		"http://example.com/path",
		"https://sub.example.com/path?query=value",
	}
	invalidURLs := []string{
		"not-a-url",
		"ftp://example.com",
		"",
		"example.com",
		"https://",
	}

	env := setupTestService(t)
	ctx := context.Background()

	for _, url := range validURLs {
		link, err := env.links.CreateLink(ctx, models.Anonymous(), &models.CreateLinkInput{OriginalURL: url})
		assert.NoError(t, err, "URL должен быть валидным: %s", url)
		assert.NotNil(t, link)
	}

	for _, url := range invalidURLs {
		link, err := env.links.CreateLink(ctx, models.Anonymous(), &models.CreateLinkInput{OriginalURL: url})
		assert.ErrorIs(t, err, service.ErrInvalidURL, "URL должен быть невалидным: %s", url)
		assert.Nil(t, link)
	}
}

// TestLinkService_BlockedDomain проверяет блокировку доменов и их поддоменов
func TestLinkService_BlockedDomain(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	for _, url := range []string{"https://malware.com/bad", "https://login.phishing.com", "http://SPAM.com"} {
		_, err := env.links.CreateLink(ctx, models.Anonymous(), &models.CreateLinkInput{OriginalURL: url})
		assert.ErrorIs(t, err, service.ErrBlockedDomain, url)
	}

	_, err := env.links.CreateLink(ctx, models.Anonymous(), &models.CreateLinkInput{OriginalURL: "https://notmalware.com"})
	assert.NoError(t, err)
}

// TestLinkService_GenerateShortCode проверяет уникальность и длину кодов
func TestLinkService_GenerateShortCode(t *testing.T) {
	env := setupTestService(t)

	codes := make(map[string]bool)
	for i := 0; i < 100; i++ {
		link, err := env.links.CreateLink(context.Background(), models.Anonymous(), &models.CreateLinkInput{
			OriginalURL: fmt.Sprintf("https://example.com/test/%d", i),
		})
		require.NoError(t, err)
		assert.Len(t, link.ShortCode, 8, "Длина короткого кода должна быть 8 символов")
		assert.NotContains(t, codes, link.ShortCode, "Короткие коды должны быть уникальными")
		codes[link.ShortCode] = true
	}
}

// TestLinkService_GetLink проверяет поиск активной ссылки
func TestLinkService_GetLink(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	_, err := env.links.GetLink(ctx, "nonexistent")
	assert.ErrorIs(t, err, service.ErrNotFound)

	env.linkRepo.Put(&models.Link{
		ShortCode:   "oldlink",
		OriginalURL: "https://example.com",
		ExpiresAt:   timePtr(time.Now().UTC().Add(-time.Minute)),
	})
	_, err = env.links.GetLink(ctx, "oldlink")
	assert.ErrorIs(t, err, service.ErrExpired)
}

// TestLinkService_UpdateLink_Alias проверяет смену кода через alias
func TestLinkService_UpdateLink_Alias(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := models.Authenticated(uuid.New())

	created, err := env.links.CreateLink(ctx, owner, &models.CreateLinkInput{OriginalURL: "https://example.com"})
	require.NoError(t, err)
	oldCode := created.ShortCode

	// Прогреваем оба кэша старого кода
	_, err = env.redirects.Stats(ctx, owner, oldCode)
	require.NoError(t, err)
	require.True(t, env.cacheRepo.HasStats(oldCode))

	newExpiry := time.Now().Add(48 * time.Hour)
	updated, err := env.links.UpdateLink(ctx, owner, oldCode, &models.UpdateLinkInput{
		CustomAlias: strPtr("renamed"),
		ExpiresAt:   &newExpiry,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.ShortCode)
	assert.True(t, newExpiry.Equal(*updated.ExpiresAt))
	assert.Equal(t, time.UTC, updated.ExpiresAt.Location())

	// Старый код больше не работает, его кэш удалён
	_, err = env.redirects.Resolve(ctx, oldCode)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.False(t, env.cacheRepo.HasLink(oldCode))
	assert.False(t, env.cacheRepo.HasStats(oldCode))

	url, err := env.redirects.Resolve(ctx, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", url)
}

// TestLinkService_UpdateLink_SameAlias повторная установка текущего alias ничего не меняет
func TestLinkService_UpdateLink_SameAlias(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := models.Authenticated(uuid.New())

	_, err := env.links.CreateLink(ctx, owner, &models.CreateLinkInput{
		OriginalURL: "https://example.com",
		CustomAlias: strPtr("mine"),
	})
	require.NoError(t, err)

	updated, err := env.links.UpdateLink(ctx, owner, "mine", &models.UpdateLinkInput{CustomAlias: strPtr("mine")})
	require.NoError(t, err)
	assert.Equal(t, "mine", updated.ShortCode)
}

// TestLinkService_UpdateLink_AliasConflict alias чужой ссылки занят
func TestLinkService_UpdateLink_AliasConflict(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := models.Authenticated(uuid.New())

	_, err := env.links.CreateLink(ctx, models.Anonymous(), &models.CreateLinkInput{
		OriginalURL: "https://other.com",
		CustomAlias: strPtr("busy"),
	})
	require.NoError(t, err)
	created, err := env.links.CreateLink(ctx, owner, &models.CreateLinkInput{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	_, err = env.links.UpdateLink(ctx, owner, created.ShortCode, &models.UpdateLinkInput{CustomAlias: strPtr("busy")})
	assert.ErrorIs(t, err, service.ErrAliasConflict)

	_, err = env.linkRepo.GetByShortCode(ctx, created.ShortCode)
	assert.NoError(t, err)
}

// TestLinkService_UpdateLink_NoAliasGeneratesCode без alias ссылка получает новый сгенерированный код
func TestLinkService_UpdateLink_NoAliasGeneratesCode(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := models.Authenticated(uuid.New())

	_, err := env.links.CreateLink(ctx, owner, &models.CreateLinkInput{
		OriginalURL: "https://example.com",
		CustomAlias: strPtr("vanity"),
	})
	require.NoError(t, err)

	updated, err := env.links.UpdateLink(ctx, owner, "vanity", &models.UpdateLinkInput{})
	require.NoError(t, err)
	assert.NotEqual(t, "vanity", updated.ShortCode)
	assert.Len(t, updated.ShortCode, 8)
	assert.Nil(t, updated.CustomAlias)
	assert.True(t, env.cacheRepo.HasLink(updated.ShortCode))

	_, err = env.linkRepo.GetByShortCode(ctx, "vanity")
	assert.Error(t, err)
}

// TestLinkService_UpdateLink_ExpiryOnly смена срока без alias тоже меняет код
func TestLinkService_UpdateLink_ExpiryOnly(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := models.Authenticated(uuid.New())

	created, err := env.links.CreateLink(ctx, owner, &models.CreateLinkInput{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	newExpiry := time.Date(2032, 1, 1, 0, 0, 0, 0, time.FixedZone("MSK", 3*60*60))
	updated, err := env.links.UpdateLink(ctx, owner, created.ShortCode, &models.UpdateLinkInput{ExpiresAt: &newExpiry})
	require.NoError(t, err)

	assert.NotEqual(t, created.ShortCode, updated.ShortCode)
	assert.Len(t, updated.ShortCode, 8)
	assert.True(t, newExpiry.Equal(*updated.ExpiresAt))
	assert.Equal(t, time.UTC, updated.ExpiresAt.Location())

	_, err = env.redirects.Resolve(ctx, created.ShortCode)
	assert.ErrorIs(t, err, service.ErrNotFound)

	url, err := env.redirects.Resolve(ctx, updated.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", url)
}

// TestLinkService_Ownership проверяет Forbidden/Unauthenticated для чужих и анонимных ссылок
func TestLinkService_Ownership(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := models.Authenticated(uuid.New())
	stranger := models.Authenticated(uuid.New())

	owned, err := env.links.CreateLink(ctx, owner, &models.CreateLinkInput{OriginalURL: "https://example.com/a"})
	require.NoError(t, err)
	anon, err := env.links.CreateLink(ctx, models.Anonymous(), &models.CreateLinkInput{OriginalURL: "https://example.com/b"})
	require.NoError(t, err)

	for _, code := range []string{owned.ShortCode, anon.ShortCode} {
		_, err = env.links.UpdateLink(ctx, stranger, code, &models.UpdateLinkInput{})
		assert.ErrorIs(t, err, service.ErrForbidden)

		err = env.links.DeleteLink(ctx, stranger, code)
		assert.ErrorIs(t, err, service.ErrForbidden)

		_, err = env.redirects.Stats(ctx, stranger, code)
		assert.ErrorIs(t, err, service.ErrForbidden)
	}

	_, err = env.links.UpdateLink(ctx, models.Anonymous(), owned.ShortCode, &models.UpdateLinkInput{})
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
	err = env.links.DeleteLink(ctx, models.Anonymous(), owned.ShortCode)
	assert.ErrorIs(t, err, service.ErrUnauthenticated)

	_, err = env.links.UpdateLink(ctx, owner, "missing1", &models.UpdateLinkInput{})
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Equal(t, 2, env.linkRepo.Count())
}

// TestLinkService_DeleteLink_Success проверяет удаление ссылки и её кэша
func TestLinkService_DeleteLink_Success(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := models.Authenticated(uuid.New())

	created, err := env.links.CreateLink(ctx, owner, &models.CreateLinkInput{OriginalURL: "https://example.com"})
	require.NoError(t, err)
	_, err = env.redirects.Stats(ctx, owner, created.ShortCode)
	require.NoError(t, err)

	require.NoError(t, env.links.DeleteLink(ctx, owner, created.ShortCode))

	assert.False(t, env.cacheRepo.HasLink(created.ShortCode))
	assert.False(t, env.cacheRepo.HasStats(created.ShortCode))
	_, err = env.linkRepo.GetByShortCode(ctx, created.ShortCode)
	assert.Error(t, err)

	err = env.links.DeleteLink(ctx, owner, created.ShortCode)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

// TestLinkService_SearchLinks проверяет фильтрацию по владельцу
func TestLinkService_SearchLinks(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := models.Authenticated(uuid.New())
	stranger := models.Authenticated(uuid.New())

	const target = "https://example.com/shared"
	for i := 0; i < 2; i++ {
		_, err := env.links.CreateLink(ctx, owner, &models.CreateLinkInput{OriginalURL: target})
		require.NoError(t, err)
	}
	_, err := env.links.CreateLink(ctx, models.Anonymous(), &models.CreateLinkInput{OriginalURL: target})
	require.NoError(t, err)

	links, err := env.links.SearchLinks(ctx, owner, target)
	require.NoError(t, err)
	assert.Len(t, links, 2)

	_, err = env.links.SearchLinks(ctx, stranger, target)
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = env.links.SearchLinks(ctx, owner, "https://nowhere.com")
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = env.links.SearchLinks(ctx, models.Anonymous(), target)
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
}

// TestLinkService_ListExpired проверяет историю истёкших ссылок владельца
func TestLinkService_ListExpired(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	owner := models.Authenticated(userID)

	_, err := env.links.ListExpired(ctx, owner)
	assert.ErrorIs(t, err, service.ErrNotFound)

	env.linkRepo.Put(&models.Link{
		ShortCode:   "gone1234",
		OriginalURL: "https://example.com",
		ExpiresAt:   timePtr(time.Now().UTC().Add(-time.Hour)),
		OwnerID:     &userID,
	})
	_, err = env.historyRepo.Archive(ctx, "gone1234", time.Now().UTC())
	require.NoError(t, err)

	history, err := env.links.ListExpired(ctx, owner)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "gone1234", history[0].ShortCode)

	_, err = env.links.ListExpired(ctx, models.Anonymous())
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
}

// TestLinkService_CacheFailureIsNotFatal ошибки кэша не ломают создание ссылки
func TestLinkService_CacheFailureIsNotFatal(t *testing.T) {
	env := setupTestService(t)
	env.cacheRepo.SetError(mocks.ErrInjected)

	link, err := env.links.CreateLink(context.Background(), models.Anonymous(), &models.CreateLinkInput{
		OriginalURL: "https://example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, link.ShortCode)
}

// TestLinkService_ConcurrentAccess проверяет потокобезопасность при одновременном доступе
func TestLinkService_ConcurrentAccess(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			link, err := env.links.CreateLink(ctx, models.Anonymous(), &models.CreateLinkInput{
				OriginalURL: fmt.Sprintf("https://example.com/test%d", id),
			})
			assert.NoError(t, err)
			assert.NotNil(t, link)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, env.linkRepo.Count())
}
