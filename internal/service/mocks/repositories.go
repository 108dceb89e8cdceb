package mocks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/SergeiKhy/shortlinks/internal/models"
	"github.com/SergeiKhy/shortlinks/internal/repository"
	"github.com/google/uuid"
)

var ErrInjected = errors.New("injected failure")

// MockLinkRepository implements repository.LinkRepository and repository.ClickRepository for testing
type MockLinkRepository struct {
	mu    sync.RWMutex
	links map[string]*models.Link
	// taken коды, которые Exists считает свободными, а Create отклоняет (гонка вставки)
	taken map[string]bool
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links: make(map[string]*models.Link),
		taken: make(map[string]bool),
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[link.ShortCode]; exists || m.taken[link.ShortCode] {
		return repository.ErrCodeExists
	}

	m.links[link.ShortCode] = copyLink(link)
	return nil
}

func (m *MockLinkRepository) GetByShortCode(ctx context.Context, code string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.links[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	return copyLink(link), nil
}

func (m *MockLinkRepository) Exists(ctx context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.links[code]
	return exists, nil
}

func (m *MockLinkRepository) Update(ctx context.Context, oldCode string, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[oldCode]; !exists {
		return repository.ErrLinkNotFound
	}
	if link.ShortCode != oldCode {
		if _, exists := m.links[link.ShortCode]; exists || m.taken[link.ShortCode] {
			return repository.ErrCodeExists
		}
		delete(m.links, oldCode)
	}

	m.links[link.ShortCode] = copyLink(link)
	return nil
}

func (m *MockLinkRepository) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[code]; !exists {
		return repository.ErrLinkNotFound
	}
	delete(m.links, code)
	return nil
}

func (m *MockLinkRepository) FindByOriginalURL(ctx context.Context, originalURL string) ([]models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Link
	for _, link := range m.links {
		if link.OriginalURL == originalURL {
			result = append(result, *copyLink(link))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ShortCode < result[j].ShortCode })
	return result, nil
}

func (m *MockLinkRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Link
	for _, link := range m.links {
		if link.ExpiresAt != nil && link.ExpiresAt.Before(before) {
			result = append(result, *copyLink(link))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiresAt.Before(*result[j].ExpiresAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// IncrementClicks implements repository.ClickRepository
func (m *MockLinkRepository) IncrementClicks(ctx context.Context, code string, at time.Time) (*models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[code]
	if !exists || link.IsExpired(at) {
		return nil, repository.ErrLinkNotFound
	}

	link.ClickCount++
	accessed := at
	link.LastAccessedAt = &accessed
	return copyLink(link), nil
}

// Put кладёт ссылку напрямую, минуя проверки
func (m *MockLinkRepository) Put(link *models.Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[link.ShortCode] = copyLink(link)
}

// Reserve помечает код занятым для Create/Update, но не для Exists
func (m *MockLinkRepository) Reserve(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taken[code] = true
}

// remove используется MockHistoryRepository внутри одной "транзакции"
func (m *MockLinkRepository) remove(code string, before time.Time) (*models.Link, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[code]
	if !exists || !link.IsExpired(before) {
		return nil, false
	}
	delete(m.links, code)
	return copyLink(link), true
}

func (m *MockLinkRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.links)
}

func (m *MockLinkRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = make(map[string]*models.Link)
	m.taken = make(map[string]bool)
}

// MockHistoryRepository implements repository.HistoryRepository for testing
type MockHistoryRepository struct {
	mu      sync.RWMutex
	links   *MockLinkRepository
	history []models.LinkHistory
	failFor map[string]error
	panics  bool
}

func NewMockHistoryRepository(links *MockLinkRepository) *MockHistoryRepository {
	return &MockHistoryRepository{
		links:   links,
		failFor: make(map[string]error),
	}
}

func (m *MockHistoryRepository) Archive(ctx context.Context, code string, archivedAt time.Time) (*models.LinkHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.panics {
		panic("archive panicked")
	}
	if err, ok := m.failFor[code]; ok {
		return nil, err
	}

	link, ok := m.links.remove(code, archivedAt)
	if !ok {
		return nil, repository.ErrLinkNotFound
	}

	entry := models.LinkHistory{
		ID:          uuid.New(),
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		ExpiresAt:   *link.ExpiresAt,
		ClickCount:  link.ClickCount,
		CreatedAt:   archivedAt,
		OwnerID:     link.OwnerID,
	}
	m.history = append(m.history, entry)
	return &entry, nil
}

func (m *MockHistoryRepository) ListByOwner(ctx context.Context, userID uuid.UUID) ([]models.LinkHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.LinkHistory
	for _, entry := range m.history {
		if entry.OwnerID != nil && *entry.OwnerID == userID {
			result = append(result, entry)
		}
	}
	return result, nil
}

// FailFor заставляет Archive возвращать err для кода
func (m *MockHistoryRepository) FailFor(code string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor[code] = err
}

// SetPanics заставляет Archive паниковать
func (m *MockHistoryRepository) SetPanics(panics bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics = panics
}

func (m *MockHistoryRepository) All() []models.LinkHistory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.LinkHistory(nil), m.history...)
}

// MockUserRepository implements repository.UserRepository for testing
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*models.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[uuid.UUID]*models.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	u := *user
	m.users[user.ID] = &u
	return nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			user := *u
			return &user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, exists := m.users[id]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	user := *u
	return &user, nil
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu    sync.RWMutex
	links map[string]models.CachedLink
	stats map[string]models.CachedStats
	err   error
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		links: make(map[string]models.CachedLink),
		stats: make(map[string]models.CachedStats),
	}
}

func (m *MockCacheRepository) GetLink(ctx context.Context, code string) (*models.CachedLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}
	link, exists := m.links[code]
	if !exists {
		return nil, repository.ErrCacheMiss
	}
	return &link, nil
}

func (m *MockCacheRepository) SetLink(ctx context.Context, code string, link *models.CachedLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.links[code] = *link
	return nil
}

func (m *MockCacheRepository) DeleteLink(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	delete(m.links, code)
	return nil
}

func (m *MockCacheRepository) GetStats(ctx context.Context, code string) (*models.CachedStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}
	stats, exists := m.stats[code]
	if !exists {
		return nil, repository.ErrCacheMiss
	}
	return &stats, nil
}

func (m *MockCacheRepository) SetStats(ctx context.Context, code string, stats *models.CachedStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.stats[code] = *stats
	return nil
}

func (m *MockCacheRepository) DeleteStats(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	delete(m.stats, code)
	return nil
}

// SetError заставляет все операции кэша возвращать err; nil отключает сбой
func (m *MockCacheRepository) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockCacheRepository) HasLink(code string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.links[code]
	return exists
}

func (m *MockCacheRepository) HasStats(code string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.stats[code]
	return exists
}

func (m *MockCacheRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = make(map[string]models.CachedLink)
	m.stats = make(map[string]models.CachedStats)
	m.err = nil
}

func copyLink(link *models.Link) *models.Link {
	c := *link
	return &c
}
