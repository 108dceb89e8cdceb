package models

import (
	"time"

	"github.com/google/uuid"
)

// LinkStats статистика переходов, отдаётся клиенту как есть
type LinkStats struct {
	OriginalURL    string     `json:"original_url"`
	CreatedAt      time.Time  `json:"created_at"`
	ClickCount     int64      `json:"click_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at"`
}

// CachedStats значение ключа stats:{code}. Владелец хранится рядом со статистикой,
// чтобы проверка прав не требовала чтения из БД при попадании в кэш.
type CachedStats struct {
	LinkStats
	OwnerID *uuid.UUID `json:"owner_id,omitempty"`
}

func (s *CachedStats) OwnedBy(caller Identity) bool {
	return ownedBy(s.OwnerID, caller)
}

// NewCachedStats собирает запись кэша статистики из строки ссылки
func NewCachedStats(link *Link) *CachedStats {
	return &CachedStats{
		LinkStats: LinkStats{
			OriginalURL:    link.OriginalURL,
			CreatedAt:      link.CreatedAt,
			ClickCount:     link.ClickCount,
			LastAccessedAt: link.LastAccessedAt,
		},
		OwnerID: link.OwnerID,
	}
}

// CachedLink значение ключа link:{code}
type CachedLink struct {
	OriginalURL string `json:"original_url"`
}

// StatsEvent задание на обновление stats:{code} после редиректа.
// Статистику воркер читает из БД в момент записи.
type StatsEvent struct {
	ShortCode string
}
