package models

import (
	"time"

	"github.com/google/uuid"
)

// Link активная короткая ссылка
type Link struct {
	ShortCode      string     `json:"short_code"`
	CustomAlias    *string    `json:"custom_alias,omitempty"`
	OriginalURL    string     `json:"original_url"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	ClickCount     int64      `json:"click_count"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	OwnerID        *uuid.UUID `json:"owner_id,omitempty"`
}

// IsExpired ссылка без срока жизни не истекает никогда
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// OwnedBy анонимные ссылки не принадлежат никому, в том числе анонимному вызывающему
func (l *Link) OwnedBy(caller Identity) bool {
	return ownedBy(l.OwnerID, caller)
}

// LinkHistory запись об истёкшей ссылке, создаётся только сборщиком истёкших ссылок
type LinkHistory struct {
	ID          uuid.UUID  `json:"id"`
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	ExpiresAt   time.Time  `json:"expires_at"`
	ClickCount  int64      `json:"click_count"`
	CreatedAt   time.Time  `json:"created_at"`
	OwnerID     *uuid.UUID `json:"owner_id,omitempty"`
}

type CreateLinkInput struct {
	OriginalURL string
	CustomAlias *string
	ExpiresAt   *time.Time
}

type UpdateLinkInput struct {
	CustomAlias *string
	ExpiresAt   *time.Time
}

func ownedBy(owner *uuid.UUID, caller Identity) bool {
	id, ok := caller.UserID()
	return ok && owner != nil && *owner == id
}
