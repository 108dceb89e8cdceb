package models

import "github.com/google/uuid"

// Identity вызывающая сторона запроса: либо аутентифицированный пользователь,
// либо аноним. Нулевое значение соответствует анониму.
type Identity struct {
	userID        uuid.UUID
	authenticated bool
}

func Anonymous() Identity {
	return Identity{}
}

func Authenticated(userID uuid.UUID) Identity {
	return Identity{userID: userID, authenticated: true}
}

// UserID возвращает идентификатор пользователя и false для анонима
func (i Identity) UserID() (uuid.UUID, bool) {
	return i.userID, i.authenticated
}

func (i Identity) IsAnonymous() bool {
	return !i.authenticated
}

// OwnerID значение для колонки user_id: nil для анонима
func (i Identity) OwnerID() *uuid.UUID {
	if !i.authenticated {
		return nil
	}
	id := i.userID
	return &id
}

func (i Identity) String() string {
	if !i.authenticated {
		return "anonymous"
	}
	return i.userID.String()
}
