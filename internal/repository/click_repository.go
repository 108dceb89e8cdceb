package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/shortlinks/internal/models"
	"github.com/jackc/pgx/v5"
)

type ClickRepository interface {
	// IncrementClicks атомарно увеличивает счётчик переходов неистёкшей ссылки
	// и возвращает обновлённую строку.
	IncrementClicks(ctx context.Context, code string, at time.Time) (*models.Link, error)
}

type clickRepository struct {
	db *PostgresDB
}

func NewClickRepository(db *PostgresDB) ClickRepository {
	return &clickRepository{db: db}
}

func (r *clickRepository) IncrementClicks(ctx context.Context, code string, at time.Time) (*models.Link, error) {
	// Инкремент внутри одного UPDATE: параллельные переходы не теряют обновления
	query := `
		UPDATE links
		SET click_count = click_count + 1, last_accessed_at = $2
		WHERE short_code = $1 AND (expires_at IS NULL OR expires_at >= $2)
		RETURNING ` + linkColumns

	link, err := scanLink(r.db.Pool.QueryRow(ctx, query, code, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to record click: %w", err)
	}

	return link, nil
}
