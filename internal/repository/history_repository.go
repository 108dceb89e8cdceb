package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/shortlinks/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type HistoryRepository interface {
	// Archive в одной транзакции удаляет истёкшую ссылку и добавляет запись в историю.
	// Если ссылка уже удалена или её срок продлён, возвращает ErrLinkNotFound.
	Archive(ctx context.Context, code string, archivedAt time.Time) (*models.LinkHistory, error)
	ListByOwner(ctx context.Context, userID uuid.UUID) ([]models.LinkHistory, error)
}

type historyRepository struct {
	db *PostgresDB
}

func NewHistoryRepository(db *PostgresDB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Archive(ctx context.Context, code string, archivedAt time.Time) (*models.LinkHistory, error) {
	var entry *models.LinkHistory

	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		deleteQuery := `DELETE FROM links WHERE short_code = $1 AND expires_at < $2 RETURNING ` + linkColumns

		link, err := scanLink(tx.QueryRow(ctx, deleteQuery, code, archivedAt))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrLinkNotFound
			}
			return fmt.Errorf("failed to delete expired link: %w", err)
		}

		entry = &models.LinkHistory{
			ID:          uuid.New(),
			ShortCode:   link.ShortCode,
			OriginalURL: link.OriginalURL,
			ExpiresAt:   *link.ExpiresAt,
			ClickCount:  link.ClickCount,
			CreatedAt:   archivedAt,
			OwnerID:     link.OwnerID,
		}

		insertQuery := `
			INSERT INTO link_history (id, short_code, original_url, expires_at, click_count, created_at, user_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		_, err = tx.Exec(ctx, insertQuery,
			toPgUUID(&entry.ID),
			entry.ShortCode,
			entry.OriginalURL,
			entry.ExpiresAt,
			entry.ClickCount,
			entry.CreatedAt,
			toPgUUID(entry.OwnerID),
		)
		if err != nil {
			return fmt.Errorf("failed to insert link history: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *historyRepository) ListByOwner(ctx context.Context, userID uuid.UUID) ([]models.LinkHistory, error) {
	query := `
		SELECT id, short_code, original_url, expires_at, click_count, created_at, user_id
		FROM link_history
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, toPgUUID(&userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list link history: %w", err)
	}
	defer rows.Close()

	var history []models.LinkHistory
	for rows.Next() {
		var (
			entry     models.LinkHistory
			id, owner pgtype.UUID
		)
		err := rows.Scan(
			&id,
			&entry.ShortCode,
			&entry.OriginalURL,
			&entry.ExpiresAt,
			&entry.ClickCount,
			&entry.CreatedAt,
			&owner,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link history: %w", err)
		}
		entry.ID = uuid.UUID(id.Bytes)
		entry.OwnerID = fromPgUUID(owner)
		history = append(history, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating link history: %w", err)
	}

	return history, nil
}
