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

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrCodeExists   = errors.New("short code already exists")
)

const linkColumns = `short_code, custom_alias, original_url, created_at, updated_at,
	last_accessed_at, click_count, expires_at, user_id`

type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetByShortCode(ctx context.Context, code string) (*models.Link, error)
	Exists(ctx context.Context, code string) (bool, error)
	// Update сохраняет изменения ссылки, найденной по oldCode. Если link.ShortCode
	// отличается от oldCode, первичный ключ строки меняется.
	Update(ctx context.Context, oldCode string, link *models.Link) error
	Delete(ctx context.Context, code string) error
	FindByOriginalURL(ctx context.Context, originalURL string) ([]models.Link, error)
	ListExpired(ctx context.Context, before time.Time, limit int) ([]models.Link, error)
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (short_code, custom_alias, original_url, created_at, updated_at,
			click_count, expires_at, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		link.ShortCode,
		link.CustomAlias,
		link.OriginalURL,
		link.CreatedAt,
		link.UpdatedAt,
		link.ClickCount,
		link.ExpiresAt,
		toPgUUID(link.OwnerID),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

func (r *linkRepository) GetByShortCode(ctx context.Context, code string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`

	link, err := scanLink(r.db.Pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *linkRepository) Exists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM links WHERE short_code = $1)`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check short code: %w", err)
	}

	return exists, nil
}

func (r *linkRepository) Update(ctx context.Context, oldCode string, link *models.Link) error {
	query := `
		UPDATE links
		SET short_code = $2, custom_alias = $3, expires_at = $4, updated_at = $5
		WHERE short_code = $1
	`

	result, err := r.db.Pool.Exec(ctx, query,
		oldCode,
		link.ShortCode,
		link.CustomAlias,
		link.ExpiresAt,
		link.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to update link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *linkRepository) Delete(ctx context.Context, code string) error {
	query := `DELETE FROM links WHERE short_code = $1`

	result, err := r.db.Pool.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *linkRepository) FindByOriginalURL(ctx context.Context, originalURL string) ([]models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE original_url = $1 ORDER BY created_at`

	rows, err := r.db.Pool.Query(ctx, query, originalURL)
	if err != nil {
		return nil, fmt.Errorf("failed to search links: %w", err)
	}

	return collectLinks(rows)
}

func (r *linkRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]models.Link, error) {
	query := `SELECT ` + linkColumns + `
		FROM links
		WHERE expires_at < $1
		ORDER BY expires_at
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired links: %w", err)
	}

	return collectLinks(rows)
}

func collectLinks(rows pgx.Rows) ([]models.Link, error) {
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, *link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

func scanLink(row pgx.Row) (*models.Link, error) {
	var (
		link  models.Link
		owner pgtype.UUID
	)

	err := row.Scan(
		&link.ShortCode,
		&link.CustomAlias,
		&link.OriginalURL,
		&link.CreatedAt,
		&link.UpdatedAt,
		&link.LastAccessedAt,
		&link.ClickCount,
		&link.ExpiresAt,
		&owner,
	)
	if err != nil {
		return nil, err
	}

	link.OwnerID = fromPgUUID(owner)
	return &link, nil
}

func toPgUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: [16]byte(*id), Valid: true}
}

func fromPgUUID(id pgtype.UUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	u := uuid.UUID(id.Bytes)
	return &u
}
