package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/shortlinks/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already registered")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type userRepository struct {
	db *PostgresDB
}

func NewUserRepository(db *PostgresDB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, email, hashed_password) VALUES ($1, $2, $3)`

	_, err := r.db.Pool.Exec(ctx, query, toPgUUID(&user.ID), user.Email, user.HashedPassword)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, hashed_password FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT id, email, hashed_password FROM users WHERE id = $1`
	return r.getOne(ctx, query, toPgUUID(&id))
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var (
		user models.User
		id   pgtype.UUID
	)

	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(&id, &user.Email, &user.HashedPassword)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.ID = uuid.UUID(id.Bytes)
	return &user, nil
}
