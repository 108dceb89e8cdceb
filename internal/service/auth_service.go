package service

import (
	"context"
	"errors"
	"strings"

	"github.com/SergeiKhy/shortlinks/internal/auth"
	"github.com/SergeiKhy/shortlinks/internal/models"
	"github.com/SergeiKhy/shortlinks/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minPasswordLength = 6

// AuthService регистрация, выдача токенов и их проверка
type AuthService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Authenticate(ctx context.Context, token string) (models.Identity, error)
}

type authService struct {
	userRepo repository.UserRepository
	tokens   *auth.TokenManager
	hasher   *auth.PasswordHasher
	validate *validator.Validate
	logger   *zap.Logger
}

func NewAuthService(
	userRepo repository.UserRepository,
	tokens *auth.TokenManager,
	hasher *auth.PasswordHasher,
	logger *zap.Logger,
) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
		hasher:   hasher,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *authService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrInvalidPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Login проверяет пароль и выпускает bearer-токен
func (s *authService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if !s.hasher.Verify(user.HashedPassword, password) {
		return "", ErrInvalidCredentials
	}

	return s.tokens.Issue(user.ID, user.Email)
}

// Authenticate превращает токен в Identity. Пользователь должен существовать.
func (s *authService) Authenticate(ctx context.Context, token string) (models.Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return models.Anonymous(), ErrTokenExpired
		}
		return models.Anonymous(), ErrUnauthenticated
	}

	userID, err := claims.UserID()
	if err != nil {
		return models.Anonymous(), ErrUnauthenticated
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.Anonymous(), ErrUnauthenticated
		}
		return models.Anonymous(), err
	}

	return models.Authenticated(userID), nil
}
