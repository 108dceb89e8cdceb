package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/SergeiKhy/shortlinks/internal/config"
	"github.com/SergeiKhy/shortlinks/internal/repository"
)

// Константы генерации кодов
const (
	defaultCodeLength  = 8
	maxCodeLength      = 10 // links.short_code VARCHAR(10)
	defaultMaxAttempts = 10
	minAliasLength     = 4
	maxAliasLength     = maxCodeLength
	charset            = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var aliasPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// reservedAliases первые сегменты путей роутера: такой код перекрыт маршрутом и не редиректит
var reservedAliases = map[string]struct{}{
	"health":   {},
	"register": {},
	"token":    {},
	"links":    {},
	"docs":     {},
	"swagger":  {},
}

// Allocator выдаёт короткие коды, не занятые активными ссылками.
// Проверка "существует -> вставка" не атомарна: окончательную уникальность
// гарантирует первичный ключ таблицы links.
type Allocator struct {
	links       repository.LinkRepository
	codeLength  int
	maxAttempts int
	randomCode  func(length int) (string, error)
}

func NewAllocator(links repository.LinkRepository, cfg config.LinksConfig) *Allocator {
	a := &Allocator{
		links:       links,
		codeLength:  cfg.CodeLength,
		maxAttempts: cfg.MaxAllocAttempts,
		randomCode:  randomCode,
	}
	if a.codeLength <= 0 || a.codeLength > maxCodeLength {
		a.codeLength = defaultCodeLength
	}
	if a.maxAttempts <= 0 {
		a.maxAttempts = defaultMaxAttempts
	}
	return a
}

// MaxAttempts бюджет попыток генерации, используется и при повторе вставки
func (a *Allocator) MaxAttempts() int {
	return a.maxAttempts
}

// Allocate резервирует alias, если он задан, иначе генерирует случайный код
func (a *Allocator) Allocate(ctx context.Context, alias *string) (string, error) {
	if alias != nil && *alias != "" {
		return a.ReserveAlias(ctx, *alias)
	}
	return a.Generate(ctx)
}

// ReserveAlias проверяет формат и занятость пользовательского кода. Повторов нет:
// при конфликте вызывающий выбирает другой alias.
func (a *Allocator) ReserveAlias(ctx context.Context, alias string) (string, error) {
	if err := validateAlias(alias); err != nil {
		return "", err
	}

	exists, err := a.links.Exists(ctx, alias)
	if err != nil {
		return "", err
	}
	if exists {
		return "", ErrAliasConflict
	}

	return alias, nil
}

// Generate генерирует код фиксированной длины, повторяя при коллизии
// не более maxAttempts раз.
func (a *Allocator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < a.maxAttempts; i++ {
		code, err := a.randomCode(a.codeLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}

		exists, err := a.links.Exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}

func validateAlias(alias string) error {
	if len(alias) < minAliasLength || len(alias) > maxAliasLength {
		return ErrInvalidAlias
	}
	if !aliasPattern.MatchString(alias) {
		return ErrInvalidAlias
	}
	if _, ok := reservedAliases[strings.ToLower(alias)]; ok {
		return ErrInvalidAlias
	}
	return nil
}

// randomCode случайная строка из charset через crypto/rand
func randomCode(length int) (string, error) {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[num.Int64()]
	}
	return string(result), nil
}
