package service

import "errors"

// Ошибки сервиса
var (
	ErrNotFound        = errors.New("short link not found")
	ErrExpired         = errors.New("link has expired")
	ErrForbidden       = errors.New("not authorized to access this link")
	ErrAliasConflict   = errors.New("custom alias is already taken")
	ErrUnauthenticated = errors.New("could not validate credentials")
	ErrTokenExpired    = errors.New("token has expired")

	ErrInvalidURL         = errors.New("invalid URL")
	ErrInvalidAlias       = errors.New("invalid custom alias")
	ErrBlockedDomain      = errors.New("domain is blacklisted")
	ErrCodeSpaceExhausted = errors.New("could not allocate a free short code")

	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidPassword    = errors.New("password is too short")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
