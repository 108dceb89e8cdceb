package handler

import (
	"errors"
	"net/http"

	"github.com/SergeiKhy/shortlinks/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrExpired, http.StatusGone, "expired"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrAliasConflict, http.StatusBadRequest, "alias_conflict"},
	{service.ErrInvalidURL, http.StatusBadRequest, "invalid_url"},
	{service.ErrInvalidAlias, http.StatusBadRequest, "invalid_alias"},
	{service.ErrBlockedDomain, http.StatusBadRequest, "blocked_domain"},
	{service.ErrEmailTaken, http.StatusBadRequest, "email_taken"},
	{service.ErrInvalidEmail, http.StatusBadRequest, "invalid_email"},
	{service.ErrInvalidPassword, http.StatusBadRequest, "invalid_password"},
	{service.ErrUnauthenticated, http.StatusUnauthorized, "not_authenticated"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{service.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
	{service.ErrCodeSpaceExhausted, http.StatusServiceUnavailable, "code_space_exhausted"},
}

// respondError отображает ошибку сервиса в HTTP ответ; неизвестные ошибки дают 500
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status == http.StatusUnauthorized {
				c.Header("WWW-Authenticate", "Bearer")
			}
			c.JSON(m.status, ErrorResponse{Error: m.code, Message: err.Error()})
			return
		}
	}

	logger.Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Internal server error",
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: err.Error(),
	})
}
