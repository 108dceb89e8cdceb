package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/SergeiKhy/shortlinks/internal/models"
	"github.com/SergeiKhy/shortlinks/internal/service"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// Authenticator превращает bearer-токен в Identity
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Identity, error)
}

// BearerAuth middleware для аутентификации по JWT в заголовке Authorization
type BearerAuth struct {
	auth Authenticator
}

func NewBearerAuth(auth Authenticator) *BearerAuth {
	return &BearerAuth{auth: auth}
}

// Required отклоняет запросы без валидного токена
func (b *BearerAuth) Required() gin.HandlerFunc {
	return b.middleware(false)
}

// Optional пропускает запросы без токена как анонимные.
// Переданный, но невалидный токен всё равно даёт 401.
func (b *BearerAuth) Optional() gin.HandlerFunc {
	return b.middleware(true)
}

func (b *BearerAuth) middleware(optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			if optional {
				c.Set(identityKey, models.Anonymous())
				c.Next()
				return
			}
			unauthorized(c, "not_authenticated", "Not authenticated")
			return
		}

		identity, err := b.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrTokenExpired):
				unauthorized(c, "token_expired", "Token has expired")
			case errors.Is(err, service.ErrUnauthenticated):
				unauthorized(c, "invalid_token", "Could not validate credentials")
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   "internal_error",
					"message": "Internal server error",
				})
			}
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFromContext Identity текущего запроса; без auth middleware это аноним
func IdentityFromContext(c *gin.Context) models.Identity {
	if v, exists := c.Get(identityKey); exists {
		if identity, ok := v.(models.Identity); ok {
			return identity
		}
	}
	return models.Anonymous()
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context, code, message string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   code,
		"message": message,
	})
}
