package handler

import (
	"time"

	"github.com/SergeiKhy/shortlinks/internal/middleware"
	"github.com/SergeiKhy/shortlinks/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterDeps зависимости HTTP слоя
type RouterDeps struct {
	Links       service.LinkService
	Redirects   service.RedirectService
	Auth        service.AuthService
	RateLimiter *middleware.RateLimiter
	BaseURL     string
	Logger      *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Middleware для логгирования
	router.Use(requestLogger(deps.Logger))

	// Rate limiting для всех запросов
	router.Use(deps.RateLimiter.Middleware())

	bearer := middleware.NewBearerAuth(deps.Auth)
	linkHandler := NewLinkHandler(deps.Links, deps.Redirects, deps.BaseURL, deps.Logger)
	authHandler := NewAuthHandler(deps.Auth, deps.Logger)

	router.GET("/health", HealthCheck)
	router.POST("/register", authHandler.Register)
	router.POST("/token", authHandler.Token)

	links := router.Group("/links")
	{
		links.POST("/shorten", bearer.Optional(), linkHandler.Shorten)
		links.GET("/:code/qr", linkHandler.QRCode)

		protected := links.Group("", bearer.Required())
		protected.GET("/search", linkHandler.Search)
		protected.GET("/expired", linkHandler.ListExpired)
		protected.PUT("/:code", linkHandler.UpdateLink)
		protected.DELETE("/:code", linkHandler.DeleteLink)
		protected.GET("/:code/stats", linkHandler.GetStats)
	}

	// Swagger документация (без аутентификации)
	AddSwaggerRoutes(router)

	// Редирект (корневой путь)
	router.GET("/:code", linkHandler.Redirect)

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
