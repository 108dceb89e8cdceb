package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/SergeiKhy/shortlinks/internal/middleware"
	"github.com/SergeiKhy/shortlinks/internal/models"
	"github.com/SergeiKhy/shortlinks/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const qrCodeSize = 256

type LinkHandler struct {
	links     service.LinkService
	redirects service.RedirectService
	baseURL   string
	logger    *zap.Logger
}

func NewLinkHandler(links service.LinkService, redirects service.RedirectService, baseURL string, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		links:     links,
		redirects: redirects,
		baseURL:   baseURL,
		logger:    logger,
	}
}

type ShortenRequest struct {
	OriginalURL string     `json:"original_url" binding:"required"`
	CustomAlias *string    `json:"custom_alias,omitempty"`
	ExpiresAt   *Timestamp `json:"expires_at,omitempty" swaggertype:"string"`
}

type ShortenResponse struct {
	ShortURL    string     `json:"short_url"`
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

type UpdateLinkRequest struct {
	CustomAlias *string    `json:"custom_alias,omitempty"`
	ExpiresAt   *Timestamp `json:"expires_at,omitempty" swaggertype:"string"`
}

type UpdateLinkResponse struct {
	Message     string     `json:"message"`
	NewShortURL string     `json:"new_short_url"`
	OriginalURL string     `json:"original_url"`
	CustomAlias *string    `json:"custom_alias"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

type LinkResponse struct {
	ShortCode      string     `json:"short_code"`
	ShortURL       string     `json:"short_url"`
	OriginalURL    string     `json:"original_url"`
	CustomAlias    *string    `json:"custom_alias"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at"`
	ClickCount     int64      `json:"click_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (h *LinkHandler) shortURL(code string) string {
	return h.baseURL + "/" + code
}

// shortCode код из пути без пробелов по краям
func shortCode(c *gin.Context) string {
	return strings.TrimSpace(c.Param("code"))
}

// Shorten godoc
// @Summary Create a short link
// @Description Shorten a URL. Authenticated callers become the owner of the link.
// @Tags links
// @Accept json
// @Produce json
// @Param request body ShortenRequest true "Link creation request"
// @Success 200 {object} ShortenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Security BearerAuth
// @Router /links/shorten [post]
func (h *LinkHandler) Shorten(c *gin.Context) {
	var req ShortenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		badRequest(c, err)
		return
	}

	input := &models.CreateLinkInput{
		OriginalURL: req.OriginalURL,
		CustomAlias: req.CustomAlias,
		ExpiresAt:   req.ExpiresAt.ptr(),
	}

	link, err := h.links.CreateLink(c.Request.Context(), middleware.IdentityFromContext(c), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ShortenResponse{
		ShortURL:    h.shortURL(link.ShortCode),
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		ExpiresAt:   link.ExpiresAt,
	})
}

// Redirect godoc
// @Summary Redirect to original URL
// @Description Redirect to the original URL by short code and count the click
// @Tags links
// @Param short_code path string true "Short code"
// @Success 307
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /{short_code} [get]
func (h *LinkHandler) Redirect(c *gin.Context) {
	originalURL, err := h.redirects.Resolve(c.Request.Context(), shortCode(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, originalURL)
}

// UpdateLink godoc
// @Summary Update a short link
// @Description Change alias or expiry. The short code always changes: to custom_alias when given, otherwise to a freshly generated code.
// @Tags links
// @Accept json
// @Produce json
// @Param short_code path string true "Short code"
// @Param request body UpdateLinkRequest true "Link update request"
// @Success 200 {object} UpdateLinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /links/{short_code} [put]
func (h *LinkHandler) UpdateLink(c *gin.Context) {
	var req UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	input := &models.UpdateLinkInput{
		CustomAlias: req.CustomAlias,
		ExpiresAt:   req.ExpiresAt.ptr(),
	}

	link, err := h.links.UpdateLink(c.Request.Context(), middleware.IdentityFromContext(c), shortCode(c), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, UpdateLinkResponse{
		Message:     "Link updated successfully",
		NewShortURL: h.shortURL(link.ShortCode),
		OriginalURL: link.OriginalURL,
		CustomAlias: link.CustomAlias,
		ExpiresAt:   link.ExpiresAt,
	})
}

// DeleteLink godoc
// @Summary Delete a short link
// @Tags links
// @Produce json
// @Param short_code path string true "Short code"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /links/{short_code} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	if err := h.links.DeleteLink(c.Request.Context(), middleware.IdentityFromContext(c), shortCode(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Link deleted successfully"})
}

// GetStats godoc
// @Summary Get click statistics for a short link
// @Tags links
// @Produce json
// @Param short_code path string true "Short code"
// @Success 200 {object} models.LinkStats
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /links/{short_code}/stats [get]
func (h *LinkHandler) GetStats(c *gin.Context) {
	stats, err := h.redirects.Stats(c.Request.Context(), middleware.IdentityFromContext(c), shortCode(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Search godoc
// @Summary Find own links by original URL
// @Tags links
// @Produce json
// @Param original_url query string true "Original URL"
// @Success 200 {array} LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /links/search [get]
func (h *LinkHandler) Search(c *gin.Context) {
	originalURL := c.Query("original_url")
	if originalURL == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "original_url query parameter is required",
		})
		return
	}

	links, err := h.links.SearchLinks(c.Request.Context(), middleware.IdentityFromContext(c), originalURL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response := make([]LinkResponse, 0, len(links))
	for _, link := range links {
		response = append(response, LinkResponse{
			ShortCode:      link.ShortCode,
			ShortURL:       h.shortURL(link.ShortCode),
			OriginalURL:    link.OriginalURL,
			CustomAlias:    link.CustomAlias,
			CreatedAt:      link.CreatedAt,
			ExpiresAt:      link.ExpiresAt,
			ClickCount:     link.ClickCount,
			LastAccessedAt: link.LastAccessedAt,
		})
	}

	c.JSON(http.StatusOK, response)
}

// ListExpired godoc
// @Summary List own expired links
// @Tags links
// @Produce json
// @Success 200 {array} models.LinkHistory
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /links/expired [get]
func (h *LinkHandler) ListExpired(c *gin.Context) {
	history, err := h.links.ListExpired(c.Request.Context(), middleware.IdentityFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

// QRCode godoc
// @Summary QR code of a short link
// @Tags links
// @Produce png
// @Param short_code path string true "Short code"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /links/{short_code}/qr [get]
func (h *LinkHandler) QRCode(c *gin.Context) {
	link, err := h.links.GetLink(c.Request.Context(), shortCode(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	png, err := qrcode.Encode(h.shortURL(link.ShortCode), qrcode.Medium, qrCodeSize)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
