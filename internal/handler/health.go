package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const serviceName = "url-shortener"

// HealthCheck godoc
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
	})
}
