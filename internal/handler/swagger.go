package handler

import (
	"net/http"

	"github.com/SergeiKhy/shortlinks/docs"
	"github.com/gin-gonic/gin"
)

// SwaggerJSON serves the Swagger JSON specification
// @Summary Swagger JSON
// @Description Swagger API specification
// @Tags documentation
// @Produce json
// @Success 200 {string} string "Swagger JSON specification"
// @Router /docs/swagger.json [get]
func SwaggerJSON(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", docs.SwaggerJSON)
}

// AddSwaggerRoutes документ встроен в бинарник, рабочий каталог не важен
func AddSwaggerRoutes(router *gin.Engine) {
	router.GET("/docs/swagger.json", SwaggerJSON)

	// Also serve at /swagger.json for compatibility
	router.GET("/swagger.json", SwaggerJSON)
}
