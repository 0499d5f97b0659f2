package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/jebauza/VetFlow/docs"
)

// RegisterSwagger serves the generated OpenAPI document and its UI under /docs.
func RegisterSwagger(r *gin.Engine, publicURL string) {
	if publicURL != "" {
		docs.SwaggerInfo.Host = hostOf(publicURL)
	}
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.DocExpansion("none"),
		ginSwagger.PersistAuthorization(true),
	))
}

func hostOf(rawURL string) string {
	host := rawURL
	if _, rest, ok := strings.Cut(host, "://"); ok {
		host = rest
	}
	host, _, _ = strings.Cut(host, "/")
	return host
}
