package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/localrag/localrag/internal/middleware"
)

type RouterDeps struct {
	Documents *DocumentHandler
	Queries   *QueryHandler
	Health    *HealthHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", deps.Health.Health)
	api.GET("/health/detailed", deps.Health.Detailed)
	api.GET("/health/status", deps.Health.Status)

	limited := api.Group("")
	limited.Use(middleware.RateLimit(time.Second))
	limited.POST("/documents", deps.Documents.Upload)
	limited.POST("/documents/:id/retry", deps.Documents.Retry)
	limited.POST("/query", deps.Queries.Query)

	api.GET("/documents", deps.Documents.List)
	api.GET("/documents/stats/summary", deps.Documents.Stats)
	api.GET("/documents/:id", deps.Documents.Get)
	api.GET("/documents/:id/download", deps.Documents.Download)
	api.PUT("/documents/:id", deps.Documents.Update)
	api.DELETE("/documents/:id", deps.Documents.Delete)
	api.POST("/documents/reset", deps.Documents.Reset)

	api.GET("/query/stats/index", deps.Queries.IndexStats)
}
