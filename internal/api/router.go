package api

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"jobportal/internal/api/middleware"
	"jobportal/internal/config"
	"jobportal/internal/metrics"
)

// NewRouter 构建 Gin 路由引擎并挂载全局中间件与探针端点。
func NewRouter(cfg *config.Config, logger *slog.Logger, checker ReadinessChecker) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CorrelationID(),
		middleware.RequestLogger(logger),
		metrics.GinMiddleware(),
	)

	if origins := cfg.API.Origins(); len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Correlation-ID"},
			ExposeHeaders:    []string{"X-Correlation-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	healthHandler := NewHealthHandler(checker)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", metrics.Handler())

	return router
}
