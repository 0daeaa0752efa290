package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/sharefetch-go/api/handlers"
	"github.com/yourusername/sharefetch-go/api/middleware"
	"github.com/yourusername/sharefetch-go/internal/app"
	"github.com/yourusername/sharefetch-go/internal/infrastructure"
)

// SetupRouter sets up the HTTP router
func SetupRouter(engine *app.Engine, registry *infrastructure.Registry, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler()
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		acquireHandler := handlers.NewAcquireHandler(engine, log)
		v1.POST("/acquire", acquireHandler.Acquire)
		v1.POST("/detect", acquireHandler.Detect)

		platformHandler := handlers.NewPlatformHandler(registry)
		v1.GET("/platforms", platformHandler.List)
	}

	return router
}
