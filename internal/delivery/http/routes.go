package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/imagetrace/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log zerolog.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.Server.MaxUploadBytes

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(NewIPRateLimiter(cfg.RateLimit.PerIP)))
	{
		analyses := v1.Group("/analyses")
		{
			analyses.POST("", handler.CreateAnalysis)
			analyses.GET("/:id", handler.GetAnalysis)
			analyses.PATCH("/:id/options", handler.UpdateOptions)
			analyses.DELETE("/:id/options", handler.ClearOptions)
			analyses.POST("/:id/more", handler.LoadMore)
			analyses.POST("/:id/refresh", handler.RefreshAnalysis)
			analyses.GET("/:id/state", handler.GetState)
			analyses.PUT("/:id/state", handler.PutState)
			analyses.GET("/:id/groups", handler.GetGroups)
			analyses.POST("/:id/saved", handler.ToggleSaved)
			analyses.POST("/:id/reviewed", handler.MarkReviewed)
			analyses.GET("/:id/export.csv", handler.ExportCSV)
		}

		v1.POST("/beta-signups", handler.CreateBetaSignup)
		v1.GET("/stats", handler.GetStats)
	}

	return router
}
