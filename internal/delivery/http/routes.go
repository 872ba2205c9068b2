package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kitbuilder/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/categories", handler.ListCategories)

		products := v1.Group("/products")
		{
			products.GET("", handler.ListProducts)
			products.GET("/suggest", handler.SuggestProducts)
			products.GET("/:id", handler.GetProduct)
		}

		kits := v1.Group("/kits/:session")
		{
			kits.GET("", handler.GetKit)
			kits.DELETE("", handler.ResetKit)
			kits.POST("/items", handler.AddKitItem)
			kits.PUT("/items/:productId", handler.SetKitItemQuantity)
			kits.DELETE("/items/:productId", handler.RemoveKitItem)
		}

		admin := v1.Group("/admin/:collection")
		{
			admin.GET("", handler.ListDocuments)
			admin.POST("", handler.CreateDocument)
			admin.POST("/import", handler.ImportDocuments)
			admin.GET("/:id", handler.GetDocument)
			admin.PUT("/:id", handler.UpdateDocument)
			admin.DELETE("/:id", handler.DeleteDocument)
		}
	}

	return router
}
