package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"rentora_backend/internal/handlers"
	"rentora_backend/internal/logger"
)

// RegisterRoutes регистрирует все HTTP маршруты.
func RegisterRoutes(ginRouter *gin.Engine, appHandlers *handlers.AppHandlers, db *gorm.DB) {
	ginRouter.GET("/health", healthCheck(db))

	api := ginRouter.Group("/api/v1")
	{
		appHandlers.CallbackHandler.RegisterRoutes(api)
		appHandlers.PaymentHandler.RegisterRoutes(api)
		appHandlers.LoyaltyHandler.RegisterRoutes(api)
		appHandlers.InvoiceHandler.RegisterRoutes(api)
		appHandlers.AdminHandler.RegisterRoutes(api)
	}
	logger.Info("HTTP routes registered", "count", len(ginRouter.Routes()))
}

func healthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
