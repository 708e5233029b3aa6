package routes

import (
	"github.com/gin-gonic/gin"

	"device-management-service/internal/app/controllers"
	"device-management-service/internal/app/middleware"
	"device-management-service/internal/domain/services/container"
)

// SetupRouter builds the configured gin engine
func SetupRouter(serviceContainer *container.ServiceContainer) *gin.Engine {
	if !serviceContainer.GetConfig().Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	registerRoutes(r, serviceContainer)
	return r
}

// registerRoutes configures all API routes
func registerRoutes(r *gin.Engine, serviceContainer *container.ServiceContainer) {
	// Liveness and service info, no auth.
	r.GET("/health", controllers.HandleHealthFunc(serviceContainer, "health"))
	r.GET("/", controllers.HandleHealthFunc(serviceContainer, "info"))

	api := r.Group("/api/v1")
	api.Use(middleware.IPRateLimiter(100, 200))

	api.POST("/auth/login", controllers.HandleAuthFunc(serviceContainer, "login"))

	devices := api.Group("/devices")

	// Fleet health summary stays public; everything else on the device
	// surface requires a bearer token.
	devices.GET("/health/status", controllers.HandleDeviceFunc(serviceContainer, "getHealthSummary"))

	auth := devices.Group("")
	auth.Use(middleware.Authentication(serviceContainer.GetJWTService()))
	{
		auth.POST("", controllers.HandleDeviceFunc(serviceContainer, "createDevice"))
		auth.GET("", controllers.HandleDeviceFunc(serviceContainer, "getDevices"))
		auth.GET("/:device_id", controllers.HandleDeviceFunc(serviceContainer, "getDevice"))
		auth.PUT("/:device_id", controllers.HandleDeviceFunc(serviceContainer, "updateDevice"))
		auth.DELETE("/:device_id", controllers.HandleDeviceFunc(serviceContainer, "deleteDevice"))
		auth.POST("/:device_id/status", controllers.HandleDeviceFunc(serviceContainer, "updateDeviceStatus"))
	}
}
