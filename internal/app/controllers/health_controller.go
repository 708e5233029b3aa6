package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"device-management-service/internal/domain/services/container"
	"device-management-service/internal/error/code"
	"device-management-service/internal/error/response"
)

// HealthController handles liveness and service-info endpoints
type HealthController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewHealthController creates a new health controller
func NewHealthController(ctx *gin.Context, container *container.ServiceContainer) *HealthController {
	return &HealthController{
		Ctx:       ctx,
		Container: container,
	}
}

// HandleHealthFunc returns a gin handler dispatching to the controller
func HandleHealthFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewHealthController(ctx, container)

		switch method {
		case "health":
			controller.Health()
		case "info":
			controller.Info()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "unknown method", nil)
		}
	}
}

// Health reports service liveness plus connectivity of the database,
// cache and broker. Cache and broker being down does not make the
// service unhealthy; they are optional side effects.
func (c *HealthController) Health() {
	cfg := c.Container.GetConfig()

	dbStatus := "connected"
	sqlDB, err := c.Container.GetDB().DB()
	if err != nil || sqlDB.Ping() != nil {
		dbStatus = "disconnected"
	}

	redisStatus := "disconnected"
	if deviceCache := c.Container.GetDeviceCache(); deviceCache != nil {
		if deviceCache.Ping(c.Ctx.Request.Context()) == nil {
			redisStatus = "connected"
		}
	}

	rabbitStatus := "disconnected"
	if publisher := c.Container.GetEventPublisher(); publisher != nil && publisher.IsConnected() {
		rabbitStatus = "connected"
	}

	status := "healthy"
	httpStatus := 200
	if dbStatus != "connected" {
		status = "unhealthy"
		httpStatus = 503
	}

	c.Ctx.JSON(httpStatus, gin.H{
		"status":    status,
		"service":   cfg.AppName,
		"version":   cfg.AppVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  dbStatus,
		"redis":     redisStatus,
		"rabbitmq":  rabbitStatus,
	})
}

// Info returns the service banner and endpoint index
func (c *HealthController) Info() {
	cfg := c.Container.GetConfig()
	response.Success(c.Ctx, gin.H{
		"message": cfg.AppName,
		"version": cfg.AppVersion,
		"health":  "/health",
		"endpoints": gin.H{
			"devices": "/api/v1/devices",
			"auth":    "/api/v1/auth/login",
		},
	})
}
