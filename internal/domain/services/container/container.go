package container

import (
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"device-management-service/internal/domain/services"
	"device-management-service/internal/infrastructure/cache"
	"device-management-service/internal/infrastructure/config"
	"device-management-service/internal/infrastructure/mq"
)

// ServiceContainer wires all services and client handles together. It owns
// the process-lifecycle resources and tears them down in Close.
type ServiceContainer struct {
	db        *gorm.DB
	config    *config.Config
	logger    *zap.Logger
	cache     cache.InterfaceDeviceCache
	publisher mq.InterfaceEventPublisher

	deviceService services.InterfaceDeviceService
	jwtService    services.InterfaceJWTService

	mu sync.RWMutex
}

// NewServiceContainer creates the container. Cache and publisher may be nil
// in tests; the controllers treat both as optional side effects.
func NewServiceContainer(
	db *gorm.DB,
	cfg *config.Config,
	deviceCache cache.InterfaceDeviceCache,
	publisher mq.InterfaceEventPublisher,
	logger *zap.Logger,
) *ServiceContainer {
	if db == nil {
		panic("service container requires a database handle")
	}
	if cfg == nil {
		panic("service container requires a config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &ServiceContainer{
		db:        db,
		config:    cfg,
		logger:    logger,
		cache:     deviceCache,
		publisher: publisher,
	}
	c.initializeServices()
	return c
}

// initializeServices builds the domain services
func (c *ServiceContainer) initializeServices() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deviceService = services.NewDeviceService(c.db, c.config)
	c.jwtService = services.NewJWTService(c.config, c.db)
}

// GetDeviceService returns the device store service
func (c *ServiceContainer) GetDeviceService() services.InterfaceDeviceService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceService
}

// GetJWTService returns the token service
func (c *ServiceContainer) GetJWTService() services.InterfaceJWTService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jwtService
}

// GetDeviceCache returns the device cache handle, possibly nil
func (c *ServiceContainer) GetDeviceCache() cache.InterfaceDeviceCache {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache
}

// GetEventPublisher returns the event publisher handle, possibly nil
func (c *ServiceContainer) GetEventPublisher() mq.InterfaceEventPublisher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.publisher
}

// GetConfig returns the application configuration
func (c *ServiceContainer) GetConfig() *config.Config {
	return c.config
}

// GetDB returns the gorm handle
func (c *ServiceContainer) GetDB() *gorm.DB {
	return c.db
}

// GetLogger returns the application logger
func (c *ServiceContainer) GetLogger() *zap.Logger {
	return c.logger
}

// Close tears down the broker and cache handles. The database pool is owned
// and closed by main.
func (c *ServiceContainer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			c.logger.Warn("failed to close event publisher", zap.Error(err))
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			c.logger.Warn("failed to close device cache", zap.Error(err))
		}
	}
}
