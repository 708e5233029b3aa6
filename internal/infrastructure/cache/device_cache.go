package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"device-management-service/internal/domain/models"
	"device-management-service/internal/infrastructure/config"
)

const deviceKeyPrefix = "device:"

// InterfaceDeviceCache defines the device cache operations. All writes are
// best effort: failures are logged and never surfaced to the caller.
type InterfaceDeviceCache interface {
	GetDevice(ctx context.Context, deviceID string) (*models.DeviceResponse, bool)
	CacheDevice(ctx context.Context, deviceID string, device *models.DeviceResponse)
	InvalidateDevice(ctx context.Context, deviceID string)
	Ping(ctx context.Context) error
	Close() error
}

// DeviceCache caches device snapshots in Redis with a fixed TTL
type DeviceCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewDeviceCache builds the Redis client. REDIS_URL takes precedence over
// the component parts. The connection itself is established lazily by the
// client on first use.
func NewDeviceCache(cfg *config.Config, logger *zap.Logger) (*DeviceCache, error) {
	var opts *redis.Options
	if cfg.RedisURL != "" {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}

	return &DeviceCache{
		client: redis.NewClient(opts),
		ttl:    cfg.CacheTTL,
		logger: logger,
	}, nil
}

// GetDevice returns the cached snapshot for a device, if present
func (c *DeviceCache) GetDevice(ctx context.Context, deviceID string) (*models.DeviceResponse, bool) {
	val, err := c.client.Get(ctx, deviceKeyPrefix+deviceID).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed", zap.String("device_id", deviceID), zap.Error(err))
		}
		return nil, false
	}

	var device models.DeviceResponse
	if err := json.Unmarshal([]byte(val), &device); err != nil {
		c.logger.Warn("cached device is not decodable", zap.String("device_id", deviceID), zap.Error(err))
		return nil, false
	}
	return &device, true
}

// CacheDevice stores a device snapshot under the configured TTL
func (c *DeviceCache) CacheDevice(ctx context.Context, deviceID string, device *models.DeviceResponse) {
	payload, err := json.Marshal(device)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("device_id", deviceID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, deviceKeyPrefix+deviceID, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("device_id", deviceID), zap.Error(err))
	}
}

// InvalidateDevice removes a device snapshot from the cache
func (c *DeviceCache) InvalidateDevice(ctx context.Context, deviceID string) {
	if err := c.client.Del(ctx, deviceKeyPrefix+deviceID).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", zap.String("device_id", deviceID), zap.Error(err))
	}
}

// Ping checks cache connectivity
func (c *DeviceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *DeviceCache) Close() error {
	return c.client.Close()
}
