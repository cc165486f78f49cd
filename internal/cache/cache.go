// Package cache provides Redis caching of the upstream notification and role lists.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/geonotify/backend/internal/config"
	"github.com/geonotify/backend/internal/metrics"
	"github.com/geonotify/backend/internal/models"
)

const (
	notificationsKey = "geonotify:notifications:all"
	rolesKey         = "geonotify:roles:all"

	defaultTTL = time.Minute
)

// Cache defines the interface for caching operations.
type Cache interface {
	// GetNotifications retrieves the cached notification list.
	GetNotifications(ctx context.Context) ([]models.Notification, bool, error)

	// SetNotifications stores the notification list.
	SetNotifications(ctx context.Context, notifications []models.Notification) error

	// InvalidateNotifications drops the cached notification list.
	InvalidateNotifications(ctx context.Context) error

	// GetRoles retrieves the cached role list.
	GetRoles(ctx context.Context) ([]models.Role, bool, error)

	// SetRoles stores the role list.
	SetRoles(ctx context.Context, roles []models.Role) error

	// Close closes the cache connection.
	Close() error
}

// RedisCache implements Cache using Redis.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(cfg *config.Config, logger *zap.Logger) (Cache, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis cache")

	return newRedisCache(client, cfg.CacheTTL, logger), nil
}

func newRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{client: client, logger: logger, ttl: ttl}
}

// GetNotifications retrieves the cached notification list.
func (c *RedisCache) GetNotifications(ctx context.Context) ([]models.Notification, bool, error) {
	var notifications []models.Notification
	if !c.get(ctx, notificationsKey, "notifications", &notifications) {
		return nil, false, nil
	}
	return notifications, true, nil
}

// SetNotifications stores the notification list.
func (c *RedisCache) SetNotifications(ctx context.Context, notifications []models.Notification) error {
	return c.set(ctx, notificationsKey, notifications)
}

// InvalidateNotifications drops the cached notification list.
func (c *RedisCache) InvalidateNotifications(ctx context.Context) error {
	if err := c.client.Del(ctx, notificationsKey).Err(); err != nil {
		c.logger.Warn("Failed to invalidate notifications cache", zap.Error(err))
		return err
	}
	return nil
}

// GetRoles retrieves the cached role list.
func (c *RedisCache) GetRoles(ctx context.Context) ([]models.Role, bool, error) {
	var roles []models.Role
	if !c.get(ctx, rolesKey, "roles", &roles) {
		return nil, false, nil
	}
	return roles, true, nil
}

// SetRoles stores the role list.
func (c *RedisCache) SetRoles(ctx context.Context, roles []models.Role) error {
	return c.set(ctx, rolesKey, roles)
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	c.logger.Info("Closing Redis connection")
	return c.client.Close()
}

// get reports a hit. Redis and decode errors are treated as misses.
func (c *RedisCache) get(ctx context.Context, key, resource string, out any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMissesTotal.WithLabelValues(resource).Inc()
		return false
	}
	if err != nil {
		c.logger.Warn("Failed to get from cache", zap.String("key", key), zap.Error(err))
		metrics.CacheMissesTotal.WithLabelValues(resource).Inc()
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("Failed to unmarshal cached value", zap.String("key", key), zap.Error(err))
		metrics.CacheMissesTotal.WithLabelValues(resource).Inc()
		return false
	}

	c.logger.Debug("Cache hit", zap.String("key", key))
	metrics.CacheHitsTotal.WithLabelValues(resource).Inc()
	return true
}

func (c *RedisCache) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to marshal value for cache", zap.String("key", key), zap.Error(err))
		return err
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to set cache", zap.String("key", key), zap.Error(err))
		return err
	}

	c.logger.Debug("Cached value", zap.String("key", key), zap.Duration("ttl", c.ttl))
	return nil
}

// NopCache is used when no Redis URL is configured. Every read is a miss.
type NopCache struct{}

func (NopCache) GetNotifications(context.Context) ([]models.Notification, bool, error) {
	return nil, false, nil
}
func (NopCache) SetNotifications(context.Context, []models.Notification) error { return nil }
func (NopCache) InvalidateNotifications(context.Context) error { return nil }
func (NopCache) GetRoles(context.Context) ([]models.Role, bool, error) { return nil, false, nil }
func (NopCache) SetRoles(context.Context, []models.Role) error { return nil }
func (NopCache) Close() error { return nil }
