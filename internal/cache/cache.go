// Package cache is the Redis read-through layer for provider profiles and
// availability pages. A nil *Cache is a valid pass-through.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/pkg/logging"
)

const keyPrefix = "careconnect"

// Cache stores JSON values in Redis. Failures are logged and treated as misses.
type Cache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// New returns nil when client is nil so callers can skip caching entirely.
func New(client *redis.Client, ttl time.Duration, logger *logging.Logger) *Cache {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{redis: client, ttl: ttl, logger: logger}
}

func ProviderKey(providerID uuid.UUID) string {
	return fmt.Sprintf("%s:provider:%s", keyPrefix, providerID)
}

func AvailabilityVersionKey(providerID uuid.UUID) string {
	return fmt.Sprintf("%s:availability:%s:v", keyPrefix, providerID)
}

func AvailabilityKey(providerID uuid.UUID, version int64, from, to string) string {
	return fmt.Sprintf("%s:availability:%s:%d:%s:%s", keyPrefix, providerID, version, from, to)
}

// GetProvider decodes the cached profile into dest and reports a hit.
func (c *Cache) GetProvider(ctx context.Context, providerID uuid.UUID, dest any) bool {
	if c == nil {
		return false
	}
	return c.get(ctx, ProviderKey(providerID), dest)
}

func (c *Cache) SetProvider(ctx context.Context, providerID uuid.UUID, value any) {
	if c == nil {
		return
	}
	c.set(ctx, ProviderKey(providerID), value)
}

// InvalidateProvider drops the cached profile.
func (c *Cache) InvalidateProvider(ctx context.Context, providerID uuid.UUID) {
	if c == nil {
		return
	}
	if err := c.redis.Del(ctx, ProviderKey(providerID)).Err(); err != nil {
		c.logger.Warn("cache invalidate provider failed", "provider_id", providerID, "error", err)
	}
}

// AvailabilityVersion is the provider's availability generation observed
// before the database was read. The zero value never writes.
type AvailabilityVersion struct {
	n     int64
	valid bool
}

// GetAvailability returns the cached page for the provider's current version.
// On a miss the returned version is what a later SetAvailability must use, so
// a page read from the database is never stored under a generation that was
// bumped after the read.
func (c *Cache) GetAvailability(ctx context.Context, providerID uuid.UUID, from, to string) ([]models.TimeSlot, AvailabilityVersion, bool) {
	if c == nil {
		return nil, AvailabilityVersion{}, false
	}
	n, ok := c.version(ctx, providerID)
	if !ok {
		return nil, AvailabilityVersion{}, false
	}
	version := AvailabilityVersion{n: n, valid: true}
	var slots []models.TimeSlot
	if !c.get(ctx, AvailabilityKey(providerID, n, from, to), &slots) {
		return nil, version, false
	}
	return slots, version, true
}

func (c *Cache) SetAvailability(ctx context.Context, providerID uuid.UUID, version AvailabilityVersion, from, to string, slots []models.TimeSlot) {
	if c == nil || !version.valid {
		return
	}
	c.set(ctx, AvailabilityKey(providerID, version.n, from, to), slots)
}

// InvalidateAvailability bumps the provider's version so every cached page
// for it is bypassed and left to expire.
func (c *Cache) InvalidateAvailability(ctx context.Context, providerID uuid.UUID) {
	if c == nil {
		return
	}
	if err := c.redis.Incr(ctx, AvailabilityVersionKey(providerID)).Err(); err != nil {
		c.logger.Warn("cache invalidate availability failed", "provider_id", providerID, "error", err)
	}
}

func (c *Cache) version(ctx context.Context, providerID uuid.UUID) (int64, bool) {
	v, err := c.redis.Get(ctx, AvailabilityVersionKey(providerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		c.logger.Warn("cache version lookup failed", "provider_id", providerID, "error", err)
		return 0, false
	}
	return v, true
}

func (c *Cache) get(ctx context.Context, key string, dest any) bool {
	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("cache decode failed", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}
