package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/profiq/meetup-analysis-kinetica/internal/domain"
)

const redisKeyPrefix = "rsvp:attrs:"

// Redis shares resolved attributes between pipeline instances.
// Redis failures degrade to cache misses.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// RedisConfig configures the Redis cache backend
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedis connects to Redis and verifies the connection
func NewRedis(ctx context.Context, cfg RedisConfig, log *zap.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Redis attribute cache connected",
		zap.String("address", cfg.Address),
		zap.Duration("ttl", cfg.TTL))

	return &Redis{rdb: rdb, ttl: cfg.TTL, log: log}, nil
}

// Get returns the cached attributes for an event id
func (c *Redis) Get(ctx context.Context, eventID string) (domain.Attributes, bool) {
	raw, err := c.rdb.Get(ctx, redisKeyPrefix+eventID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("Failed to read attributes from Redis",
				zap.String("event_id", eventID),
				zap.Error(err))
		}
		c.misses.Add(1)
		return domain.Attributes{}, false
	}

	var attrs domain.Attributes
	if err := json.Unmarshal(raw, &attrs); err != nil {
		c.log.Warn("Failed to decode cached attributes",
			zap.String("event_id", eventID),
			zap.Error(err))
		c.misses.Add(1)
		return domain.Attributes{}, false
	}

	c.hits.Add(1)
	return attrs, true
}

// Set stores attributes for an event id
func (c *Redis) Set(ctx context.Context, eventID string, attrs domain.Attributes) {
	raw, err := json.Marshal(attrs)
	if err != nil {
		c.log.Warn("Failed to encode attributes for Redis",
			zap.String("event_id", eventID),
			zap.Error(err))
		return
	}

	if err := c.rdb.Set(ctx, redisKeyPrefix+eventID, raw, c.ttl).Err(); err != nil {
		c.log.Warn("Failed to write attributes to Redis",
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}

// Stats returns cache usage counters. Entries is not tracked for Redis.
func (c *Redis) Stats() Stats {
	return Stats{
		Backend: "redis",
		Entries: -1,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// Close closes the Redis connection
func (c *Redis) Close() error {
	return c.rdb.Close()
}

var _ Cache = (*Redis)(nil)
