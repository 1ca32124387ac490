// Package cache wraps Redis for snap-to-road result caching and request
// rate-limit counters. Road geometry barely changes, so snapped stop
// positions are safe to reuse across plan runs.
package cache

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rotaplan/rotaplan_core/internal/models"
	"github.com/rotaplan/rotaplan_core/internal/osrm"
)

// Config holds Redis configuration
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
	TLS      bool
}

// LoadConfigFromEnv loads Redis configuration from environment variables
func LoadConfigFromEnv() *Config {
	port, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, _ := time.ParseDuration(getEnv("SNAP_CACHE_TTL", "168h"))

	return &Config{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     port,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
		TTL:      ttl,
		TLS:      getEnv("REDIS_TLS_ENABLED", "false") == "true",
	}
}

// Cache is a Redis-backed store shared by the snap cache and the rate
// limiter. Safe for concurrent use.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection
func New(config *Config) (*Cache, error) {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}
	if config.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client, ttl: config.TTL}, nil
}

// Close closes the Redis client
func (c *Cache) Close() {
	c.client.Close()
}

// snapKey hashes a coordinate rounded to ~1m precision into a cache key
func snapKey(p models.Coordinate) string {
	data := fmt.Sprintf("%.5f,%.5f", p.Lat, p.Lng)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("snap:%x", hash[:8])
}

// GetSnap retrieves a cached snap result; nil on a miss
func (c *Cache) GetSnap(ctx context.Context, p models.Coordinate) (*osrm.SnapResult, error) {
	data, err := c.client.Get(ctx, snapKey(p)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var result osrm.SnapResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached snap: %w", err)
	}
	return &result, nil
}

// SetSnap caches a snap result with the configured TTL
func (c *Cache) SetSnap(ctx context.Context, p models.Coordinate, result *osrm.SnapResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal snap result: %w", err)
	}
	return c.client.Set(ctx, snapKey(p), data, c.ttl).Err()
}

// Count increments a windowed counter and returns the new value. Used by
// the rate-limit middleware.
func (c *Cache) Count(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		c.client.Expire(ctx, key, window)
	}
	return count, nil
}

// HealthCheck performs a health check on the Redis connection
func (c *Cache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
