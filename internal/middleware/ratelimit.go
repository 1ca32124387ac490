// Package middleware holds the fiber middleware of the API server.
package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rotaplan/rotaplan_core/internal/cache"
)

// RateLimitConfig bounds how often one client may trigger plan creation.
// Solving is CPU-heavy for up to a minute, so the default is deliberately
// low.
type RateLimitConfig struct {
	PerMinute int
	PerDay    int
}

// DefaultRateLimits returns the production limits
func DefaultRateLimits() RateLimitConfig {
	return RateLimitConfig{PerMinute: 5, PerDay: 200}
}

// RateLimit enforces per-IP request limits backed by Redis counters. A
// Redis outage degrades to letting requests through; plan creation must
// not depend on the cache being up.
func RateLimit(c *cache.Cache, limits RateLimitConfig) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		ip := ctx.IP()
		now := time.Now()

		if limits.PerMinute > 0 {
			key := fmt.Sprintf("rl:%s:minute:%s", ip, now.Format("2006-01-02T15:04"))
			count, err := c.Count(ctx.Context(), key, 2*time.Minute)
			if err == nil && count > int64(limits.PerMinute) {
				ctx.Set("X-RateLimit-Limit-Minute", strconv.Itoa(limits.PerMinute))
				ctx.Set("Retry-After", "60")
				return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":       "rate_limit_exceeded",
					"message":     "Too many plan requests, try again in a minute",
					"limit_type":  "per_minute",
					"limit":       limits.PerMinute,
					"retry_after": 60,
				})
			}
		}

		if limits.PerDay > 0 {
			key := fmt.Sprintf("rl:%s:day:%s", ip, now.Format("2006-01-02"))
			count, err := c.Count(ctx.Context(), key, 25*time.Hour)
			if err == nil && count > int64(limits.PerDay) {
				tomorrow := now.AddDate(0, 0, 1)
				midnight := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())
				retryAfter := int64(midnight.Sub(now).Seconds())

				ctx.Set("X-RateLimit-Limit-Day", strconv.Itoa(limits.PerDay))
				ctx.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":       "daily_quota_exceeded",
					"message":     "Daily plan quota exceeded",
					"limit_type":  "per_day",
					"limit":       limits.PerDay,
					"retry_after": retryAfter,
					"reset_at":    midnight.Format(time.RFC3339),
				})
			}
		}

		return ctx.Next()
	}
}
