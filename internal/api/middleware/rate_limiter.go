package middleware

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"voicepipe/internal/api/errors"
)

// RateLimitConfig bounds requests per client within a fixed window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultRateLimitConfig allows 60 requests per minute per client.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Requests: 60, Window: time.Minute}
}

// RateLimit enforces a redis-backed fixed-window limit keyed by the
// authenticated user when present, otherwise the client IP. Redis outages
// fail open so the limiter never takes the API down with it.
func RateLimit(rdb *redis.Client, config RateLimitConfig, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		client := CurrentUser(c)
		if client == "" {
			client = c.ClientIP()
		}
		window := time.Now().Unix() / int64(config.Window.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%d", client, window)

		ctx := c.Request.Context()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if count == 1 {
			rdb.Expire(ctx, key, config.Window)
		}

		if count > int64(config.Requests) {
			HandleError(c, errors.NewRateLimitedError("rate limit exceeded, retry later"))
			return
		}

		c.Next()
	}
}
