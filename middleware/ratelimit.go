package middleware

import (
	"net/http"
	"strconv"
	"time"

	"clicksprout/internal/logger"
	"clicksprout/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimit is a fixed window request budget
type RateLimit struct {
	Requests int
	Window   time.Duration
	// Scope separates counters of limiters that share a path
	Scope string
}

// RateLimitMiddleware limits requests per client IP and route using Redis
// counters. Without Redis, or when Redis errors, requests pass.
func RateLimitMiddleware(rdb *redis.Client, limit RateLimit) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit.Requests <= 0 || c.FullPath() == "/health" {
			c.Next()
			return
		}

		key := "ratelimit:" + limit.Scope + ":" + c.ClientIP() + ":" + c.FullPath()
		ctx := c.Request.Context()

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", "error", err, "request_id", GetRequestID(c))
			c.Next()
			return
		}
		if count == 1 {
			rdb.Expire(ctx, key, limit.Window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		if count > int64(limit.Requests) {
			retryAfter := limit.Window
			if ttl, err := rdb.TTL(ctx, key).Result(); err == nil && ttl > 0 {
				retryAfter = ttl
			}
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(retryAfter).Unix(), 10))
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))

			utils.RespondWithError(c, http.StatusTooManyRequests,
				"rate_limit_exceeded",
				"Too many requests. Please try again later.",
				gin.H{
					"retry_after": int(retryAfter.Seconds()),
					"limit":       limit.Requests,
				})
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(limit.Requests-int(count)))
		c.Next()
	}
}
