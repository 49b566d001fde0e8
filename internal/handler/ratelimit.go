package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/logging"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/model"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware counts requests per client IP against limiter. A broken
// store never blocks traffic; the failure is logged and the request proceeds.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) gin.HandlerFunc {
	cfg := limiter.Config()
	log = log.With(slog.String("limiter", cfg.Name))

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		ip := ClientIP(c)

		decision, err := limiter.Hit(ctx, ip)
		if err != nil {
			log.Warn("rate limit store failed, allowing request", slog.String("ip", ip), logging.Err(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := decision.RetryAfterSeconds()
			log.Warn("rate limit exceeded", slog.String("ip", ip), slog.String("path", c.Request.URL.Path))
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, model.RateLimitErrorResponse{
				Success:    false,
				Error:      cfg.Message,
				Code:       CodeRateLimitExceeded,
				RetryAfter: retryAfter,
			})
			return
		}

		c.Next()

		if cfg.SkipSuccessfulRequests && c.Writer.Status() < http.StatusBadRequest {
			if err := limiter.Undo(ctx, ip); err != nil {
				log.Warn("rate limit undo failed", slog.String("ip", ip), logging.Err(err))
			}
		}
	}
}
