package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medilocker/medilocker/internal/platform/kv"
)

// RateLimitConfig describes a fixed window: at most Max requests per client
// IP in every Window.
type RateLimitConfig struct {
	Window  time.Duration
	Max     int
	Skipper func(c echo.Context) bool
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Window: 15 * time.Minute, Max: 100}
}

// RateLimit counts requests per client IP in fixed windows held by counter,
// so replicas sharing one Redis share the budget. Counter failures let the
// request through.
func RateLimit(cfg RateLimitConfig, counter kv.WindowCounter, logger zerolog.Logger) echo.MiddlewareFunc {
	limit := strconv.Itoa(cfg.Max)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			n, ttl, err := counter.Incr(c.Request().Context(), c.RealIP(), cfg.Window)
			if err != nil {
				logger.Warn().Err(err).Str("remote_ip", c.RealIP()).Msg("rate limit counter unavailable")
				return next(c)
			}

			reset := int(ttl.Round(time.Second) / time.Second)
			if reset < 1 {
				reset = 1
			}
			remaining := cfg.Max - int(n)
			if remaining < 0 {
				remaining = 0
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.Itoa(reset))

			if n > int64(cfg.Max) {
				h.Set("Retry-After", strconv.Itoa(reset))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
			}
			return next(c)
		}
	}
}
