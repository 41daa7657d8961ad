package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/ledgersite/config"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/zap"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      config.CountingMode
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
	Logger         *logging.Service
}

func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}

	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}

	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}

	if cfg.CountMode == "" {
		cfg.CountMode = config.CountAll
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := cfg.KeyGenerator(c)
			now := time.Now()
			resetTime := now.Add(cfg.Period)

			count, existingResetTime, exists, err := cfg.Store.Get(ctx, key)
			if err != nil {
				cfg.Logger.Warn("rate limit store unavailable, allowing request", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			if exists {
				resetTime = existingResetTime
			}

			if count >= cfg.Rate {
				setHeaders(c, cfg.Rate, 0, resetTime)
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(resetTime, now)))
				cfg.Logger.Warn("rate limit exceeded", zap.String("key", key), zap.String("path", c.Path()))
				return cfg.OnLimitReached(c)
			}

			var newCount int
			if cfg.CountMode == config.CountAll {
				newCount, err = cfg.Store.Increment(ctx, key, resetTime)
			} else {
				newCount = count + 1
				err = cfg.Store.Set(ctx, key, newCount, resetTime)
			}
			if err != nil {
				cfg.Logger.Warn("rate limit store unavailable, allowing request", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			setHeaders(c, cfg.Rate, max(cfg.Rate-newCount, 0), resetTime)

			err = next(c)

			if cfg.CountMode != config.CountAll {
				settle(c, cfg, key, count, resetTime, err)
			}

			return err
		}
	}
}

// settle replaces the provisional count taken before the handler ran with
// the final one for the selective counting modes.
func settle(c echo.Context, cfg *Config, key string, count int, resetTime time.Time, handlerErr error) {
	ctx := c.Request().Context()
	statusCode := c.Response().Status
	if he, ok := handlerErr.(*echo.HTTPError); ok && !c.Response().Committed {
		statusCode = he.Code
	}

	shouldCount := false
	switch cfg.CountMode {
	case config.CountFailures:
		shouldCount = statusCode >= 400
	case config.CountSuccess:
		shouldCount = statusCode < 400
	}

	var err error
	switch {
	case shouldCount:
		err = cfg.Store.Set(ctx, key, count+1, resetTime)
	case count > 0:
		err = cfg.Store.Set(ctx, key, count, resetTime)
	default:
		err = cfg.Store.Reset(ctx, key)
	}
	if err != nil {
		cfg.Logger.Warn("failed to settle rate limit counter", zap.String("key", key), zap.Error(err))
	}
}

func setHeaders(c echo.Context, limit, remaining int, resetTime time.Time) {
	c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Response().Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}

func retryAfterSeconds(resetTime, now time.Time) int {
	seconds := int(resetTime.Sub(now).Round(time.Second) / time.Second)
	return max(seconds, 1)
}

func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()

	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}

	return "rate_limit:" + realIP
}

// RouteKeyGenerator scopes the counter to the route as well as the client so
// separate endpoints do not share a budget.
func RouteKeyGenerator(c echo.Context) string {
	return fmt.Sprintf("%s:%s %s", DefaultKeyGenerator(c), c.Request().Method, c.Path())
}

func DefaultOnLimitReached(c echo.Context) error {
	return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests. Please try again later.")
}

// NewStore picks the counter backend. The redis store needs a client.
func NewStore(rateLimitConfig *config.RateLimitConfig, client *redis.Client) (Store, error) {
	switch rateLimitConfig.Store {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("rate limit store %q requires a redis connection", rateLimitConfig.Store)
		}
		return NewRedisStore(client), nil
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit store: %s", rateLimitConfig.Store)
	}
}

// FromConfig builds the middleware config from the RATE_LIMIT_ settings.
func FromConfig(rateLimitConfig *config.RateLimitConfig, store Store, logger *logging.Service) *Config {
	return &Config{
		Store:        store,
		Rate:         rateLimitConfig.Rate,
		Period:       rateLimitConfig.Period,
		CountMode:    rateLimitConfig.CountMode,
		KeyGenerator: RouteKeyGenerator,
		Logger:       logger,
	}
}
