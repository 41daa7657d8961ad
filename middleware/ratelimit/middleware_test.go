package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/ledgersite/config"
)

func serve(mw echo.MiddlewareFunc, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/send-code", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/auth/send-code")
	return rec, mw(handler)(c)
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestMiddleware(t *testing.T) {
	t.Run("basic rate limiting", func(t *testing.T) {
		mw := Middleware(&Config{
			Store:  NewMemoryStore(),
			Rate:   1,
			Period: time.Minute,
			KeyGenerator: func(c echo.Context) string {
				return "test-key"
			},
		})

		rec, err := serve(mw, okHandler)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		rec, err = serve(mw, okHandler)
		httpErr, ok := err.(*echo.HTTPError)
		if !ok {
			t.Fatalf("expected echo.HTTPError, got %T", err)
		}
		if httpErr.Code != http.StatusTooManyRequests {
			t.Errorf("expected status %d, got %d", http.StatusTooManyRequests, httpErr.Code)
		}

		retryAfter, convErr := strconv.Atoi(rec.Header().Get("Retry-After"))
		if convErr != nil || retryAfter < 1 || retryAfter > 60 {
			t.Errorf("expected Retry-After between 1 and 60, got %q", rec.Header().Get("Retry-After"))
		}
		if rec.Header().Get("X-RateLimit-Remaining") != "0" {
			t.Errorf("expected remaining 0, got %s", rec.Header().Get("X-RateLimit-Remaining"))
		}
	})

	t.Run("default configuration", func(t *testing.T) {
		cfg := &Config{}
		mw := Middleware(cfg)

		if cfg.Store == nil {
			t.Error("expected default store to be set")
		}
		if cfg.Rate != 10 {
			t.Errorf("expected default rate 10, got %d", cfg.Rate)
		}
		if cfg.Period != time.Minute {
			t.Errorf("expected default period 1 minute, got %v", cfg.Period)
		}
		if cfg.CountMode != config.CountAll {
			t.Errorf("expected default count mode %s, got %s", config.CountAll, cfg.CountMode)
		}

		if _, err := serve(mw, okHandler); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("headers are set correctly", func(t *testing.T) {
		mw := Middleware(&Config{Store: NewMemoryStore(), Rate: 5, Period: time.Minute})

		rec, err := serve(mw, okHandler)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
			t.Errorf("expected limit 5, got %s", got)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != "4" {
			t.Errorf("expected remaining 4, got %s", got)
		}
		if rec.Header().Get("X-RateLimit-Reset") == "" {
			t.Error("expected reset header")
		}
	})

	t.Run("count mode: count failures", func(t *testing.T) {
		mw := Middleware(&Config{
			Store:     NewMemoryStore(),
			Rate:      2,
			Period:    time.Minute,
			CountMode: config.CountFailures,
		})

		for range 5 {
			if _, err := serve(mw, okHandler); err != nil {
				t.Fatalf("successful requests should not be counted: %v", err)
			}
		}

		failing := func(c echo.Context) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "nope")
		}
		for range 2 {
			_, _ = serve(mw, failing)
		}

		_, err := serve(mw, okHandler)
		if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusTooManyRequests {
			t.Errorf("expected rate limit after two failures, got %v", err)
		}
	})

	t.Run("count mode: count success", func(t *testing.T) {
		mw := Middleware(&Config{
			Store:     NewMemoryStore(),
			Rate:      1,
			Period:    time.Minute,
			CountMode: config.CountSuccess,
		})

		rec, _ := serve(mw, func(c echo.Context) error {
			return c.String(http.StatusBadRequest, "bad")
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}

		if _, err := serve(mw, okHandler); err != nil {
			t.Fatalf("failures should not be counted: %v", err)
		}
		if _, err := serve(mw, okHandler); err == nil {
			t.Error("expected rate limit after one success")
		}
	})

	t.Run("custom limit reached handler", func(t *testing.T) {
		mw := Middleware(&Config{
			Store: NewMemoryStore(),
			Rate:  1,
			OnLimitReached: func(c echo.Context) error {
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "slow down"})
			},
		})

		_, _ = serve(mw, okHandler)
		rec, err := serve(mw, okHandler)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("expected 429, got %d", rec.Code)
		}
	})

	t.Run("store failure lets requests through", func(t *testing.T) {
		mw := Middleware(&Config{Store: failingStore{}, Rate: 1})

		for range 3 {
			rec, err := serve(mw, okHandler)
			if err != nil || rec.Code != http.StatusOK {
				t.Fatalf("expected request to pass, got %v (%d)", err, rec.Code)
			}
		}
	})
}

type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Get(context.Context, string) (int, time.Time, bool, error) {
	return 0, time.Time{}, false, errStoreDown
}

func (failingStore) Set(context.Context, string, int, time.Time) error { return errStoreDown }

func (failingStore) Increment(context.Context, string, time.Time) (int, error) {
	return 0, errStoreDown
}

func (failingStore) Reset(context.Context, string) error { return errStoreDown }

func TestKeyGenerators(t *testing.T) {
	e := echo.New()

	t.Run("normal IP", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		c := e.NewContext(req, httptest.NewRecorder())

		if got := DefaultKeyGenerator(c); got != "rate_limit:203.0.113.7" {
			t.Errorf("unexpected key %s", got)
		}
	})

	t.Run("fallback for empty IP", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ""
		c := e.NewContext(req, httptest.NewRecorder())

		if got := DefaultKeyGenerator(c); got != "rate_limit:fallback" {
			t.Errorf("unexpected key %s", got)
		}
	})

	t.Run("route scoped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/verify-code", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetPath("/auth/verify-code")

		if got := RouteKeyGenerator(c); got != "rate_limit:203.0.113.7:POST /auth/verify-code" {
			t.Errorf("unexpected key %s", got)
		}
	})
}

func TestNewStore(t *testing.T) {
	t.Run("memory store", func(t *testing.T) {
		store, err := NewStore(&config.RateLimitConfig{Store: "memory"}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := store.(*MemoryStore); !ok {
			t.Errorf("expected MemoryStore, got %T", store)
		}
	})

	t.Run("redis store requires a client", func(t *testing.T) {
		if _, err := NewStore(&config.RateLimitConfig{Store: "redis"}, nil); err == nil {
			t.Error("expected error without redis client")
		}
	})

	t.Run("redis store", func(t *testing.T) {
		store, err := NewStore(&config.RateLimitConfig{Store: "redis"}, newTestRedis(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := store.(*RedisStore); !ok {
			t.Errorf("expected RedisStore, got %T", store)
		}
	})

	t.Run("unknown store", func(t *testing.T) {
		if _, err := NewStore(&config.RateLimitConfig{Store: "memcached"}, nil); err == nil {
			t.Error("expected error for unsupported store")
		}
	})
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(&config.RateLimitConfig{Rate: 7, Period: 2 * time.Minute, CountMode: config.CountFailures}, NewMemoryStore(), nil)

	if cfg.Rate != 7 || cfg.Period != 2*time.Minute || cfg.CountMode != config.CountFailures {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.KeyGenerator == nil {
		t.Error("expected route key generator")
	}
}
