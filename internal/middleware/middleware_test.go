package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservation/internal/config"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func serve(e *echo.Echo, mw []echo.MiddlewareFunc, header string) (*httptest.ResponseRecorder, echo.Context) {
	var seen echo.Context
	h := func(c echo.Context) error {
		seen = c
		return c.NoContent(http.StatusNoContent)
	}
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/reservations", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = h(c)
	return rec, seen
}

func TestJWTAuthSetsIdentity(t *testing.T) {
	e := echo.New()
	tok := sign(t, jwt.MapClaims{"sub": float64(42), "role": "customer", "exp": time.Now().Add(time.Hour).Unix()})

	rec, c := serve(e, []echo.MiddlewareFunc{JWTAuth(secret)}, "Bearer "+tok)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, uint64(42), UserID(c))
	assert.Equal(t, RoleCustomer, Role(c))
	assert.Equal(t, "42", Actor(c))
	assert.False(t, IsStaff(c))
}

func TestJWTAuthRejects(t *testing.T) {
	e := echo.New()
	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).SignedString([]byte("other"))
	require.NoError(t, err)
	expired := sign(t, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(-time.Minute).Unix()})

	for name, header := range map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"wrong secret": "Bearer " + other,
		"expired":      "Bearer " + expired,
	} {
		t.Run(name, func(t *testing.T) {
			rec, c := serve(e, []echo.MiddlewareFunc{JWTAuth(secret)}, header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, c)
		})
	}
}

func TestOptionalJWTAuthAllowsGuests(t *testing.T) {
	e := echo.New()
	rec, c := serve(e, []echo.MiddlewareFunc{OptionalJWTAuth(secret)}, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, Guest, Actor(c))
	assert.Zero(t, UserID(c))

	rec, _ = serve(e, []echo.MiddlewareFunc{OptionalJWTAuth(secret)}, "Bearer junk")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	staff := sign(t, jwt.MapClaims{"sub": "s-1", "role": "STAFF"})
	customer := sign(t, jwt.MapClaims{"sub": "7", "role": "CUSTOMER"})
	chain := []echo.MiddlewareFunc{JWTAuth(secret), RequireRole(RoleStaff, RoleAdmin)}

	rec, c := serve(e, chain, "Bearer "+staff)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, IsStaff(c))
	assert.Equal(t, "s-1", Actor(c))
	assert.Zero(t, UserID(c))

	rec, _ = serve(e, chain, "Bearer "+customer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func limiterConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: 2 * time.Second,
		TTL:            time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
}

func TestTokenBucket(t *testing.T) {
	cfg := limiterConfig()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	now := clock.Now().UnixMilli()
	args := []interface{}{now, cfg.Capacity, cfg.RefillTokens, cfg.RefillInterval.Milliseconds(), int64(60)}

	e := echo.New()
	ip := "192.0.2.1"
	key := "rl:ip:" + ip

	t.Run("allowed", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectEvalSha(bucketScript.Hash(), []string{key}, args...).SetVal([]interface{}{int64(1), int64(1), int64(0)})
		b := &TokenBucket{cfg: cfg, rdb: rdb, clock: clock}

		rec := run(e, b, ip)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("blocked", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectEvalSha(bucketScript.Hash(), []string{key}, args...).SetVal([]interface{}{int64(0), int64(0), int64(1500)})
		b := &TokenBucket{cfg: cfg, rdb: rdb, clock: clock}

		rec := run(e, b, ip)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
	})

	t.Run("redis down fails open", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectEvalSha(bucketScript.Hash(), []string{key}, args...).SetErr(errors.New("connection refused"))
		b := &TokenBucket{cfg: cfg, rdb: rdb, clock: clock}

		rec := run(e, b, ip)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	})
}

func TestNewTokenBucketDisabled(t *testing.T) {
	cfg := limiterConfig()
	cfg.Enabled = false
	e := echo.New()
	rec, _ := serve(e, []echo.MiddlewareFunc{NewTokenBucket(cfg, nil)}, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, "198.51.100.4")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations")
	c.Set(CtxActor, "42")

	cfg := limiterConfig()
	for strategy, want := range map[string]string{
		"ip":         "rl:ip:198.51.100.4",
		"user":       "rl:user:42",
		"user_route": "rl:user:42:route:POST /v1/reservations",
		"":           "rl:ip:198.51.100.4:user:42:route:POST /v1/reservations",
	} {
		cfg.KeyStrategy = strategy
		assert.Equal(t, want, rateKey(cfg, c), strategy)
	}
}

func run(e *echo.Echo, b *TokenBucket, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = b.Middleware(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })(c)
	return rec
}
