package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/pharmacy-marketplace/internal/config"
	"github.com/iliyamo/pharmacy-marketplace/internal/model"
	"github.com/iliyamo/pharmacy-marketplace/internal/service"
	"github.com/iliyamo/pharmacy-marketplace/internal/utils"
)

const secret = "test-secret"

func token(t *testing.T, id uint64, email string, roles ...string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, email, roles, time.Minute)
	require.NoError(t, err)
	return tok.Token
}

// serve runs a single GET /x through the given middleware and returns the
// recorder plus the identity the handler saw.
func serve(t *testing.T, authz string, mws ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, *model.Identity) {
	t.Helper()
	e := echo.New()
	var seen *model.Identity
	e.GET("/x", func(c echo.Context) error {
		seen = IdentityFrom(c)
		return c.NoContent(http.StatusNoContent)
	}, mws...)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, seen
}

func TestJWTAuth(t *testing.T) {
	rec, id := serve(t, "Bearer "+token(t, 7, "u@x.io", "USER"), JWTAuth(secret))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, id)
	assert.Equal(t, uint64(7), id.AccountID)
	assert.Equal(t, "u@x.io", id.Email)
	assert.True(t, id.HasRole("user"))

	rec, _ = serve(t, "", JWTAuth(secret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serve(t, "Bearer garbage", JWTAuth(secret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalAuth(t *testing.T) {
	rec, id := serve(t, "", OptionalAuth(secret))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, id)

	rec, id = serve(t, "Bearer garbage", OptionalAuth(secret))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, id)

	_, id = serve(t, "Bearer "+token(t, 3, "p@x.io"), OptionalAuth(secret))
	require.NotNil(t, id)
	assert.Equal(t, uint64(3), id.AccountID)
}

func TestRoleGuards(t *testing.T) {
	access := service.NewAccess(nil, nil, config.NewAccessPolicy([]string{"boss@x.io"}, nil, ""))

	cases := []struct {
		name     string
		authz    string
		mw       echo.MiddlewareFunc
		wantCode int
	}{
		{"admin by role", "Bearer " + token(t, 1, "a@x.io", "ADMIN"), RequireAdmin(access), http.StatusNoContent},
		{"admin by email", "Bearer " + token(t, 2, "boss@x.io"), RequireAdmin(access), http.StatusNoContent},
		{"moderator is not admin", "Bearer " + token(t, 3, "m@x.io", "MODERATOR"), RequireAdmin(access), http.StatusForbidden},
		{"moderator", "Bearer " + token(t, 3, "m@x.io", "MODERATOR"), RequireModerator(access), http.StatusNoContent},
		{"admin is moderator", "Bearer " + token(t, 1, "a@x.io", "ADMIN"), RequireModerator(access), http.StatusNoContent},
		{"plain user", "Bearer " + token(t, 4, "u@x.io", "USER"), RequireModerator(access), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := serve(t, tc.authz, JWTAuth(secret), tc.mw)
			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}

	rec, _ := serve(t, "", RequireAdmin(access))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	mw := NewTokenBucket(cfg, rdb, zap.NewNop())

	for i := 0; i < 2; i++ {
		rec, _ := serve(t, "", mw)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec, _ := serve(t, "", mw)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucket_DisabledWithoutRedis(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour}
	mw := NewTokenBucket(cfg, nil, zap.NewNop())
	for i := 0; i < 3; i++ {
		rec, _ := serve(t, "", mw)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/v1/reservations", nil), httptest.NewRecorder())
	c.SetPath("/v1/reservations")
	setIdentity(c, &model.Identity{AccountID: 9})

	cases := map[string]string{
		"ip":         "rl:ip:192.0.2.1",
		"user_route": "rl:user:9:route:POST /v1/reservations",
		"IP_USER":    "rl:ip:192.0.2.1:user:9",
		"":           "rl:ip:192.0.2.1:user:9:route:POST /v1/reservations",
		"ip_bogus":   "rl:ip:192.0.2.1:user:9:route:POST /v1/reservations",
	}
	for strategy, want := range cases {
		cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}
		assert.Equal(t, want, rateKey(cfg, c), strategy)
	}
}
