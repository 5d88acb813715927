package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRateLimit_DevelopmentBypass(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	allowed, err := CheckRateLimit(context.Background(), nil, "comment", "user:1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckRateLimit_Counts(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		allowed, err := checkRateLimit(ctx, rdb, "report", "user:9", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := checkRateLimit(ctx, rdb, "report", "user:9", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, mr.TTL("rl:report:user:9"), time.Duration(0))

	mr.FastForward(2 * time.Minute)
	allowed, err = checkRateLimit(ctx, rdb, "report", "user:9", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckRateLimit_NilRedis(t *testing.T) {
	_, err := checkRateLimit(context.Background(), nil, "x", "ip:1", 1, time.Minute)
	assert.Error(t, err)
}

func TestRateLimitPolicies(t *testing.T) {
	failing := func(context.Context, *redis.Client, string, string, int, time.Duration) (bool, error) {
		return false, errors.New("redis down")
	}
	denying := func(context.Context, *redis.Client, string, string, int, time.Duration) (bool, error) {
		return false, nil
	}

	tests := []struct {
		name   string
		check  limitChecker
		policy FailPolicy
		want   int
	}{
		{"fail open passes", failing, FailOpen, http.StatusOK},
		{"fail closed rejects", failing, FailClosed, http.StatusServiceUnavailable},
		{"limit exceeded", denying, FailOpen, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/limited", rateLimit(tt.check, nil, 1, time.Minute, tt.policy, "limited"), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/limited", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
