package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allowN(t *testing.T, l Limiter, key string, n int) []bool {
	t.Helper()
	results := make([]bool, n)
	for i := range results {
		allowed, err := l.Allow(context.Background(), key)
		require.NoError(t, err)
		results[i] = allowed
	}
	return results
}

func TestMemoryLimiterDeniesThirdRequest(t *testing.T) {
	l := NewMemoryLimiter(2, 5*time.Second)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.Equal(t, []bool{true, true, false}, allowN(t, l, "10.0.0.1", 3))

	// Other clients have their own bucket.
	assert.Equal(t, []bool{true}, allowN(t, l, "10.0.0.2", 1))

	now = now.Add(5 * time.Second)
	assert.Equal(t, []bool{true, true, false}, allowN(t, l, "10.0.0.1", 3))
}

func TestMemoryLimiterForgetsIdleClients(t *testing.T) {
	l := NewMemoryLimiter(2, 5*time.Second)
	now := time.Now()
	l.now = func() time.Time { return now }

	allowN(t, l, "10.0.0.1", 1)
	require.Len(t, l.visitors, 1)

	now = now.Add(idleTimeout + time.Minute)
	allowN(t, l, "10.0.0.2", 1)
	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "10.0.0.2")
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return server, client
}

func TestRedisLimiterDeniesThirdRequest(t *testing.T) {
	server, client := newMiniredis(t)
	l := NewRedisLimiter(client, 2, 5*time.Second)

	assert.Equal(t, []bool{true, true, false}, allowN(t, l, "10.0.0.1", 3))
	assert.Equal(t, []bool{true}, allowN(t, l, "10.0.0.2", 1))

	ttl := server.TTL(keyPrefix + "10.0.0.1")
	assert.True(t, ttl > 0 && ttl <= 5*time.Second, "unexpected ttl %s", ttl)

	server.FastForward(5 * time.Second)
	assert.Equal(t, []bool{true, true, false}, allowN(t, l, "10.0.0.1", 3))
}

// A counter left without expiry must not lock the client out for good.
func TestRedisLimiterRestoresMissingExpiry(t *testing.T) {
	server, client := newMiniredis(t)
	l := NewRedisLimiter(client, 2, 5*time.Second)
	require.NoError(t, server.Set(keyPrefix+"10.0.0.1", "7"))

	assert.Equal(t, []bool{false}, allowN(t, l, "10.0.0.1", 1))
	ttl := server.TTL(keyPrefix + "10.0.0.1")
	assert.True(t, ttl > 0 && ttl <= 5*time.Second, "unexpected ttl %s", ttl)

	server.FastForward(5 * time.Second)
	assert.Equal(t, []bool{true, true, false}, allowN(t, l, "10.0.0.1", 3))
}

// Later requests of a window must not extend it.
func TestRedisLimiterKeepsWindowExpiry(t *testing.T) {
	server, client := newMiniredis(t)
	l := NewRedisLimiter(client, 2, 5*time.Second)

	allowN(t, l, "10.0.0.1", 1)
	server.FastForward(3 * time.Second)
	allowN(t, l, "10.0.0.1", 2)
	assert.True(t, server.TTL(keyPrefix+"10.0.0.1") <= 2*time.Second)
}

func TestRedisLimiterReportsConnectionErrors(t *testing.T) {
	server, client := newMiniredis(t)
	l := NewRedisLimiter(client, 2, 5*time.Second)
	server.Close()

	_, err := l.Allow(context.Background(), "10.0.0.1")
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+server.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func limitedRouter(l Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/limited", Middleware(l, "contacts"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func request(router *gin.Engine) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/limited", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestMiddleware(t *testing.T) {
	router := limitedRouter(NewMemoryLimiter(2, 5*time.Second))

	assert.Equal(t, http.StatusOK, request(router).Code)
	assert.Equal(t, http.StatusOK, request(router).Code)
	recorder := request(router)
	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.JSONEq(t, `{"detail":"Too Many Requests"}`, recorder.Body.String())
}

func TestMiddlewareFailsOpen(t *testing.T) {
	router := limitedRouter(failingLimiter{})
	assert.Equal(t, http.StatusOK, request(router).Code)
}

func TestMiddlewareWithoutLimiter(t *testing.T) {
	router := limitedRouter(nil)
	for range 5 {
		assert.Equal(t, http.StatusOK, request(router).Code)
	}
}
