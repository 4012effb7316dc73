package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"velvet-pos/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

// Feature: velvet-pos, Property 37: Rate limiting blocks excessive requests
// Validates: Requirements 6
func TestProperty_RateLimitingBlocksExcessiveRequests(t *testing.T) {
	mr, redisClient := newTestRedis(t)
	properties := gopter.NewProperties(nil)

	properties.Property("excessive requests are blocked with 429", prop.ForAll(
		func(requestsPerWindow int, excessRequests int) bool {
			mr.FlushAll()

			config := RateLimitConfig{
				RequestsPerWindow: requestsPerWindow,
				Window:            time.Minute,
				KeyPrefix:         "test_rate_limit",
			}
			handler := RateLimitMiddleware(redisClient, config, zap.NewNop())(okHandler())

			successCount, blockedCount := 0, 0
			for i := 0; i < requestsPerWindow+excessRequests; i++ {
				req := httptest.NewRequest("GET", "/api/inventory", nil)
				req.RemoteAddr = "192.168.1.100"
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)

				switch w.Code {
				case http.StatusOK:
					successCount++
				case http.StatusTooManyRequests:
					blockedCount++
				}
			}

			return successCount == requestsPerWindow && blockedCount == excessRequests
		},
		gen.IntRange(5, 20),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Test that rate limit headers are set correctly
func TestProperty_RateLimitHeadersAreSet(t *testing.T) {
	mr, redisClient := newTestRedis(t)
	properties := gopter.NewProperties(nil)

	properties.Property("rate limit headers are present in responses", prop.ForAll(
		func(requestsPerWindow int) bool {
			mr.FlushAll()

			config := RateLimitConfig{
				RequestsPerWindow: requestsPerWindow,
				Window:            time.Minute,
				KeyPrefix:         "test_rate_limit_headers",
			}
			handler := RateLimitMiddleware(redisClient, config, zap.NewNop())(okHandler())

			req := httptest.NewRequest("GET", "/api/inventory", nil)
			req.RemoteAddr = "192.168.1.101"
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Header().Get("X-RateLimit-Limit") != "" && w.Header().Get("X-RateLimit-Remaining") != ""
		},
		gen.IntRange(5, 50),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRateLimitCountsUsersPerStore(t *testing.T) {
	_, redisClient := newTestRedis(t)

	config := RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, KeyPrefix: "rl"}
	handler := RateLimitMiddleware(redisClient, config, zap.NewNop())(okHandler())

	send := func(actor domain.Actor) int {
		ctx := context.WithValue(context.Background(), UserIDKey, actor.UserID)
		ctx = context.WithValue(ctx, StoreIDKey, actor.StoreID)
		ctx = context.WithValue(ctx, UserRoleKey, actor.Role)

		req := httptest.NewRequest("POST", "/api/transactions", nil).WithContext(ctx)
		req.RemoteAddr = "10.0.0.1"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	a := domain.Actor{UserID: "user_1", StoreID: "store_a", Role: domain.RoleStaff}
	b := domain.Actor{UserID: "user_1", StoreID: "store_b", Role: domain.RoleStaff}

	if code := send(a); code != http.StatusOK {
		t.Fatalf("first request: %d", code)
	}
	if code := send(a); code != http.StatusTooManyRequests {
		t.Fatalf("second request from same user: %d", code)
	}
	if code := send(b); code != http.StatusOK {
		t.Fatalf("same user id in another store: %d", code)
	}
}

func TestRateLimitAllowsRequestsWhenRedisIsDown(t *testing.T) {
	mr, redisClient := newTestRedis(t)
	mr.Close()

	config := RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, KeyPrefix: "rl"}
	handler := RateLimitMiddleware(redisClient, config, zap.NewNop())(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/inventory", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 while redis is down, got %d", i, w.Code)
		}
	}
}

func TestRateLimitWindowExpires(t *testing.T) {
	mr, redisClient := newTestRedis(t)

	config := RateLimitConfig{RequestsPerWindow: 2, Window: 30 * time.Second, KeyPrefix: "rl"}
	handler := RateLimitMiddleware(redisClient, config, zap.NewNop())(okHandler())

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/inventory", nil)
		req.RemoteAddr = "10.0.0.2"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	send()
	if w := send(); w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected no remaining requests, got %q", w.Header().Get("X-RateLimit-Remaining"))
	}

	blocked := send()
	if blocked.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", blocked.Code)
	}
	if got := blocked.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("expected Retry-After 30, got %q", got)
	}

	mr.FastForward(31 * time.Second)
	if w := send(); w.Code != http.StatusOK {
		t.Fatalf("expected a fresh window after expiry, got %d", w.Code)
	}
}
