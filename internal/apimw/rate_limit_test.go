package apimw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRedisRateLimiter_AllowsWithinLimit(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	rl := NewRedisRateLimiter(client, 5, time.Minute, 100, 100)
	handler := rl.Middleware(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/walls", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRedisRateLimiter_RejectsOverLimit(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	rl := NewRedisRateLimiter(client, 3, time.Minute, 100, 100)
	handler := rl.Middleware(okHandler())

	var ok, rejected int
	for i := 0; i < 6; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/walls", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		handler.ServeHTTP(rec, req)
		switch rec.Code {
		case http.StatusOK:
			ok++
		case http.StatusTooManyRequests:
			rejected++
			if rec.Header().Get("Retry-After") == "" {
				t.Fatal("expected Retry-After header on 429")
			}
		}
	}
	if ok != 3 || rejected != 3 {
		t.Fatalf("expected 3 ok / 3 rejected, got %d ok / %d rejected", ok, rejected)
	}
}

func TestRedisRateLimiter_TracksClientsIndependently(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	rl := NewRedisRateLimiter(client, 2, time.Minute, 100, 100)
	handler := rl.Middleware(okHandler())

	for _, ip := range []string{"10.0.0.3:1", "10.0.0.4:1"} {
		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/walls", nil)
			req.RemoteAddr = ip
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("client %s request %d: expected 200, got %d", ip, i+1, rec.Code)
			}
		}
	}
}

func TestRedisRateLimiter_FallsBackToInMemoryWhenRedisUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	srv.Close()
	defer client.Close()

	rl := NewRedisRateLimiter(client, 1000, time.Minute, 2, 2)
	handler := rl.Middleware(okHandler())

	var ok, rejected int
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/walls", nil)
		req.RemoteAddr = "10.0.0.5:1"
		handler.ServeHTTP(rec, req)
		switch rec.Code {
		case http.StatusOK:
			ok++
		case http.StatusTooManyRequests:
			rejected++
		}
	}
	if ok != 2 || rejected != 2 {
		t.Fatalf("expected in-memory fallback to allow 2 and reject 2, got %d ok / %d rejected", ok, rejected)
	}
}

func TestRateLimiter_InMemoryOnly(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	handler := rl.Middleware(okHandler())

	rec1 := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodGet, "/walls", nil)
	req1.RemoteAddr = "10.0.0.6:1"
	handler.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/walls", nil)
	req2.RemoteAddr = "10.0.0.6:1"
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second immediate request to be rate limited, got %d", rec2.Code)
	}
}
