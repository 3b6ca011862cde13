package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartpick/smartpick/internal/cache"
)

// bucketLimiter allows burst requests per ip and then denies.
type bucketLimiter struct {
	used map[string]int
	err  error
}

func (l *bucketLimiter) CheckIPRateLimit(ctx context.Context, scope, ip string, rps float64, burst int) (*cache.RateLimitResult, error) {
	if l.err != nil {
		return nil, l.err
	}
	key := scope + "|" + ip
	l.used[key]++
	remaining := int64(burst - l.used[key])
	if remaining < 0 {
		return &cache.RateLimitResult{Allowed: false, RetryAfter: 2 * time.Second, ResetAt: time.Now()}, nil
	}
	return &cache.RateLimitResult{Allowed: true, Remaining: remaining, ResetAt: time.Now()}, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitIP_ExhaustsBucket(t *testing.T) {
	limiter := &bucketLimiter{used: map[string]int{}}
	handler := RateLimitIP(RateLimitConfig{
		Logger:  discardLogger(),
		Limiter: limiter,
		Enabled: true,
		Scope:   "recommend",
		RPS:     1,
		Burst:   2,
	})(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPatch, "/queries/abc/recommend", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)

		if i == 2 && rec.Header().Get("Retry-After") != "2" {
			t.Errorf("Retry-After = %q, want 2", rec.Header().Get("Retry-After"))
		}
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i, codes[i], want[i])
		}
	}

	// Buckets are per IP with the port stripped.
	if limiter.used["recommend|10.0.0.1"] != 3 {
		t.Errorf("bucket usage = %v", limiter.used)
	}
}

func TestRateLimitIP_FailsOpen(t *testing.T) {
	handler := RateLimitIP(RateLimitConfig{
		Logger:  discardLogger(),
		Limiter: &bucketLimiter{err: errors.New("redis down")},
		Enabled: true,
		Burst:   1,
	})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRateLimitIP_Disabled(t *testing.T) {
	limiter := &bucketLimiter{used: map[string]int{}}
	handler := RateLimitIP(RateLimitConfig{Limiter: limiter, Enabled: false})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/", nil))
	if rec.Code != http.StatusOK || len(limiter.used) != 0 {
		t.Errorf("disabled limiter should pass through, status=%d used=%v", rec.Code, limiter.used)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr with port", "192.168.1.5:1234", nil, "192.168.1.5"},
		{"remote addr without port", "192.168.1.5", nil, "192.168.1.5"},
		{"forwarded for", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "1.2.3.4"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "5.6.7.8"}, "5.6.7.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
