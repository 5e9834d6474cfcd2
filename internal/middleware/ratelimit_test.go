package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_AllowAndDeny(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiterWithNow(2, time.Minute, func() time.Time { return clock })
	defer rl.Stop()

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow("ip"); !ok {
			t.Fatalf("expected allow %d", i)
		}
	}
	clock = clock.Add(20 * time.Second)
	ok, retry := rl.Allow("ip")
	if ok {
		t.Fatalf("expected deny")
	}
	if retry != 40*time.Second {
		t.Fatalf("expected 40s retry, got %v", retry)
	}
	if ok, _ := rl.Allow("other"); !ok {
		t.Fatalf("keys should be independent")
	}

	clock = clock.Add(41 * time.Second)
	if ok, _ := rl.Allow("ip"); !ok {
		t.Fatalf("expected allow after window")
	}
}

func TestRateLimiter_ZeroLimitDisables(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	defer rl.Stop()
	for i := 0; i < 100; i++ {
		if ok, _ := rl.Allow("ip"); !ok {
			t.Fatalf("expected allow")
		}
	}
}

func TestRateLimit_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiterWithNow(1, time.Minute, func() time.Time { return clock })
	defer rl.Stop()

	r := gin.New()
	r.GET("/", RateLimit(rl), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After 60, got %q", got)
	}
}
