package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

// testClock hands the limiter a controllable time source.
type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg RateLimitConfig) (*limiter, *testClock) {
	clk := &testClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	lim := newLimiter(cfg)
	lim.now = clk.now
	return lim, clk
}

func TestLimiter_BurstThenRefill(t *testing.T) {
	lim, clk := newTestLimiter(RateLimitConfig{RequestsPerSecond: 2, BurstSize: 3})

	for i := 0; i < 3; i++ {
		if ok, _ := lim.take("192.0.2.1"); !ok {
			t.Fatalf("take %d: expected burst token", i+1)
		}
	}
	if ok, _ := lim.take("192.0.2.1"); ok {
		t.Fatal("expected empty bucket after burst")
	}

	// Half a second at 2 rps refills one token.
	clk.advance(500 * time.Millisecond)
	if ok, _ := lim.take("192.0.2.1"); !ok {
		t.Fatal("expected one refilled token")
	}
	if ok, _ := lim.take("192.0.2.1"); ok {
		t.Fatal("expected bucket drained again")
	}
}

func TestLimiter_RefillCapsAtBurst(t *testing.T) {
	lim, clk := newTestLimiter(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 2})

	lim.take("192.0.2.1")
	clk.advance(time.Minute)

	allowed := 0
	for i := 0; i < 5; i++ {
		if ok, _ := lim.take("192.0.2.1"); ok {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("expected refill capped at burst 2, got %d allowed", allowed)
	}
}

func TestLimiter_RetryAfter(t *testing.T) {
	lim, _ := newTestLimiter(RateLimitConfig{RequestsPerSecond: 0.5, BurstSize: 1})

	lim.take("192.0.2.1")
	ok, retryAfter := lim.take("192.0.2.1")
	if ok {
		t.Fatal("expected empty bucket")
	}
	// One token at 0.5 rps takes two seconds.
	if retryAfter != 2 {
		t.Errorf("expected Retry-After 2, got %d", retryAfter)
	}
}

func TestLimiter_RetryAfterWithZeroRate(t *testing.T) {
	lim, _ := newTestLimiter(RateLimitConfig{RequestsPerSecond: 0, BurstSize: 1})

	lim.take("192.0.2.1")
	ok, retryAfter := lim.take("192.0.2.1")
	if ok {
		t.Fatal("expected empty bucket")
	}
	if retryAfter != 1 {
		t.Errorf("expected Retry-After floor of 1 with no refill, got %d", retryAfter)
	}
}

func TestLimiter_SweepDropsIdleBuckets(t *testing.T) {
	lim, clk := newTestLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})

	lim.take("192.0.2.1")
	lim.take("192.0.2.2")
	if len(lim.buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(lim.buckets))
	}

	clk.advance(idleTTL + time.Second)
	lim.take("192.0.2.3")

	if len(lim.buckets) != 1 {
		t.Errorf("expected idle buckets swept, got %d", len(lim.buckets))
	}
	if _, ok := lim.buckets["192.0.2.3"]; !ok {
		t.Error("expected the active bucket to survive the sweep")
	}
}

func TestRateLimit_AllowsWithinBurst(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		if err := handler(e.NewContext(req, rec)); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i+1, err)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit 10, got %q", i+1, got)
		}
	}
}

func TestRateLimit_ThrottlesWith429(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := handler(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatalf("first request: unexpected error: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	err := handler(e.NewContext(req, rec))
	if err == nil {
		t.Fatal("expected throttled request to error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", got)
	}
	retryAfter, parseErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if parseErr != nil || retryAfter < 1 {
		t.Errorf("expected Retry-After of at least 1 second, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimit_SeparateBucketsPerClientIP(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	do := func(ip string) error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", ip)
		return handler(e.NewContext(req, httptest.NewRecorder()))
	}

	if err := do("10.0.0.1"); err != nil {
		t.Fatalf("first client, first request: %v", err)
	}
	if err := do("10.0.0.1"); err == nil {
		t.Fatal("first client, second request: expected throttle")
	}
	if err := do("10.0.0.2"); err != nil {
		t.Fatalf("second client should have its own bucket: %v", err)
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 100 || cfg.BurstSize != 200 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
