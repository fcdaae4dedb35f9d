package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/healthmetrica/cdss/internal/platform/auth"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func hit(e *echo.Echo, h echo.HandlerFunc, ip, user string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":1234"
	if user != "" {
		req = req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, user))
	}
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestRateLimit_BurstThenDeny(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})(okHandler)

	for i := 0; i < 2; i++ {
		rec, err := hit(e, h, "10.0.0.1", "")
		if err != nil || rec.Code != http.StatusOK {
			t.Fatalf("request %d: err=%v code=%d", i+1, err, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "1" {
			t.Errorf("limit header = %q", rec.Header().Get("X-RateLimit-Limit"))
		}
	}

	rec, err := hit(e, h, "10.0.0.1", "")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_SeparateKeys(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})(okHandler)

	if _, err := hit(e, h, "10.0.0.1", ""); err != nil {
		t.Fatalf("first ip: %v", err)
	}
	if _, err := hit(e, h, "10.0.0.2", ""); err != nil {
		t.Errorf("second ip should have its own bucket: %v", err)
	}
	if _, err := hit(e, h, "10.0.0.1", "dr-house"); err != nil {
		t.Errorf("authenticated user should be keyed by user id: %v", err)
	}
}

func TestRateLimit_DefaultsWhenUnset(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{})(okHandler)
	rec, err := hit(e, h, "10.0.0.1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "50" {
		t.Errorf("limit header = %q", rec.Header().Get("X-RateLimit-Limit"))
	}
}
