package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestThrottleBlocksAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	throttle := NewThrottle(1, 2)
	throttle.now = func() time.Time { return now }

	router := gin.New()
	router.Use(throttle.Handler())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	now = now.Add(time.Second)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:1234"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected refill after one second, got %d", rr.Code)
	}
}

func TestThrottleSeparatesClients(t *testing.T) {
	gin.SetMode(gin.TestMode)

	throttle := NewThrottle(1, 1)
	router := gin.New()
	router.Use(throttle.Handler())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, addr := range []string{"192.0.2.1:1", "192.0.2.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", addr, rr.Code)
		}
	}
}

func TestNilThrottlePassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	if NewThrottle(0, 10) != nil {
		t.Fatal("expected nil throttle for zero rate")
	}

	router := gin.New()
	router.Use((*Throttle)(nil).Handler())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}
