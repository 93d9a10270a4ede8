package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newLimitedRouter(rl *RL) *mux.Router {
	r := mux.NewRouter()
	r.Use(rl.Middleware)
	r.HandleFunc("/api/rooms/{roomId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestRateLimitRejectsOverBurst(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 2, time.Minute)
	defer rl.Stop()
	router := newLimitedRouter(rl)

	codes := make([]int, 0, 3)
	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodGet, "/api/rooms/"+id, nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	// all three share the route template bucket
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitKeysByClientIP(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 1, time.Minute)
	defer rl.Stop()
	router := newLimitedRouter(rl)

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/api/rooms/x", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, addr)
	}
}

func TestSweepForgetsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 1, time.Minute)
	defer rl.Stop()

	rl.Allow("k")
	rl.sweep(time.Now().Add(2 * time.Minute))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.m)
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 1, time.Minute)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "192.168.1.5", clientIP("192.168.1.5:5555"))
	assert.Equal(t, "no-port", clientIP("no-port"))
}
