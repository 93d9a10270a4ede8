package mw

import (
	"net"
	"net/http"
	"sync"
	"time"

	"matchroom_server/helpers"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

type keyLimiter struct {
	lim *rate.Limiter
	ts  time.Time
}

// RL keeps one token bucket per client key and forgets idle keys.
type RL struct {
	mu   sync.Mutex
	m    map[string]*keyLimiter
	r    rate.Limit
	b    int
	ttl  time.Duration
	stop chan struct{}
	once sync.Once
}

func NewRateLimiter(r rate.Limit, burst int, ttl time.Duration) *RL {
	rl := &RL{m: make(map[string]*keyLimiter), r: r, b: burst, ttl: ttl, stop: make(chan struct{})}
	go rl.gc()
	return rl
}

func (rl *RL) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	kl, ok := rl.m[key]
	if ok {
		kl.ts = time.Now()
		return kl.lim
	}
	lim := rate.NewLimiter(rl.r, rl.b)
	rl.m[key] = &keyLimiter{lim: lim, ts: time.Now()}
	return lim
}

// Allow consumes a token for key.
func (rl *RL) Allow(key string) bool {
	return rl.get(key).Allow()
}

func (rl *RL) gc() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep(time.Now())
		}
	}
}

func (rl *RL) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, v := range rl.m {
		if now.Sub(v.ts) > rl.ttl {
			delete(rl.m, k)
		}
	}
}

// Stop ends the GC goroutine. Safe to call more than once.
func (rl *RL) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Middleware limits requests per client IP and route template.
func (rl *RL) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r.RemoteAddr) + "|" + routeKey(r)
		if !rl.Allow(key) {
			helpers.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func routeKey(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
