package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimitConfig controls the per-client fixed window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window. Zero disables
	// limiting.
	Max int
	// Window is the duration of the counting window.
	Window time.Duration
}

type rlWindow struct {
	count   int
	startAt time.Time
}

type rateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	clients map[string]*rlWindow
}

func (l *rateLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.clients[key]
	if !ok || now.Sub(w.startAt) >= l.cfg.Window {
		l.clients[key] = &rlWindow{count: 1, startAt: now}
		return true
	}
	if w.count >= l.cfg.Max {
		return false
	}
	w.count++
	return true
}

// cleanup drops windows that have fully expired. Runs until ctx is done.
func (l *rateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for key, w := range l.clients {
				if now.Sub(w.startAt) >= l.cfg.Window {
					delete(l.clients, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// RateLimit returns a middleware limiting each client IP to cfg.Max requests
// per cfg.Window. A background goroutine evicts idle clients until ctx is
// cancelled.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	limiter := &rateLimiter{cfg: cfg, clients: make(map[string]*rlWindow)}
	if cfg.Max > 0 {
		go limiter.cleanup(ctx)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Max <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			key, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				key = r.RemoteAddr
			}

			if !limiter.allow(key, time.Now()) {
				w.Header().Set("Retry-After", cfg.Window.String())
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
