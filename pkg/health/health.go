// Package health provides liveness and readiness probe endpoints backed by
// periodically executed checks.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports the health of one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	lastErr atomic.Pointer[error]
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)
}

func (c *check) healthy() bool {
	p := c.lastErr.Load()
	return p == nil || *p == nil
}

// Service runs registered checks on an interval and serves their combined
// state on probe endpoints. Liveness and readiness checks are independent
// sets; readiness additionally requires SetReady(true).
type Service struct {
	mu        sync.Mutex
	liveness  []*check
	readiness []*check

	ready  atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an empty health service.
func New() *Service {
	return &Service{}
}

// AddLivenessCheck registers a check for the /livez endpoint.
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	s.liveness = append(s.liveness, &check{name: name, timeout: timeout, fn: fn})
	s.mu.Unlock()
}

// AddReadinessCheck registers a check for the /readyz endpoint.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	s.readiness = append(s.readiness, &check{name: name, timeout: timeout, fn: fn})
	s.mu.Unlock()
}

// Start runs all checks immediately and then on the given interval until the
// context is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.runAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runAll(ctx)
			}
		}
	}()
}

// Stop halts the background check loop.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// SetReady toggles overall readiness independent of check results. Used to
// drain traffic during shutdown.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Service) runAll(ctx context.Context) {
	s.mu.Lock()
	checks := make([]*check, 0, len(s.liveness)+len(s.readiness))
	checks = append(checks, s.liveness...)
	checks = append(checks, s.readiness...)
	s.mu.Unlock()

	for _, c := range checks {
		c.run(ctx)
	}
}

// LiveEndpoint serves the liveness probe.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	checks := append([]*check(nil), s.liveness...)
	s.mu.Unlock()

	s.respond(w, checks, true)
}

// ReadyEndpoint serves the readiness probe.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	checks := append([]*check(nil), s.readiness...)
	s.mu.Unlock()

	s.respond(w, checks, s.ready.Load())
}

func (s *Service) respond(w http.ResponseWriter, checks []*check, ready bool) {
	status := "ok"
	code := http.StatusOK
	results := make(map[string]string, len(checks))

	for _, c := range checks {
		if c.healthy() {
			results[c.name] = "ok"
			continue
		}
		results[c.name] = "fail"
		status = "fail"
		code = http.StatusServiceUnavailable
	}
	if !ready {
		status = "fail"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": results,
	})
}
