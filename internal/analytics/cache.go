// Package analytics computes aggregate statistics over the order population
// and caches the result. The cache is scoped to one process instance and
// trades bounded staleness for not rescanning every order on every read.
package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/orderdesk/internal/domain/customer"
	"github.com/xenking/orderdesk/internal/domain/order"
	"github.com/xenking/orderdesk/internal/storage"
)

// Freshness policy. The all-time entry has two independent expiry checks:
// the mutation-recency window and its own absolute TTL. Both must pass; the
// TTL bounds staleness even when a mutation signal is missed. Period entries
// only age out: historical windows are immutable and live longer than
// windows that are still ongoing.
const (
	mutationFreshWindow = 5 * time.Minute
	allTimeTTL          = 15 * time.Minute
	historicalPeriodTTL = time.Hour
	ongoingPeriodTTL    = 10 * time.Minute
)

type entry struct {
	snap       Snapshot
	computedAt time.Time
}

// periodKey is the normalized [start, end] date pair of a period query.
type periodKey struct {
	start string
	end   string
}

// Cache serves analytics snapshots for the whole order population or for an
// explicit date window. It is safe for concurrent use; concurrent readers
// may recompute the same snapshot, which is harmless because computation is
// idempotent.
type Cache struct {
	store storage.Storage
	now   func() time.Time

	mu          sync.Mutex
	allTime     *entry
	periods     map[periodKey]entry
	lastMutated time.Time

	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
		c.lastMutated = now()
	}
}

// WithMeter registers cache hit/miss counters on the given meter.
func WithMeter(m metric.Meter) Option {
	return func(c *Cache) {
		c.hits, _ = m.Int64Counter("analytics.cache.hits")
		c.misses, _ = m.Int64Counter("analytics.cache.misses")
	}
}

// New creates a Cache over the given storage collaborator.
func New(store storage.Storage, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		now:     time.Now,
		periods: make(map[periodKey]entry),
	}
	c.lastMutated = c.now()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the all-time snapshot, recomputing when the cached entry is
// missing or stale. forceRefresh bypasses all freshness checks but still
// repopulates the cache.
func (c *Cache) Get(ctx context.Context, forceRefresh bool) (Snapshot, error) {
	now := c.now()

	c.mu.Lock()
	if !forceRefresh && c.allTime != nil &&
		now.Sub(c.lastMutated) < mutationFreshWindow &&
		now.Sub(c.allTime.computedAt) < allTimeTTL {
		snap := c.allTime.snap.clone()
		c.mu.Unlock()
		c.record(ctx, c.hits)
		return snap, nil
	}
	c.mu.Unlock()
	c.record(ctx, c.misses)

	snap, err := c.compute(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}

	c.mu.Lock()
	c.allTime = &entry{snap: snap, computedAt: snap.ComputedAt}
	c.mu.Unlock()

	return snap.clone(), nil
}

// GetForPeriod returns a snapshot over orders whose order date falls within
// the [start, end] window, inclusive of both days. Results are cached per
// normalized date pair.
func (c *Cache) GetForPeriod(ctx context.Context, start, end time.Time) (Snapshot, error) {
	from := startOfDay(start)
	until := startOfDay(end).Add(24 * time.Hour)
	key := periodKey{
		start: from.Format(time.DateOnly),
		end:   startOfDay(end).Format(time.DateOnly),
	}

	now := c.now()
	ttl := ongoingPeriodTTL
	if !until.After(startOfDay(now)) {
		ttl = historicalPeriodTTL
	}

	c.mu.Lock()
	if e, ok := c.periods[key]; ok && now.Sub(e.computedAt) < ttl {
		snap := e.snap.clone()
		c.mu.Unlock()
		c.record(ctx, c.hits)
		return snap, nil
	}
	c.mu.Unlock()
	c.record(ctx, c.misses)

	snap, err := c.compute(ctx, &window{from: from, until: until})
	if err != nil {
		return Snapshot{}, err
	}

	c.mu.Lock()
	c.periods[key] = entry{snap: snap, computedAt: snap.ComputedAt}
	c.mu.Unlock()

	return snap.clone(), nil
}

// Invalidate drops the all-time entry and stamps the mutation marker.
// Period entries are left to expire on their own schedule: historical
// windows cannot change, and ongoing ones age out quickly anyway.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.allTime = nil
	c.lastMutated = c.now()
	c.mu.Unlock()
}

// window is a half-open [from, until) time range over order dates.
type window struct {
	from  time.Time
	until time.Time
}

func (w *window) contains(t time.Time) bool {
	return !t.Before(w.from) && t.Before(w.until)
}

func (c *Cache) compute(ctx context.Context, w *window) (Snapshot, error) {
	var (
		orders    []order.Order
		customers []customer.Customer
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = c.store.LoadAllOrders(ctx)
		return errors.Wrap(err, "load orders")
	})
	g.Go(func() error {
		var err error
		customers, err = c.store.LoadAllCustomers(ctx)
		return errors.Wrap(err, "load customers")
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	if w != nil {
		filtered := orders[:0]
		for _, o := range orders {
			if w.contains(o.OrderDate) {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}

	return computeSnapshot(orders, customers, c.now()), nil
}

func (c *Cache) record(ctx context.Context, counter metric.Int64Counter) {
	if counter != nil {
		counter.Add(ctx, 1)
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
