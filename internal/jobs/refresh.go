// Package jobs contains the scheduled background jobs of the service.
package jobs

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xenking/orderdesk/internal/analytics"
)

// AnalyticsRefreshJob recomputes the all-time analytics snapshot on a
// schedule so interactive reads land on a warm cache even right after an
// invalidation.
type AnalyticsRefreshJob struct {
	cache    *analytics.Cache
	cron     *cron.Cron
	schedule string
	lg       *zap.Logger
}

// NewAnalyticsRefreshJob creates the refresh job with a cron schedule such
// as "@every 5m".
func NewAnalyticsRefreshJob(cache *analytics.Cache, schedule string, lg *zap.Logger) *AnalyticsRefreshJob {
	return &AnalyticsRefreshJob{
		cache:    cache,
		cron:     cron.New(),
		schedule: schedule,
		lg:       lg.Named("analytics_refresh"),
	}
}

// Start schedules the refresh and begins running it.
func (j *AnalyticsRefreshJob) Start(ctx context.Context) error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		if _, err := j.cache.Get(ctx, true); err != nil {
			j.lg.Error("analytics refresh failed", zap.Error(err))
			return
		}
		j.lg.Debug("analytics cache refreshed")
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.lg.Info("analytics refresh job started", zap.String("schedule", j.schedule))
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (j *AnalyticsRefreshJob) Stop() {
	<-j.cron.Stop().Done()
	j.lg.Info("analytics refresh job stopped")
}
