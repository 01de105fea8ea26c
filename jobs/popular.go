// Package jobs schedules background maintenance of read models.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cppla/anonid/metrics"
	"github.com/cppla/anonid/services"
)

const (
	popularJob     = "popular_discussions"
	popularTimeout = time.Minute
)

// Refresher rebuilds the popular discussions document.
type Refresher interface {
	RefreshPopular(ctx context.Context) (*services.PopularDiscussions, error)
}

// Scheduler runs the periodic jobs.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

// NewScheduler registers the popular discussions refresh under spec (standard cron syntax or
// descriptors such as "@every 10m"). Overlapping runs are skipped.
func NewScheduler(spec string, r Refresher, logger *zap.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(spec, func() { RunPopular(context.Background(), r, logger) }); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", popularJob, err)
	}
	return &Scheduler{cron: c, log: logger}, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("job scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunPopular refreshes the popular discussions once. Failures are logged and never returned.
func RunPopular(ctx context.Context, r Refresher, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, popularTimeout)
	defer cancel()
	start := time.Now()
	out, err := r.RefreshPopular(ctx)
	metrics.RecordJobRun(popularJob, time.Since(start), err == nil)
	if err != nil {
		logger.Error("popular discussions refresh failed", zap.Error(err))
		return
	}
	logger.Debug("popular discussions refresh done", zap.Int("items", len(out.Items)))
}
