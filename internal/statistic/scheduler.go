package statistic

import (
	"context"
	"time"

	"github.com/roylee0704/gron"
	"go.uber.org/atomic"

	"juju/internal/providers"
	"juju/internal/statistic/interfaces"
	"juju/internal/structures"
)

// OrphanSweeper counts sessions whose project no longer resolves.
type OrphanSweeper interface {
	CountOrphans(ctx context.Context) (int, error)
}

type Scheduler struct {
	config  *structures.Config
	logger  providers.Logger
	cache   *StatisticsCache
	sweeper OrphanSweeper
	cron    *gron.Cron
	ctx     context.Context
	cancel  context.CancelFunc

	precomputing atomic.Bool
	sweeping     atomic.Bool
}

func (s *Scheduler) Init() {
	s.cron = gron.New()
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if interval := s.config.Scheduler.PrecomputeInterval; interval > 0 && s.config.Cache.Enabled {
		s.cron.AddFunc(gron.Every(interval), func() {
			_ = s.RunPrecompute(s.ctx)
		})
	}
	if interval := s.config.Scheduler.OrphanSweepInterval; interval > 0 {
		s.cron.AddFunc(gron.Every(interval), func() {
			_ = s.RunOrphanSweep(s.ctx)
		})
	}

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		s.cron.Stop()
	}
}

// RunPrecompute refreshes every project aggregate. A run that starts while
// another is still going is skipped.
func (s *Scheduler) RunPrecompute(ctx context.Context) error {
	if !s.precomputing.CompareAndSwap(false, true) {
		s.logger.Debugf(providers.TypeCache, "Precompute still running, skipping")
		return nil
	}
	defer s.precomputing.Store(false)

	started := time.Now()
	stored, err := s.cache.Precompute(ctx, nil)
	if err != nil {
		s.logger.Errorf(providers.TypeCache, "Error while precomputing aggregates: %s", err)
		return err
	}
	s.logger.Infof(providers.TypeCache, "Precomputed %d aggregates in %s", stored, time.Since(started))
	return nil
}

// RunOrphanSweep logs how many sessions reference missing projects.
func (s *Scheduler) RunOrphanSweep(ctx context.Context) error {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Debugf(providers.TypeApp, "Orphan sweep still running, skipping")
		return nil
	}
	defer s.sweeping.Store(false)

	count, err := s.sweeper.CountOrphans(ctx)
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while sweeping orphans: %s", err)
		return err
	}
	if count > 0 {
		s.logger.Warnf(providers.TypeApp, "%d sessions reference missing projects, run `juju orphans --repair`", count)
	}
	return nil
}

func NewScheduler(config *structures.Config, logger providers.Logger, cache *StatisticsCache, sweeper OrphanSweeper) interfaces.SchedulerInterface {
	return &Scheduler{
		config:  config,
		logger:  logger,
		cache:   cache,
		sweeper: sweeper,
	}
}
