package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule runs cleanup daily at 03:00.
const DefaultSchedule = "0 3 * * *"

// Pruner removes tracker verifications older than the retention period.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler runs periodic storage cleanup.
type Scheduler struct {
	c         *cron.Cron
	pruner    Pruner
	retention time.Duration
	schedule  string
	logger    *zap.Logger
}

// NewScheduler creates a scheduler using standard five-field cron specs.
func NewScheduler(pruner Pruner, retention time.Duration, schedule string, logger *zap.Logger) *Scheduler {
	c := cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)))

	return &Scheduler{
		c:         c,
		pruner:    pruner,
		retention: retention,
		schedule:  schedule,
		logger:    logger,
	}
}

// Start registers the cleanup job, starts the cron runner and prunes once right away.
// The runner stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.c.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule cleanup %q: %w", s.schedule, err)
	}

	s.c.Start()
	s.logger.Info("maintenance scheduler started",
		zap.String("schedule", s.schedule),
		zap.Duration("retention", s.retention),
	)

	go s.RunOnce(ctx)

	go func() {
		<-ctx.Done()
		<-s.c.Stop().Done()
	}()

	return nil
}

// RunOnce prunes stale tracker verifications.
func (s *Scheduler) RunOnce(ctx context.Context) {
	removed, err := s.pruner.Prune(ctx, s.retention)
	if err != nil {
		s.logger.Error("failed to prune tracker verifications", zap.Error(err))

		return
	}

	s.logger.Info("pruned tracker verifications", zap.Int64("removed", removed))
}

// Shutdown stops the cron runner and waits for a running job to finish.
func (s *Scheduler) Shutdown() error {
	<-s.c.Stop().Done()

	return nil
}
