package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Purger drops stored recordings older than a TTL.
type Purger interface {
	Purge(ctx context.Context, ttl time.Duration) (int, error)
}

// Janitor periodically purges recordings nobody came back to review.
type Janitor struct {
	cron   *cron.Cron
	store  Purger
	ttl    time.Duration
	logger *zap.Logger
}

func NewJanitor(store Purger, ttl time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{
		cron:   cron.New(),
		store:  store,
		ttl:    ttl,
		logger: logger.Named("janitor"),
	}
}

// Run sweeps on schedule until ctx is done.
func (j *Janitor) Run(ctx context.Context, schedule string) error {
	entryID, err := j.cron.AddFunc(schedule, func() { j.Sweep(ctx) })
	if err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	j.cron.Start()
	j.logger.Info("Janitor scheduled", zap.String("schedule", schedule), zap.Int("entry", int(entryID)), zap.Duration("ttl", j.ttl))

	<-ctx.Done()
	<-j.cron.Stop().Done()
	return nil
}

// Sweep purges once and reports how many recordings were dropped.
func (j *Janitor) Sweep(ctx context.Context) int {
	purged, err := j.store.Purge(ctx, j.ttl)
	if err != nil {
		j.logger.Warn("Failed to purge recordings", zap.Error(err))
		return 0
	}
	if purged > 0 {
		j.logger.Info("Purged unreviewed recordings", zap.Int("count", purged))
	}
	return purged
}
