package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper returns over-lease processing tasks to the queue.
type Sweeper interface {
	ReclaimStale(ctx context.Context, leaseTimeout time.Duration, maxAttempts int) (reclaimed, exhausted int64, err error)
}

// Reclaimer periodically sweeps tasks abandoned by crashed workers, so
// a claim is a lease rather than permanent ownership.
type Reclaimer struct {
	sweeper      Sweeper
	interval     time.Duration
	leaseTimeout time.Duration
	maxAttempts  int
}

func NewReclaimer(sweeper Sweeper, interval, leaseTimeout time.Duration, maxAttempts int) *Reclaimer {
	if interval <= 0 {
		interval = time.Minute
	}
	if leaseTimeout <= 0 {
		leaseTimeout = 5 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Reclaimer{
		sweeper:      sweeper,
		interval:     interval,
		leaseTimeout: leaseTimeout,
		maxAttempts:  maxAttempts,
	}
}

// Run sweeps at the configured interval until the context is cancelled.
func (r *Reclaimer) Run(ctx context.Context) {
	log.Info().Dur("lease_timeout", r.leaseTimeout).Int("max_attempts", r.maxAttempts).Msg("Task reclaimer started")
	for sleep(ctx, r.interval) {
		reclaimed, exhausted, err := r.sweeper.ReclaimStale(ctx, r.leaseTimeout, r.maxAttempts)
		if err != nil {
			log.Error().Err(err).Msg("Reclaim sweep failed")
			continue
		}
		if reclaimed > 0 || exhausted > 0 {
			log.Warn().Int64("reclaimed", reclaimed).Int64("exhausted", exhausted).Msg("Recovered stale tasks")
		}
	}
}
