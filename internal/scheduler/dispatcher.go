package scheduler

import (
	"context"
	"time"

	"crmflow_backend/platform/config"
	"crmflow_backend/platform/logger"
)

// SweepDispatcher periodically enqueues the time-based tick and inactivity
// sweep tasks. It only produces work; the worker does the evaluation, so
// the API process can host the dispatcher without running the engine.
type SweepDispatcher struct {
	client   *Client
	interval time.Duration
	log      *logger.Logger
}

func NewSweepDispatcher(cfg config.SchedulerConfig, client *Client, log *logger.Logger) *SweepDispatcher {
	interval := cfg.GetInactivitySweepInterval()
	if interval <= 0 {
		interval = time.Minute
	}

	return &SweepDispatcher{
		client:   client,
		interval: interval,
		log:      log,
	}
}

func (d *SweepDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := d.client.EnqueueTimeBasedTick(ctx); err != nil {
			d.log.Warn("enqueue time-based tick failed", "error", err)
		}
		if err := d.client.EnqueueInactivitySweep(ctx); err != nil {
			d.log.Warn("enqueue inactivity sweep failed", "error", err)
		}
	}
}
