package scheduler

import (
	"context"
	"fmt"
	"time"

	"crmflow_backend/internal/automation/domain"
	"crmflow_backend/internal/events"
	"crmflow_backend/platform/config"
	"crmflow_backend/platform/logger"
)

// RetryScheduler listens for failed send_message executions and schedules a
// later attempt with linear backoff, up to the configured maximum. Only the
// outbound message action is retried: the other actions either succeed, fail
// on a state race the retry could not win, or fail on configuration.
type RetryScheduler struct {
	client      *Client
	maxAttempts int
	backoff     time.Duration
	log         *logger.Logger
}

func NewRetryScheduler(cfg config.SchedulerConfig, client *Client, log *logger.Logger) *RetryScheduler {
	maxAttempts := cfg.GetSendRetryMaxAttempts()
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	backoff := cfg.GetSendRetryBackoff()
	if backoff <= 0 {
		backoff = 30 * time.Second
	}

	return &RetryScheduler{
		client:      client,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		log:         log,
	}
}

// Subscribe attaches the scheduler to the execution event stream.
func (r *RetryScheduler) Subscribe(bus events.Bus) {
	bus.Subscribe("automation.execution.recorded", events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		ev, ok := event.(events.ExecutionRecorded)
		if !ok {
			return fmt.Errorf("unexpected event type %T", event)
		}
		return r.onExecutionRecorded(ctx, ev)
	}))
}

func (r *RetryScheduler) onExecutionRecorded(ctx context.Context, ev events.ExecutionRecorded) error {
	if ev.Success || ev.ActionType != string(domain.ActionSendMessage) {
		return nil
	}
	if ev.Attempt >= r.maxAttempts {
		r.log.Warn("send retry budget exhausted",
			"ruleId", ev.RuleID, "leadId", ev.LeadID, "attempts", ev.Attempt)
		return nil
	}

	next := ev.Attempt + 1
	delay := time.Duration(ev.Attempt) * r.backoff

	err := r.client.ScheduleSendRetry(ctx, SendRetryPayload{
		CompanyID: ev.CompanyID.String(),
		RuleID:    ev.RuleID.String(),
		LeadID:    ev.LeadID.String(),
		Attempt:   next,
	}, delay)
	if err != nil {
		return fmt.Errorf("schedule send retry: %w", err)
	}

	r.log.Info("send retry scheduled",
		"ruleId", ev.RuleID, "leadId", ev.LeadID, "attempt", next, "delay", delay.String())
	return nil
}
