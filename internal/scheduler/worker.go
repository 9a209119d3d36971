package scheduler

import (
	"context"
	"fmt"

	"crmflow_backend/platform/config"
	"crmflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Engine is the evaluator surface the worker drives.
type Engine interface {
	SweepTimeBased(ctx context.Context) error
	SweepInactivity(ctx context.Context) error
	RetrySend(ctx context.Context, companyID, ruleID, leadID uuid.UUID, attempt int) error
}

// Worker consumes automation tasks from the queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	engine Engine
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, engine Engine, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		engine: engine,
		log:    log,
	}

	mux.HandleFunc(TaskTimeBasedTick, w.handleTimeBasedTick)
	mux.HandleFunc(TaskInactivitySweep, w.handleInactivitySweep)
	mux.HandleFunc(TaskSendRetry, w.handleSendRetry)

	return w, nil
}

func (w *Worker) handleTimeBasedTick(ctx context.Context, _ *asynq.Task) error {
	return w.engine.SweepTimeBased(ctx)
}

func (w *Worker) handleInactivitySweep(ctx context.Context, _ *asynq.Task) error {
	return w.engine.SweepInactivity(ctx)
}

func (w *Worker) handleSendRetry(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSendRetryPayload(task)
	if err != nil {
		return err
	}

	companyID, err := uuid.Parse(payload.CompanyID)
	if err != nil {
		return err
	}
	ruleID, err := uuid.Parse(payload.RuleID)
	if err != nil {
		return err
	}
	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	return w.engine.RetrySend(ctx, companyID, ruleID, leadID, payload.Attempt)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
