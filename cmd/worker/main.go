package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crmflow_backend/internal/automation"
	"crmflow_backend/internal/email"
	"crmflow_backend/platform/events"
	"crmflow_backend/internal/leads/repository"
	"crmflow_backend/internal/notification/inapp"
	"crmflow_backend/internal/scheduler"
	"crmflow_backend/internal/sellers"
	"crmflow_backend/internal/templates"
	"crmflow_backend/internal/whatsapp"
	"crmflow_backend/platform/config"
	"crmflow_backend/platform/db"
	"crmflow_backend/platform/logger"
	"crmflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The worker process consumes sweep and retry tasks from the queue and runs
// the automation engine against them. It shares the composition root shape
// of the API binary but serves no HTTP routes.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting automation worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	whatsappClient := whatsapp.NewClient(cfg, log)
	emailSender := email.NewSMTPSender(cfg)

	leadsRepo := repository.New(pool)
	sellersRepo := sellers.New(pool)
	templatesRepo := templates.New(pool)
	notifier := inapp.NewService(inapp.NewRepository(pool), emailSender, log)

	automationModule := automation.NewModule(automation.Deps{
		Pool:      pool,
		Bus:       eventBus,
		Validator: val,
		Logger:    log,
		Leads:     leadsRepo,
		Sellers:   sellersRepo,
		Templates: templatesRepo,
		Messenger: whatsappClient,
		Notifier:  notifier,
	})

	schedClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() {
		_ = schedClient.Close()
	}()

	// Failed sends executed on this process schedule their own retries.
	scheduler.NewRetryScheduler(cfg, schedClient, log).Subscribe(eventBus)

	worker, err := scheduler.NewWorker(cfg, automationModule.Evaluator(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	log.Info("worker consuming", "queue", cfg.AsynqQueueName, "concurrency", cfg.AsynqConcurrency)
	worker.Run(ctx)
	log.Info("worker stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
