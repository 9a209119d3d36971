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
	apphttp "crmflow_backend/internal/http"
	"crmflow_backend/internal/http/router"
	"crmflow_backend/internal/leads"
	"crmflow_backend/internal/notification"
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

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	whatsappClient := whatsapp.NewClient(cfg, log)
	emailSender := email.NewSMTPSender(cfg)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadsModule := leads.NewModule(pool, eventBus, val, log)
	sellersModule := sellers.NewModule(pool)
	templatesModule := templates.NewModule(pool)
	notificationModule := notification.NewModule(pool, emailSender, log)

	automationModule := automation.NewModule(automation.Deps{
		Pool:      pool,
		Bus:       eventBus,
		Validator: val,
		Logger:    log,
		Leads:     leadsModule.Repository(),
		Sellers:   sellersModule.Repository(),
		Templates: templatesModule.Repository(),
		Messenger: whatsappClient,
		Notifier:  notificationModule.Service(),
	})

	// The retry scheduler and sweep dispatcher need Redis; without it the
	// API still serves, but time-based and inactivity rules stay quiet and
	// failed sends are not retried.
	if cfg.RedisURL != "" {
		schedClient, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize scheduler client", "error", err)
			panic("failed to initialize scheduler client: " + err.Error())
		}
		defer func() {
			_ = schedClient.Close()
		}()

		scheduler.NewRetryScheduler(cfg, schedClient, log).Subscribe(eventBus)

		dispatcher := scheduler.NewSweepDispatcher(cfg, schedClient, log)
		go dispatcher.Run(ctx)
		log.Info("sweep dispatcher started", "interval", cfg.InactivitySweepInterval.String())
	} else {
		log.Warn("REDIS_URL not configured; sweeps and send retries disabled")
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			sellersModule,
			templatesModule,
			notificationModule,
			automationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
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
