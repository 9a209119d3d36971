// Package automation is the rule engine bounded context: rule management,
// trigger evaluation, action execution, the execution log and its
// analytics. It subscribes to lead lifecycle events and exposes the rule
// CRUD and analytics HTTP surface.
package automation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"crmflow_backend/internal/automation/analytics"
	"crmflow_backend/internal/automation/engine"
	"crmflow_backend/internal/automation/handler"
	"crmflow_backend/internal/automation/repository"
	"crmflow_backend/internal/automation/service"
	"crmflow_backend/internal/events"
	apphttp "crmflow_backend/internal/http"
	leadsrepo "crmflow_backend/internal/leads/repository"
	"crmflow_backend/internal/notification/inapp"
	"crmflow_backend/internal/sellers"
	"crmflow_backend/internal/templates"
	"crmflow_backend/platform/logger"
	"crmflow_backend/platform/validator"
)

// Module is the automation bounded context module implementing http.Module.
type Module struct {
	handler   *handler.Handler
	service   *service.Service
	evaluator *engine.Evaluator
	executor  *engine.Executor
}

// Deps carries the cross-context collaborators the engine acts through.
type Deps struct {
	Pool      *pgxpool.Pool
	Bus       events.Bus
	Validator *validator.Validator
	Logger    *logger.Logger
	Leads     *leadsrepo.Repo
	Sellers   *sellers.Repository
	Templates *templates.Repository
	Messenger engine.Messenger
	Notifier  *inapp.Service
}

// NewModule creates and initializes the automation module, wiring the
// evaluator to the lead lifecycle events on the bus.
func NewModule(d Deps) *Module {
	rules := repository.NewRules(d.Pool)
	executions := repository.NewExecutions(d.Pool)
	markers := repository.NewMarkers(d.Pool)
	candidates := repository.NewCandidates(d.Pool)
	stats := repository.NewStats(d.Pool)

	executor := engine.NewExecutor(executions, d.Leads, d.Sellers, d.Templates, d.Messenger, d.Notifier, d.Bus, d.Logger)
	evaluator := engine.NewEvaluator(rules, d.Leads, candidates, markers, executor, d.Logger)

	svc := service.New(rules, executions, d.Logger)
	analyticsSvc := analytics.New(stats, executions)
	h := handler.New(svc, analyticsSvc, d.Validator)

	m := &Module{
		handler:   h,
		service:   svc,
		evaluator: evaluator,
		executor:  executor,
	}
	m.subscribe(d.Bus)

	return m
}

func (m *Module) subscribe(bus events.Bus) {
	bus.Subscribe("leads.status.changed", events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		ev, ok := event.(events.LeadStatusChanged)
		if !ok {
			return fmt.Errorf("unexpected event type %T", event)
		}
		return m.evaluator.OnStatusChanged(ctx, ev)
	}))

	bus.Subscribe("leads.tag.added", events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		ev, ok := event.(events.LeadTagAdded)
		if !ok {
			return fmt.Errorf("unexpected event type %T", event)
		}
		return m.evaluator.OnTagAdded(ctx, ev)
	}))
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "automation"
}

// Evaluator returns the trigger evaluator for the scheduler worker.
func (m *Module) Evaluator() *engine.Evaluator {
	return m.evaluator
}

// RegisterRoutes mounts rule management and analytics routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	rules := ctx.Protected.Group("/automations")
	rules.GET("", m.handler.List)
	rules.POST("", m.handler.Create)
	rules.GET("/:id", m.handler.GetByID)
	rules.PUT("/:id", m.handler.Update)
	rules.POST("/:id/activate", m.handler.Activate)
	rules.POST("/:id/deactivate", m.handler.Deactivate)
	rules.DELETE("/:id", m.handler.Delete)
	rules.GET("/:id/executions", m.handler.Executions)

	// Analytics live beside the rule routes; gin cannot mix a static
	// segment with the :id wildcard under the same prefix.
	stats := ctx.Protected.Group("/automation-analytics")
	stats.GET("/overview", m.handler.Overview)
	stats.GET("/trends", m.handler.Trends)
	stats.GET("/hourly", m.handler.Hourly)
	stats.GET("/transfer-patterns", m.handler.TransferPatterns)
	stats.GET("/recent", m.handler.Recent)
	stats.GET("/rules", m.handler.RuleStats)
	stats.GET("/recommendations", m.handler.Recommendations)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
