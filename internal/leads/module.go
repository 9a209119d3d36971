// Package leads provides the lead bounded context module: the service-local
// representation of the CRM's lead records and the lifecycle endpoints that
// feed the automation engine's event source.
package leads

import (
	"crmflow_backend/internal/events"
	apphttp "crmflow_backend/internal/http"
	"crmflow_backend/internal/leads/handler"
	"crmflow_backend/internal/leads/repository"
	"crmflow_backend/internal/leads/service"
	"crmflow_backend/platform/logger"
	"crmflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repo
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct access by the automation engine.
func (m *Module) Repository() *repository.Repo {
	return m.repo
}

// RegisterRoutes mounts lead routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/leads")
	group.GET("", m.handler.List)
	group.POST("", m.handler.Create)
	group.GET("/:id", m.handler.GetByID)
	group.POST("/:id/status", m.handler.ChangeStatus)
	group.POST("/:id/tags", m.handler.AddTag)
	group.POST("/:id/activity", m.handler.RecordActivity)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
