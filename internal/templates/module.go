package templates

import (
	"net/http"

	apphttp "crmflow_backend/internal/http"
	"crmflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module exposes the template store over HTTP and to the automation engine.
type Module struct {
	repo *Repository
}

// NewModule creates the templates module.
func NewModule(pool *pgxpool.Pool) *Module {
	return &Module{repo: New(pool)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "templates"
}

// Repository returns the template store for the automation engine.
func (m *Module) Repository() *Repository {
	return m.repo
}

type createTemplateRequest struct {
	Name string `json:"name" binding:"required"`
	Body string `json:"body" binding:"required"`
}

// RegisterRoutes mounts template routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/message-templates")
	group.GET("", m.list)
	group.POST("", m.create)
	group.GET("/:id", m.getByID)
}

func (m *Module) list(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := m.repo.List(c.Request.Context(), identity.CompanyID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": result})
}

func (m *Module) create(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := m.repo.Create(c.Request.Context(), identity.CompanyID(), req.Name, req.Body)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

func (m *Module) getByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid template ID", nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := m.repo.GetByID(c.Request.Context(), identity.CompanyID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
