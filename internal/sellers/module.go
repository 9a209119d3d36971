package sellers

import (
	apphttp "crmflow_backend/internal/http"
	"crmflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module exposes the seller directory over HTTP and to the automation engine.
type Module struct {
	repo *Repository
}

// NewModule creates the sellers module.
func NewModule(pool *pgxpool.Pool) *Module {
	return &Module{repo: New(pool)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "sellers"
}

// Repository returns the seller directory for the automation engine.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts seller routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/sellers/load", m.listByLoad)
}

func (m *Module) listByLoad(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := m.repo.ListByLoad(c.Request.Context(), identity.CompanyID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": result})
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
