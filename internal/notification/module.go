// Package notification provides the in-app notification bounded context:
// persistence, the optional email mirror, and the HTTP surface users poll
// for their notification feed.
package notification

import (
	"net/http"
	"strconv"

	"crmflow_backend/internal/email"
	apphttp "crmflow_backend/internal/http"
	"crmflow_backend/internal/notification/inapp"
	"crmflow_backend/platform/httpkit"
	"crmflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the notification bounded context module.
type Module struct {
	service *inapp.Service
}

// NewModule creates the notification module. The sender may be nil when
// the email channel is disabled.
func NewModule(pool *pgxpool.Pool, sender email.Sender, log *logger.Logger) *Module {
	repo := inapp.NewRepository(pool)
	svc := inapp.NewService(repo, sender, log)
	return &Module{service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// Service returns the in-app notification service for the automation engine.
func (m *Module) Service() *inapp.Service {
	return m.service
}

// RegisterRoutes mounts notification routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/notifications")
	group.GET("", m.list)
	group.GET("/unread-count", m.unreadCount)
	group.POST("/:id/read", m.markRead)
	group.POST("/read-all", m.markAllRead)
	group.DELETE("/:id", m.delete)
}

func (m *Module) list(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	items, total, err := m.service.List(c.Request.Context(), identity.CompanyID(), identity.UserID(), page, pageSize)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items, "total": total})
}

func (m *Module) unreadCount(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	count, err := m.service.CountUnread(c.Request.Context(), identity.CompanyID(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"count": count})
}

func (m *Module) markRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid notification ID", nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := m.service.MarkRead(c.Request.Context(), identity.CompanyID(), identity.UserID(), id); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

func (m *Module) markAllRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := m.service.MarkAllRead(c.Request.Context(), identity.CompanyID(), identity.UserID()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

func (m *Module) delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid notification ID", nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := m.service.Delete(c.Request.Context(), identity.CompanyID(), identity.UserID(), id); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
