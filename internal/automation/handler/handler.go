package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"crmflow_backend/internal/automation/analytics"
	"crmflow_backend/internal/automation/service"
	"crmflow_backend/internal/automation/transport"
	"crmflow_backend/platform/httpkit"
	"crmflow_backend/platform/validator"
)

// Handler handles HTTP requests for automation rules and analytics.
type Handler struct {
	svc       *service.Service
	analytics *analytics.Service
	val       *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid automation ID"
	msgInvalidDate      = "invalid date, expected YYYY-MM-DD"

	dateLayout = "2006-01-02"
)

// parseRange reads the optional startDate/endDate query parameters. Both are
// calendar dates; endDate is inclusive, so the range's exclusive end is the
// following midnight. Returns false after writing the error response.
func parseRange(c *gin.Context) (analytics.Range, bool) {
	var r analytics.Range
	if v := c.Query("startDate"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidDate, nil)
			return r, false
		}
		r.Start = t
	}
	if v := c.Query("endDate"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidDate, nil)
			return r, false
		}
		r.End = t.AddDate(0, 0, 1)
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		httpkit.Error(c, http.StatusBadRequest, "endDate is before startDate", nil)
		return r, false
	}
	return r, true
}

// New creates a new automation handler.
func New(svc *service.Service, analyticsSvc *analytics.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, analytics: analyticsSvc, val: val}
}

// List retrieves the tenant's rules. ?activeOnly=true hides inactive ones.
// GET /api/v1/automations
func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	activeOnly := c.Query("activeOnly") == "true"
	result, err := h.svc.List(c.Request.Context(), identity.CompanyID(), activeOnly)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Create registers a new rule.
// POST /api/v1/automations
func (h *Handler) Create(c *gin.Context) {
	var req transport.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Create(c.Request.Context(), identity.CompanyID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// GetByID retrieves a rule by ID.
// GET /api/v1/automations/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Get(c.Request.Context(), identity.CompanyID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Update replaces a rule's definition.
// PUT /api/v1/automations/:id
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	var req transport.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Update(c.Request.Context(), identity.CompanyID(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Activate enables a rule.
// POST /api/v1/automations/:id/activate
func (h *Handler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

// Deactivate disables a rule without deleting it.
// POST /api/v1/automations/:id/deactivate
func (h *Handler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *Handler) setActive(c *gin.Context, active bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := h.svc.SetActive(c.Request.Context(), identity.CompanyID(), id, active); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

// Delete removes a rule. Soft by default; ?permanent=true removes the row.
// DELETE /api/v1/automations/:id
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	permanent := c.Query("permanent") == "true"
	if err := h.svc.Delete(c.Request.Context(), identity.CompanyID(), id, permanent); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

// Executions lists a rule's execution log.
// GET /api/v1/automations/:id/executions
func (h *Handler) Executions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	result, err := h.svc.Executions(c.Request.Context(), identity.CompanyID(), id, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": result})
}

// Overview returns the dashboard headline counters.
// GET /api/v1/automation-analytics/overview
func (h *Handler) Overview(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	r, ok := parseRange(c)
	if !ok {
		return
	}

	result, err := h.analytics.Overview(c.Request.Context(), identity.CompanyID(), r)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Trends returns daily execution volume.
// GET /api/v1/automation-analytics/trends
func (h *Handler) Trends(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	r, ok := parseRange(c)
	if !ok {
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	result, err := h.analytics.DailyTrend(c.Request.Context(), identity.CompanyID(), days, r)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"points": result})
}

// Hourly returns the 24-bucket activity histogram.
// GET /api/v1/automation-analytics/hourly
func (h *Handler) Hourly(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	r, ok := parseRange(c)
	if !ok {
		return
	}

	result, err := h.analytics.HourlyHistogram(c.Request.Context(), identity.CompanyID(), r)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"buckets": result})
}

// TransferPatterns returns status transition frequencies.
// GET /api/v1/automation-analytics/transfer-patterns
func (h *Handler) TransferPatterns(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	r, ok := parseRange(c)
	if !ok {
		return
	}

	result, err := h.analytics.TransferPatterns(c.Request.Context(), identity.CompanyID(), r)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"patterns": result})
}

// Recent returns the latest executions with lead names.
// GET /api/v1/automation-analytics/recent
func (h *Handler) Recent(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	result, err := h.analytics.Recent(c.Request.Context(), identity.CompanyID(), limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": result})
}

// RuleStats returns per-rule execution health.
// GET /api/v1/automation-analytics/rules
func (h *Handler) RuleStats(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	r, ok := parseRange(c)
	if !ok {
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	result, err := h.analytics.PerRule(c.Request.Context(), identity.CompanyID(), days, r)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": result})
}

// Recommendations returns optimization hints per rule.
// GET /api/v1/automation-analytics/recommendations
func (h *Handler) Recommendations(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	r, ok := parseRange(c)
	if !ok {
		return
	}

	result, err := h.analytics.Recommendations(c.Request.Context(), identity.CompanyID(), r)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": result})
}
