// Package engine evaluates automation rules against lead events and runs
// their actions. The evaluator decides which rules fire; the executor
// performs the action and records exactly one execution log entry per
// attempt, success or failure.
package engine

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"crmflow_backend/internal/automation/domain"
	"crmflow_backend/internal/automation/repository"
	"crmflow_backend/internal/events"
	leadsdomain "crmflow_backend/internal/leads/domain"
	leadsrepo "crmflow_backend/internal/leads/repository"
	"crmflow_backend/internal/notification/inapp"
	"crmflow_backend/internal/sellers"
	"crmflow_backend/internal/templates"
	"crmflow_backend/internal/whatsapp"
	"crmflow_backend/platform/logger"
)

// ExecutionStore records execution attempts.
type ExecutionStore interface {
	Insert(ctx context.Context, p repository.InsertExecutionParams) (repository.ExecutionEntry, error)
	InsertWithStatusChange(ctx context.Context, p repository.StatusChangeParams) (repository.ExecutionEntry, bool, error)
}

// LeadStore is the slice of lead persistence the executor mutates.
type LeadStore interface {
	AddTag(ctx context.Context, companyID, id uuid.UUID, tag string) (bool, error)
	AssignSeller(ctx context.Context, companyID, id, sellerID uuid.UUID) error
}

// SellerDirectory resolves sellers for assignment and notification.
type SellerDirectory interface {
	ListByLoad(ctx context.Context, companyID uuid.UUID) ([]sellers.SellerLoad, error)
	GetByID(ctx context.Context, companyID, id uuid.UUID) (sellers.SellerLoad, error)
	GetEmail(ctx context.Context, companyID, id uuid.UUID) (string, error)
}

// TemplateStore loads message templates.
type TemplateStore interface {
	GetByID(ctx context.Context, companyID, id uuid.UUID) (templates.Template, error)
}

// Messenger dispatches rendered messages to the lead.
type Messenger interface {
	SendMessage(ctx context.Context, phoneNumber, message string) (whatsapp.SendResult, error)
}

// Notifier delivers notify_user notifications.
type Notifier interface {
	Send(ctx context.Context, p inapp.SendParams) (inapp.Notification, error)
}

// Executor runs a rule's action against a lead and records the outcome.
type Executor struct {
	executions ExecutionStore
	leads      LeadStore
	sellers    SellerDirectory
	templates  TemplateStore
	messenger  Messenger
	notifier   Notifier
	bus        events.Bus
	log        *logger.Logger
}

// NewExecutor creates an executor.
func NewExecutor(
	executions ExecutionStore,
	leads LeadStore,
	sellerDir SellerDirectory,
	templateStore TemplateStore,
	messenger Messenger,
	notifier Notifier,
	bus events.Bus,
	log *logger.Logger,
) *Executor {
	return &Executor{
		executions: executions,
		leads:      leads,
		sellers:    sellerDir,
		templates:  templateStore,
		messenger:  messenger,
		notifier:   notifier,
		bus:        bus,
		log:        log,
	}
}

// outcome is the result of running an action, before it is logged.
type outcome struct {
	success bool
	errMsg  string
	details map[string]any
	// entry is set when the action wrote its own log row atomically
	// (change_status); otherwise Execute writes the row.
	entry  *repository.ExecutionEntry
	logged bool
}

// Execute runs the rule's action against the lead and appends exactly one
// execution log entry for the attempt. Action-level failures (provider down,
// missing template, lost status race) come back in the entry, not as an
// error; the returned error covers only log persistence itself.
func (e *Executor) Execute(ctx context.Context, rule domain.Rule, lead leadsrepo.Lead, attempt int) (repository.ExecutionEntry, error) {
	started := time.Now()

	var out outcome
	switch rule.Action.Type {
	case domain.ActionSendMessage:
		out = e.runSendMessage(ctx, rule, lead)
	case domain.ActionChangeStatus:
		out = e.runChangeStatus(ctx, rule, lead, attempt, started)
	case domain.ActionAssignSeller:
		out = e.runAssignSeller(ctx, rule, lead)
	case domain.ActionAddTag:
		out = e.runAddTag(ctx, rule, lead)
	case domain.ActionNotifyUser:
		out = e.runNotifyUser(ctx, rule, lead)
	default:
		out = failure(fmt.Sprintf("unknown action type %q", rule.Action.Type), nil)
	}

	durationMs := time.Since(started).Milliseconds()

	entry := out.entry
	if !out.logged {
		if out.details == nil {
			out.details = map[string]any{}
		}
		out.details["actionType"] = string(rule.Action.Type)
		out.details["executionTimeMs"] = durationMs
		out.details["attempt"] = attempt

		inserted, err := e.executions.Insert(ctx, repository.InsertExecutionParams{
			CompanyID:    rule.CompanyID,
			AutomationID: rule.ID,
			RuleName:     rule.Name,
			LeadID:       lead.ID,
			Success:      out.success,
			ErrorMessage: out.errMsg,
			Details:      out.details,
		})
		if err != nil {
			return repository.ExecutionEntry{}, err
		}
		entry = &inserted
	}

	e.log.ExecutionOutcome(rule.ID.String(), lead.ID.String(), out.success, durationMs, out.errMsg)

	e.bus.Publish(ctx, events.ExecutionRecorded{
		BaseEvent:   events.NewBaseEvent(),
		ExecutionID: entry.ID,
		RuleID:      rule.ID,
		CompanyID:   rule.CompanyID,
		LeadID:      lead.ID,
		ActionType:  string(rule.Action.Type),
		Success:     out.success,
		Attempt:     attempt,
	})

	return *entry, nil
}

func failure(msg string, details map[string]any) outcome {
	return outcome{success: false, errMsg: msg, details: details}
}

func (e *Executor) runSendMessage(ctx context.Context, rule domain.Rule, lead leadsrepo.Lead) outcome {
	cfg := rule.Action.SendMessage

	tmpl, err := e.templates.GetByID(ctx, rule.CompanyID, cfg.TemplateID)
	if err != nil {
		return failure(fmt.Sprintf("load template %s: %v", cfg.TemplateID, err), map[string]any{
			"templateId": cfg.TemplateID.String(),
		})
	}

	sellerName := ""
	if lead.AssignedSellerID != nil {
		if s, sellerErr := e.sellers.GetByID(ctx, rule.CompanyID, *lead.AssignedSellerID); sellerErr == nil {
			sellerName = s.Name
		}
	}

	message := templates.Render(tmpl.Body, templates.Vars{
		Name:   lead.Name,
		Status: lead.Status,
		Phone:  lead.Phone,
		Email:  lead.Email,
		Seller: sellerName,
	})

	details := map[string]any{
		"templateId":     cfg.TemplateID.String(),
		"messagePreview": preview(message),
	}

	result, err := e.messenger.SendMessage(ctx, lead.Phone, message)
	if err != nil {
		return failure(fmt.Sprintf("send message: %v", err), details)
	}
	if !result.Delivered {
		e.log.ProviderError("whatsapp", lead.Phone, fmt.Errorf("%s", result.ProviderError))
		return failure(result.ProviderError, details)
	}

	return outcome{success: true, details: details}
}

func (e *Executor) runChangeStatus(ctx context.Context, rule domain.Rule, lead leadsrepo.Lead, attempt int, started time.Time) outcome {
	cfg := rule.Action.ChangeStatus
	details := map[string]any{
		"actionType":     string(domain.ActionChangeStatus),
		"previousStatus": lead.Status,
		"targetStatus":   cfg.TargetStatus,
		"attempt":        attempt,
	}

	if !leadsdomain.IsKnownStatus(cfg.TargetStatus) {
		return failure(fmt.Sprintf("unknown target status %q", cfg.TargetStatus), details)
	}
	if !leadsdomain.CanTransition(lead.Status, cfg.TargetStatus) {
		return failure(fmt.Sprintf("transition %s -> %s is not allowed", lead.Status, cfg.TargetStatus), details)
	}

	details["executionTimeMs"] = time.Since(started).Milliseconds()
	entry, updated, err := e.executions.InsertWithStatusChange(ctx, repository.StatusChangeParams{
		CompanyID:      rule.CompanyID,
		AutomationID:   rule.ID,
		RuleName:       rule.Name,
		LeadID:         lead.ID,
		ExpectedStatus: lead.Status,
		TargetStatus:   cfg.TargetStatus,
		Details:        details,
	})
	if err != nil {
		return failure(fmt.Sprintf("change status: %v", err), details)
	}
	if !updated {
		return failure("lead status changed concurrently", details)
	}

	e.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		CompanyID:      rule.CompanyID,
		PreviousStatus: lead.Status,
		NewStatus:      cfg.TargetStatus,
		Automated:      true,
	})

	return outcome{success: true, details: details, entry: &entry, logged: true}
}

func (e *Executor) runAssignSeller(ctx context.Context, rule domain.Rule, lead leadsrepo.Lead) outcome {
	cfg := rule.Action.AssignSeller

	var target uuid.UUID
	switch cfg.Policy {
	case domain.PolicyFixed:
		s, err := e.sellers.GetByID(ctx, rule.CompanyID, *cfg.SellerID)
		if err != nil {
			return failure(fmt.Sprintf("resolve seller %s: %v", cfg.SellerID, err), nil)
		}
		target = s.SellerID
	case domain.PolicyLeastLoaded:
		loads, err := e.sellers.ListByLoad(ctx, rule.CompanyID)
		if err != nil {
			return failure(fmt.Sprintf("list sellers by load: %v", err), nil)
		}
		if len(loads) == 0 {
			return failure("no active sellers available", nil)
		}
		target = loads[0].SellerID
	default:
		return failure(fmt.Sprintf("unknown seller policy %q", cfg.Policy), nil)
	}

	details := map[string]any{"sellerId": target.String(), "policy": string(cfg.Policy)}
	if err := e.leads.AssignSeller(ctx, rule.CompanyID, lead.ID, target); err != nil {
		return failure(fmt.Sprintf("assign seller: %v", err), details)
	}

	return outcome{success: true, details: details}
}

func (e *Executor) runAddTag(ctx context.Context, rule domain.Rule, lead leadsrepo.Lead) outcome {
	cfg := rule.Action.AddTag
	details := map[string]any{"tag": cfg.Tag}

	if lead.HasTag(cfg.Tag) {
		details["alreadyPresent"] = true
		return outcome{success: true, details: details}
	}

	added, err := e.leads.AddTag(ctx, rule.CompanyID, lead.ID, cfg.Tag)
	if err != nil {
		return failure(fmt.Sprintf("add tag: %v", err), details)
	}
	if !added {
		// Raced with another writer adding the same tag; still a success.
		details["alreadyPresent"] = true
		return outcome{success: true, details: details}
	}

	e.bus.Publish(ctx, events.LeadTagAdded{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		CompanyID: rule.CompanyID,
		Tag:       cfg.Tag,
		Automated: true,
	})

	return outcome{success: true, details: details}
}

func (e *Executor) runNotifyUser(ctx context.Context, rule domain.Rule, lead leadsrepo.Lead) outcome {
	cfg := rule.Action.NotifyUser
	details := map[string]any{"userId": cfg.UserID.String()}

	// The email mirror is best-effort: an unknown address just means the
	// notification stays in-app only.
	emailTo, _ := e.sellers.GetEmail(ctx, rule.CompanyID, cfg.UserID)

	message := cfg.Message
	if message == "" {
		message = fmt.Sprintf("Automation rule %q fired for lead %s", rule.Name, lead.Name)
	}

	leadID := lead.ID
	resourceType := "lead"
	_, err := e.notifier.Send(ctx, inapp.SendParams{
		CompanyID:    rule.CompanyID,
		UserID:       cfg.UserID,
		Title:        "Automation: " + rule.Name,
		Content:      message,
		ResourceID:   &leadID,
		ResourceType: resourceType,
		Category:     "info",
		EmailTo:      emailTo,
	})
	if err != nil {
		return failure(fmt.Sprintf("notify user: %v", err), details)
	}

	return outcome{success: true, details: details}
}

func preview(message string) string {
	const max = 120
	if len(message) <= max {
		return message
	}
	// Back up to a rune boundary so the cut never leaves a broken rune in
	// the log details.
	cut := max
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut] + "…"
}
