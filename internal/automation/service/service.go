// Package service implements automation rule management: CRUD over rules
// with trigger and action validation at the boundary.
package service

import (
	"context"

	"github.com/google/uuid"

	"crmflow_backend/internal/automation/domain"
	"crmflow_backend/internal/automation/repository"
	"crmflow_backend/internal/automation/transport"
	"crmflow_backend/platform/logger"
)

// RuleStore is the rule persistence the service manages.
type RuleStore interface {
	Create(ctx context.Context, rule domain.Rule) (domain.Rule, error)
	Update(ctx context.Context, rule domain.Rule) (domain.Rule, error)
	GetByID(ctx context.Context, companyID, id uuid.UUID) (domain.Rule, error)
	List(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]domain.Rule, error)
	SetActive(ctx context.Context, companyID, id uuid.UUID, active bool) error
	SoftDelete(ctx context.Context, companyID, id uuid.UUID) error
	HardDelete(ctx context.Context, companyID, id uuid.UUID) error
}

// ExecutionLog is the listing slice of the execution log the service reads.
type ExecutionLog interface {
	ListByRule(ctx context.Context, companyID, automationID uuid.UUID, limit int) ([]repository.ExecutionEntry, error)
}

// Service manages automation rules.
type Service struct {
	rules      RuleStore
	executions ExecutionLog
	log        *logger.Logger
}

// New creates the automation rule service.
func New(rules RuleStore, executions ExecutionLog, log *logger.Logger) *Service {
	return &Service{rules: rules, executions: executions, log: log}
}

func parseRule(companyID uuid.UUID, req transport.RuleRequest) (domain.Rule, error) {
	trigger, err := domain.ParseTrigger(domain.TriggerType(req.TriggerType), req.TriggerConfig)
	if err != nil {
		return domain.Rule{}, err
	}
	action, err := domain.ParseAction(domain.ActionType(req.ActionType), req.ActionConfig)
	if err != nil {
		return domain.Rule{}, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	rule := domain.Rule{
		CompanyID:   companyID,
		Name:        req.Name,
		Description: req.Description,
		Trigger:     trigger,
		Action:      action,
		IsActive:    active,
	}
	if err := rule.Validate(); err != nil {
		return domain.Rule{}, err
	}

	return rule, nil
}

func toResponse(r domain.Rule) (transport.RuleResponse, error) {
	triggerConfig, err := r.Trigger.ConfigJSON()
	if err != nil {
		return transport.RuleResponse{}, err
	}
	actionConfig, err := r.Action.ConfigJSON()
	if err != nil {
		return transport.RuleResponse{}, err
	}

	return transport.RuleResponse{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		TriggerType:   string(r.Trigger.Type),
		TriggerConfig: triggerConfig,
		ActionType:    string(r.Action.Type),
		ActionConfig:  actionConfig,
		IsActive:      r.IsActive,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}, nil
}

// Create validates and persists a new rule.
func (s *Service) Create(ctx context.Context, companyID uuid.UUID, req transport.RuleRequest) (transport.RuleResponse, error) {
	rule, err := parseRule(companyID, req)
	if err != nil {
		return transport.RuleResponse{}, err
	}

	created, err := s.rules.Create(ctx, rule)
	if err != nil {
		return transport.RuleResponse{}, err
	}

	s.log.Info("automation rule created", "ruleId", created.ID, "trigger", string(created.Trigger.Type), "action", string(created.Action.Type))
	return toResponse(created)
}

// Update validates and replaces a rule's definition.
func (s *Service) Update(ctx context.Context, companyID, id uuid.UUID, req transport.RuleRequest) (transport.RuleResponse, error) {
	rule, err := parseRule(companyID, req)
	if err != nil {
		return transport.RuleResponse{}, err
	}
	rule.ID = id

	updated, err := s.rules.Update(ctx, rule)
	if err != nil {
		return transport.RuleResponse{}, err
	}

	return toResponse(updated)
}

// Get retrieves a rule.
func (s *Service) Get(ctx context.Context, companyID, id uuid.UUID) (transport.RuleResponse, error) {
	rule, err := s.rules.GetByID(ctx, companyID, id)
	if err != nil {
		return transport.RuleResponse{}, err
	}
	return toResponse(rule)
}

// List retrieves the tenant's rules in creation order, optionally only the
// active ones.
func (s *Service) List(ctx context.Context, companyID uuid.UUID, activeOnly bool) (transport.RuleListResponse, error) {
	rules, err := s.rules.List(ctx, companyID, activeOnly)
	if err != nil {
		return transport.RuleListResponse{}, err
	}

	items := make([]transport.RuleResponse, 0, len(rules))
	for _, r := range rules {
		resp, err := toResponse(r)
		if err != nil {
			return transport.RuleListResponse{}, err
		}
		items = append(items, resp)
	}

	return transport.RuleListResponse{Items: items, Total: len(items)}, nil
}

// SetActive toggles a rule.
func (s *Service) SetActive(ctx context.Context, companyID, id uuid.UUID, active bool) error {
	return s.rules.SetActive(ctx, companyID, id, active)
}

// Delete removes a rule. By default the rule is soft-deleted so execution
// history stays correlated; permanent removes the row and its markers.
func (s *Service) Delete(ctx context.Context, companyID, id uuid.UUID, permanent bool) error {
	if permanent {
		return s.rules.HardDelete(ctx, companyID, id)
	}
	return s.rules.SoftDelete(ctx, companyID, id)
}

// Executions lists a rule's execution log entries, newest first.
func (s *Service) Executions(ctx context.Context, companyID, id uuid.UUID, limit int) ([]repository.ExecutionEntry, error) {
	// Resolve the rule first so an unknown id yields 404 rather than an
	// empty list.
	if _, err := s.rules.GetByID(ctx, companyID, id); err != nil {
		return nil, err
	}
	return s.executions.ListByRule(ctx, companyID, id, limit)
}
