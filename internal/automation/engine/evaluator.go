package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"crmflow_backend/internal/automation/domain"
	"crmflow_backend/internal/automation/repository"
	"crmflow_backend/internal/events"
	leadsrepo "crmflow_backend/internal/leads/repository"
	"crmflow_backend/platform/logger"
)

// RuleSource lists the rules the evaluator considers.
type RuleSource interface {
	GetByID(ctx context.Context, companyID, id uuid.UUID) (domain.Rule, error)
	ListActiveByTriggers(ctx context.Context, companyID uuid.UUID, triggerTypes ...domain.TriggerType) ([]domain.Rule, error)
	ListActiveByTriggerAllTenants(ctx context.Context, triggerType domain.TriggerType) ([]domain.Rule, error)
}

// LeadSource fetches the lead a rule fires against.
type LeadSource interface {
	GetByID(ctx context.Context, companyID, id uuid.UUID) (leadsrepo.Lead, error)
}

// CandidateSource finds leads eligible for threshold triggers.
type CandidateSource interface {
	TimeBased(ctx context.Context, companyID, ruleID uuid.UUID, thresholdMinutes int) ([]leadsrepo.Lead, error)
	Inactivity(ctx context.Context, companyID, ruleID uuid.UUID, thresholdMinutes int) ([]leadsrepo.Lead, error)
}

// MarkerStore claims one-shot firing rights for threshold triggers.
type MarkerStore interface {
	ClaimTimeBased(ctx context.Context, ruleID, leadID uuid.UUID) (bool, error)
	ClaimInactivity(ctx context.Context, ruleID, leadID uuid.UUID, lastActivityAt time.Time) (bool, error)
}

// ActionRunner executes a fired rule's action.
type ActionRunner interface {
	Execute(ctx context.Context, rule domain.Rule, lead leadsrepo.Lead, attempt int) (repository.ExecutionEntry, error)
}

// Evaluator matches events and sweep candidates against active rules and
// hands fired rules to the executor. Rules fire in creation order; one
// rule's failure never blocks the rules after it.
type Evaluator struct {
	rules      RuleSource
	leads      LeadSource
	candidates CandidateSource
	markers    MarkerStore
	runner     ActionRunner
	locks      *leadLocker
	log        *logger.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(rules RuleSource, leads LeadSource, candidates CandidateSource, markers MarkerStore, runner ActionRunner, log *logger.Logger) *Evaluator {
	return &Evaluator{
		rules:      rules,
		leads:      leads,
		candidates: candidates,
		markers:    markers,
		runner:     runner,
		locks:      newLeadLocker(),
		log:        log,
	}
}

// OnStatusChanged evaluates status_change and stage_change rules against a
// lead transition. Transitions applied by the engine itself are skipped so
// rule chains cannot loop.
func (e *Evaluator) OnStatusChanged(ctx context.Context, ev events.LeadStatusChanged) error {
	if ev.Automated {
		return nil
	}

	rules, err := e.rules.ListActiveByTriggers(ctx, ev.CompanyID, domain.TriggerStatusChange, domain.TriggerStageChange)
	if err != nil {
		return fmt.Errorf("evaluate status change: %w", err)
	}

	var matched []domain.Rule
	for _, rule := range rules {
		if rule.Trigger.StatusChange.Matches(ev.PreviousStatus, ev.NewStatus) {
			matched = append(matched, rule)
		}
	}

	return e.fireForLead(ctx, ev.CompanyID, ev.LeadID, matched)
}

// OnTagAdded evaluates tag_added rules against a new tag. Tags added by the
// engine itself are skipped.
func (e *Evaluator) OnTagAdded(ctx context.Context, ev events.LeadTagAdded) error {
	if ev.Automated {
		return nil
	}

	rules, err := e.rules.ListActiveByTriggers(ctx, ev.CompanyID, domain.TriggerTagAdded)
	if err != nil {
		return fmt.Errorf("evaluate tag added: %w", err)
	}

	var matched []domain.Rule
	for _, rule := range rules {
		if rule.Trigger.TagAdded.Tag == ev.Tag {
			matched = append(matched, rule)
		}
	}

	return e.fireForLead(ctx, ev.CompanyID, ev.LeadID, matched)
}

// fireForLead executes the matched rules in order under the lead's lock.
// The lead is re-read before each execution so later rules observe the
// writes of earlier ones.
func (e *Evaluator) fireForLead(ctx context.Context, companyID, leadID uuid.UUID, matched []domain.Rule) error {
	if len(matched) == 0 {
		return nil
	}

	mu := e.locks.lock(leadID.String())
	defer mu.Unlock()

	for _, rule := range matched {
		lead, err := e.leads.GetByID(ctx, companyID, leadID)
		if err != nil {
			return fmt.Errorf("load lead for rule %s: %w", rule.ID, err)
		}

		if _, err := e.runner.Execute(ctx, rule, lead, 1); err != nil {
			e.log.EvaluationError(rule.ID.String(), leadID.String(), err)
		}
	}

	return nil
}

// SweepTimeBased fires time_based rules for every lead whose age crossed
// the threshold, across all tenants. Each (rule, lead) pair fires at most
// once, enforced by the marker claim.
func (e *Evaluator) SweepTimeBased(ctx context.Context) error {
	rules, err := e.rules.ListActiveByTriggerAllTenants(ctx, domain.TriggerTimeBased)
	if err != nil {
		return fmt.Errorf("time-based sweep: %w", err)
	}

	for _, rule := range rules {
		leads, err := e.candidates.TimeBased(ctx, rule.CompanyID, rule.ID, rule.Trigger.TimeBased.ThresholdMinutes)
		if err != nil {
			e.log.EvaluationError(rule.ID.String(), "", err)
			continue
		}

		for _, lead := range leads {
			claimed, err := e.markers.ClaimTimeBased(ctx, rule.ID, lead.ID)
			if err != nil {
				e.log.EvaluationError(rule.ID.String(), lead.ID.String(), err)
				continue
			}
			if !claimed {
				continue
			}

			e.executeLocked(ctx, rule, lead)
		}
	}

	return nil
}

// SweepInactivity fires inactivity rules for every lead idle past the
// threshold, across all tenants. A fired pair stays quiet until the lead
// shows new activity, then the trigger re-arms.
func (e *Evaluator) SweepInactivity(ctx context.Context) error {
	rules, err := e.rules.ListActiveByTriggerAllTenants(ctx, domain.TriggerInactivity)
	if err != nil {
		return fmt.Errorf("inactivity sweep: %w", err)
	}

	for _, rule := range rules {
		leads, err := e.candidates.Inactivity(ctx, rule.CompanyID, rule.ID, rule.Trigger.Inactivity.ThresholdMinutes)
		if err != nil {
			e.log.EvaluationError(rule.ID.String(), "", err)
			continue
		}

		for _, lead := range leads {
			claimed, err := e.markers.ClaimInactivity(ctx, rule.ID, lead.ID, lead.LastActivityAt)
			if err != nil {
				e.log.EvaluationError(rule.ID.String(), lead.ID.String(), err)
				continue
			}
			if !claimed {
				continue
			}

			e.executeLocked(ctx, rule, lead)
		}
	}

	return nil
}

// RetrySend re-runs a failed send_message execution as a later attempt. The
// rule may have been deactivated or deleted in the meantime; both are normal
// ends of the retry chain, not errors.
func (e *Evaluator) RetrySend(ctx context.Context, companyID, ruleID, leadID uuid.UUID, attempt int) error {
	rule, err := e.rules.GetByID(ctx, companyID, ruleID)
	if err != nil {
		e.log.EvaluationError(ruleID.String(), leadID.String(), err)
		return nil
	}
	if !rule.IsActive || rule.Action.Type != domain.ActionSendMessage {
		return nil
	}

	mu := e.locks.lock(leadID.String())
	defer mu.Unlock()

	lead, err := e.leads.GetByID(ctx, companyID, leadID)
	if err != nil {
		e.log.EvaluationError(ruleID.String(), leadID.String(), err)
		return nil
	}

	if _, err := e.runner.Execute(ctx, rule, lead, attempt); err != nil {
		return fmt.Errorf("retry send: %w", err)
	}

	return nil
}

func (e *Evaluator) executeLocked(ctx context.Context, rule domain.Rule, lead leadsrepo.Lead) {
	mu := e.locks.lock(lead.ID.String())
	defer mu.Unlock()

	// Re-read under the lock: the candidate snapshot may be stale by now.
	fresh, err := e.leads.GetByID(ctx, rule.CompanyID, lead.ID)
	if err != nil {
		e.log.EvaluationError(rule.ID.String(), lead.ID.String(), err)
		return
	}

	if _, err := e.runner.Execute(ctx, rule, fresh, 1); err != nil {
		e.log.EvaluationError(rule.ID.String(), lead.ID.String(), err)
	}
}
