// Package repository implements automation persistence: rule storage, the
// append-only execution log, and the fired markers that keep time-based and
// inactivity triggers one-shot.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crmflow_backend/internal/automation/domain"
	"crmflow_backend/platform/apperr"
)

const ruleNotFoundMessage = "automation rule not found"

// RulesRepo implements automation rule persistence with PostgreSQL.
type RulesRepo struct {
	pool *pgxpool.Pool
}

// NewRules creates a new rule repository.
func NewRules(pool *pgxpool.Pool) *RulesRepo {
	return &RulesRepo{pool: pool}
}

const ruleColumns = `id, company_id, name, description, trigger_type, trigger_config, action_type, action_config, is_active, created_at, updated_at`

func scanRule(row pgx.Row) (domain.Rule, error) {
	var (
		r             domain.Rule
		triggerType   string
		triggerConfig []byte
		actionType    string
		actionConfig  []byte
	)
	err := row.Scan(
		&r.ID, &r.CompanyID, &r.Name, &r.Description,
		&triggerType, &triggerConfig, &actionType, &actionConfig,
		&r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return domain.Rule{}, err
	}

	r.Trigger, err = domain.ParseTrigger(domain.TriggerType(triggerType), triggerConfig)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("rule %s: %w", r.ID, err)
	}
	r.Action, err = domain.ParseAction(domain.ActionType(actionType), actionConfig)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("rule %s: %w", r.ID, err)
	}

	return r, nil
}

// Create persists a new rule. The rule must already be validated.
func (r *RulesRepo) Create(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	triggerConfig, err := rule.Trigger.ConfigJSON()
	if err != nil {
		return domain.Rule{}, err
	}
	actionConfig, err := rule.Action.ConfigJSON()
	if err != nil {
		return domain.Rule{}, err
	}

	query := `
		INSERT INTO automation_rules (company_id, name, description, trigger_type, trigger_config, action_type, action_config, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + ruleColumns

	created, err := scanRule(r.pool.QueryRow(ctx, query,
		rule.CompanyID, rule.Name, rule.Description,
		string(rule.Trigger.Type), triggerConfig,
		string(rule.Action.Type), actionConfig,
		rule.IsActive))
	if err != nil {
		return domain.Rule{}, fmt.Errorf("create automation rule: %w", err)
	}

	return created, nil
}

// Update replaces a rule's definition within the tenant scope.
func (r *RulesRepo) Update(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	triggerConfig, err := rule.Trigger.ConfigJSON()
	if err != nil {
		return domain.Rule{}, err
	}
	actionConfig, err := rule.Action.ConfigJSON()
	if err != nil {
		return domain.Rule{}, err
	}

	query := `
		UPDATE automation_rules
		SET name = $1, description = $2, trigger_type = $3, trigger_config = $4,
		    action_type = $5, action_config = $6, is_active = $7, updated_at = now()
		WHERE id = $8 AND company_id = $9 AND deleted_at IS NULL
		RETURNING ` + ruleColumns

	updated, err := scanRule(r.pool.QueryRow(ctx, query,
		rule.Name, rule.Description,
		string(rule.Trigger.Type), triggerConfig,
		string(rule.Action.Type), actionConfig,
		rule.IsActive, rule.ID, rule.CompanyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rule{}, apperr.NotFound(ruleNotFoundMessage)
		}
		return domain.Rule{}, fmt.Errorf("update automation rule: %w", err)
	}

	return updated, nil
}

// GetByID retrieves a rule within the tenant scope. Soft-deleted rules are
// not returned.
func (r *RulesRepo) GetByID(ctx context.Context, companyID, id uuid.UUID) (domain.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM automation_rules
		WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL`

	rule, err := scanRule(r.pool.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rule{}, apperr.NotFound(ruleNotFoundMessage)
		}
		return domain.Rule{}, fmt.Errorf("get automation rule: %w", err)
	}

	return rule, nil
}

// List retrieves the tenant's rules in creation order, which is also the
// order the evaluator fires them in. activeOnly hides disabled rules.
func (r *RulesRepo) List(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]domain.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM automation_rules
		WHERE company_id = $1 AND deleted_at IS NULL`
	if activeOnly {
		query += ` AND is_active`
	}
	query += `
		ORDER BY created_at ASC`

	return r.queryRules(ctx, query, companyID)
}

// ListActiveByTriggers retrieves the tenant's active rules matching any of
// the given trigger kinds, in creation order.
func (r *RulesRepo) ListActiveByTriggers(ctx context.Context, companyID uuid.UUID, triggerTypes ...domain.TriggerType) ([]domain.Rule, error) {
	kinds := make([]string, len(triggerTypes))
	for i, t := range triggerTypes {
		kinds[i] = string(t)
	}

	query := `
		SELECT ` + ruleColumns + `
		FROM automation_rules
		WHERE company_id = $1 AND trigger_type = ANY($2) AND is_active AND deleted_at IS NULL
		ORDER BY created_at ASC`

	return r.queryRules(ctx, query, companyID, kinds)
}

// ListActiveByTriggerAllTenants retrieves active rules of one trigger kind
// across every tenant. The scheduler's periodic sweeps use it; everything
// reachable from a request handler stays tenant-scoped.
func (r *RulesRepo) ListActiveByTriggerAllTenants(ctx context.Context, triggerType domain.TriggerType) ([]domain.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM automation_rules
		WHERE trigger_type = $1 AND is_active AND deleted_at IS NULL
		ORDER BY company_id, created_at ASC`

	return r.queryRules(ctx, query, string(triggerType))
}

func (r *RulesRepo) queryRules(ctx context.Context, query string, args ...any) ([]domain.Rule, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list automation rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan automation rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// SetActive toggles a rule without touching its definition.
func (r *RulesRepo) SetActive(ctx context.Context, companyID, id uuid.UUID, active bool) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE automation_rules
		SET is_active = $1, updated_at = now()
		WHERE id = $2 AND company_id = $3 AND deleted_at IS NULL`,
		active, id, companyID)
	if err != nil {
		return fmt.Errorf("set automation rule active: %w", err)
	}
	if res.RowsAffected() == 0 {
		return apperr.NotFound(ruleNotFoundMessage)
	}

	return nil
}

// SoftDelete hides a rule from evaluation and listings while keeping the row
// for execution log correlation.
func (r *RulesRepo) SoftDelete(ctx context.Context, companyID, id uuid.UUID) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE automation_rules
		SET deleted_at = now(), is_active = false, updated_at = now()
		WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL`,
		id, companyID)
	if err != nil {
		return fmt.Errorf("soft delete automation rule: %w", err)
	}
	if res.RowsAffected() == 0 {
		return apperr.NotFound(ruleNotFoundMessage)
	}

	return nil
}

// HardDelete removes the rule row and its fired markers. Execution log rows
// survive; they carry the rule name denormalized for exactly this case.
func (r *RulesRepo) HardDelete(ctx context.Context, companyID, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("hard delete automation rule: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	res, err := tx.Exec(ctx, `
		DELETE FROM automation_rules
		WHERE id = $1 AND company_id = $2`,
		id, companyID)
	if err != nil {
		return fmt.Errorf("hard delete automation rule: %w", err)
	}
	if res.RowsAffected() == 0 {
		return apperr.NotFound(ruleNotFoundMessage)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM automation_fired_markers WHERE rule_id = $1`, id); err != nil {
		return fmt.Errorf("delete fired markers: %w", err)
	}

	return tx.Commit(ctx)
}
