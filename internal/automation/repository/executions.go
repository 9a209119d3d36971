package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExecutionEntry is one row of the append-only execution log. AutomationID
// is a weak reference; RuleName is denormalized so the entry stays readable
// after the rule is hard-deleted.
type ExecutionEntry struct {
	ID           uuid.UUID       `json:"id"`
	CompanyID    uuid.UUID       `json:"companyId"`
	AutomationID uuid.UUID       `json:"automationId"`
	RuleName     string          `json:"ruleName"`
	LeadID       uuid.UUID       `json:"leadId"`
	Success      bool            `json:"success"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
	Details      json.RawMessage `json:"details"`
	ExecutedAt   time.Time       `json:"executedAt"`
}

// InsertExecutionParams describes one execution attempt to record.
type InsertExecutionParams struct {
	CompanyID    uuid.UUID
	AutomationID uuid.UUID
	RuleName     string
	LeadID       uuid.UUID
	Success      bool
	ErrorMessage string
	Details      map[string]any
}

// ExecutionsRepo implements execution log persistence with PostgreSQL.
type ExecutionsRepo struct {
	pool *pgxpool.Pool
}

// NewExecutions creates a new execution log repository.
func NewExecutions(pool *pgxpool.Pool) *ExecutionsRepo {
	return &ExecutionsRepo{pool: pool}
}

const executionColumns = `id, company_id, automation_id, rule_name, lead_id, success, error_message, execution_details, executed_at`

func scanExecution(row pgx.Row) (ExecutionEntry, error) {
	var e ExecutionEntry
	err := row.Scan(
		&e.ID, &e.CompanyID, &e.AutomationID, &e.RuleName, &e.LeadID,
		&e.Success, &e.ErrorMessage, &e.Details, &e.ExecutedAt,
	)
	return e, err
}

func marshalDetails(details map[string]any) ([]byte, error) {
	if details == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal execution details: %w", err)
	}
	return data, nil
}

// Insert appends one execution attempt to the log.
func (r *ExecutionsRepo) Insert(ctx context.Context, p InsertExecutionParams) (ExecutionEntry, error) {
	details, err := marshalDetails(p.Details)
	if err != nil {
		return ExecutionEntry{}, err
	}

	var errMsg *string
	if p.ErrorMessage != "" {
		errMsg = &p.ErrorMessage
	}

	query := `
		INSERT INTO automation_execution_log (company_id, automation_id, rule_name, lead_id, success, error_message, execution_details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + executionColumns

	entry, err := scanExecution(r.pool.QueryRow(ctx, query,
		p.CompanyID, p.AutomationID, p.RuleName, p.LeadID, p.Success, errMsg, details))
	if err != nil {
		return ExecutionEntry{}, fmt.Errorf("insert execution log: %w", err)
	}

	return entry, nil
}

// StatusChangeParams describes an atomic status transition with its log row.
type StatusChangeParams struct {
	CompanyID      uuid.UUID
	AutomationID   uuid.UUID
	RuleName       string
	LeadID         uuid.UUID
	ExpectedStatus string
	TargetStatus   string
	Details        map[string]any
}

// InsertWithStatusChange applies a status transition and its success log row
// in one transaction, so the log never claims a transition that did not
// commit. The update is guarded by the expected current status; when the
// guard misses (false, nil) is returned and nothing is written — the caller
// records the failure entry through Insert.
func (r *ExecutionsRepo) InsertWithStatusChange(ctx context.Context, p StatusChangeParams) (ExecutionEntry, bool, error) {
	details, err := marshalDetails(p.Details)
	if err != nil {
		return ExecutionEntry{}, false, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return ExecutionEntry{}, false, fmt.Errorf("status change tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	res, err := tx.Exec(ctx, `
		UPDATE leads
		SET status = $1, stage_entered_at = now(), last_activity_at = now()
		WHERE id = $2 AND company_id = $3 AND status = $4`,
		p.TargetStatus, p.LeadID, p.CompanyID, p.ExpectedStatus)
	if err != nil {
		return ExecutionEntry{}, false, fmt.Errorf("status change update: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ExecutionEntry{}, false, nil
	}

	query := `
		INSERT INTO automation_execution_log (company_id, automation_id, rule_name, lead_id, success, execution_details)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		RETURNING ` + executionColumns

	entry, err := scanExecution(tx.QueryRow(ctx, query,
		p.CompanyID, p.AutomationID, p.RuleName, p.LeadID, details))
	if err != nil {
		return ExecutionEntry{}, false, fmt.Errorf("status change log insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ExecutionEntry{}, false, fmt.Errorf("status change commit: %w", err)
	}

	return entry, true, nil
}

// ListRecent retrieves the tenant's latest log entries joined with the lead
// name, newest first.
func (r *ExecutionsRepo) ListRecent(ctx context.Context, companyID uuid.UUID, limit int) ([]RecentExecution, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.automation_id, l.rule_name, l.lead_id, COALESCE(ld.name, ''), l.success, l.error_message, l.execution_details, l.executed_at
		FROM automation_execution_log l
		LEFT JOIN leads ld ON ld.id = l.lead_id
		WHERE l.company_id = $1
		ORDER BY l.executed_at DESC
		LIMIT $2`,
		companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent executions: %w", err)
	}
	defer rows.Close()

	var items []RecentExecution
	for rows.Next() {
		var e RecentExecution
		if err := rows.Scan(&e.ID, &e.AutomationID, &e.RuleName, &e.LeadID, &e.LeadName, &e.Success, &e.ErrorMessage, &e.Details, &e.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan recent execution: %w", err)
		}
		items = append(items, e)
	}

	return items, rows.Err()
}

// ListByRule retrieves a single rule's log entries, newest first.
func (r *ExecutionsRepo) ListByRule(ctx context.Context, companyID, automationID uuid.UUID, limit int) ([]ExecutionEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+executionColumns+`
		FROM automation_execution_log
		WHERE company_id = $1 AND automation_id = $2
		ORDER BY executed_at DESC
		LIMIT $3`,
		companyID, automationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions by rule: %w", err)
	}
	defer rows.Close()

	var items []ExecutionEntry
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		items = append(items, e)
	}

	return items, rows.Err()
}

// RecentExecution is a log entry joined with the lead's display name.
type RecentExecution struct {
	ID           uuid.UUID       `json:"id"`
	AutomationID uuid.UUID       `json:"automationId"`
	RuleName     string          `json:"ruleName"`
	LeadID       uuid.UUID       `json:"leadId"`
	LeadName     string          `json:"leadName"`
	Success      bool            `json:"success"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
	Details      json.RawMessage `json:"details"`
	ExecutedAt   time.Time       `json:"executedAt"`
}
