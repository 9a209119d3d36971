package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Aggregate rows consumed by the analytics service. Shaping (zero-filled
// buckets, rates, recommendations) happens there; this layer only runs the
// grouped queries.

// ExecutionTotals summarizes a tenant's log over a window.
type ExecutionTotals struct {
	Total     int
	Succeeded int
	Failed    int
	// AvgDurationMs averages the executionTimeMs recorded in the details
	// payload; zero when the window is empty.
	AvgDurationMs float64
}

// RuleActivity identifies the busiest rule in a window.
type RuleActivity struct {
	AutomationID uuid.UUID
	RuleName     string
	Count        int
}

// DailyCount is one day's execution volume.
type DailyCount struct {
	Day       time.Time
	Total     int
	Succeeded int
	Failed    int
}

// HourlyCount is one hour-of-day bucket (0-23), summed over the window.
type HourlyCount struct {
	Hour      int
	Count     int
	Succeeded int
}

// TransferPattern counts status transitions performed by change_status
// actions.
type TransferPattern struct {
	FromStatus string
	ToStatus   string
	Count      int
}

// RuleStats aggregates one rule's log.
type RuleStats struct {
	AutomationID  uuid.UUID
	RuleName      string
	Active        bool
	Total         int
	Succeeded     int
	Failed        int
	AvgDurationMs float64
	LastExecuted  *time.Time
}

// StatsRepo runs the aggregation queries behind the analytics endpoints.
type StatsRepo struct {
	pool *pgxpool.Pool
}

// NewStats creates a new analytics repository.
func NewStats(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

// Totals sums the tenant's executions in [since, until).
func (r *StatsRepo) Totals(ctx context.Context, companyID uuid.UUID, since, until time.Time) (ExecutionTotals, error) {
	var t ExecutionTotals
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE success),
		       COUNT(*) FILTER (WHERE NOT success),
		       COALESCE(AVG((execution_details->>'executionTimeMs')::float), 0)
		FROM automation_execution_log
		WHERE company_id = $1 AND executed_at >= $2 AND executed_at < $3`,
		companyID, since, until).Scan(&t.Total, &t.Succeeded, &t.Failed, &t.AvgDurationMs)
	if err != nil {
		return ExecutionTotals{}, fmt.Errorf("execution totals: %w", err)
	}

	return t, nil
}

// MostActiveRule returns the rule with the most executions in [since, until).
// An empty window yields the zero value and no error.
func (r *StatsRepo) MostActiveRule(ctx context.Context, companyID uuid.UUID, since, until time.Time) (RuleActivity, error) {
	var a RuleActivity
	err := r.pool.QueryRow(ctx, `
		SELECT automation_id, rule_name, COUNT(*)
		FROM automation_execution_log
		WHERE company_id = $1 AND executed_at >= $2 AND executed_at < $3
		GROUP BY automation_id, rule_name
		ORDER BY COUNT(*) DESC, MIN(executed_at) ASC
		LIMIT 1`,
		companyID, since, until).Scan(&a.AutomationID, &a.RuleName, &a.Count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RuleActivity{}, nil
		}
		return RuleActivity{}, fmt.Errorf("most active rule: %w", err)
	}

	return a, nil
}

// CountActiveRules counts the tenant's active, non-deleted rules.
func (r *StatsRepo) CountActiveRules(ctx context.Context, companyID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM automation_rules
		WHERE company_id = $1 AND is_active AND deleted_at IS NULL`,
		companyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active rules: %w", err)
	}

	return count, nil
}

// DailyTrend groups executions by calendar day over [since, until). Days
// with no executions have no row; the service zero-fills.
func (r *StatsRepo) DailyTrend(ctx context.Context, companyID uuid.UUID, since, until time.Time) ([]DailyCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date_trunc('day', executed_at) AS day,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE success),
		       COUNT(*) FILTER (WHERE NOT success)
		FROM automation_execution_log
		WHERE company_id = $1 AND executed_at >= $2 AND executed_at < $3
		GROUP BY day
		ORDER BY day ASC`,
		companyID, since, until)
	if err != nil {
		return nil, fmt.Errorf("daily trend: %w", err)
	}
	defer rows.Close()

	var items []DailyCount
	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.Day, &d.Total, &d.Succeeded, &d.Failed); err != nil {
			return nil, fmt.Errorf("scan daily trend: %w", err)
		}
		items = append(items, d)
	}

	return items, rows.Err()
}

// HourlyHistogram groups executions by hour of day over [since, until).
// Hours with no executions have no row; the service fills all 24 buckets.
func (r *StatsRepo) HourlyHistogram(ctx context.Context, companyID uuid.UUID, since, until time.Time) ([]HourlyCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT EXTRACT(HOUR FROM executed_at)::int AS hour,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE success)
		FROM automation_execution_log
		WHERE company_id = $1 AND executed_at >= $2 AND executed_at < $3
		GROUP BY hour
		ORDER BY hour ASC`,
		companyID, since, until)
	if err != nil {
		return nil, fmt.Errorf("hourly histogram: %w", err)
	}
	defer rows.Close()

	var items []HourlyCount
	for rows.Next() {
		var h HourlyCount
		if err := rows.Scan(&h.Hour, &h.Count, &h.Succeeded); err != nil {
			return nil, fmt.Errorf("scan hourly histogram: %w", err)
		}
		items = append(items, h)
	}

	return items, rows.Err()
}

// TransferPatterns counts the status transitions successful change_status
// executions applied in [since, until), most frequent first.
func (r *StatsRepo) TransferPatterns(ctx context.Context, companyID uuid.UUID, since, until time.Time) ([]TransferPattern, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT execution_details->>'previousStatus',
		       execution_details->>'targetStatus',
		       COUNT(*)
		FROM automation_execution_log
		WHERE company_id = $1 AND executed_at >= $2 AND executed_at < $3 AND success
		  AND execution_details->>'actionType' = 'change_status'
		GROUP BY 1, 2
		ORDER BY COUNT(*) DESC`,
		companyID, since, until)
	if err != nil {
		return nil, fmt.Errorf("transfer patterns: %w", err)
	}
	defer rows.Close()

	var items []TransferPattern
	for rows.Next() {
		var t TransferPattern
		if err := rows.Scan(&t.FromStatus, &t.ToStatus, &t.Count); err != nil {
			return nil, fmt.Errorf("scan transfer pattern: %w", err)
		}
		items = append(items, t)
	}

	return items, rows.Err()
}

// PerRule aggregates the tenant's log per rule over [since, until), joined
// against live rules so rules that never executed still appear with zeros.
func (r *StatsRepo) PerRule(ctx context.Context, companyID uuid.UUID, since, until time.Time) ([]RuleStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ar.id, ar.name, ar.is_active,
		       COUNT(l.id),
		       COUNT(l.id) FILTER (WHERE l.success),
		       COUNT(l.id) FILTER (WHERE NOT l.success),
		       COALESCE(AVG((l.execution_details->>'executionTimeMs')::float), 0),
		       MAX(l.executed_at)
		FROM automation_rules ar
		LEFT JOIN automation_execution_log l
		       ON l.automation_id = ar.id AND l.executed_at >= $2 AND l.executed_at < $3
		WHERE ar.company_id = $1 AND ar.deleted_at IS NULL
		GROUP BY ar.id, ar.name, ar.is_active
		ORDER BY COUNT(l.id) DESC, ar.created_at ASC`,
		companyID, since, until)
	if err != nil {
		return nil, fmt.Errorf("per-rule stats: %w", err)
	}
	defer rows.Close()

	var items []RuleStats
	for rows.Next() {
		var s RuleStats
		if err := rows.Scan(&s.AutomationID, &s.RuleName, &s.Active, &s.Total, &s.Succeeded, &s.Failed, &s.AvgDurationMs, &s.LastExecuted); err != nil {
			return nil, fmt.Errorf("scan per-rule stats: %w", err)
		}
		items = append(items, s)
	}

	return items, rows.Err()
}
