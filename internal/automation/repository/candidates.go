package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	leadsrepo "crmflow_backend/internal/leads/repository"
)

// CandidatesRepo finds leads eligible for threshold triggers. The sweep
// queries pre-filter on fired markers so the common case (nothing to do)
// stays a single indexed scan.
type CandidatesRepo struct {
	pool *pgxpool.Pool
}

// NewCandidates creates a new candidate repository.
func NewCandidates(pool *pgxpool.Pool) *CandidatesRepo {
	return &CandidatesRepo{pool: pool}
}

const candidateColumns = `ld.id, ld.company_id, ld.name, ld.phone, ld.email, ld.status, ld.tags, ld.assigned_seller_id, ld.created_at, ld.stage_entered_at, ld.last_activity_at`

// TimeBased returns leads whose age crossed the rule's threshold and that
// the rule has not fired for yet.
func (r *CandidatesRepo) TimeBased(ctx context.Context, companyID, ruleID uuid.UUID, thresholdMinutes int) ([]leadsrepo.Lead, error) {
	query := `
		SELECT ` + candidateColumns + `
		FROM leads ld
		WHERE ld.company_id = $1
		  AND ld.created_at <= now() - make_interval(mins => $2)
		  AND NOT EXISTS (
		      SELECT 1 FROM automation_fired_markers m
		      WHERE m.rule_id = $3 AND m.lead_id = ld.id AND m.kind = 'time_based'
		  )
		ORDER BY ld.created_at ASC`

	return r.queryLeads(ctx, query, companyID, thresholdMinutes, ruleID)
}

// Inactivity returns leads idle past the rule's threshold whose idle period
// the rule has not yet fired for. A marker only suppresses the lead while it
// covers the current last-activity timestamp; new activity re-arms.
func (r *CandidatesRepo) Inactivity(ctx context.Context, companyID, ruleID uuid.UUID, thresholdMinutes int) ([]leadsrepo.Lead, error) {
	query := `
		SELECT ` + candidateColumns + `
		FROM leads ld
		WHERE ld.company_id = $1
		  AND ld.last_activity_at <= now() - make_interval(mins => $2)
		  AND NOT EXISTS (
		      SELECT 1 FROM automation_fired_markers m
		      WHERE m.rule_id = $3 AND m.lead_id = ld.id AND m.kind = 'inactivity'
		        AND m.observed_activity_at >= ld.last_activity_at
		  )
		ORDER BY ld.last_activity_at ASC`

	return r.queryLeads(ctx, query, companyID, thresholdMinutes, ruleID)
}

func (r *CandidatesRepo) queryLeads(ctx context.Context, query string, args ...any) ([]leadsrepo.Lead, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trigger candidates: %w", err)
	}
	defer rows.Close()

	var leads []leadsrepo.Lead
	for rows.Next() {
		var l leadsrepo.Lead
		if err := rows.Scan(
			&l.ID, &l.CompanyID, &l.Name, &l.Phone, &l.Email, &l.Status, &l.Tags,
			&l.AssignedSellerID, &l.CreatedAt, &l.StageEnteredAt, &l.LastActivityAt,
		); err != nil {
			return nil, fmt.Errorf("scan trigger candidate: %w", err)
		}
		leads = append(leads, l)
	}

	return leads, rows.Err()
}
