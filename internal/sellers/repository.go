// Package sellers provides the seller directory consumed by the
// assign_seller action and the manager dashboard.
package sellers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crmflow_backend/platform/apperr"
)

// SellerLoad is a seller together with the number of leads currently
// assigned to them that are still in play (not won or lost).
type SellerLoad struct {
	SellerID        uuid.UUID `json:"sellerId"`
	Name            string    `json:"name"`
	ActiveLeadCount int       `json:"activeLeadCount"`
}

// Repository implements the seller directory with PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new seller directory repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByLoad returns the tenant's active sellers ordered least-loaded first.
func (r *Repository) ListByLoad(ctx context.Context, companyID uuid.UUID) ([]SellerLoad, error) {
	query := `
		SELECT s.id, s.name, COUNT(l.id) FILTER (WHERE l.status NOT IN ('won', 'lost')) AS active_leads
		FROM sellers s
		LEFT JOIN leads l ON l.assigned_seller_id = s.id AND l.company_id = s.company_id
		WHERE s.company_id = $1 AND s.is_active = true
		GROUP BY s.id, s.name
		ORDER BY active_leads ASC, s.created_at ASC`

	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("list sellers by load: %w", err)
	}
	defer rows.Close()

	var result []SellerLoad
	for rows.Next() {
		var s SellerLoad
		if err := rows.Scan(&s.SellerID, &s.Name, &s.ActiveLeadCount); err != nil {
			return nil, fmt.Errorf("scan seller load: %w", err)
		}
		result = append(result, s)
	}

	return result, rows.Err()
}

// GetByID retrieves an active seller within the tenant scope.
func (r *Repository) GetByID(ctx context.Context, companyID, id uuid.UUID) (SellerLoad, error) {
	query := `
		SELECT s.id, s.name, COUNT(l.id) FILTER (WHERE l.status NOT IN ('won', 'lost')) AS active_leads
		FROM sellers s
		LEFT JOIN leads l ON l.assigned_seller_id = s.id AND l.company_id = s.company_id
		WHERE s.id = $1 AND s.company_id = $2 AND s.is_active = true
		GROUP BY s.id, s.name`

	var s SellerLoad
	err := r.pool.QueryRow(ctx, query, id, companyID).Scan(&s.SellerID, &s.Name, &s.ActiveLeadCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SellerLoad{}, apperr.NotFound("seller not found")
		}
		return SellerLoad{}, fmt.Errorf("get seller by id: %w", err)
	}

	return s, nil
}

// GetEmail returns an active seller's email address, or "" when none is on
// record. Not finding the seller is still an error.
func (r *Repository) GetEmail(ctx context.Context, companyID, id uuid.UUID) (string, error) {
	var email string
	err := r.pool.QueryRow(ctx, `
		SELECT email FROM sellers
		WHERE id = $1 AND company_id = $2 AND is_active = true`,
		id, companyID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound("seller not found")
		}
		return "", fmt.Errorf("get seller email: %w", err)
	}

	return email, nil
}
