package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crmflow_backend/platform/apperr"
)

const leadNotFoundMessage = "lead not found"

// Lead is the minimal lead projection this service works with. The record is
// owned by the surrounding CRM; the automation engine reads it and mutates
// status, tags and seller assignment.
type Lead struct {
	ID               uuid.UUID
	CompanyID        uuid.UUID
	Name             string
	Phone            string
	Email            string
	Status           string
	Tags             []string
	AssignedSellerID *uuid.UUID
	CreatedAt        time.Time
	StageEnteredAt   time.Time
	LastActivityAt   time.Time
}

// HasTag reports whether the lead already carries the tag.
func (l Lead) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// CreateParams contains the fields needed to register a lead.
type CreateParams struct {
	CompanyID uuid.UUID
	Name      string
	Phone     string
	Email     string
	Status    string
}

// Repo implements lead persistence with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new lead repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const leadColumns = `id, company_id, name, phone, email, status, tags, assigned_seller_id, created_at, stage_entered_at, last_activity_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.CompanyID, &l.Name, &l.Phone, &l.Email, &l.Status, &l.Tags,
		&l.AssignedSellerID, &l.CreatedAt, &l.StageEnteredAt, &l.LastActivityAt,
	)
	return l, err
}

// GetByID retrieves a lead within the tenant scope.
func (r *Repo) GetByID(ctx context.Context, companyID, id uuid.UUID) (Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE id = $1 AND company_id = $2`

	l, err := scanLead(r.pool.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("get lead by id: %w", err)
	}

	return l, nil
}

// Create inserts a new lead.
func (r *Repo) Create(ctx context.Context, p CreateParams) (Lead, error) {
	query := `
		INSERT INTO leads (company_id, name, phone, email, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + leadColumns

	l, err := scanLead(r.pool.QueryRow(ctx, query, p.CompanyID, p.Name, p.Phone, p.Email, p.Status))
	if err != nil {
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}

	return l, nil
}

// List retrieves the tenant's leads, newest first.
func (r *Repo) List(ctx context.Context, companyID uuid.UUID, limit int) ([]Lead, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, l)
	}

	return leads, rows.Err()
}

// UpdateStatus moves a lead to a new status, guarded by the expected current
// status so concurrent writers cannot silently clobber each other. It also
// resets the stage-entry clock used by time-based triggers.
func (r *Repo) UpdateStatus(ctx context.Context, companyID, id uuid.UUID, fromStatus, toStatus string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = $1, stage_entered_at = now(), last_activity_at = now()
		WHERE id = $2 AND company_id = $3 AND status = $4`,
		toStatus, id, companyID, fromStatus)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("lead status changed concurrently")
	}

	return nil
}

// AddTag appends a tag to the lead unless it is already present. Returns
// true when the tag was actually added.
func (r *Repo) AddTag(ctx context.Context, companyID, id uuid.UUID, tag string) (bool, error) {
	res, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET tags = array_append(tags, $1), last_activity_at = now()
		WHERE id = $2 AND company_id = $3 AND NOT (tags @> ARRAY[$1])`,
		tag, id, companyID)
	if err != nil {
		return false, fmt.Errorf("add lead tag: %w", err)
	}

	return res.RowsAffected() > 0, nil
}

// AssignSeller sets the lead's assigned seller.
func (r *Repo) AssignSeller(ctx context.Context, companyID, id, sellerID uuid.UUID) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET assigned_seller_id = $1, last_activity_at = now()
		WHERE id = $2 AND company_id = $3`,
		sellerID, id, companyID)
	if err != nil {
		return fmt.Errorf("assign seller: %w", err)
	}
	if res.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMessage)
	}

	return nil
}

// TouchActivity advances the lead's last activity timestamp, re-arming
// inactivity triggers.
func (r *Repo) TouchActivity(ctx context.Context, companyID, id uuid.UUID) (time.Time, error) {
	var activityAt time.Time
	err := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET last_activity_at = now()
		WHERE id = $1 AND company_id = $2
		RETURNING last_activity_at`,
		id, companyID).Scan(&activityAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, apperr.NotFound(leadNotFoundMessage)
		}
		return time.Time{}, fmt.Errorf("touch lead activity: %w", err)
	}

	return activityAt, nil
}
