// Package templates provides the message template store used by the
// send_message action.
package templates

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

// Template is a tenant-scoped message body with {{variable}} placeholders.
type Template struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"-"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository implements template persistence with PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new template repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID retrieves a template within the tenant scope.
func (r *Repository) GetByID(ctx context.Context, companyID, id uuid.UUID) (Template, error) {
	var t Template
	err := r.pool.QueryRow(ctx, `
		SELECT id, company_id, name, body, created_at
		FROM message_templates
		WHERE id = $1 AND company_id = $2`,
		id, companyID).Scan(&t.ID, &t.CompanyID, &t.Name, &t.Body, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, apperr.NotFound("message template not found")
		}
		return Template{}, fmt.Errorf("get template by id: %w", err)
	}

	return t, nil
}

// List retrieves the tenant's templates ordered by name.
func (r *Repository) List(ctx context.Context, companyID uuid.UUID) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, company_id, name, body, created_at
		FROM message_templates
		WHERE company_id = $1
		ORDER BY name ASC`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var result []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.Name, &t.Body, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		result = append(result, t)
	}

	return result, rows.Err()
}

// Create inserts a new template.
func (r *Repository) Create(ctx context.Context, companyID uuid.UUID, name, body string) (Template, error) {
	var t Template
	err := r.pool.QueryRow(ctx, `
		INSERT INTO message_templates (company_id, name, body)
		VALUES ($1, $2, $3)
		RETURNING id, company_id, name, body, created_at`,
		companyID, name, body).Scan(&t.ID, &t.CompanyID, &t.Name, &t.Body, &t.CreatedAt)
	if err != nil {
		return Template{}, fmt.Errorf("create template: %w", err)
	}

	return t, nil
}
