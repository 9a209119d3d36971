// Package domain holds the automation rule model: trigger and action
// definitions as tagged unions, validated at construction so a persisted rule
// always has a config matching its declared kind.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Rule is a tenant-scoped automation rule. Inactive rules are never
// evaluated; soft-deleted rules are excluded from evaluation but retained for
// historical log correlation.
type Rule struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	Name        string
	Description string
	Trigger     Trigger
	Action      Action
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks that both the trigger and action configs match their
// declared kinds. Returns apperr.Validation on mismatch.
func (r Rule) Validate() error {
	if err := r.Trigger.Validate(); err != nil {
		return err
	}
	return r.Action.Validate()
}
