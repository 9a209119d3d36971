package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateLeadRequest contains data for registering a new lead.
type CreateLeadRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=200"`
	Phone  string `json:"phone" validate:"omitempty,max=32"`
	Email  string `json:"email" validate:"omitempty,email"`
	Status string `json:"status" validate:"omitempty,max=40"`
}

// ChangeStatusRequest moves a lead to a new pipeline status.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,max=40"`
}

// AddTagRequest adds a tag to a lead.
type AddTagRequest struct {
	Tag string `json:"tag" validate:"required,min=1,max=60"`
}

// LeadResponse represents a lead in API responses.
type LeadResponse struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone,omitempty"`
	Email            string     `json:"email,omitempty"`
	Status           string     `json:"status"`
	Tags             []string   `json:"tags"`
	AssignedSellerID *uuid.UUID `json:"assignedSellerId,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastActivityAt   time.Time  `json:"lastActivityAt"`
}

// LeadListResponse wraps a list of leads.
type LeadListResponse struct {
	Items []LeadResponse `json:"items"`
	Total int            `json:"total"`
}
