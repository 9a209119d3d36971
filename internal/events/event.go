// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"crmflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Lifecycle Events (the automation engine's event source)
// =============================================================================

// LeadStatusChanged is published when a lead moves to a new pipeline status,
// whether by a user or by an automation action.
type LeadStatusChanged struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	CompanyID      uuid.UUID `json:"companyId"`
	PreviousStatus string    `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
	// Automated marks transitions applied by the engine itself so evaluation
	// can skip re-entrant processing of its own writes.
	Automated bool `json:"automated"`
}

func (e LeadStatusChanged) EventName() string { return "leads.status.changed" }

// LeadTagAdded is published when a tag is added to a lead.
type LeadTagAdded struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	CompanyID uuid.UUID `json:"companyId"`
	Tag       string    `json:"tag"`
	Automated bool      `json:"automated"`
}

func (e LeadTagAdded) EventName() string { return "leads.tag.added" }

// =============================================================================
// Automation Events
// =============================================================================

// ExecutionRecorded is published after the executor writes an execution log
// entry. The retry scheduler listens for failed send_message executions.
type ExecutionRecorded struct {
	BaseEvent
	ExecutionID uuid.UUID `json:"executionId"`
	RuleID      uuid.UUID `json:"ruleId"`
	CompanyID   uuid.UUID `json:"companyId"`
	LeadID      uuid.UUID `json:"leadId"`
	ActionType  string    `json:"actionType"`
	Success     bool      `json:"success"`
	Attempt     int       `json:"attempt"`
}

func (e ExecutionRecorded) EventName() string { return "automation.execution.recorded" }
