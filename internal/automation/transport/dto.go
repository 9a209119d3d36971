package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RuleRequest creates or replaces an automation rule. Trigger and action
// configs are passed through as raw JSON and validated against the declared
// kinds by the domain layer.
type RuleRequest struct {
	Name          string          `json:"name" validate:"required,min=1,max=200"`
	Description   string          `json:"description" validate:"max=1000"`
	TriggerType   string          `json:"triggerType" validate:"required,max=40"`
	TriggerConfig json.RawMessage `json:"triggerConfig"`
	ActionType    string          `json:"actionType" validate:"required,max=40"`
	ActionConfig  json.RawMessage `json:"actionConfig"`
	IsActive      *bool           `json:"isActive"`
}

// RuleResponse represents a rule in API responses.
type RuleResponse struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	TriggerType   string          `json:"triggerType"`
	TriggerConfig json.RawMessage `json:"triggerConfig"`
	ActionType    string          `json:"actionType"`
	ActionConfig  json.RawMessage `json:"actionConfig"`
	IsActive      bool            `json:"isActive"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// RuleListResponse wraps a list of rules.
type RuleListResponse struct {
	Items []RuleResponse `json:"items"`
	Total int            `json:"total"`
}
