package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"crmflow_backend/platform/apperr"
)

// TriggerType enumerates the conditions under which a rule fires.
type TriggerType string

const (
	TriggerTimeBased    TriggerType = "time_based"
	TriggerStatusChange TriggerType = "status_change"
	TriggerStageChange  TriggerType = "stage_change"
	TriggerTagAdded     TriggerType = "tag_added"
	TriggerInactivity   TriggerType = "inactivity"
)

// AnyStatus is the wildcard for the source side of a transition trigger.
const AnyStatus = "any"

// KnownTriggerType reports whether t is one of the enumerated trigger kinds.
func KnownTriggerType(t TriggerType) bool {
	switch t {
	case TriggerTimeBased, TriggerStatusChange, TriggerStageChange, TriggerTagAdded, TriggerInactivity:
		return true
	}
	return false
}

// TimeBasedTrigger fires once when a lead's age crosses the threshold.
type TimeBasedTrigger struct {
	ThresholdMinutes int `json:"thresholdMinutes"`
}

// Threshold returns the configured elapsed duration.
func (t TimeBasedTrigger) Threshold() time.Duration {
	return time.Duration(t.ThresholdMinutes) * time.Minute
}

// StatusChangeTrigger fires when a lead transitions between the configured
// statuses. FromStatus may be the wildcard "any". Used for both
// status_change and stage_change trigger kinds.
type StatusChangeTrigger struct {
	FromStatus string `json:"fromStatus"`
	ToStatus   string `json:"toStatus"`
}

// Matches reports whether the observed transition satisfies the trigger.
func (t StatusChangeTrigger) Matches(previousStatus, newStatus string) bool {
	if t.ToStatus != newStatus {
		return false
	}
	return t.FromStatus == AnyStatus || t.FromStatus == previousStatus
}

// TagAddedTrigger fires when the configured tag is added to a lead.
type TagAddedTrigger struct {
	Tag string `json:"tag"`
}

// InactivityTrigger fires when a lead has seen no activity for the threshold.
// It re-arms automatically whenever the lead's last activity advances.
type InactivityTrigger struct {
	ThresholdMinutes int `json:"thresholdMinutes"`
}

// Threshold returns the configured inactivity window.
func (t InactivityTrigger) Threshold() time.Duration {
	return time.Duration(t.ThresholdMinutes) * time.Minute
}

// Trigger is the tagged union of all trigger kinds. Exactly the variant
// matching Type is populated.
type Trigger struct {
	Type         TriggerType
	TimeBased    *TimeBasedTrigger
	StatusChange *StatusChangeTrigger
	TagAdded     *TagAddedTrigger
	Inactivity   *InactivityTrigger
}

// Validate checks that the populated variant matches Type and that its
// parameters are usable.
func (t Trigger) Validate() error {
	if !KnownTriggerType(t.Type) {
		return apperr.Validation(fmt.Sprintf("unknown trigger type %q", t.Type))
	}

	switch t.Type {
	case TriggerTimeBased:
		if t.TimeBased == nil {
			return apperr.Validation("time_based trigger requires a config")
		}
		if t.TimeBased.ThresholdMinutes <= 0 {
			return apperr.Validation("time_based trigger requires a positive duration")
		}
	case TriggerStatusChange, TriggerStageChange:
		if t.StatusChange == nil {
			return apperr.Validation(string(t.Type) + " trigger requires a config")
		}
		if t.StatusChange.ToStatus == "" {
			return apperr.Validation(string(t.Type) + " trigger requires a target status")
		}
		if t.StatusChange.FromStatus == "" {
			return apperr.Validation(string(t.Type) + ` trigger requires a source status (use "any" for a wildcard)`)
		}
	case TriggerTagAdded:
		if t.TagAdded == nil || t.TagAdded.Tag == "" {
			return apperr.Validation("tag_added trigger requires a non-empty tag")
		}
	case TriggerInactivity:
		if t.Inactivity == nil {
			return apperr.Validation("inactivity trigger requires a config")
		}
		if t.Inactivity.ThresholdMinutes <= 0 {
			return apperr.Validation("inactivity trigger requires a positive duration")
		}
	}

	return nil
}

// ConfigJSON serializes the active variant for jsonb storage.
func (t Trigger) ConfigJSON() ([]byte, error) {
	switch t.Type {
	case TriggerTimeBased:
		return json.Marshal(t.TimeBased)
	case TriggerStatusChange, TriggerStageChange:
		return json.Marshal(t.StatusChange)
	case TriggerTagAdded:
		return json.Marshal(t.TagAdded)
	case TriggerInactivity:
		return json.Marshal(t.Inactivity)
	}
	return nil, apperr.Validation(fmt.Sprintf("unknown trigger type %q", t.Type))
}

// ParseTrigger reconstructs a Trigger from its stored kind and jsonb config.
func ParseTrigger(triggerType TriggerType, config []byte) (Trigger, error) {
	t := Trigger{Type: triggerType}
	if len(config) == 0 {
		config = []byte("{}")
	}

	var err error
	switch triggerType {
	case TriggerTimeBased:
		t.TimeBased = &TimeBasedTrigger{}
		err = json.Unmarshal(config, t.TimeBased)
	case TriggerStatusChange, TriggerStageChange:
		t.StatusChange = &StatusChangeTrigger{}
		err = json.Unmarshal(config, t.StatusChange)
	case TriggerTagAdded:
		t.TagAdded = &TagAddedTrigger{}
		err = json.Unmarshal(config, t.TagAdded)
	case TriggerInactivity:
		t.Inactivity = &InactivityTrigger{}
		err = json.Unmarshal(config, t.Inactivity)
	default:
		return Trigger{}, apperr.Validation(fmt.Sprintf("unknown trigger type %q", triggerType))
	}
	if err != nil {
		return Trigger{}, apperr.Wrap(apperr.KindValidation, "malformed trigger config", err)
	}

	return t, nil
}
