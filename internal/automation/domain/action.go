package domain

import (
	"encoding/json"
	"fmt"

	"crmflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// ActionType enumerates the effects a rule can perform when it fires.
type ActionType string

const (
	ActionSendMessage  ActionType = "send_message"
	ActionChangeStatus ActionType = "change_status"
	ActionAssignSeller ActionType = "assign_seller"
	ActionAddTag       ActionType = "add_tag"
	ActionNotifyUser   ActionType = "notify_user"
)

// KnownActionType reports whether a is one of the enumerated action kinds.
func KnownActionType(a ActionType) bool {
	switch a {
	case ActionSendMessage, ActionChangeStatus, ActionAssignSeller, ActionAddTag, ActionNotifyUser:
		return true
	}
	return false
}

// SellerPolicy selects how assign_seller picks its target.
type SellerPolicy string

const (
	// PolicyFixed assigns the configured seller.
	PolicyFixed SellerPolicy = "fixed"
	// PolicyLeastLoaded assigns the seller with the fewest active leads in the tenant.
	PolicyLeastLoaded SellerPolicy = "least_loaded"
)

// SendMessageAction renders a stored template with lead variables and
// dispatches it through the messaging provider.
type SendMessageAction struct {
	TemplateID uuid.UUID `json:"templateId"`
}

// ChangeStatusAction moves the lead to the target status, subject to the
// lead domain's transition rules.
type ChangeStatusAction struct {
	TargetStatus string `json:"targetStatus"`
}

// AssignSellerAction assigns the lead to a seller chosen by the policy.
type AssignSellerAction struct {
	Policy   SellerPolicy `json:"policy"`
	SellerID *uuid.UUID   `json:"sellerId,omitempty"`
}

// AddTagAction adds a tag to the lead. Adding a tag the lead already has is
// a no-op success.
type AddTagAction struct {
	Tag string `json:"tag"`
}

// NotifyUserAction delivers an in-app notification (and email, when the
// channel is configured) to the target user.
type NotifyUserAction struct {
	UserID  uuid.UUID `json:"userId"`
	Message string    `json:"message"`
}

// Action is the tagged union of all action kinds. Exactly the variant
// matching Type is populated.
type Action struct {
	Type         ActionType
	SendMessage  *SendMessageAction
	ChangeStatus *ChangeStatusAction
	AssignSeller *AssignSellerAction
	AddTag       *AddTagAction
	NotifyUser   *NotifyUserAction
}

// Validate checks that the populated variant matches Type and that its
// parameters are usable.
func (a Action) Validate() error {
	if !KnownActionType(a.Type) {
		return apperr.Validation(fmt.Sprintf("unknown action type %q", a.Type))
	}

	switch a.Type {
	case ActionSendMessage:
		if a.SendMessage == nil || a.SendMessage.TemplateID == uuid.Nil {
			return apperr.Validation("send_message action requires a template id")
		}
	case ActionChangeStatus:
		if a.ChangeStatus == nil || a.ChangeStatus.TargetStatus == "" {
			return apperr.Validation("change_status action requires a target status")
		}
	case ActionAssignSeller:
		if a.AssignSeller == nil {
			return apperr.Validation("assign_seller action requires a config")
		}
		switch a.AssignSeller.Policy {
		case PolicyFixed:
			if a.AssignSeller.SellerID == nil || *a.AssignSeller.SellerID == uuid.Nil {
				return apperr.Validation("assign_seller with fixed policy requires a seller id")
			}
		case PolicyLeastLoaded:
		default:
			return apperr.Validation(fmt.Sprintf("unknown seller policy %q", a.AssignSeller.Policy))
		}
	case ActionAddTag:
		if a.AddTag == nil || a.AddTag.Tag == "" {
			return apperr.Validation("add_tag action requires a non-empty tag")
		}
	case ActionNotifyUser:
		if a.NotifyUser == nil || a.NotifyUser.UserID == uuid.Nil {
			return apperr.Validation("notify_user action requires a user id")
		}
	}

	return nil
}

// ConfigJSON serializes the active variant for jsonb storage.
func (a Action) ConfigJSON() ([]byte, error) {
	switch a.Type {
	case ActionSendMessage:
		return json.Marshal(a.SendMessage)
	case ActionChangeStatus:
		return json.Marshal(a.ChangeStatus)
	case ActionAssignSeller:
		return json.Marshal(a.AssignSeller)
	case ActionAddTag:
		return json.Marshal(a.AddTag)
	case ActionNotifyUser:
		return json.Marshal(a.NotifyUser)
	}
	return nil, apperr.Validation(fmt.Sprintf("unknown action type %q", a.Type))
}

// ParseAction reconstructs an Action from its stored kind and jsonb config.
func ParseAction(actionType ActionType, config []byte) (Action, error) {
	a := Action{Type: actionType}
	if len(config) == 0 {
		config = []byte("{}")
	}

	var err error
	switch actionType {
	case ActionSendMessage:
		a.SendMessage = &SendMessageAction{}
		err = json.Unmarshal(config, a.SendMessage)
	case ActionChangeStatus:
		a.ChangeStatus = &ChangeStatusAction{}
		err = json.Unmarshal(config, a.ChangeStatus)
	case ActionAssignSeller:
		a.AssignSeller = &AssignSellerAction{}
		err = json.Unmarshal(config, a.AssignSeller)
	case ActionAddTag:
		a.AddTag = &AddTagAction{}
		err = json.Unmarshal(config, a.AddTag)
	case ActionNotifyUser:
		a.NotifyUser = &NotifyUserAction{}
		err = json.Unmarshal(config, a.NotifyUser)
	default:
		return Action{}, apperr.Validation(fmt.Sprintf("unknown action type %q", actionType))
	}
	if err != nil {
		return Action{}, apperr.Wrap(apperr.KindValidation, "malformed action config", err)
	}

	return a, nil
}
