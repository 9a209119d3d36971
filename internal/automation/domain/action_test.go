package domain

import (
	"testing"

	"github.com/google/uuid"

	"crmflow_backend/platform/apperr"
)

func TestActionValidateRejectsUnknownKind(t *testing.T) {
	err := Action{Type: "launch_rocket"}.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation kind, got %v", err)
	}
}

func TestActionValidateSendMessageRequiresTemplate(t *testing.T) {
	if (Action{Type: ActionSendMessage, SendMessage: &SendMessageAction{}}).Validate() == nil {
		t.Fatal("nil template id must be rejected")
	}
	ok := Action{Type: ActionSendMessage, SendMessage: &SendMessageAction{TemplateID: uuid.New()}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid send_message rejected: %v", err)
	}
}

func TestActionValidateAssignSellerPolicies(t *testing.T) {
	fixedWithoutSeller := Action{Type: ActionAssignSeller, AssignSeller: &AssignSellerAction{Policy: PolicyFixed}}
	if fixedWithoutSeller.Validate() == nil {
		t.Fatal("fixed policy without a seller must be rejected")
	}

	sellerID := uuid.New()
	fixed := Action{Type: ActionAssignSeller, AssignSeller: &AssignSellerAction{Policy: PolicyFixed, SellerID: &sellerID}}
	if err := fixed.Validate(); err != nil {
		t.Fatalf("valid fixed assignment rejected: %v", err)
	}

	leastLoaded := Action{Type: ActionAssignSeller, AssignSeller: &AssignSellerAction{Policy: PolicyLeastLoaded}}
	if err := leastLoaded.Validate(); err != nil {
		t.Fatalf("least_loaded needs no seller id: %v", err)
	}

	unknown := Action{Type: ActionAssignSeller, AssignSeller: &AssignSellerAction{Policy: "round_robin"}}
	if unknown.Validate() == nil {
		t.Fatal("unknown policy must be rejected")
	}
}

func TestActionValidateNotifyUserRequiresUser(t *testing.T) {
	if (Action{Type: ActionNotifyUser, NotifyUser: &NotifyUserAction{}}).Validate() == nil {
		t.Fatal("nil user id must be rejected")
	}
	ok := Action{Type: ActionNotifyUser, NotifyUser: &NotifyUserAction{UserID: uuid.New()}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("message is optional, only the user is required: %v", err)
	}
}

func TestParseActionRoundTripsConfig(t *testing.T) {
	sellerID := uuid.New()
	original := Action{
		Type:         ActionAssignSeller,
		AssignSeller: &AssignSellerAction{Policy: PolicyFixed, SellerID: &sellerID},
	}

	raw, err := original.ConfigJSON()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	parsed, err := ParseAction(ActionAssignSeller, raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.AssignSeller == nil || parsed.AssignSeller.Policy != PolicyFixed {
		t.Fatalf("round trip mismatch: %+v", parsed.AssignSeller)
	}
	if parsed.AssignSeller.SellerID == nil || *parsed.AssignSeller.SellerID != sellerID {
		t.Fatal("seller id lost in round trip")
	}
}

func TestParseActionRejectsUnknownKindAndMalformedConfig(t *testing.T) {
	if _, err := ParseAction("launch_rocket", []byte(`{}`)); err == nil {
		t.Fatal("unknown kind must be rejected")
	}
	if _, err := ParseAction(ActionAddTag, []byte(`[1,2`)); err == nil {
		t.Fatal("malformed config must be rejected")
	}
}

func TestRuleValidateChecksBothSides(t *testing.T) {
	rule := Rule{
		Name: "welcome",
		Trigger: Trigger{
			Type:     TriggerTagAdded,
			TagAdded: &TagAddedTrigger{Tag: "inbound"},
		},
		Action: Action{
			Type:   ActionAddTag,
			AddTag: &AddTagAction{},
		},
	}
	if rule.Validate() == nil {
		t.Fatal("an invalid action must fail the rule even with a valid trigger")
	}

	rule.Action.AddTag.Tag = "welcomed"
	if err := rule.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}
}
