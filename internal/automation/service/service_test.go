package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"crmflow_backend/internal/automation/domain"
	"crmflow_backend/internal/automation/transport"
	"crmflow_backend/platform/apperr"
	"crmflow_backend/platform/logger"
)

type fakeRuleStore struct {
	rules          []domain.Rule
	listActiveOnly bool
}

func (f *fakeRuleStore) Create(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	return rule, nil
}

func (f *fakeRuleStore) Update(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	return rule, nil
}

func (f *fakeRuleStore) GetByID(ctx context.Context, companyID, id uuid.UUID) (domain.Rule, error) {
	return domain.Rule{}, nil
}

func (f *fakeRuleStore) List(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]domain.Rule, error) {
	f.listActiveOnly = activeOnly
	if !activeOnly {
		return f.rules, nil
	}
	var active []domain.Rule
	for _, r := range f.rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return active, nil
}

func (f *fakeRuleStore) SetActive(ctx context.Context, companyID, id uuid.UUID, active bool) error {
	return nil
}

func (f *fakeRuleStore) SoftDelete(ctx context.Context, companyID, id uuid.UUID) error {
	return nil
}

func (f *fakeRuleStore) HardDelete(ctx context.Context, companyID, id uuid.UUID) error {
	return nil
}

func validRequest() transport.RuleRequest {
	return transport.RuleRequest{
		Name:          "welcome new leads",
		TriggerType:   "status_change",
		TriggerConfig: json.RawMessage(`{"fromStatus":"any","toStatus":"contacted"}`),
		ActionType:    "add_tag",
		ActionConfig:  json.RawMessage(`{"tag":"welcomed"}`),
	}
}

func TestParseRuleDefaultsToActive(t *testing.T) {
	companyID := uuid.New()

	rule, err := parseRule(companyID, validRequest())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !rule.IsActive {
		t.Fatal("rules are active unless the request says otherwise")
	}
	if rule.CompanyID != companyID {
		t.Fatal("rule must carry the tenant")
	}
	if rule.Trigger.StatusChange == nil || rule.Trigger.StatusChange.ToStatus != "contacted" {
		t.Fatalf("trigger config lost: %+v", rule.Trigger)
	}
}

func TestParseRuleHonorsExplicitInactive(t *testing.T) {
	req := validRequest()
	inactive := false
	req.IsActive = &inactive

	rule, err := parseRule(uuid.New(), req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rule.IsActive {
		t.Fatal("explicit isActive=false must be kept")
	}
}

func TestParseRuleRejectsMismatchedConfig(t *testing.T) {
	req := validRequest()
	req.TriggerType = "time_based"
	// A status-change config carries no threshold, so the parsed
	// time_based trigger fails validation.
	_, err := parseRule(uuid.New(), req)
	if err == nil {
		t.Fatal("config not matching the trigger kind must be rejected")
	}
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseRuleRejectsUnknownKinds(t *testing.T) {
	req := validRequest()
	req.ActionType = "launch_rocket"
	if _, err := parseRule(uuid.New(), req); err == nil {
		t.Fatal("unknown action kind must be rejected")
	}
}

func storedRule(name string, active bool) domain.Rule {
	return domain.Rule{
		ID:       uuid.New(),
		Name:     name,
		IsActive: active,
		Trigger: domain.Trigger{
			Type:     domain.TriggerTagAdded,
			TagAdded: &domain.TagAddedTrigger{Tag: "hot"},
		},
		Action: domain.Action{
			Type:   domain.ActionAddTag,
			AddTag: &domain.AddTagAction{Tag: "warm"},
		},
	}
}

func TestListFiltersActiveOnlyWhenAsked(t *testing.T) {
	store := &fakeRuleStore{rules: []domain.Rule{
		storedRule("live", true),
		storedRule("paused", false),
	}}
	svc := New(store, nil, logger.New("test"))

	all, err := svc.List(context.Background(), uuid.New(), false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if all.Total != 2 || store.listActiveOnly {
		t.Fatalf("default listing must include inactive rules, got %d (activeOnly=%v)", all.Total, store.listActiveOnly)
	}

	active, err := svc.List(context.Background(), uuid.New(), true)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if !store.listActiveOnly {
		t.Fatal("activeOnly must reach the store")
	}
	if active.Total != 1 || active.Items[0].Name != "live" || !active.Items[0].IsActive {
		t.Fatalf("expected only the active rule, got %+v", active.Items)
	}
}

func TestToResponseRoundTripsConfigs(t *testing.T) {
	rule := domain.Rule{
		ID:       uuid.New(),
		Name:     "tag hot leads",
		IsActive: true,
		Trigger: domain.Trigger{
			Type:     domain.TriggerTagAdded,
			TagAdded: &domain.TagAddedTrigger{Tag: "hot"},
		},
		Action: domain.Action{
			Type:         domain.ActionChangeStatus,
			ChangeStatus: &domain.ChangeStatusAction{TargetStatus: "qualified"},
		},
	}

	resp, err := toResponse(rule)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if resp.TriggerType != "tag_added" || resp.ActionType != "change_status" {
		t.Fatalf("unexpected kinds %s/%s", resp.TriggerType, resp.ActionType)
	}

	var trigger domain.TagAddedTrigger
	if err := json.Unmarshal(resp.TriggerConfig, &trigger); err != nil {
		t.Fatalf("unmarshal trigger config: %v", err)
	}
	if trigger.Tag != "hot" {
		t.Fatalf("trigger config lost: %+v", trigger)
	}
}
