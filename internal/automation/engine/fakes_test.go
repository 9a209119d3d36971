package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"crmflow_backend/internal/automation/domain"
	"crmflow_backend/internal/automation/repository"
	"crmflow_backend/internal/events"
	leadsrepo "crmflow_backend/internal/leads/repository"
	"crmflow_backend/internal/notification/inapp"
	"crmflow_backend/internal/sellers"
	"crmflow_backend/internal/templates"
	"crmflow_backend/internal/whatsapp"
)

type fakeExecutionStore struct {
	mu            sync.Mutex
	inserted      []repository.InsertExecutionParams
	insertErr     error
	statusChanges []repository.StatusChangeParams
	statusUpdated bool
	statusErr     error
}

func (f *fakeExecutionStore) Insert(ctx context.Context, p repository.InsertExecutionParams) (repository.ExecutionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return repository.ExecutionEntry{}, f.insertErr
	}
	f.inserted = append(f.inserted, p)
	var errMsg *string
	if p.ErrorMessage != "" {
		errMsg = &p.ErrorMessage
	}
	return repository.ExecutionEntry{
		ID:           uuid.New(),
		CompanyID:    p.CompanyID,
		AutomationID: p.AutomationID,
		RuleName:     p.RuleName,
		LeadID:       p.LeadID,
		Success:      p.Success,
		ErrorMessage: errMsg,
		ExecutedAt:   time.Now(),
	}, nil
}

func (f *fakeExecutionStore) InsertWithStatusChange(ctx context.Context, p repository.StatusChangeParams) (repository.ExecutionEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return repository.ExecutionEntry{}, false, f.statusErr
	}
	f.statusChanges = append(f.statusChanges, p)
	if !f.statusUpdated {
		return repository.ExecutionEntry{}, false, nil
	}
	return repository.ExecutionEntry{
		ID:           uuid.New(),
		CompanyID:    p.CompanyID,
		AutomationID: p.AutomationID,
		RuleName:     p.RuleName,
		LeadID:       p.LeadID,
		Success:      true,
		ExecutedAt:   time.Now(),
	}, true, nil
}

type fakeLeadStore struct {
	mu          sync.Mutex
	addedTags   []string
	addTagOK    bool
	addTagErr   error
	assignments []uuid.UUID
	assignErr   error
}

func (f *fakeLeadStore) AddTag(ctx context.Context, companyID, id uuid.UUID, tag string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addTagErr != nil {
		return false, f.addTagErr
	}
	f.addedTags = append(f.addedTags, tag)
	return f.addTagOK, nil
}

func (f *fakeLeadStore) AssignSeller(ctx context.Context, companyID, id, sellerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.assignErr != nil {
		return f.assignErr
	}
	f.assignments = append(f.assignments, sellerID)
	return nil
}

type fakeSellerDirectory struct {
	loads   []sellers.SellerLoad
	byID    map[uuid.UUID]sellers.SellerLoad
	byIDErr error
	emails  map[uuid.UUID]string
}

func (f *fakeSellerDirectory) ListByLoad(ctx context.Context, companyID uuid.UUID) ([]sellers.SellerLoad, error) {
	return f.loads, nil
}

func (f *fakeSellerDirectory) GetByID(ctx context.Context, companyID, id uuid.UUID) (sellers.SellerLoad, error) {
	if f.byIDErr != nil {
		return sellers.SellerLoad{}, f.byIDErr
	}
	s, ok := f.byID[id]
	if !ok {
		return sellers.SellerLoad{}, errNotFound
	}
	return s, nil
}

func (f *fakeSellerDirectory) GetEmail(ctx context.Context, companyID, id uuid.UUID) (string, error) {
	email, ok := f.emails[id]
	if !ok {
		return "", errNotFound
	}
	return email, nil
}

type fakeTemplateStore struct {
	byID map[uuid.UUID]templates.Template
}

func (f *fakeTemplateStore) GetByID(ctx context.Context, companyID, id uuid.UUID) (templates.Template, error) {
	tmpl, ok := f.byID[id]
	if !ok {
		return templates.Template{}, errNotFound
	}
	return tmpl, nil
}

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []string
	phones   []string
	result   whatsapp.SendResult
	err      error
}

func (f *fakeMessenger) SendMessage(ctx context.Context, phoneNumber, message string) (whatsapp.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return whatsapp.SendResult{}, f.err
	}
	f.phones = append(f.phones, phoneNumber)
	f.sent = append(f.sent, message)
	return f.result, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	params []inapp.SendParams
	err    error
}

func (f *fakeNotifier) Send(ctx context.Context, p inapp.SendParams) (inapp.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return inapp.Notification{}, f.err
	}
	f.params = append(f.params, p)
	return inapp.Notification{ID: uuid.New(), UserID: p.UserID, Title: p.Title, Content: p.Content}, nil
}

// recordingBus captures published events synchronously so tests can assert
// on them without sleeping.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBus) PublishSync(ctx context.Context, ev events.Event) error {
	b.Publish(ctx, ev)
	return nil
}

func (b *recordingBus) Subscribe(eventName string, handler events.Handler) {}

func (b *recordingBus) published() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.events...)
}

type fakeRuleSource struct {
	rules []domain.Rule
	err   error
}

func (f *fakeRuleSource) GetByID(ctx context.Context, companyID, id uuid.UUID) (domain.Rule, error) {
	for _, r := range f.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Rule{}, errNotFound
}

func (f *fakeRuleSource) ListActiveByTriggers(ctx context.Context, companyID uuid.UUID, triggerTypes ...domain.TriggerType) ([]domain.Rule, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Rule
	for _, r := range f.rules {
		if !r.IsActive {
			continue
		}
		for _, tt := range triggerTypes {
			if r.Trigger.Type == tt {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRuleSource) ListActiveByTriggerAllTenants(ctx context.Context, triggerType domain.TriggerType) ([]domain.Rule, error) {
	return f.ListActiveByTriggers(ctx, uuid.Nil, triggerType)
}

type fakeLeadSource struct {
	mu    sync.Mutex
	leads map[uuid.UUID]leadsrepo.Lead
	reads int
}

func (f *fakeLeadSource) GetByID(ctx context.Context, companyID, id uuid.UUID) (leadsrepo.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	lead, ok := f.leads[id]
	if !ok {
		return leadsrepo.Lead{}, errNotFound
	}
	return lead, nil
}

func (f *fakeLeadSource) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

type fakeCandidateSource struct {
	timeBased  []leadsrepo.Lead
	inactivity []leadsrepo.Lead
}

func (f *fakeCandidateSource) TimeBased(ctx context.Context, companyID, ruleID uuid.UUID, thresholdMinutes int) ([]leadsrepo.Lead, error) {
	return f.timeBased, nil
}

func (f *fakeCandidateSource) Inactivity(ctx context.Context, companyID, ruleID uuid.UUID, thresholdMinutes int) ([]leadsrepo.Lead, error) {
	return f.inactivity, nil
}

type claimCall struct {
	ruleID         uuid.UUID
	leadID         uuid.UUID
	lastActivityAt time.Time
}

type fakeMarkerStore struct {
	mu      sync.Mutex
	claims  []claimCall
	granted map[uuid.UUID]bool // keyed by lead id; missing means claim granted
}

func (f *fakeMarkerStore) decide(ruleID, leadID uuid.UUID, lastActivity time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims = append(f.claims, claimCall{ruleID: ruleID, leadID: leadID, lastActivityAt: lastActivity})
	if granted, ok := f.granted[leadID]; ok {
		return granted, nil
	}
	return true, nil
}

func (f *fakeMarkerStore) ClaimTimeBased(ctx context.Context, ruleID, leadID uuid.UUID) (bool, error) {
	return f.decide(ruleID, leadID, time.Time{})
}

func (f *fakeMarkerStore) ClaimInactivity(ctx context.Context, ruleID, leadID uuid.UUID, lastActivityAt time.Time) (bool, error) {
	return f.decide(ruleID, leadID, lastActivityAt)
}

type runnerCall struct {
	ruleID  uuid.UUID
	leadID  uuid.UUID
	status  string
	attempt int
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []runnerCall
	err   error
}

func (f *fakeRunner) Execute(ctx context.Context, rule domain.Rule, lead leadsrepo.Lead, attempt int) (repository.ExecutionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, runnerCall{ruleID: rule.ID, leadID: lead.ID, status: lead.Status, attempt: attempt})
	if f.err != nil {
		return repository.ExecutionEntry{}, f.err
	}
	return repository.ExecutionEntry{ID: uuid.New(), AutomationID: rule.ID, LeadID: lead.ID, Success: true}, nil
}

func (f *fakeRunner) executed() []runnerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runnerCall(nil), f.calls...)
}

var errNotFound = notFoundError("not found")

type notFoundError string

func (e notFoundError) Error() string { return string(e) }
