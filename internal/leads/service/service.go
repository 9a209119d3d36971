package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"crmflow_backend/internal/events"
	"crmflow_backend/internal/leads/domain"
	"crmflow_backend/internal/leads/repository"
	"crmflow_backend/internal/leads/transport"
	"crmflow_backend/platform/apperr"
	"crmflow_backend/platform/logger"
)

// Service provides lead lifecycle operations. Every mutation publishes the
// corresponding domain event; the automation engine evaluates triggers by
// subscribing to those events rather than being called directly.
type Service struct {
	repo *repository.Repo
	bus  events.Bus
	log  *logger.Logger
}

// New creates a new lead service.
func New(repo *repository.Repo, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// Get retrieves a lead by ID within the tenant scope.
func (s *Service) Get(ctx context.Context, companyID, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, companyID, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return toResponse(lead), nil
}

// List retrieves the tenant's leads.
func (s *Service) List(ctx context.Context, companyID uuid.UUID, limit int) (transport.LeadListResponse, error) {
	leads, err := s.repo.List(ctx, companyID, limit)
	if err != nil {
		return transport.LeadListResponse{}, err
	}

	items := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		items = append(items, toResponse(lead))
	}
	return transport.LeadListResponse{Items: items, Total: len(items)}, nil
}

// Create registers a new lead. No event fires here; time-based triggers are
// picked up by the periodic sweep once the lead's age crosses a threshold.
func (s *Service) Create(ctx context.Context, companyID uuid.UUID, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	status := req.Status
	if status == "" {
		status = domain.StatusNew
	}
	if !domain.IsKnownStatus(status) {
		return transport.LeadResponse{}, apperr.Validation(fmt.Sprintf("unknown lead status %q", status))
	}

	lead, err := s.repo.Create(ctx, repository.CreateParams{
		CompanyID: companyID,
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     req.Email,
		Status:    status,
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}

	return toResponse(lead), nil
}

// ChangeStatus applies a manual status transition and publishes
// LeadStatusChanged. Transition validity is enforced by the lead domain.
func (s *Service) ChangeStatus(ctx context.Context, companyID, id uuid.UUID, newStatus string) (transport.LeadResponse, error) {
	if !domain.IsKnownStatus(newStatus) {
		return transport.LeadResponse{}, apperr.Validation(fmt.Sprintf("unknown lead status %q", newStatus))
	}

	lead, err := s.repo.GetByID(ctx, companyID, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if lead.Status == newStatus {
		return toResponse(lead), nil
	}
	if !domain.CanTransition(lead.Status, newStatus) {
		return transport.LeadResponse{}, apperr.Validation(fmt.Sprintf("cannot move lead from %q to %q", lead.Status, newStatus))
	}

	if err := s.repo.UpdateStatus(ctx, companyID, id, lead.Status, newStatus); err != nil {
		return transport.LeadResponse{}, err
	}

	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         id,
		CompanyID:      companyID,
		PreviousStatus: lead.Status,
		NewStatus:      newStatus,
		Automated:      false,
	})

	return s.Get(ctx, companyID, id)
}

// AddTag adds a tag to a lead and publishes LeadTagAdded. Adding a tag the
// lead already carries succeeds without publishing.
func (s *Service) AddTag(ctx context.Context, companyID, id uuid.UUID, tag string) (transport.LeadResponse, error) {
	if _, err := s.repo.GetByID(ctx, companyID, id); err != nil {
		return transport.LeadResponse{}, err
	}

	added, err := s.repo.AddTag(ctx, companyID, id, tag)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	if added {
		s.bus.Publish(ctx, events.LeadTagAdded{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    id,
			CompanyID: companyID,
			Tag:       tag,
			Automated: false,
		})
	}

	return s.Get(ctx, companyID, id)
}

// RecordActivity advances the lead's activity clock. Inactivity triggers
// re-arm through the sweep, which compares the marker's observed activity
// timestamp against the new last_activity_at.
func (s *Service) RecordActivity(ctx context.Context, companyID, id uuid.UUID) error {
	_, err := s.repo.TouchActivity(ctx, companyID, id)
	return err
}

func toResponse(l repository.Lead) transport.LeadResponse {
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	return transport.LeadResponse{
		ID:               l.ID,
		Name:             l.Name,
		Phone:            l.Phone,
		Email:            l.Email,
		Status:           l.Status,
		Tags:             tags,
		AssignedSellerID: l.AssignedSellerID,
		CreatedAt:        l.CreatedAt,
		LastActivityAt:   l.LastActivityAt,
	}
}
