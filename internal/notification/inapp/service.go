package inapp

import (
	"context"

	"crmflow_backend/internal/email"
	"crmflow_backend/platform/apperr"
	"crmflow_backend/platform/logger"

	"github.com/google/uuid"
)

type Service struct {
	repo   *Repository
	sender email.Sender
	log    *logger.Logger
}

func NewService(repo *Repository, sender email.Sender, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		sender: sender,
		log:    log,
	}
}

type SendParams struct {
	CompanyID    uuid.UUID
	UserID       uuid.UUID
	Title        string
	Content      string
	ResourceID   *uuid.UUID
	ResourceType string
	Category     string // "info", "success", "warning", "error"
	// EmailTo, when set, mirrors the notification to the user's mailbox.
	EmailTo string
}

// Send persists the notification and mirrors it over email when an
// address is known. Email delivery is best-effort; a failed send never
// fails the notification itself.
func (s *Service) Send(ctx context.Context, p SendParams) (Notification, error) {
	if s == nil || s.repo == nil {
		return Notification{}, apperr.Internal("in-app notification service not configured")
	}

	if p.Category == "" {
		p.Category = "info"
	}

	var resourceType *string
	if p.ResourceType != "" {
		resourceType = &p.ResourceType
	}

	notif, err := s.repo.Create(ctx, CreateParams{
		CompanyID:    p.CompanyID,
		UserID:       p.UserID,
		Title:        p.Title,
		Content:      p.Content,
		ResourceID:   p.ResourceID,
		ResourceType: resourceType,
		Category:     p.Category,
	})
	if err != nil {
		if s.log != nil {
			s.log.Error("failed to persist in-app notification", "error", err, "userId", p.UserID)
		}
		return Notification{}, err
	}

	if s.sender != nil && p.EmailTo != "" {
		if mailErr := s.sender.SendNotificationEmail(ctx, p.EmailTo, p.Title, p.Content); mailErr != nil && s.log != nil {
			s.log.Error("failed to send notification email", "error", mailErr, "userId", p.UserID)
		}
	}

	return notif, nil
}

func (s *Service) List(ctx context.Context, companyID, userID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	offset := (page - 1) * pageSize
	return s.repo.List(ctx, companyID, userID, pageSize, offset)
}

func (s *Service) CountUnread(ctx context.Context, companyID, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, companyID, userID)
}

func (s *Service) MarkRead(ctx context.Context, companyID, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, companyID, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, companyID, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, companyID, userID)
}

func (s *Service) Delete(ctx context.Context, companyID, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, companyID, userID, id)
}
