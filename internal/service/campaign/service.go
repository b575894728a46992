package campaign

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/schedule"
)

// Service implements campaign business logic: creation with schedule-window
// validation and the operator actions (activate, pause, resume, cancel,
// send-now). All public methods are safe for concurrent use if the
// underlying repository is concurrency-safe.
type Service struct {
	repo Repository

	now func() time.Time
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, f)
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name         string            `json:"name"`
	TemplateID   string            `json:"template_id"`
	RecipientIDs []string          `json:"recipient_ids"`
	Interval     domain.Interval   `json:"interval"`
	ScheduledAt  time.Time         `json:"scheduled_at"`
	EndAt        *time.Time        `json:"end_at"`
	Variables    map[string]string `json:"variables"`
}

// Create validates and persists a new campaign in draft status. The
// schedule window is checked here so an invalid interval/end-time
// combination can never reach the dispatcher.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if input.TemplateID == "" {
		return nil, fmt.Errorf("template_id is required")
	}
	if input.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("scheduled_at is required")
	}
	if err := schedule.ValidateWindow(input.ScheduledAt, input.EndAt, input.Interval); err != nil {
		return nil, err
	}

	c := &domain.Campaign{
		ID:           uuid.New().String(),
		Name:         input.Name,
		TemplateID:   input.TemplateID,
		RecipientIDs: input.RecipientIDs,
		Interval:     input.Interval,
		Status:       domain.CampaignDraft,
		ScheduledAt:  input.ScheduledAt.UTC(),
		EndAt:        input.EndAt,
		Variables:    input.Variables,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateInput holds the mutable fields for a campaign update. Nil fields
// are left unchanged.
type UpdateInput struct {
	Name         *string            `json:"name"`
	RecipientIDs *[]string          `json:"recipient_ids"`
	Variables    *map[string]string `json:"variables"`
}

// Update modifies mutable campaign fields. Terminal campaigns are
// immutable.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsTerminal() {
		return nil, fmt.Errorf("%w: %s campaign cannot be edited", ErrInvalidTransition, c.Status)
	}
	if input.Name != nil {
		c.Name = *input.Name
	}
	if input.RecipientIDs != nil {
		c.RecipientIDs = *input.RecipientIDs
	}
	if input.Variables != nil {
		c.Variables = *input.Variables
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a campaign. Only drafts and cancelled campaigns may be
// deleted; anything with send history keeps its row.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignDraft && c.Status != domain.CampaignCancelled {
		return ErrNotDeletable
	}
	return s.repo.Delete(ctx, id)
}

// Activate promotes a draft into the dispatcher's due query: the schedule
// window is re-validated and next_send_at is seeded from scheduled_at.
func (s *Service) Activate(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignDraft {
		return nil, fmt.Errorf("%w: activate requires draft, campaign is %s", ErrInvalidTransition, c.Status)
	}
	if err := schedule.ValidateWindow(c.ScheduledAt, c.EndAt, c.Interval); err != nil {
		return nil, err
	}

	next := c.ScheduledAt
	c.Status = domain.CampaignScheduled
	c.NextSendAt = &next
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	log.Printf("[campaign.Service] Campaign %s activated, first occurrence %s", c.ID, next.Format(time.RFC3339))
	return c, nil
}

// Pause takes a scheduled or active campaign out of the due query.
// next_send_at is retained so resume picks up where the schedule left off.
func (s *Service) Pause(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignScheduled && c.Status != domain.CampaignActive {
		return nil, fmt.Errorf("%w: pause requires scheduled or active, campaign is %s", ErrInvalidTransition, c.Status)
	}
	c.Status = domain.CampaignPaused
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Resume puts a paused campaign back into the due query.
func (s *Service) Resume(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignPaused {
		return nil, fmt.Errorf("%w: resume requires paused, campaign is %s", ErrInvalidTransition, c.Status)
	}
	c.Status = domain.CampaignScheduled
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Cancel terminates a campaign. Cancellation is permanent; a cancelled
// campaign is never dispatched again and cannot be resumed.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsTerminal() {
		return nil, fmt.Errorf("%w: campaign is already %s", ErrInvalidTransition, c.Status)
	}
	c.Status = domain.CampaignCancelled
	c.NextSendAt = nil
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	log.Printf("[campaign.Service] Campaign %s cancelled", c.ID)
	return c, nil
}

// SendNow forces the next occurrence to now so the next tick dispatches the
// campaign. Paused campaigns must be resumed first. A completed campaign is
// left untouched: forced=false with no error, the caller surfaces the
// warning.
func (s *Service) SendNow(ctx context.Context, id string) (c *domain.Campaign, forced bool, err error) {
	c, err = s.repo.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	switch c.Status {
	case domain.CampaignPaused:
		return nil, false, ErrPausedSendNow
	case domain.CampaignCompleted:
		log.Printf("[campaign.Service] Campaign %s is completed; send-now ignored", c.ID)
		return c, false, nil
	case domain.CampaignScheduled, domain.CampaignActive:
	default:
		return nil, false, fmt.Errorf("%w: send-now requires scheduled or active, campaign is %s", ErrInvalidTransition, c.Status)
	}

	now := s.now().UTC()
	c.NextSendAt = &now
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, false, err
	}
	log.Printf("[campaign.Service] Campaign %s forced due", c.ID)
	return c, true, nil
}
