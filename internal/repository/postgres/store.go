package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
)

// DispatchStore adapts the individual repositories to the dispatcher's
// storage interface. Absence is reported as nil rather than a not-found
// error: for the dispatcher a vanished campaign or template is a condition
// to handle, not a failure to propagate.
type DispatchStore struct {
	campaigns  *CampaignRepo
	recipients *RecipientRepo
	templates  *TemplateRepo
	configs    *EmailConfigRepo
	logs       *EmailLogRepo
}

// NewDispatchStore wires a dispatch store over one database handle.
func NewDispatchStore(db *sql.DB) *DispatchStore {
	return &DispatchStore{
		campaigns:  NewCampaignRepo(db),
		recipients: NewRecipientRepo(db),
		templates:  NewTemplateRepo(db),
		configs:    NewEmailConfigRepo(db),
		logs:       NewEmailLogRepo(db),
	}
}

func (s *DispatchStore) DueCampaigns(ctx context.Context, now time.Time) ([]*domain.Campaign, error) {
	return s.campaigns.DueCampaigns(ctx, now)
}

func (s *DispatchStore) Campaign(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := s.campaigns.Get(ctx, id)
	if errors.Is(err, campaign.ErrNotFound) {
		return nil, nil
	}
	return c, err
}

func (s *DispatchStore) UpdateDispatchState(ctx context.Context, c *domain.Campaign) error {
	return s.campaigns.UpdateDispatchState(ctx, c)
}

func (s *DispatchStore) Template(ctx context.Context, id string) (*domain.EmailTemplate, error) {
	t, err := s.templates.Get(ctx, id)
	if errors.Is(err, ErrTemplateNotFound) {
		return nil, nil
	}
	return t, err
}

func (s *DispatchStore) ActiveRecipients(ctx context.Context, campaignID string) ([]*domain.Recipient, error) {
	return s.recipients.ActiveForCampaign(ctx, campaignID)
}

func (s *DispatchStore) DefaultConfiguration(ctx context.Context) (*domain.EmailConfiguration, error) {
	return s.configs.GetDefault(ctx)
}

func (s *DispatchStore) InsertLog(ctx context.Context, entry *domain.EmailLog) error {
	return s.logs.Insert(ctx, entry)
}
