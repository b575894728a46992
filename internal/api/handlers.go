package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/importer"
	"github.com/ignite/campaign-mailer/internal/pkg/httputil"
	"github.com/ignite/campaign-mailer/internal/repository/postgres"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
)

// CampaignService is the slice of the campaign service the handlers use.
type CampaignService interface {
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error)
	Create(ctx context.Context, input campaign.CreateInput) (*domain.Campaign, error)
	Update(ctx context.Context, id string, input campaign.UpdateInput) (*domain.Campaign, error)
	Delete(ctx context.Context, id string) error
	Activate(ctx context.Context, id string) (*domain.Campaign, error)
	Pause(ctx context.Context, id string) (*domain.Campaign, error)
	Resume(ctx context.Context, id string) (*domain.Campaign, error)
	Cancel(ctx context.Context, id string) (*domain.Campaign, error)
	SendNow(ctx context.Context, id string) (*domain.Campaign, bool, error)
}

// RecipientStore is the recipient persistence surface for the handlers.
type RecipientStore interface {
	Get(ctx context.Context, id string) (*domain.Recipient, error)
	GetByEmail(ctx context.Context, email string) (*domain.Recipient, error)
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]domain.Recipient, int, error)
	Create(ctx context.Context, r *domain.Recipient) error
	Update(ctx context.Context, r *domain.Recipient) error
	Deactivate(ctx context.Context, id string) error
}

// TemplateStore is the template persistence surface for the handlers.
type TemplateStore interface {
	Get(ctx context.Context, id string) (*domain.EmailTemplate, error)
	List(ctx context.Context) ([]domain.EmailTemplate, error)
	Create(ctx context.Context, t *domain.EmailTemplate) error
	Update(ctx context.Context, t *domain.EmailTemplate) error
	Delete(ctx context.Context, id string) error
}

// ConfigStore is the email configuration surface for the handlers.
type ConfigStore interface {
	Get(ctx context.Context, id string) (*domain.EmailConfiguration, error)
	List(ctx context.Context) ([]domain.EmailConfiguration, error)
	Create(ctx context.Context, c *domain.EmailConfiguration) error
	Update(ctx context.Context, c *domain.EmailConfiguration) error
	Delete(ctx context.Context, id string) error
}

// LogStore is the read-side email log surface for the handlers.
type LogStore interface {
	List(ctx context.Context, f postgres.LogFilter) ([]domain.EmailLog, int, error)
	Statistics(ctx context.Context, now time.Time) (*domain.Statistics, error)
}

// RecipientImporter runs bulk imports.
type RecipientImporter interface {
	Import(ctx context.Context, r io.Reader, opts importer.Options) (*importer.Result, error)
}

// Handlers carries the dependencies shared by all endpoint methods.
type Handlers struct {
	campaigns  CampaignService
	recipients RecipientStore
	templates  TemplateStore
	configs    ConfigStore
	logs       LogStore
	importer   RecipientImporter

	// maxImportSize bounds the recipient import upload.
	maxImportSize int64
}

// NewHandlers creates the handler set.
func NewHandlers(campaigns CampaignService, recipients RecipientStore, templates TemplateStore, configs ConfigStore, logs LogStore, imp RecipientImporter, maxImportSize int64) *Handlers {
	if maxImportSize <= 0 {
		maxImportSize = importer.DefaultMaxFileSize
	}
	return &Handlers{
		campaigns:     campaigns,
		recipients:    recipients,
		templates:     templates,
		configs:       configs,
		logs:          logs,
		importer:      imp,
		maxImportSize: maxImportSize,
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}
