package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/importer"
	"github.com/ignite/campaign-mailer/internal/repository/postgres"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
)

type fakeCampaignService struct {
	campaigns map[string]*domain.Campaign
	sendNowOK bool
}

func (f *fakeCampaignService) get(id string) (*domain.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	return c, nil
}

func (f *fakeCampaignService) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return f.get(id)
}

func (f *fakeCampaignService) List(ctx context.Context, lf campaign.ListFilter) ([]domain.Campaign, int, error) {
	out := make([]domain.Campaign, 0, len(f.campaigns))
	for _, c := range f.campaigns {
		if lf.Status != "" && string(c.Status) != lf.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeCampaignService) Create(ctx context.Context, input campaign.CreateInput) (*domain.Campaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	c := &domain.Campaign{
		ID:          "c-new",
		Name:        input.Name,
		TemplateID:  input.TemplateID,
		Interval:    input.Interval,
		Status:      domain.CampaignDraft,
		ScheduledAt: input.ScheduledAt,
	}
	f.campaigns[c.ID] = c
	return c, nil
}

func (f *fakeCampaignService) Update(ctx context.Context, id string, input campaign.UpdateInput) (*domain.Campaign, error) {
	c, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		c.Name = *input.Name
	}
	return c, nil
}

func (f *fakeCampaignService) Delete(ctx context.Context, id string) error {
	c, err := f.get(id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignDraft && c.Status != domain.CampaignCancelled {
		return campaign.ErrNotDeletable
	}
	delete(f.campaigns, id)
	return nil
}

func (f *fakeCampaignService) Activate(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignDraft {
		return nil, campaign.ErrInvalidTransition
	}
	c.Status = domain.CampaignScheduled
	return c, nil
}

func (f *fakeCampaignService) Pause(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := f.get(id)
	if err != nil {
		return nil, err
	}
	c.Status = domain.CampaignPaused
	return c, nil
}

func (f *fakeCampaignService) Resume(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := f.get(id)
	if err != nil {
		return nil, err
	}
	c.Status = domain.CampaignScheduled
	return c, nil
}

func (f *fakeCampaignService) Cancel(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := f.get(id)
	if err != nil {
		return nil, err
	}
	c.Status = domain.CampaignCancelled
	return c, nil
}

func (f *fakeCampaignService) SendNow(ctx context.Context, id string) (*domain.Campaign, bool, error) {
	c, err := f.get(id)
	if err != nil {
		return nil, false, err
	}
	if c.Status == domain.CampaignPaused {
		return nil, false, campaign.ErrPausedSendNow
	}
	if c.Status == domain.CampaignCompleted {
		return c, false, nil
	}
	return c, true, nil
}

type fakeRecipientStore struct {
	recipients map[string]*domain.Recipient
}

func (f *fakeRecipientStore) Get(ctx context.Context, id string) (*domain.Recipient, error) {
	r, ok := f.recipients[id]
	if !ok {
		return nil, postgres.ErrRecipientNotFound
	}
	return r, nil
}

func (f *fakeRecipientStore) GetByEmail(ctx context.Context, email string) (*domain.Recipient, error) {
	for _, r := range f.recipients {
		if r.Email == email {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRecipientStore) List(ctx context.Context, activeOnly bool, limit, offset int) ([]domain.Recipient, int, error) {
	out := make([]domain.Recipient, 0, len(f.recipients))
	for _, r := range f.recipients {
		if activeOnly && !r.IsActive {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (f *fakeRecipientStore) Create(ctx context.Context, r *domain.Recipient) error {
	r.ID = fmt.Sprintf("r-%d", len(f.recipients)+1)
	f.recipients[r.ID] = r
	return nil
}

func (f *fakeRecipientStore) Update(ctx context.Context, r *domain.Recipient) error {
	if _, ok := f.recipients[r.ID]; !ok {
		return postgres.ErrRecipientNotFound
	}
	f.recipients[r.ID] = r
	return nil
}

func (f *fakeRecipientStore) Deactivate(ctx context.Context, id string) error {
	r, ok := f.recipients[id]
	if !ok {
		return postgres.ErrRecipientNotFound
	}
	r.IsActive = false
	return nil
}

type fakeTemplateStore struct {
	templates map[string]*domain.EmailTemplate
}

func (f *fakeTemplateStore) Get(ctx context.Context, id string) (*domain.EmailTemplate, error) {
	t, ok := f.templates[id]
	if !ok {
		return nil, postgres.ErrTemplateNotFound
	}
	return t, nil
}

func (f *fakeTemplateStore) List(ctx context.Context) ([]domain.EmailTemplate, error) {
	out := make([]domain.EmailTemplate, 0, len(f.templates))
	for _, t := range f.templates {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTemplateStore) Create(ctx context.Context, t *domain.EmailTemplate) error {
	t.ID = fmt.Sprintf("t-%d", len(f.templates)+1)
	f.templates[t.ID] = t
	return nil
}

func (f *fakeTemplateStore) Update(ctx context.Context, t *domain.EmailTemplate) error {
	if _, ok := f.templates[t.ID]; !ok {
		return postgres.ErrTemplateNotFound
	}
	f.templates[t.ID] = t
	return nil
}

func (f *fakeTemplateStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.templates[id]; !ok {
		return postgres.ErrTemplateNotFound
	}
	delete(f.templates, id)
	return nil
}

type fakeConfigStore struct {
	configs map[string]*domain.EmailConfiguration
}

func (f *fakeConfigStore) Get(ctx context.Context, id string) (*domain.EmailConfiguration, error) {
	c, ok := f.configs[id]
	if !ok {
		return nil, postgres.ErrConfigNotFound
	}
	return c, nil
}

func (f *fakeConfigStore) List(ctx context.Context) ([]domain.EmailConfiguration, error) {
	out := make([]domain.EmailConfiguration, 0, len(f.configs))
	for _, c := range f.configs {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeConfigStore) Create(ctx context.Context, c *domain.EmailConfiguration) error {
	c.ID = fmt.Sprintf("cfg-%d", len(f.configs)+1)
	f.configs[c.ID] = c
	return nil
}

func (f *fakeConfigStore) Update(ctx context.Context, c *domain.EmailConfiguration) error {
	if _, ok := f.configs[c.ID]; !ok {
		return postgres.ErrConfigNotFound
	}
	f.configs[c.ID] = c
	return nil
}

func (f *fakeConfigStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.configs[id]; !ok {
		return postgres.ErrConfigNotFound
	}
	delete(f.configs, id)
	return nil
}

type fakeLogStore struct {
	logs  []domain.EmailLog
	stats *domain.Statistics
}

func (f *fakeLogStore) List(ctx context.Context, lf postgres.LogFilter) ([]domain.EmailLog, int, error) {
	out := make([]domain.EmailLog, 0, len(f.logs))
	for _, l := range f.logs {
		if lf.CampaignID != "" && (l.CampaignID == nil || *l.CampaignID != lf.CampaignID) {
			continue
		}
		if lf.Status != "" && string(l.Status) != lf.Status {
			continue
		}
		out = append(out, l)
	}
	return out, len(out), nil
}

func (f *fakeLogStore) Statistics(ctx context.Context, now time.Time) (*domain.Statistics, error) {
	return f.stats, nil
}

type fakeImporter struct {
	result *importer.Result
	err    error
	gotCSV string
}

func (f *fakeImporter) Import(ctx context.Context, r io.Reader, opts importer.Options) (*importer.Result, error) {
	b, _ := io.ReadAll(r)
	f.gotCSV = string(b)
	return f.result, f.err
}

type testEnv struct {
	campaigns  *fakeCampaignService
	recipients *fakeRecipientStore
	templates  *fakeTemplateStore
	configs    *fakeConfigStore
	logs       *fakeLogStore
	importer   *fakeImporter
	router     http.Handler
}

func newTestEnv() *testEnv {
	env := &testEnv{
		campaigns:  &fakeCampaignService{campaigns: map[string]*domain.Campaign{}},
		recipients: &fakeRecipientStore{recipients: map[string]*domain.Recipient{}},
		templates:  &fakeTemplateStore{templates: map[string]*domain.EmailTemplate{}},
		configs:    &fakeConfigStore{configs: map[string]*domain.EmailConfiguration{}},
		logs:       &fakeLogStore{stats: &domain.Statistics{}},
		importer:   &fakeImporter{result: &importer.Result{}},
	}
	h := NewHandlers(env.campaigns, env.recipients, env.templates, env.configs, env.logs, env.importer, 0)
	env.router = SetupRoutes(h)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCreateCampaign(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodPost, "/api/campaigns", map[string]any{
		"name":         "Welcome Series",
		"template_id":  "t-1",
		"interval":     "daily",
		"scheduled_at": time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var c domain.Campaign
	decodeBody(t, rec, &c)
	if c.Status != domain.CampaignDraft {
		t.Errorf("status = %q, want draft", c.Status)
	}
}

func TestGetCampaignNotFound(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/campaigns/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCampaignLifecycleStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   domain.CampaignStatus
		action   string
		wantCode int
	}{
		{"activate draft", domain.CampaignDraft, "activate", http.StatusOK},
		{"activate active conflicts", domain.CampaignActive, "activate", http.StatusConflict},
		{"send-now paused conflicts", domain.CampaignPaused, "send-now", http.StatusConflict},
		{"send-now scheduled accepted", domain.CampaignScheduled, "send-now", http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.campaigns.campaigns["c-1"] = &domain.Campaign{ID: "c-1", Status: tt.status}
			rec := env.do(t, http.MethodPost, "/api/campaigns/c-1/"+tt.action, nil)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestSendNowCompletedReturnsWarning(t *testing.T) {
	env := newTestEnv()
	env.campaigns.campaigns["c-1"] = &domain.Campaign{ID: "c-1", Status: domain.CampaignCompleted}

	rec := env.do(t, http.MethodPost, "/api/campaigns/c-1/send-now", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	warning, _ := body["warning"].(string)
	if !strings.Contains(warning, "completed") {
		t.Errorf("warning = %q, want mention of completed", warning)
	}
}

func TestDeleteActiveCampaignConflicts(t *testing.T) {
	env := newTestEnv()
	env.campaigns.campaigns["c-1"] = &domain.Campaign{ID: "c-1", Status: domain.CampaignActive}

	rec := env.do(t, http.MethodDelete, "/api/campaigns/c-1", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestCreateRecipientConflictOnDuplicateEmail(t *testing.T) {
	env := newTestEnv()
	env.recipients.recipients["r-1"] = &domain.Recipient{ID: "r-1", Email: "jane@example.com"}

	rec := env.do(t, http.MethodPost, "/api/recipients", map[string]any{
		"email": "Jane@Example.com",
		"name":  "Jane Doe",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateRecipientLowercasesEmail(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodPost, "/api/recipients", map[string]any{
		"email": "  Bob@Example.COM ",
		"name":  "Bob",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var r domain.Recipient
	decodeBody(t, rec, &r)
	if r.Email != "bob@example.com" {
		t.Errorf("email = %q, want bob@example.com", r.Email)
	}
	if !r.IsActive {
		t.Error("new recipient should be active")
	}
}

func TestDeactivateRecipient(t *testing.T) {
	env := newTestEnv()
	env.recipients.recipients["r-1"] = &domain.Recipient{ID: "r-1", Email: "a@b.com", IsActive: true}

	rec := env.do(t, http.MethodDelete, "/api/recipients/r-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if env.recipients.recipients["r-1"].IsActive {
		t.Error("recipient should be inactive after delete")
	}
}

func TestImportRecipients(t *testing.T) {
	env := newTestEnv()
	env.importer.result = &importer.Result{Created: 2, Skipped: 1}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "recipients.csv")
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprint(fw, "name,email\nJane Doe,jane@example.com\n")
	mw.WriteField("dry_run", "true")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/recipients/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(env.importer.gotCSV, "jane@example.com") {
		t.Errorf("importer did not receive the uploaded CSV, got %q", env.importer.gotCSV)
	}
	var res importer.Result
	decodeBody(t, rec, &res)
	if res.Created != 2 || res.Skipped != 1 {
		t.Errorf("result = %+v, want Created=2 Skipped=1", res)
	}
}

func TestImportRecipientsStructuralError(t *testing.T) {
	env := newTestEnv()
	env.importer.result = nil
	env.importer.err = importer.ErrMissingColumns

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "recipients.csv")
	fmt.Fprint(fw, "nothing,useful\n")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/recipients/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestTemplateNotFound(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/templates/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCreateTemplateRequiresSubject(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodPost, "/api/templates", map[string]any{"name": "Welcome"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateConfigurationRejectsUnknownType(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodPost, "/api/configurations", map[string]any{
		"name":       "Primary",
		"from_email": "noreply@example.com",
		"type":       "carrier-pigeon",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateConfigurationPatchesFields(t *testing.T) {
	env := newTestEnv()
	env.configs.configs["cfg-1"] = &domain.EmailConfiguration{
		ID:       "cfg-1",
		Name:     "Primary",
		Type:     domain.TransportSMTP,
		SMTPHost: "mail.example.com",
		SMTPPort: 587,
	}

	rec := env.do(t, http.MethodPut, "/api/configurations/cfg-1", map[string]any{
		"smtp_port": 465,
		"use_ssl":   true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	got := env.configs.configs["cfg-1"]
	if got.SMTPPort != 465 || !got.UseSSL {
		t.Errorf("config = %+v, want port 465 with SSL", got)
	}
	if got.SMTPHost != "mail.example.com" {
		t.Errorf("host = %q, unset fields must be preserved", got.SMTPHost)
	}
}

func TestGetStatistics(t *testing.T) {
	env := newTestEnv()
	env.logs.stats = &domain.Statistics{TotalSent: 90, TotalFailed: 10, SuccessRate: 90.0}

	rec := env.do(t, http.MethodGet, "/api/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var s domain.Statistics
	decodeBody(t, rec, &s)
	if s.TotalSent != 90 || s.SuccessRate != 90.0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestListLogsFiltersByCampaign(t *testing.T) {
	env := newTestEnv()
	c1 := "c-1"
	c2 := "c-2"
	env.logs.logs = []domain.EmailLog{
		{ID: "l-1", CampaignID: &c1, Status: domain.LogSent},
		{ID: "l-2", CampaignID: &c2, Status: domain.LogFailed},
	}

	rec := env.do(t, http.MethodGet, "/api/logs?campaign_id=c-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Logs  []domain.EmailLog `json:"logs"`
		Total int               `json:"total"`
	}
	decodeBody(t, rec, &body)
	if body.Total != 1 || len(body.Logs) != 1 || body.Logs[0].ID != "l-1" {
		t.Errorf("logs = %+v, want only l-1", body)
	}
}
