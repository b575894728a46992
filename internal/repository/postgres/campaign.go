package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL. It also
// carries the dispatcher-facing queries (due set, dispatch-state advance).
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, name, template_id, send_interval, status,
	       scheduled_at, end_at, next_send_at, last_sent_at,
	       COALESCE(variables, '{}'), sent_count, failed_count, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var variables []byte
	err := row.Scan(
		&c.ID, &c.Name, &c.TemplateID, &c.Interval, &c.Status,
		&c.ScheduledAt, &c.EndAt, &c.NextSendAt, &c.LastSentAt,
		&variables, &c.SentCount, &c.FailedCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &c.Variables); err != nil {
			return nil, fmt.Errorf("decode campaign variables: %w", err)
		}
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if c.RecipientIDs, err = r.recipientIDs(ctx, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// recipientIDs loads the campaign's recipient set from the join table.
func (r *CampaignRepo) recipientIDs(ctx context.Context, campaignID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT recipient_id FROM campaign_recipients
		WHERE campaign_id = $1
		ORDER BY recipient_id ASC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign recipients: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan campaign recipient: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// syncRecipients replaces the campaign's join rows with c.RecipientIDs.
func syncRecipients(ctx context.Context, tx *sql.Tx, c *domain.Campaign) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM campaign_recipients WHERE campaign_id = $1
	`, c.ID); err != nil {
		return fmt.Errorf("clear campaign recipients: %w", err)
	}
	for _, rid := range c.RecipientIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO campaign_recipients (campaign_id, recipient_id)
			VALUES ($1, $2)
		`, c.ID, rid); err != nil {
			return fmt.Errorf("add campaign recipient: %w", err)
		}
	}
	return nil
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "WHERE 1=1"
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND name ILIKE $%d", idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM campaigns "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := fmt.Sprintf(`
		SELECT `+campaignColumns+`
		FROM campaigns %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	variables, err := json.Marshal(c.Variables)
	if err != nil {
		return fmt.Errorf("encode campaign variables: %w", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create campaign: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, name, template_id, send_interval, status, scheduled_at,
			 end_at, next_send_at, variables, sent_count, failed_count,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 0, NOW(), NOW())
	`, c.ID, c.Name, c.TemplateID, c.Interval, c.Status, c.ScheduledAt,
		c.EndAt, c.NextSendAt, variables)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	if err := syncRecipients(ctx, tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *CampaignRepo) Update(ctx context.Context, c *domain.Campaign) error {
	variables, err := json.Marshal(c.Variables)
	if err != nil {
		return fmt.Errorf("encode campaign variables: %w", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update campaign: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE campaigns
		SET name = $1, status = $2, next_send_at = $3, last_sent_at = $4,
		    variables = $5, updated_at = NOW()
		WHERE id = $6
	`, c.Name, c.Status, c.NextSendAt, c.LastSentAt, variables, c.ID)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	if err := syncRecipients(ctx, tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// DueCampaigns is the dispatcher's fresh-per-tick due query: scheduled or
// active with next_send_at at or before now, earliest first, id as
// tie-break for a deterministic order.
func (r *CampaignRepo) DueCampaigns(ctx context.Context, now time.Time) ([]*domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE status IN ('scheduled', 'active') AND next_send_at <= $1
		ORDER BY next_send_at ASC, id ASC
	`, now)
	if err != nil {
		return nil, fmt.Errorf("query due campaigns: %w", err)
	}
	defer rows.Close()

	var out []*domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateDispatchState persists the end-of-dispatch advance: status,
// next/last send instants and the cumulative counts, in one statement. The
// status guard makes the advance optimistic: an operator pause or cancel
// that landed mid-dispatch wins, and the write reports ErrStaleDispatch
// instead of resurrecting the campaign.
func (r *CampaignRepo) UpdateDispatchState(ctx context.Context, c *domain.Campaign) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = $1, next_send_at = $2, last_sent_at = $3,
		    sent_count = $4, failed_count = $5, updated_at = NOW()
		WHERE id = $6 AND status IN ('scheduled', 'active')
	`, c.Status, c.NextSendAt, c.LastSentAt, c.SentCount, c.FailedCount, c.ID)
	if err != nil {
		return fmt.Errorf("update dispatch state: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrStaleDispatch
	}
	return nil
}
