package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/campaign-mailer/internal/domain"
)

// EmailLogRepo provides append-only persistence for send-attempt rows.
// There are deliberately no update or delete methods: the log is immutable
// history and the sole input to statistics.
type EmailLogRepo struct{ db *sql.DB }

// NewEmailLogRepo creates a Postgres-backed email log repository.
func NewEmailLogRepo(db *sql.DB) *EmailLogRepo { return &EmailLogRepo{db: db} }

// Insert appends one attempt row.
func (r *EmailLogRepo) Insert(ctx context.Context, e *domain.EmailLog) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_logs
			(id, campaign_id, recipient_email, recipient_name, subject, body,
			 status, error_message, attachments, config_name, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`, e.ID, e.CampaignID, e.RecipientEmail, e.RecipientName, e.Subject, e.Body,
		e.Status, e.ErrorMessage, pq.Array(e.Attachments), e.ConfigName, e.SentAt)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// ListFilter narrows log queries.
type LogFilter struct {
	CampaignID string
	Status     string
	Limit      int
	Offset     int
}

// List returns log rows newest-first.
func (r *EmailLogRepo) List(ctx context.Context, f LogFilter) ([]domain.EmailLog, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	where := "WHERE 1=1"
	args := []interface{}{}
	idx := 1
	if f.CampaignID != "" {
		where += fmt.Sprintf(" AND campaign_id = $%d", idx)
		args = append(args, f.CampaignID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM email_logs "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count email logs: %w", err)
	}

	q := fmt.Sprintf(`
		SELECT id, campaign_id, recipient_email, COALESCE(recipient_name,''),
		       subject, body, status, COALESCE(error_message,''),
		       COALESCE(attachments, '{}'), COALESCE(config_name,''), sent_at, created_at
		FROM email_logs %s
		ORDER BY sent_at DESC LIMIT $%d OFFSET $%d`, where, idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailLog
	for rows.Next() {
		var e domain.EmailLog
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.RecipientEmail, &e.RecipientName,
			&e.Subject, &e.Body, &e.Status, &e.ErrorMessage,
			pq.Array(&e.Attachments), &e.ConfigName, &e.SentAt, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan email log: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// Statistics computes the read-side aggregate in one pass over email_logs
// plus campaign state. Nothing here is cached or separately maintained.
func (r *EmailLogRepo) Statistics(ctx context.Context, now time.Time) (*domain.Statistics, error) {
	s := &domain.Statistics{}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM email_logs WHERE status = 'sent'),
			(SELECT COUNT(*) FROM email_logs WHERE status = 'failed'),
			(SELECT COUNT(*) FROM campaigns WHERE status IN ('scheduled', 'active')),
			(SELECT COUNT(*) FROM campaigns
			 WHERE status IN ('scheduled', 'active') AND next_send_at <= $1),
			(SELECT COUNT(*) FROM campaigns WHERE created_at >= $1 - INTERVAL '7 days'),
			(SELECT COUNT(*) FROM recipients WHERE is_active = true)
	`, now).Scan(
		&s.TotalSent, &s.TotalFailed, &s.ActiveCampaigns,
		&s.DueCampaigns, &s.RecentCampaigns, &s.TotalRecipients,
	)
	if err != nil {
		return nil, fmt.Errorf("compute statistics: %w", err)
	}

	if total := s.TotalSent + s.TotalFailed; total > 0 {
		s.SuccessRate = float64(s.TotalSent) / float64(total) * 100
	}
	return s, nil
}
