package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/campaign-mailer/internal/domain"
)

// ErrRecipientNotFound is returned for lookups by id that match nothing.
var ErrRecipientNotFound = errors.New("recipient not found")

// RecipientRepo provides recipient persistence. The recipients table has a
// unique index on lower(email); the importer relies on it as the final
// guard against duplicate addresses.
type RecipientRepo struct{ db *sql.DB }

// NewRecipientRepo creates a Postgres-backed recipient repository.
func NewRecipientRepo(db *sql.DB) *RecipientRepo { return &RecipientRepo{db: db} }

const recipientColumns = `id, email, COALESCE(name,''), COALESCE(first_name,''),
	       COALESCE(last_name,''), COALESCE(company,''),
	       COALESCE(custom_fields, '{}'), is_active, created_at, updated_at`

func scanRecipient(row interface{ Scan(...interface{}) error }) (*domain.Recipient, error) {
	r := &domain.Recipient{}
	var custom []byte
	err := row.Scan(
		&r.ID, &r.Email, &r.Name, &r.FirstName, &r.LastName, &r.Company,
		&custom, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(custom) > 0 {
		if err := json.Unmarshal(custom, &r.CustomFields); err != nil {
			return nil, fmt.Errorf("decode custom fields: %w", err)
		}
	}
	return r, nil
}

func (r *RecipientRepo) Get(ctx context.Context, id string) (*domain.Recipient, error) {
	rec, err := scanRecipient(r.db.QueryRowContext(ctx, `
		SELECT `+recipientColumns+` FROM recipients WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, ErrRecipientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipient: %w", err)
	}
	return rec, nil
}

// GetByEmail returns the recipient with the given email, or nil when none
// exists. Matching is case-insensitive; emails are stored lowercased.
func (r *RecipientRepo) GetByEmail(ctx context.Context, email string) (*domain.Recipient, error) {
	rec, err := scanRecipient(r.db.QueryRowContext(ctx, `
		SELECT `+recipientColumns+` FROM recipients WHERE lower(email) = lower($1)
	`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recipient by email: %w", err)
	}
	return rec, nil
}

// List returns recipients ordered by email, optionally restricted to
// active ones, plus the total count before pagination.
func (r *RecipientRepo) List(ctx context.Context, activeOnly bool, limit, offset int) ([]domain.Recipient, int, error) {
	if limit <= 0 {
		limit = 100
	}
	where := ""
	if activeOnly {
		where = "WHERE is_active = true"
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM recipients "+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count recipients: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+recipientColumns+`
		FROM recipients %s
		ORDER BY email ASC LIMIT $1 OFFSET $2`, where), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.Recipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, *rec)
	}
	return out, total, rows.Err()
}

// ActiveForCampaign returns the campaign's recipient set filtered to
// currently-active recipients, ordered by email. The dispatcher calls this
// at the start of each dispatch so deactivations and membership changes
// take effect immediately, never a frozen snapshot.
func (r *RecipientRepo) ActiveForCampaign(ctx context.Context, campaignID string) ([]*domain.Recipient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recipientColumns+`
		FROM recipients
		JOIN campaign_recipients cr ON cr.recipient_id = recipients.id
		WHERE cr.campaign_id = $1 AND is_active = true
		ORDER BY email ASC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list campaign recipients: %w", err)
	}
	defer rows.Close()

	var out []*domain.Recipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RecipientRepo) Create(ctx context.Context, rec *domain.Recipient) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	custom, err := json.Marshal(rec.CustomFields)
	if err != nil {
		return fmt.Errorf("encode custom fields: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO recipients
			(id, email, name, first_name, last_name, company, custom_fields,
			 is_active, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`, rec.ID, rec.Email, rec.Name, rec.FirstName, rec.LastName, rec.Company,
		custom, rec.IsActive)
	if err != nil {
		return fmt.Errorf("create recipient: %w", err)
	}
	return nil
}

func (r *RecipientRepo) Update(ctx context.Context, rec *domain.Recipient) error {
	custom, err := json.Marshal(rec.CustomFields)
	if err != nil {
		return fmt.Errorf("encode custom fields: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE recipients
		SET name = $1, first_name = $2, last_name = $3, company = $4,
		    custom_fields = $5, is_active = $6, updated_at = NOW()
		WHERE id = $7
	`, rec.Name, rec.FirstName, rec.LastName, rec.Company, custom, rec.IsActive, rec.ID)
	if err != nil {
		return fmt.Errorf("update recipient: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrRecipientNotFound
	}
	return nil
}

// Deactivate soft-removes a recipient. Rows referenced by historical
// email_logs are never deleted, only excluded from future dispatches.
func (r *RecipientRepo) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recipients SET is_active = false, updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate recipient: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrRecipientNotFound
	}
	return nil
}
