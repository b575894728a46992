package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/campaign-mailer/internal/domain"
)

// ErrConfigNotFound is returned when no matching email configuration exists.
var ErrConfigNotFound = errors.New("email configuration not found")

// EmailConfigRepo provides transport configuration persistence.
type EmailConfigRepo struct{ db *sql.DB }

// NewEmailConfigRepo creates a Postgres-backed configuration repository.
func NewEmailConfigRepo(db *sql.DB) *EmailConfigRepo { return &EmailConfigRepo{db: db} }

const configColumns = `id, name, type, COALESCE(smtp_host,''), COALESCE(smtp_port,0),
	       COALESCE(username,''), COALESCE(password,''), use_tls, use_ssl,
	       COALESCE(ses_region,''), COALESCE(ses_access_key,''), COALESCE(ses_secret_key,''),
	       from_email, COALESCE(from_name,''), is_active, is_default, created_at, updated_at`

func scanConfig(row interface{ Scan(...interface{}) error }) (*domain.EmailConfiguration, error) {
	c := &domain.EmailConfiguration{}
	err := row.Scan(
		&c.ID, &c.Name, &c.Type, &c.SMTPHost, &c.SMTPPort,
		&c.Username, &c.Password, &c.UseTLS, &c.UseSSL,
		&c.SESRegion, &c.SESAccessKey, &c.SESSecretKey,
		&c.FromEmail, &c.FromName, &c.IsActive, &c.IsDefault, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *EmailConfigRepo) Get(ctx context.Context, id string) (*domain.EmailConfiguration, error) {
	c, err := scanConfig(r.db.QueryRowContext(ctx, `
		SELECT `+configColumns+` FROM email_configurations WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get email configuration: %w", err)
	}
	return c, nil
}

// GetDefault returns the active default configuration the dispatcher sends
// through.
func (r *EmailConfigRepo) GetDefault(ctx context.Context) (*domain.EmailConfiguration, error) {
	c, err := scanConfig(r.db.QueryRowContext(ctx, `
		SELECT ` + configColumns + `
		FROM email_configurations
		WHERE is_active = true AND is_default = true
		ORDER BY updated_at DESC
		LIMIT 1
	`))
	if err == sql.ErrNoRows {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default email configuration: %w", err)
	}
	return c, nil
}

func (r *EmailConfigRepo) List(ctx context.Context) ([]domain.EmailConfiguration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+configColumns+` FROM email_configurations ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list email configurations: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailConfiguration
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan email configuration: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Create inserts a configuration. Marking it default clears the flag on
// every other row in the same transaction, keeping at most one default.
func (r *EmailConfigRepo) Create(ctx context.Context, c *domain.EmailConfiguration) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if c.IsDefault {
		if _, err := tx.ExecContext(ctx, `UPDATE email_configurations SET is_default = false WHERE is_default = true`); err != nil {
			return fmt.Errorf("clear default flag: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO email_configurations
			(id, name, type, smtp_host, smtp_port, username, password, use_tls,
			 use_ssl, ses_region, ses_access_key, ses_secret_key, from_email,
			 from_name, is_active, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
	`, c.ID, c.Name, c.Type, c.SMTPHost, c.SMTPPort, c.Username, c.Password,
		c.UseTLS, c.UseSSL, c.SESRegion, c.SESAccessKey, c.SESSecretKey,
		c.FromEmail, c.FromName, c.IsActive, c.IsDefault)
	if err != nil {
		return fmt.Errorf("create email configuration: %w", err)
	}
	return tx.Commit()
}

func (r *EmailConfigRepo) Update(ctx context.Context, c *domain.EmailConfiguration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if c.IsDefault {
		if _, err := tx.ExecContext(ctx, `UPDATE email_configurations SET is_default = false WHERE is_default = true AND id <> $1`, c.ID); err != nil {
			return fmt.Errorf("clear default flag: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE email_configurations
		SET name = $1, type = $2, smtp_host = $3, smtp_port = $4, username = $5,
		    password = $6, use_tls = $7, use_ssl = $8, ses_region = $9,
		    ses_access_key = $10, ses_secret_key = $11, from_email = $12,
		    from_name = $13, is_active = $14, is_default = $15, updated_at = NOW()
		WHERE id = $16
	`, c.Name, c.Type, c.SMTPHost, c.SMTPPort, c.Username, c.Password,
		c.UseTLS, c.UseSSL, c.SESRegion, c.SESAccessKey, c.SESSecretKey,
		c.FromEmail, c.FromName, c.IsActive, c.IsDefault, c.ID)
	if err != nil {
		return fmt.Errorf("update email configuration: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrConfigNotFound
	}
	return tx.Commit()
}

func (r *EmailConfigRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM email_configurations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete email configuration: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrConfigNotFound
	}
	return nil
}
