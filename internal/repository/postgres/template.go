package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/campaign-mailer/internal/domain"
)

// ErrTemplateNotFound is returned for template lookups that match nothing.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateRepo provides email template and attachment persistence.
type TemplateRepo struct{ db *sql.DB }

// NewTemplateRepo creates a Postgres-backed template repository.
func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

// Get returns one template with its attachments resolved.
func (r *TemplateRepo) Get(ctx context.Context, id string) (*domain.EmailTemplate, error) {
	t := &domain.EmailTemplate{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, subject, body, is_html, created_at, updated_at
		FROM email_templates
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.Subject, &t.Body, &t.IsHTML, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}

	atts, err := r.attachments(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Attachments = atts
	return t, nil
}

func (r *TemplateRepo) attachments(ctx context.Context, templateID string) ([]domain.TemplateAttachment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, template_id, filename, COALESCE(content_type,''), file_size, path, created_at
		FROM template_attachments
		WHERE template_id = $1
		ORDER BY filename ASC
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var out []domain.TemplateAttachment
	for rows.Next() {
		var a domain.TemplateAttachment
		if err := rows.Scan(&a.ID, &a.TemplateID, &a.Filename, &a.ContentType,
			&a.FileSize, &a.Path, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// List returns all templates ordered by name, without attachments.
func (r *TemplateRepo) List(ctx context.Context) ([]domain.EmailTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, subject, body, is_html, created_at, updated_at
		FROM email_templates
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailTemplate
	for rows.Next() {
		var t domain.EmailTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.Subject, &t.Body, &t.IsHTML,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TemplateRepo) Create(ctx context.Context, t *domain.EmailTemplate) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_templates (id, name, subject, body, is_html, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`, t.ID, t.Name, t.Subject, t.Body, t.IsHTML)
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (r *TemplateRepo) Update(ctx context.Context, t *domain.EmailTemplate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_templates
		SET name = $1, subject = $2, body = $3, is_html = $4, updated_at = NOW()
		WHERE id = $5
	`, t.Name, t.Subject, t.Body, t.IsHTML, t.ID)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (r *TemplateRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM email_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// AddAttachment registers a stored file against a template.
func (r *TemplateRepo) AddAttachment(ctx context.Context, a *domain.TemplateAttachment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO template_attachments
			(id, template_id, filename, content_type, file_size, path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, a.ID, a.TemplateID, a.Filename, a.ContentType, a.FileSize, a.Path)
	if err != nil {
		return fmt.Errorf("add attachment: %w", err)
	}
	return nil
}

// RemoveAttachment detaches a file from its template. The stored file
// itself is cleaned up by the caller.
func (r *TemplateRepo) RemoveAttachment(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM template_attachments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove attachment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrTemplateNotFound
	}
	return nil
}
