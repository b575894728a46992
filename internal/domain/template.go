package domain

import "time"

// EmailTemplate holds a reusable subject/body pair. Both fields may contain
// $identifier placeholders resolved per recipient at dispatch time. A
// campaign references a template; it never copies one.
type EmailTemplate struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Subject   string    `json:"subject" db:"subject"`
	Body      string    `json:"body" db:"body"`
	IsHTML    bool      `json:"is_html" db:"is_html"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Attachments are resolved separately from template text and are
	// read-only at dispatch time.
	Attachments []TemplateAttachment `json:"attachments,omitempty" db:"-"`
}

// TemplateAttachment is a file reference bound to exactly one template.
type TemplateAttachment struct {
	ID          string    `json:"id" db:"id"`
	TemplateID  string    `json:"template_id" db:"template_id"`
	Filename    string    `json:"filename" db:"filename"`
	ContentType string    `json:"content_type" db:"content_type"`
	FileSize    int64     `json:"file_size" db:"file_size"`
	Path        string    `json:"path" db:"path"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
