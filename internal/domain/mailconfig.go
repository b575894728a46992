package domain

import "time"

// TransportType identifies the delivery mechanism for a configuration.
type TransportType string

const (
	TransportSMTP TransportType = "smtp"
	TransportSES  TransportType = "ses"
)

// EmailConfiguration holds transport connection parameters. At most one
// configuration is marked default; configurations are read-only during a
// dispatch.
type EmailConfiguration struct {
	ID   string        `json:"id" db:"id"`
	Name string        `json:"name" db:"name"`
	Type TransportType `json:"type" db:"type"`

	// SMTP settings.
	SMTPHost string `json:"smtp_host" db:"smtp_host"`
	SMTPPort int    `json:"smtp_port" db:"smtp_port"`
	Username string `json:"username" db:"username"`
	Password string `json:"-" db:"password"`
	UseTLS   bool   `json:"use_tls" db:"use_tls"`
	UseSSL   bool   `json:"use_ssl" db:"use_ssl"`

	// SES settings.
	SESRegion    string `json:"ses_region" db:"ses_region"`
	SESAccessKey string `json:"-" db:"ses_access_key"`
	SESSecretKey string `json:"-" db:"ses_secret_key"`

	FromEmail string `json:"from_email" db:"from_email"`
	FromName  string `json:"from_name" db:"from_name"`

	IsActive  bool      `json:"is_active" db:"is_active"`
	IsDefault bool      `json:"is_default" db:"is_default"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
