package domain

import "time"

// LogStatus enumerates the outcome of a single send attempt.
type LogStatus string

const (
	LogSent   LogStatus = "sent"
	LogFailed LogStatus = "failed"
)

// EmailLog records one send attempt. Rows are append-only: they are written
// once before campaign aggregates advance and never mutated afterwards. The
// log is the source of truth for all derived statistics.
type EmailLog struct {
	ID             string    `json:"id" db:"id"`
	CampaignID     *string   `json:"campaign_id" db:"campaign_id"`
	RecipientEmail string    `json:"recipient_email" db:"recipient_email"`
	RecipientName  string    `json:"recipient_name" db:"recipient_name"`
	Subject        string    `json:"subject" db:"subject"`
	Body           string    `json:"body" db:"body"`
	Status         LogStatus `json:"status" db:"status"`
	ErrorMessage   string    `json:"error_message" db:"error_message"`
	Attachments    []string  `json:"attachments" db:"attachments"`
	ConfigName     string    `json:"config_name" db:"config_name"`
	SentAt         time.Time `json:"sent_at" db:"sent_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Statistics is the read-side aggregate computed by scanning EmailLog and
// campaign state. There is no separate write path for these figures.
type Statistics struct {
	TotalSent       int     `json:"total_sent"`
	TotalFailed     int     `json:"total_failed"`
	SuccessRate     float64 `json:"success_rate"`
	ActiveCampaigns int     `json:"active_campaigns"`
	DueCampaigns    int     `json:"due_campaigns"`
	RecentCampaigns int     `json:"recent_campaigns"`
	TotalRecipients int     `json:"total_recipients"`
}
