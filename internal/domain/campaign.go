package domain

import (
	"time"
)

// Interval enumerates the recurrence rules a campaign can use.
type Interval string

const (
	IntervalOnce    Interval = "once"
	IntervalHourly  Interval = "hourly"
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// Valid reports whether the interval is one of the known recurrence rules.
func (i Interval) Valid() bool {
	switch i {
	case IntervalOnce, IntervalHourly, IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	}
	return false
}

// CampaignStatus enumerates the lifecycle states of a scheduled campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
	CampaignFailed    CampaignStatus = "failed"
)

// Campaign represents a scheduled email campaign binding one template, a
// recipient set, and a recurrence rule.
type Campaign struct {
	ID         string         `json:"id" db:"id"`
	Name       string         `json:"name" db:"name"`
	TemplateID string         `json:"template_id" db:"template_id"`
	Interval   Interval       `json:"interval" db:"interval"`
	Status     CampaignStatus `json:"status" db:"status"`

	// ScheduledAt is the first intended occurrence. NextSendAt is the next
	// due instant; it is never earlier than ScheduledAt and is nil once the
	// campaign has no further occurrence.
	ScheduledAt time.Time  `json:"scheduled_at" db:"scheduled_at"`
	EndAt       *time.Time `json:"end_at" db:"end_at"`
	NextSendAt  *time.Time `json:"next_send_at" db:"next_send_at"`
	LastSentAt  *time.Time `json:"last_sent_at" db:"last_sent_at"`

	// RecipientIDs is the campaign's recipient set (join table). Dispatch
	// filters it to currently-active recipients at send time, so the set
	// here is a reference list, never a frozen snapshot.
	RecipientIDs []string `json:"recipient_ids" db:"-"`

	// Variables are campaign-supplied substitution values, merged under the
	// recipient's own fields at render time (recipient wins on collision).
	Variables map[string]string `json:"variables" db:"variables"`

	// Cumulative totals across all dispatches, advanced only at the end of
	// each dispatch after every attempt is logged.
	SentCount   int `json:"sent_count" db:"sent_count"`
	FailedCount int `json:"failed_count" db:"failed_count"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state. Terminal
// campaigns never transition again.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted || c.Status == CampaignCancelled
}

// Dispatchable returns true if the due-campaign query may select this
// campaign: it must be scheduled or active with a next occurrence set.
func (c *Campaign) Dispatchable() bool {
	if c.NextSendAt == nil {
		return false
	}
	return c.Status == CampaignScheduled || c.Status == CampaignActive
}
