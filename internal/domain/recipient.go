package domain

import "time"

// Recipient represents a single addressable person. Email is the unique key;
// recipients referenced by historical logs are deactivated, never deleted.
type Recipient struct {
	ID        string `json:"id" db:"id"`
	Email     string `json:"email" db:"email"`
	Name      string `json:"name" db:"name"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Company   string `json:"company" db:"company"`

	// CustomFields holds arbitrary per-recipient substitution values
	// (stored as JSONB). Keys here shadow campaign variables at render time.
	CustomFields map[string]string `json:"custom_fields" db:"custom_fields"`

	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the name to put in the To header: the explicit display
// name when set, otherwise the email address.
func (r *Recipient) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Email
}
