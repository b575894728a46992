// Package transport abstracts email delivery behind a single Send call.
// Implementations exist for direct SMTP and for AWS SES; the dispatcher
// selects one based on the active EmailConfiguration.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/campaign-mailer/internal/domain"
)

var (
	ErrNoConfiguration  = errors.New("no active email configuration")
	ErrUnknownTransport = errors.New("unknown transport type")
)

// Attachment is a fully materialized file to include in a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one rendered, ready-to-send email. Subject and Body have
// already been through placeholder substitution.
type Message struct {
	To          string
	ToName      string
	FromEmail   string
	FromName    string
	Subject     string
	Body        string
	IsHTML      bool
	Attachments []Attachment
}

// Transport delivers a single message. Implementations must respect ctx
// cancellation and return an error describing the failure for the log row;
// they never retry internally.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
	// Name identifies the transport in logs and EmailLog.ConfigName.
	Name() string
}

// New builds the Transport matching the configuration's type.
func New(cfg *domain.EmailConfiguration) (Transport, error) {
	if cfg == nil {
		return nil, ErrNoConfiguration
	}
	switch cfg.Type {
	case domain.TransportSMTP:
		return NewSMTP(cfg), nil
	case domain.TransportSES:
		return NewSES(cfg)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Type)
}
