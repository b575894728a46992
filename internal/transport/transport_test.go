package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	mail "gopkg.in/gomail.v2"

	"github.com/ignite/campaign-mailer/internal/domain"
)

func TestNew_SelectsByType(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNoConfiguration) {
		t.Errorf("New(nil) error = %v, want ErrNoConfiguration", err)
	}

	tr, err := New(&domain.EmailConfiguration{Name: "primary", Type: domain.TransportSMTP})
	if err != nil {
		t.Fatalf("New(smtp) error: %v", err)
	}
	if _, ok := tr.(*SMTPTransport); !ok {
		t.Errorf("New(smtp) = %T, want *SMTPTransport", tr)
	}

	if _, err := New(&domain.EmailConfiguration{Type: "carrier-pigeon"}); !errors.Is(err, ErrUnknownTransport) {
		t.Errorf("New(unknown) error = %v, want ErrUnknownTransport", err)
	}
}

func TestSMTPSend_BuildsMessage(t *testing.T) {
	cfg := &domain.EmailConfiguration{
		Name: "primary",
		Type: domain.TransportSMTP,
	}
	tr := NewSMTP(cfg)

	var got *mail.Message
	tr.dial = func(m *mail.Message) error {
		got = m
		return nil
	}

	err := tr.Send(context.Background(), &Message{
		To:        "ada@example.org",
		ToName:    "Ada Lovelace",
		FromEmail: "news@example.org",
		FromName:  "Newsletter",
		Subject:   "Hello Ada",
		Body:      "<p>Hi</p>",
		IsHTML:    true,
		Attachments: []Attachment{
			{Filename: "notes.txt", Content: []byte("hello")},
		},
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if got == nil {
		t.Fatal("dial was never invoked")
	}
	if to := got.GetHeader("To"); len(to) != 1 || to[0] != `"Ada Lovelace" <ada@example.org>` {
		t.Errorf("To header = %v", to)
	}
	if subj := got.GetHeader("Subject"); len(subj) != 1 || subj[0] != "Hello Ada" {
		t.Errorf("Subject header = %v", subj)
	}
}

func TestSMTPSend_ReportsDialFailure(t *testing.T) {
	tr := NewSMTP(&domain.EmailConfiguration{Name: "primary"})
	tr.dial = func(*mail.Message) error { return errors.New("connection refused") }

	err := tr.Send(context.Background(), &Message{To: "ada@example.org"})
	if err == nil {
		t.Fatal("Send() should surface the dial failure")
	}
}

func TestSMTPSend_HonorsContextCancellation(t *testing.T) {
	tr := NewSMTP(&domain.EmailConfiguration{Name: "primary"})
	block := make(chan struct{})
	tr.dial = func(*mail.Message) error {
		<-block
		return nil
	}
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.Send(ctx, &Message{To: "ada@example.org"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want context.Canceled", err)
	}
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{}, nil
}

func TestSESSend(t *testing.T) {
	fake := &fakeSES{}
	tr := &SESTransport{
		cfg:    &domain.EmailConfiguration{Name: "ses-east"},
		client: fake,
	}

	err := tr.Send(context.Background(), &Message{
		To:        "ada@example.org",
		FromEmail: "news@example.org",
		FromName:  "Newsletter",
		Subject:   "Hello",
		Body:      "plain text",
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if fake.input == nil {
		t.Fatal("SendEmail was never invoked")
	}
	if got := fake.input.Destination.ToAddresses; len(got) != 1 || got[0] != "ada@example.org" {
		t.Errorf("destination = %v", got)
	}
	if fake.input.Content.Simple.Body.Text == nil {
		t.Error("plain message should populate the text body")
	}
	if fake.input.Content.Simple.Body.Html != nil {
		t.Error("plain message should not populate the html body")
	}

	fake.err = errors.New("throttled")
	if err := tr.Send(context.Background(), &Message{To: "ada@example.org"}); err == nil {
		t.Error("Send() should surface the SES failure")
	}
}

func TestSESSend_RejectsAttachments(t *testing.T) {
	fake := &fakeSES{}
	tr := &SESTransport{
		cfg:    &domain.EmailConfiguration{Name: "ses-east"},
		client: fake,
	}

	err := tr.Send(context.Background(), &Message{
		To:          "ada@example.org",
		Subject:     "Hello",
		Body:        "with attachment",
		Attachments: []Attachment{{Filename: "notes.txt", Content: []byte("hello")}},
	})
	if err == nil {
		t.Fatal("Send() must not silently drop attachments")
	}
	if fake.input != nil {
		t.Error("message with attachments reached the SES API")
	}
}
