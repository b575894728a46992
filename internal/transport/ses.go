package transport

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/campaign-mailer/internal/domain"
)

// sesAPI is the slice of the SES v2 client the transport uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESTransport delivers messages through AWS SES using the SDK v2 simple
// content API. The simple content API carries no attachments, so Send
// refuses messages that have any; configurations that need them use SMTP.
type SESTransport struct {
	cfg    *domain.EmailConfiguration
	client sesAPI
}

// NewSES creates an SES transport. Static credentials from the
// configuration take precedence; with none set the default AWS credential
// chain applies.
func NewSES(cfg *domain.EmailConfiguration) (*SESTransport, error) {
	region := cfg.SESRegion
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.SESAccessKey != "" && cfg.SESSecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.SESAccessKey, cfg.SESSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SESTransport{cfg: cfg, client: sesv2.NewFromConfig(awsCfg)}, nil
}

func (t *SESTransport) Name() string { return t.cfg.Name }

// Send delivers one message through SES. Messages with attachments are
// rejected rather than silently sent without them.
func (t *SESTransport) Send(ctx context.Context, msg *Message) error {
	if len(msg.Attachments) > 0 {
		return fmt.Errorf("ses transport cannot carry %d attachment(s) to %s; use an smtp configuration", len(msg.Attachments), msg.To)
	}

	body := &types.Body{}
	content := &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")}
	if msg.IsHTML {
		body.Html = content
	} else {
		body.Text = content
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}

	if _, err := t.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send to %s: %w", msg.To, err)
	}
	return nil
}
