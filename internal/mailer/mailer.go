// Package mailer sends transactional email through Amazon SES.
package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/ginger-society/ginger-ws/internal/metrics"
)

// Email is a single outbound message. ReplyTo is optional.
type Email struct {
	To      string
	Subject string
	Message string
	ReplyTo string
}

// Sender delivers an email to its recipient.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends email through Amazon SES with a fixed source address.
type SESMailer struct {
	client sesAPI
	source string
}

// NewSESMailer builds a mailer from the ambient AWS credential chain.
func NewSESMailer(ctx context.Context, region, source string) (*SESMailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SESMailer{client: ses.NewFromConfig(cfg), source: source}, nil
}

func (m *SESMailer) Send(ctx context.Context, email Email) error {
	input := &ses.SendEmailInput{
		Source: aws.String(m.source),
		Destination: &types.Destination{
			ToAddresses: []string{email.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(email.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(email.Message)},
			},
		},
	}
	if email.ReplyTo != "" {
		input.ReplyToAddresses = []string{email.ReplyTo}
	}

	_, err := m.client.SendEmail(ctx, input)
	if err != nil {
		metrics.EmailsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("send email via SES: %w", err)
	}

	metrics.EmailsTotal.WithLabelValues("ok").Inc()
	return nil
}
