package notify

//go:generate mockgen -source=sender.go -destination=sender_mock.go -package=notify

import (
	"context"
	"fmt"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/pkg/logger"
	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
)

type SendRequest struct {
	To      []string
	From    string
	Subject string
	HTML    string
	ReplyTo string
}

type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers a rendered email through an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// ResendSender sends emails via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

func (s *ResendSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	from := req.From
	if from == "" {
		from = s.from
	}
	params := &resend.SendEmailRequest{
		From:    from,
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
	}
	if req.ReplyTo != "" {
		params.ReplyTo = req.ReplyTo
	}
	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return SendResult{}, fmt.Errorf("resend send failed: %w", err)
	}
	logger.Debugf("email sent via resend: id=%s to=%v subject=%q", sent.Id, req.To, req.Subject)
	return SendResult{MessageID: sent.Id, SentAt: time.Now()}, nil
}

// NoopSender logs and drops every message. Used in development and tests.
type NoopSender struct{}

func (NoopSender) Send(_ context.Context, req SendRequest) (SendResult, error) {
	logger.Infof("email (noop): to=%v subject=%q", req.To, req.Subject)
	return SendResult{MessageID: "noop-" + uuid.NewString(), SentAt: time.Now()}, nil
}
