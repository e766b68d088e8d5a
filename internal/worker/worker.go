// Package worker processes background jobs from the Redis queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"go.uber.org/zap"

	"github.com/gatherspot/backend/config"
	"github.com/gatherspot/backend/pkg/queue"
)

// EmailProcessor sends registration-confirmation emails. Without SMTP
// configuration it logs the delivery instead, which keeps local development
// working with no mail server.
type EmailProcessor struct {
	queue  *queue.Queue
	email  config.EmailConfig
	logger *zap.Logger
}

// NewEmailProcessor creates a confirmation-email processor.
func NewEmailProcessor(q *queue.Queue, email config.EmailConfig, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{queue: q, email: email, logger: logger}
}

// Run consumes jobs until ctx is cancelled. Failed jobs are retried and
// eventually dead-lettered by the queue.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		if err := p.Process(ctx, job); err != nil {
			p.logger.Warn("job failed", zap.Error(err), zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
			_ = p.queue.Retry(ctx, job)
		}
	}
}

// Process executes one confirmation-email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeConfirmationEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ConfirmationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	subject := "You're registered: " + payload.EventTitle
	body := fmt.Sprintf(
		"Your registration for %s is confirmed.\r\n\r\nWhen: %s\r\nWhere: %s\r\n",
		payload.EventTitle,
		payload.EventDate.Format(time.RFC1123),
		payload.EventLocation,
	)

	if p.email.SMTPHost == "" {
		p.logger.Info("confirmation email (smtp disabled)",
			zap.String("to", payload.RecipientEmail),
			zap.String("event_id", payload.EventID.String()),
			zap.String("subject", subject),
		)
		return nil
	}

	msg := []byte(fmt.Sprintf(
		"From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		p.email.FromName, p.email.FromAddress, payload.RecipientEmail, subject, body,
	))
	addr := fmt.Sprintf("%s:%d", p.email.SMTPHost, p.email.SMTPPort)
	var auth smtp.Auth
	if p.email.SMTPUser != "" {
		auth = smtp.PlainAuth("", p.email.SMTPUser, p.email.SMTPPass, p.email.SMTPHost)
	}
	if err := smtp.SendMail(addr, auth, p.email.FromAddress, []string{payload.RecipientEmail}, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	p.logger.Info("confirmation email sent",
		zap.String("to", payload.RecipientEmail),
		zap.String("registration_id", payload.RegistrationID.String()),
	)
	return nil
}
