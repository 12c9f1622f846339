// Package worker drains the email queue and hands each job to the mailer,
// keeping a delivery trail in email_logs.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/votify/backend/pkg/mailer"
	"github.com/votify/backend/pkg/queue"
)

// Logs is the delivery-trail surface the processor needs.
type Logs interface {
	Insert(ctx context.Context, emailType, recipient, subject string) (uuid.UUID, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// Jobs is the queue surface the processor needs.
type Jobs interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EmailProcessor processes email jobs: record, send, mark outcome.
type EmailProcessor struct {
	logs   Logs
	jobs   Jobs
	sender mailer.Sender
	logger *zap.Logger
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(logs Logs, jobs Jobs, sender mailer.Sender, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{logs: logs, jobs: jobs, sender: sender, logger: logger}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	logID, err := p.logs.Insert(ctx, payload.EmailType, payload.RecipientEmail, payload.Subject)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}

	if err := p.sender.Send(ctx, payload.RecipientEmail, payload.Subject, payload.Body); err != nil {
		if markErr := p.logs.MarkFailed(ctx, logID, err.Error()); markErr != nil {
			p.logger.Error("mark failed failed", zap.String("log_id", logID.String()), zap.Error(markErr))
		}
		return fmt.Errorf("send: %w", err)
	}

	if err := p.logs.MarkSent(ctx, logID); err != nil {
		p.logger.Error("mark sent failed", zap.String("log_id", logID.String()), zap.Error(err))
	}

	p.logger.Info("email sent",
		zap.String("email_type", payload.EmailType),
		zap.String("recipient", payload.RecipientEmail))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("email worker stopping")
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
