package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tallyroom/tallyroom/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeIdempotencyCleanup prunes old idempotency keys.
	TaskTypeIdempotencyCleanup = "maintenance:idempotency_cleanup"

	// IdempotencyRetention is how long processed request keys are kept.
	IdempotencyRetention = 72 * time.Hour
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.MaxRetry(5), asynq.Timeout(time.Minute)), nil
}

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SendEmailHandler delivers TaskTypeSendEmail tasks through a Mailer.
func SendEmailHandler(mailer Mailer, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("jobs: decode mail payload: %v: %w", err, asynq.SkipRetry)
		}
		if payload.To == "" {
			return fmt.Errorf("jobs: mail without recipient: %w", asynq.SkipRetry)
		}
		tracker := metrics.Track(TaskTypeSendEmail)
		err := mailer.Send(ctx, payload.To, payload.Subject, payload.Body)
		if err != nil && logger != nil {
			logger.Warn("send email", slog.String("subject", payload.Subject), slog.Any("error", err))
		}
		return tracker.End(err)
	}
}

// NewIdempotencyCleanupTask constructs the scheduled cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil, asynq.MaxRetry(1))
}

// KeyPruner removes idempotency keys older than a retention window.
type KeyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupHandler runs TaskTypeIdempotencyCleanup.
func IdempotencyCleanupHandler(store KeyPruner, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeIdempotencyCleanup)
		removed, err := store.Cleanup(ctx, IdempotencyRetention)
		if err == nil {
			metrics.AddPruned(removed)
			if logger != nil {
				logger.Info("idempotency keys pruned", slog.Int64("removed", removed))
			}
		}
		return tracker.End(err)
	}
}
