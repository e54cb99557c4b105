package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Activity actions recorded for privileged changes.
const (
	ActionCreate        = "create"
	ActionUpdate        = "update"
	ActionDelete        = "delete"
	ActionPasswordReset = "password_reset"
	ActionPasswordSet   = "password_update"
)

// Activity represents a record stored in activity_logs.
type Activity struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// ActivityRecorder persists activity rows. Services depend on this interface so
// tests can capture entries in memory.
type ActivityRecorder interface {
	Record(ctx context.Context, entry Activity) error
}

// ActivityLogger writes records into activity_logs.
type ActivityLogger struct {
	pool *pgxpool.Pool
}

// NewActivityLogger returns a new ActivityLogger.
func NewActivityLogger(pool *pgxpool.Pool) *ActivityLogger {
	return &ActivityLogger{pool: pool}
}

// Record persists the log entry.
func (l *ActivityLogger) Record(ctx context.Context, entry Activity) error {
	if l == nil {
		return errors.New("activity logger not initialised")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("activity log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !entry.At.IsZero() {
		at = &entry.At
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO activity_logs (actor_id, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, entry.ActorID, entry.Action, entry.Entity, entry.EntityID, metaJSON, at)
	return err
}

// RecordActivity writes entry through rec. A failed write is logged and does
// not undo the change it describes.
func RecordActivity(ctx context.Context, rec ActivityRecorder, logger *slog.Logger, entry Activity) {
	if rec == nil {
		return
	}
	if err := rec.Record(ctx, entry); err != nil && logger != nil {
		logger.Warn("record activity", slog.String("action", entry.Action), slog.String("entity", entry.Entity), slog.String("entity_id", entry.EntityID), slog.Any("error", err))
	}
}

var _ ActivityRecorder = (*ActivityLogger)(nil)
