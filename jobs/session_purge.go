package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-tenancy/internal/jobs"
)

// SessionPurger deletes expired login sessions, returning how many were removed.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// SessionPurgeJob removes expired auth_sessions rows on a schedule.
type SessionPurgeJob struct {
	Purger  SessionPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSessionPurgeJob wires dependencies for the purge handler.
func NewSessionPurgeJob(purger SessionPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionPurgeJob {
	return &SessionPurgeJob{Purger: purger, Logger: logger, Metrics: metrics}
}

// Handle processes TaskSessionPurge tasks.
func (j *SessionPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Purger == nil {
		return errors.New("session purge: handler not configured")
	}
	start := time.Now()
	purged, err := j.Metrics.Run(TaskSessionPurge, func() (int64, error) {
		return j.Purger.PurgeExpiredSessions(ctx)
	})
	if err != nil {
		j.logger().Error("purge expired sessions", slog.Any("error", err))
		return err
	}
	j.logger().Info("purged expired sessions", slog.Int64("sessions", purged), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *SessionPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
