package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionPurge deletes login sessions past their expiry.
	TaskSessionPurge = "auth:sessions:purge"
)

// NewSessionPurgeTask constructs the purge task. It carries no payload.
func NewSessionPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskSessionPurge, nil)
}
