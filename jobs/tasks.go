package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionsPurge removes dead session rows past their retention window.
	TaskSessionsPurge = "sessions:purge"
)

// SessionsPurgePayload scopes a purge run.
type SessionsPurgePayload struct {
	// Retention is how long expired or revoked sessions are kept for audit
	// before deletion.
	Retention time.Duration `json:"retention"`
}

// NewSessionsPurgeTask constructs an Asynq task.
func NewSessionsPurgeTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(SessionsPurgePayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionsPurge, data), nil
}
