package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/razezix/authgate/internal/jobs"
)

// SessionsPurgeJob deletes expired or revoked sessions that have aged past
// their retention window. The request path only ever revokes sessions;
// physical deletion happens exclusively here, out of band.
type SessionsPurgeJob struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSessionsPurgeJob constructs the job.
func NewSessionsPurgeJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionsPurgeJob {
	return &SessionsPurgeJob{pool: pool, logger: logger, metrics: metrics}
}

// Handle processes TaskSessionsPurge tasks.
func (j *SessionsPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("sessions_purge")
	var payload SessionsPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	if payload.Retention <= 0 {
		payload.Retention = 30 * 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-payload.Retention)
	tag, err := j.pool.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at < $1 OR (revoked_at IS NOT NULL AND revoked_at < $1)`, cutoff)
	if err != nil {
		return tracker.End(err)
	}
	if j.logger != nil {
		j.logger.Info("purged sessions",
			slog.Int64("deleted", tag.RowsAffected()),
			slog.Time("cutoff", cutoff))
	}
	return tracker.End(nil)
}
