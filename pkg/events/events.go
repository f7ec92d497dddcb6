// Package events implements the AI pipeline's job event bus and push-
// stream endpoint (C9): a Redis pub/sub channel per job id, backed by a
// short-lived status record so a client connecting after publication can
// still recover the terminal state (spec.md §4.9).
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medibrief/api/pkg/aipipeline"
)

// StatusRetention bounds how long a job's last-known status survives in
// Redis, matching the "recent completed/failed jobs" retention spec.md
// §4.8 calls for.
const StatusRetention = 24 * time.Hour

const (
	statusKeyPrefix  = "ai:job:status:"
	channelKeyPrefix = "ai:job:events:"
)

// JobStatus is the job status frame carried on the bus.
type JobStatus = aipipeline.JobStatus

// Bus publishes job status events over Redis pub/sub and keeps the last
// status per job in a Redis string so late subscribers can recover it
// (spec.md §4.9 step 2). It implements pkg/aipipeline.EventPublisher and
// pkg/aipipeline.JobStatusReader.
type Bus struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewBus creates a job event Bus.
func NewBus(rdb *redis.Client, logger *slog.Logger) *Bus {
	return &Bus{rdb: rdb, logger: logger}
}

func statusKey(jobID string) string  { return statusKeyPrefix + jobID }
func channelKey(jobID string) string { return channelKeyPrefix + jobID }

// Publish stores the status and broadcasts it to any live subscribers.
// Both operations are best-effort: Redis failures are logged and
// swallowed (spec.md §5 "Cache/pubsub: shared; any failure is swallowed").
func (b *Bus) Publish(ctx context.Context, jobID string, status aipipeline.JobStatus) {
	data, err := json.Marshal(status)
	if err != nil {
		b.logger.Warn("marshaling job status", "error", err, "job_id", jobID)
		return
	}

	if err := b.rdb.Set(ctx, statusKey(jobID), data, StatusRetention).Err(); err != nil {
		b.logger.Warn("storing job status", "error", err, "job_id", jobID)
	}
	if err := b.rdb.Publish(ctx, channelKey(jobID), data).Err(); err != nil {
		b.logger.Warn("publishing job status", "error", err, "job_id", jobID)
	}
}

// Get returns the last known status for a job, if any has ever been
// recorded.
func (b *Bus) Get(ctx context.Context, jobID string) (aipipeline.JobStatus, bool) {
	val, err := b.rdb.Get(ctx, statusKey(jobID)).Result()
	if err != nil {
		if err != redis.Nil {
			b.logger.Warn("reading job status", "error", err, "job_id", jobID)
		}
		return aipipeline.JobStatus{}, false
	}

	var status aipipeline.JobStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		b.logger.Warn("unmarshaling job status", "error", err, "job_id", jobID)
		return aipipeline.JobStatus{}, false
	}
	return status, true
}

// Subscribe opens a Redis pub/sub subscription for one job's channel. The
// caller must Close the returned PubSub.
func (b *Bus) Subscribe(ctx context.Context, jobID string) *redis.PubSub {
	return b.rdb.Subscribe(ctx, channelKey(jobID))
}

// isTerminal reports whether a job status represents a final state, after
// which no further events are expected (spec.md §4.9 step 2).
func isTerminal(state string) bool {
	return state == aipipeline.JobStateCompleted || state == aipipeline.JobStateFailed || state == aipipeline.JobStateTimeout
}
