package jobs

import (
	"context"
	"time"

	"github.com/clipforge/shorts-engine/internal/models"
)

// JobsWakeKey is the redis list new jobs are announced on. Workers block on
// it between polls so an enqueue wakes an idle worker immediately.
const JobsWakeKey = "jobs:wake"

// QueueRepository is the redis wake-up and progress cache layer. The Job
// Store stays the source of truth; this layer only nudges idle workers and
// mirrors progress for cheap polling.
type QueueRepository interface {
	NotifyJob(ctx context.Context, key string, jobID string) error
	WaitForJob(ctx context.Context, key string, timeout time.Duration) (string, error)
	CacheProgress(ctx context.Context, jobID string, status models.JobStatus, progress int) error
	GetCachedProgress(ctx context.Context, jobID string) (models.JobStatus, int, error)
}
