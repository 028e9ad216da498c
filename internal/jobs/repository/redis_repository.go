package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/clipforge/shorts-engine/internal/jobs"
	"github.com/clipforge/shorts-engine/internal/models"
)

const progressKeyPrefix = "job:progress:"

type jobsQueueRepo struct {
	redisClient *redis.Client
}

func NewJobsQueueRepo(redisClient *redis.Client) jobs.QueueRepository {
	return &jobsQueueRepo{redisClient: redisClient}
}

func (q *jobsQueueRepo) NotifyJob(ctx context.Context, key string, jobID string) error {
	if err := q.redisClient.LPush(ctx, key, jobID).Err(); err != nil {
		return fmt.Errorf("failed to notify job: %w", err)
	}
	return nil
}

// WaitForJob blocks until a job id is pushed or the timeout elapses. An
// empty id with a nil error means the wait timed out; callers fall back to
// polling the store.
func (q *jobsQueueRepo) WaitForJob(ctx context.Context, key string, timeout time.Duration) (string, error) {
	res, err := q.redisClient.BRPop(ctx, timeout, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to wait for job: %w", err)
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

func (q *jobsQueueRepo) CacheProgress(ctx context.Context, jobID string, status models.JobStatus, progress int) error {
	pipe := q.redisClient.Pipeline()
	pipe.HSet(ctx, progressKeyPrefix+jobID, "status", string(status))
	pipe.HSet(ctx, progressKeyPrefix+jobID, "progress", progress)
	pipe.Expire(ctx, progressKeyPrefix+jobID, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache progress: %w", err)
	}
	return nil
}

func (q *jobsQueueRepo) GetCachedProgress(ctx context.Context, jobID string) (models.JobStatus, int, error) {
	vals, err := q.redisClient.HGetAll(ctx, progressKeyPrefix+jobID).Result()
	if err != nil {
		return "", 0, fmt.Errorf("failed to get cached progress: %w", err)
	}
	if len(vals) == 0 {
		return "", 0, jobs.ErrNotFound
	}
	progress, _ := strconv.Atoi(vals["progress"])
	return models.JobStatus(vals["status"]), progress, nil
}
