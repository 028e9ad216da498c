package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clipforge/shorts-engine/internal/jobs"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/pkg/utils"
)

type jobsRepo struct {
	db *sqlx.DB
}

func NewJobsRepo(db *sqlx.DB) jobs.Repository {
	return &jobsRepo{db: db}
}

func (r *jobsRepo) CreateJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	created := &models.Job{}
	if err := r.db.QueryRowxContext(
		ctx,
		createJobQuery,
		job.JobID,
		job.Kind,
		job.ClipID,
		job.Platform,
		models.JobStatusQueued,
		job.Priority,
		job.MaxRetries,
		job.ScheduledAt,
	).StructScan(created); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return created, nil
}

func (r *jobsRepo) GetJobByID(ctx context.Context, jobID string) (*models.Job, error) {
	job := &models.Job{}
	if err := r.db.QueryRowxContext(ctx, getJobByIDQuery, jobID).StructScan(job); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobs.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job by id: %w", err)
	}
	return job, nil
}

func (r *jobsRepo) ListJobs(ctx context.Context, pq *utils.Pagination) (*models.JobList, error) {
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, getTotalJobsQuery); err != nil {
		return nil, fmt.Errorf("failed to get total jobs count: %w", err)
	}
	if totalCount == 0 {
		return &models.JobList{
			Jobs:       make([]*models.Job, 0),
			TotalCount: 0,
			Page:       pq.GetPage(),
			PageSize:   pq.GetSize(),
			HasMore:    false,
		}, nil
	}
	rows, err := r.db.QueryxContext(ctx, listJobsQuery, pq.GetOffset(), pq.GetLimit())
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobList := make([]*models.Job, 0, pq.GetSize())
	for rows.Next() {
		var job models.Job
		if err = rows.StructScan(&job); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobList = append(jobList, &job)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan jobs: %w", err)
	}
	return &models.JobList{
		Jobs:       jobList,
		TotalCount: totalCount,
		Page:       pq.GetPage(),
		PageSize:   pq.GetSize(),
		HasMore:    utils.GetHasMore(pq.GetPage(), totalCount, pq.GetSize()),
	}, nil
}

func (r *jobsRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Job, error) {
	rows, err := r.db.QueryxContext(ctx, listDueJobsQuery, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due jobs: %w", err)
	}
	defer rows.Close()

	var due []*models.Job
	for rows.Next() {
		var job models.Job
		if err = rows.StructScan(&job); err != nil {
			return nil, fmt.Errorf("failed to scan due job: %w", err)
		}
		due = append(due, &job)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan due jobs: %w", err)
	}
	return due, nil
}

// ClaimJob transitions queued->running with a compare-and-set on status so
// no two workers ever hold the same job.
func (r *jobsRepo) ClaimJob(ctx context.Context, jobID string) (*models.Job, error) {
	job := &models.Job{}
	if err := r.db.QueryRowxContext(ctx, claimJobQuery, jobID).StructScan(job); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobs.ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, nil
}

func (r *jobsRepo) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	if _, err := r.db.ExecContext(ctx, updateProgressQuery, jobID, progress); err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

func (r *jobsRepo) CompleteJob(ctx context.Context, jobID string, resultJSON string) error {
	res, err := r.db.ExecContext(ctx, completeJobQuery, jobID, resultJSON)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return requireRow(res, jobs.ErrInvalidTransition)
}

func (r *jobsRepo) FailJob(ctx context.Context, jobID string, errMsg string) error {
	res, err := r.db.ExecContext(ctx, failJobQuery, jobID, errMsg)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	return requireRow(res, jobs.ErrInvalidTransition)
}

func (r *jobsRepo) RequeueJob(ctx context.Context, jobID string, runAt time.Time) (*models.Job, error) {
	job := &models.Job{}
	if err := r.db.QueryRowxContext(ctx, requeueJobQuery, jobID, runAt).StructScan(job); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobs.ErrRetryExhausted
		}
		return nil, fmt.Errorf("failed to requeue job: %w", err)
	}
	return job, nil
}

func (r *jobsRepo) CancelJob(ctx context.Context, jobID string) (*models.Job, error) {
	job := &models.Job{}
	if err := r.db.QueryRowxContext(ctx, cancelJobQuery, jobID).StructScan(job); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobs.ErrInvalidTransition
		}
		return nil, fmt.Errorf("failed to cancel job: %w", err)
	}
	return job, nil
}

// IsCancelled re-reads status from the store; workers never cache status
// across suspension points.
func (r *jobsRepo) IsCancelled(ctx context.Context, jobID string) (bool, error) {
	var status models.JobStatus
	if err := r.db.GetContext(ctx, &status, getJobStatusQuery, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, jobs.ErrNotFound
		}
		return false, fmt.Errorf("failed to get job status: %w", err)
	}
	return status == models.JobStatusCancelled, nil
}

func (r *jobsRepo) AppendStageResult(ctx context.Context, result *models.StageResult) (*models.StageResult, error) {
	result.EncodeArtifacts()
	created := &models.StageResult{}
	if err := r.db.QueryRowxContext(
		ctx,
		appendStageResultQuery,
		result.JobID,
		result.Fingerprint,
		result.Stage,
		result.Scope,
		result.Artifacts,
		result.Provider,
		result.FallbackUsed,
		result.DurationMS,
		result.Success,
		result.Message,
	).StructScan(created); err != nil {
		return nil, fmt.Errorf("failed to append stage result: %w", err)
	}
	created.DecodeArtifacts()
	return created, nil
}

func (r *jobsRepo) ListStageResults(ctx context.Context, jobID string) ([]*models.StageResult, error) {
	rows, err := r.db.QueryxContext(ctx, listStageResultsQuery, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage results: %w", err)
	}
	defer rows.Close()

	var results []*models.StageResult
	for rows.Next() {
		var result models.StageResult
		if err = rows.StructScan(&result); err != nil {
			return nil, fmt.Errorf("failed to scan stage result: %w", err)
		}
		result.DecodeArtifacts()
		results = append(results, &result)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan stage results: %w", err)
	}
	return results, nil
}

func (r *jobsRepo) GetStageResult(ctx context.Context, fingerprint, stage, scope string) (*models.StageResult, error) {
	result := &models.StageResult{}
	if err := r.db.QueryRowxContext(ctx, getStageResultQuery, fingerprint, stage, scope).StructScan(result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobs.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get stage result: %w", err)
	}
	result.DecodeArtifacts()
	return result, nil
}

func (r *jobsRepo) CreateClip(ctx context.Context, clip *models.Clip) (*models.Clip, error) {
	if clip.ClipID == "" {
		clip.ClipID = uuid.New().String()
	}
	created := &models.Clip{}
	if err := r.db.QueryRowxContext(
		ctx,
		createClipQuery,
		clip.ClipID,
		clip.SourcePath,
		clip.LocalPath,
		clip.RemoteFileID,
		clip.DurationSec,
		clip.FileSizeBytes,
		clip.Fingerprint,
	).StructScan(created); err != nil {
		return nil, fmt.Errorf("failed to create clip: %w", err)
	}
	return created, nil
}

func (r *jobsRepo) GetClipByID(ctx context.Context, clipID string) (*models.Clip, error) {
	clip := &models.Clip{}
	if err := r.db.QueryRowxContext(ctx, getClipByIDQuery, clipID).StructScan(clip); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobs.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get clip by id: %w", err)
	}
	return clip, nil
}

func (r *jobsRepo) GetClipByFingerprint(ctx context.Context, fingerprint string) (*models.Clip, error) {
	clip := &models.Clip{}
	if err := r.db.QueryRowxContext(ctx, getClipByFingerprintQuery, fingerprint).StructScan(clip); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobs.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get clip by fingerprint: %w", err)
	}
	return clip, nil
}

func (r *jobsRepo) CreateReceipt(ctx context.Context, receipt *models.PublishReceipt) (*models.PublishReceipt, error) {
	if receipt.ReceiptID == "" {
		receipt.ReceiptID = uuid.New().String()
	}
	created := &models.PublishReceipt{}
	if err := r.db.QueryRowxContext(
		ctx,
		createReceiptQuery,
		receipt.ReceiptID,
		receipt.ClipID,
		receipt.Platform,
		receipt.ExternalID,
		receipt.UploadURL,
		receipt.ClipPath,
		receipt.Title,
		receipt.Caption,
		receipt.Hashtags,
		receipt.DryRun,
	).StructScan(created); err != nil {
		return nil, fmt.Errorf("failed to create receipt: %w", err)
	}
	return created, nil
}

func (r *jobsRepo) GetReceipt(ctx context.Context, clipID, platform string) (*models.PublishReceipt, error) {
	receipt := &models.PublishReceipt{}
	if err := r.db.QueryRowxContext(ctx, getReceiptQuery, clipID, platform).StructScan(receipt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobs.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return receipt, nil
}

func requireRow(res sql.Result, missing error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return missing
	}
	return nil
}
