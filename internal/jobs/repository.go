package jobs

import (
	"context"
	"time"

	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/pkg/utils"
)

// Repository is the Job Store: the single source of truth for job status.
// Only the worker holding a claim may transition a job's status; the claim
// itself is a compare-and-set so no two workers process the same queued job.
type Repository interface {
	CreateJob(ctx context.Context, job *models.Job) (*models.Job, error)
	GetJobByID(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, pq *utils.Pagination) (*models.JobList, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Job, error)

	ClaimJob(ctx context.Context, jobID string) (*models.Job, error)
	UpdateProgress(ctx context.Context, jobID string, progress int) error
	CompleteJob(ctx context.Context, jobID string, resultJSON string) error
	FailJob(ctx context.Context, jobID string, errMsg string) error
	RequeueJob(ctx context.Context, jobID string, runAt time.Time) (*models.Job, error)
	CancelJob(ctx context.Context, jobID string) (*models.Job, error)
	IsCancelled(ctx context.Context, jobID string) (bool, error)

	AppendStageResult(ctx context.Context, result *models.StageResult) (*models.StageResult, error)
	ListStageResults(ctx context.Context, jobID string) ([]*models.StageResult, error)
	GetStageResult(ctx context.Context, fingerprint, stage, scope string) (*models.StageResult, error)

	CreateClip(ctx context.Context, clip *models.Clip) (*models.Clip, error)
	GetClipByID(ctx context.Context, clipID string) (*models.Clip, error)
	GetClipByFingerprint(ctx context.Context, fingerprint string) (*models.Clip, error)

	CreateReceipt(ctx context.Context, receipt *models.PublishReceipt) (*models.PublishReceipt, error)
	GetReceipt(ctx context.Context, clipID, platform string) (*models.PublishReceipt, error)
}
