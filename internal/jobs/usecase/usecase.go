package usecase

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/clipforge/shorts-engine/internal/config"
	"github.com/clipforge/shorts-engine/internal/jobs"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/internal/pipeline"
	"github.com/clipforge/shorts-engine/pkg/logger"
	"github.com/clipforge/shorts-engine/pkg/utils"
)

type jobsUC struct {
	cfg    *config.Config
	repo   jobs.Repository
	queue  jobs.QueueRepository
	logger logger.Logger
}

func NewJobsUseCase(cfg *config.Config, repo jobs.Repository, queue jobs.QueueRepository, log logger.Logger) jobs.UseCase {
	return &jobsUC{cfg: cfg, repo: repo, queue: queue, logger: log}
}

// Enqueue validates the request, resolves (or registers) the target clip and
// creates a queued job. Publish requests are deduped against receipts here so
// an accidental double-publish is rejected before a job ever exists; the
// force flag bypasses the check.
func (u *jobsUC) Enqueue(ctx context.Context, input *models.EnqueueInput) (*models.Job, error) {
	if err := utils.ValidateStruct(ctx, input); err != nil {
		u.logger.Warnf("Enqueue - ValidateStruct error: %v", err)
		return nil, errors.Wrap(jobs.ErrInvalidRequest, err.Error())
	}
	kind, ok := models.ParseJobKind(input.Kind)
	if !ok {
		return nil, errors.Wrapf(jobs.ErrInvalidRequest, "unknown job kind %q", input.Kind)
	}

	var clip *models.Clip
	var err error
	switch kind {
	case models.JobKindProcessClip:
		clip, err = u.resolveClip(ctx, input)
		if err != nil {
			return nil, err
		}
	case models.JobKindPublishContent:
		if input.Platform == "" {
			return nil, errors.Wrap(jobs.ErrInvalidRequest, "platform is required for publish jobs")
		}
		if input.ClipID == "" {
			return nil, errors.Wrap(jobs.ErrInvalidRequest, "clip_id is required")
		}
		clip, err = u.repo.GetClipByID(ctx, input.ClipID)
		if err != nil {
			return nil, err
		}
		if !input.Force {
			if _, err := u.repo.GetReceipt(ctx, clip.ClipID, input.Platform); err == nil {
				return nil, jobs.ErrAlreadyPublished
			}
		}
	}

	job := &models.Job{
		Kind:        kind,
		ClipID:      clip.ClipID,
		Platform:    input.Platform,
		Status:      models.JobStatusQueued,
		Priority:    input.Priority,
		MaxRetries:  u.cfg.Worker.MaxRetries,
		ScheduledAt: input.RunAt,
	}
	created, err := u.repo.CreateJob(ctx, job)
	if err != nil {
		u.logger.Errorf("Enqueue - CreateJob error: %v", err)
		return nil, err
	}

	if err := u.queue.NotifyJob(ctx, jobs.JobsWakeKey, created.JobID); err != nil {
		// Workers poll the store, so a missed wake-up only adds latency.
		u.logger.Warnf("Enqueue - NotifyJob error: %v", err)
	}
	if err := u.queue.CacheProgress(ctx, created.JobID, models.JobStatusQueued, 0); err != nil {
		u.logger.Warnf("Enqueue - CacheProgress error: %v", err)
	}

	u.logger.Infof("enqueued %s job %s for clip %s", created.Kind, created.JobID, created.ClipID)
	return created, nil
}

// resolveClip finds the referenced clip or registers one from source_path.
// Registration is content-addressed by the run fingerprint so enqueueing the
// same source twice reuses the existing clip record.
func (u *jobsUC) resolveClip(ctx context.Context, input *models.EnqueueInput) (*models.Clip, error) {
	if input.ClipID != "" {
		clip, err := u.repo.GetClipByID(ctx, input.ClipID)
		if err != nil {
			return nil, err
		}
		return clip, nil
	}
	if input.SourcePath == "" {
		return nil, errors.Wrap(jobs.ErrInvalidRequest, "clip_id or source_path is required")
	}
	fingerprint := pipeline.Fingerprint(pipeline.FingerprintParams{
		SourcePath:  input.SourcePath,
		MinDurSec:   u.cfg.Pipeline.MinClipSec,
		MaxDurSec:   u.cfg.Pipeline.MaxClipSec,
		TopN:        u.cfg.Pipeline.TopClips,
		Language:    u.cfg.Pipeline.Language,
		Style:       u.cfg.Pipeline.Style,
		TTSProvider: u.cfg.Providers.TTSProvider,
		AIProvider:  u.cfg.Providers.AIProvider,
	})
	clip, err := u.repo.CreateClip(ctx, &models.Clip{
		SourcePath:   input.SourcePath,
		LocalPath:    input.SourcePath,
		RemoteFileID: input.RemoteFileID,
		Fingerprint:  fingerprint,
	})
	if err != nil {
		u.logger.Errorf("Enqueue - CreateClip error: %v", err)
		return nil, err
	}
	return clip, nil
}

// GetStatus reads the job from the store and overlays the cached progress,
// which may run ahead of the last store write while the job is running.
func (u *jobsUC) GetStatus(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := u.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobStatusRunning {
		if status, progress, err := u.queue.GetCachedProgress(ctx, jobID); err == nil && status == models.JobStatusRunning {
			job.SetProgress(progress)
		}
	}
	return job, nil
}

func (u *jobsUC) Cancel(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := u.repo.CancelJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := u.queue.CacheProgress(ctx, jobID, models.JobStatusCancelled, job.Progress); err != nil {
		u.logger.Warnf("Cancel - CacheProgress error: %v", err)
	}
	u.logger.Infof("cancelled job %s", jobID)
	return job, nil
}

// Retry requeues an errored job for an immediate attempt. The store enforces
// both the error-status precondition and the retry budget.
func (u *jobsUC) Retry(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := u.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusError {
		return nil, jobs.ErrInvalidTransition
	}
	requeued, err := u.repo.RequeueJob(ctx, jobID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := u.queue.NotifyJob(ctx, jobs.JobsWakeKey, jobID); err != nil {
		u.logger.Warnf("Retry - NotifyJob error: %v", err)
	}
	if err := u.queue.CacheProgress(ctx, jobID, models.JobStatusQueued, 0); err != nil {
		u.logger.Warnf("Retry - CacheProgress error: %v", err)
	}
	u.logger.Infof("requeued job %s (attempt %d/%d)", jobID, requeued.RetryCount+1, requeued.MaxRetries+1)
	return requeued, nil
}

func (u *jobsUC) ListJobs(ctx context.Context, pq *utils.Pagination) (*models.JobList, error) {
	return u.repo.ListJobs(ctx, pq)
}

func (u *jobsUC) StageResults(ctx context.Context, jobID string) ([]*models.StageResult, error) {
	if _, err := u.repo.GetJobByID(ctx, jobID); err != nil {
		return nil, err
	}
	return u.repo.ListStageResults(ctx, jobID)
}
