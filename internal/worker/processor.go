package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/clipforge/shorts-engine/internal/jobs"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/internal/pipeline"
	"github.com/clipforge/shorts-engine/internal/stages"
)

// process drives one claimed job to a terminal status. Only this worker may
// transition the job while the claim holds; cancellation is observed between
// stages by the pipeline and surfaces as pipeline.ErrCancelled, in which case
// the store already holds the cancelled status and no further write happens.
func (w *Worker) process(ctx context.Context, job *models.Job) {
	w.logger.Infof("job %s: claimed (%s, attempt %d/%d)", job.JobID, job.Kind, job.RetryCount+1, job.MaxRetries+1)
	w.reportProgress(ctx, job.JobID, 5)

	var resultJSON string
	var err error
	switch job.Kind {
	case models.JobKindProcessClip:
		resultJSON, err = w.processClip(ctx, job)
	case models.JobKindPublishContent:
		resultJSON, err = w.processPublish(ctx, job)
	default:
		err = stages.NewPermanent("dispatch", "unknown job kind "+string(job.Kind), nil)
	}

	w.finish(ctx, job, resultJSON, err)
}

func (w *Worker) processClip(ctx context.Context, job *models.Job) (string, error) {
	clip, err := w.repo.GetClipByID(ctx, job.ClipID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			return "", stages.NewPermanent("dispatch", "clip not found: "+job.ClipID, err)
		}
		return "", stages.NewTransient("dispatch", "failed to load clip", err)
	}
	if err := w.localizeSource(ctx, clip); err != nil {
		return "", err
	}
	return w.runner.Run(ctx, job, clip, func(percent int) {
		w.reportProgress(ctx, job.JobID, percent)
	})
}

// localizeSource downloads a remote-sourced clip into the work directory
// before the pipeline touches it. Already-downloaded sources are reused.
func (w *Worker) localizeSource(ctx context.Context, clip *models.Clip) error {
	if !clip.IsRemote() || clip.LocalPath != clip.SourcePath {
		return nil
	}
	if w.store == nil {
		return stages.NewPermanent("dispatch", "remote source but no object store configured", nil)
	}
	dir := filepath.Join(w.cfg.Pipeline.WorkDir, "sources")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return stages.NewPermanent("dispatch", "failed to create sources dir", err)
	}
	local := filepath.Join(dir, filepath.Base(clip.SourcePath))
	if _, err := os.Stat(local); err == nil {
		clip.LocalPath = local
		return nil
	}
	downloaded, err := w.store.Download(ctx, clip.RemoteFileID, local)
	if err != nil {
		return stages.NewTransient("dispatch", "failed to download source", err)
	}
	clip.LocalPath = downloaded
	return nil
}

// finish applies the terminal transition for this attempt. Transient errors
// consume one attempt and reschedule with exponential backoff; everything
// else lands on error for the operator to inspect.
func (w *Worker) finish(ctx context.Context, job *models.Job, resultJSON string, err error) {
	if err == nil {
		if cerr := w.repo.CompleteJob(ctx, job.JobID, resultJSON); cerr != nil {
			w.logger.Errorf("job %s: failed to mark done: %v", job.JobID, cerr)
			return
		}
		w.cacheStatus(ctx, job.JobID, models.JobStatusDone, 100)
		w.logger.Infof("job %s: done", job.JobID)
		return
	}

	if errors.Is(err, pipeline.ErrCancelled) {
		w.logger.Infof("job %s: cancelled mid-run, stopping", job.JobID)
		w.cacheStatus(ctx, job.JobID, models.JobStatusCancelled, job.Progress)
		return
	}

	w.logger.Warnf("job %s: attempt failed: %v", job.JobID, err)
	if ferr := w.repo.FailJob(ctx, job.JobID, err.Error()); ferr != nil {
		// A concurrent cancel wins the race; the status is already terminal.
		w.logger.Warnf("job %s: failed to record error status: %v", job.JobID, ferr)
		return
	}

	if stages.IsRetryable(err) && job.CanRetry() {
		runAt := time.Now().UTC().Add(backoffDelay(w.cfg.Worker.BackoffBaseMS, w.cfg.Worker.BackoffCapMS, job.RetryCount))
		requeued, rerr := w.repo.RequeueJob(ctx, job.JobID, runAt)
		if rerr != nil {
			w.logger.Errorf("job %s: failed to requeue: %v", job.JobID, rerr)
			w.cacheStatus(ctx, job.JobID, models.JobStatusError, job.Progress)
			return
		}
		w.cacheStatus(ctx, job.JobID, models.JobStatusQueued, 0)
		w.logger.Infof("job %s: requeued for %s (attempt %d/%d)", job.JobID, runAt.Format(time.RFC3339), requeued.RetryCount+1, requeued.MaxRetries+1)
		return
	}

	w.cacheStatus(ctx, job.JobID, models.JobStatusError, job.Progress)
	if stage := stages.StageOf(err); stage != "" {
		w.logger.Errorf("job %s: terminal failure in %s stage: %v", job.JobID, stage, err)
	} else {
		w.logger.Errorf("job %s: terminal failure: %v", job.JobID, err)
	}
}

// processPublish uploads a composed clip to one platform. Receipts give
// at-most-once semantics per (clip, platform): a receipt newer than the job
// means a prior attempt of this job already published, so the receipt is
// reused instead of uploading twice. A forced republish arrives as a fresh
// job, created after the old receipt, and goes through.
func (w *Worker) processPublish(ctx context.Context, job *models.Job) (string, error) {
	clip, err := w.repo.GetClipByID(ctx, job.ClipID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			return "", stages.NewPermanent("publish", "clip not found: "+job.ClipID, err)
		}
		return "", stages.NewTransient("publish", "failed to load clip", err)
	}

	if prior, err := w.repo.GetReceipt(ctx, clip.ClipID, job.Platform); err == nil && prior.CreatedAt.After(job.CreatedAt) {
		w.logger.Infof("job %s: reusing receipt %s for %s/%s", job.JobID, prior.ReceiptID, clip.ClipID, job.Platform)
		return encodeReceipt(prior)
	}

	input, err := w.buildPublishInput(ctx, clip)
	if err != nil {
		return "", err
	}

	publisher, err := w.publishers.ForPlatform(job.Platform)
	if err != nil {
		return "", stages.NewPermanent("publish", "no adapter for platform "+job.Platform, err)
	}

	pubCtx := ctx
	if w.cfg.Publish.TimeoutSec > 0 {
		var cancel context.CancelFunc
		pubCtx, cancel = context.WithTimeout(ctx, time.Duration(w.cfg.Publish.TimeoutSec)*time.Second)
		defer cancel()
	}

	res, err := publisher.Publish(pubCtx, input)
	if err != nil {
		return "", err
	}

	receipt, err := w.repo.CreateReceipt(ctx, &models.PublishReceipt{
		ClipID:     clip.ClipID,
		Platform:   job.Platform,
		ExternalID: res.ExternalID,
		UploadURL:  res.UploadURL,
		ClipPath:   input.ClipPath,
		Title:      input.Title,
		Caption:    input.Caption,
		Hashtags:   strings.Join(input.Hashtags, " "),
		DryRun:     w.publishers.DryRun(),
	})
	if err != nil {
		return "", stages.NewTransient("publish", "failed to persist receipt", err)
	}
	w.logger.Infof("job %s: published %s to %s as %s", job.JobID, clip.ClipID, job.Platform, receipt.ExternalID)
	return encodeReceipt(receipt)
}

// buildPublishInput locates the composed video and narration metadata for a
// candidate clip. Candidate clips are content-addressed as
// "<fingerprint>:<scope>", which keys their stage results.
func (w *Worker) buildPublishInput(ctx context.Context, clip *models.Clip) (*models.PublishInput, error) {
	fingerprint, scope, ok := strings.Cut(clip.Fingerprint, ":")
	if !ok {
		return nil, stages.NewPermanent("publish", "clip "+clip.ClipID+" is not a composed candidate", nil)
	}

	composed, err := w.repo.GetStageResult(ctx, fingerprint, models.StageCompose, scope)
	if err != nil {
		return nil, stages.NewPermanent("publish", "clip "+clip.ClipID+" has no composed video", err)
	}

	input := &models.PublishInput{ClipPath: composed.FirstArtifact()}
	if prior, err := w.repo.GetStageResult(ctx, fingerprint, models.StageNarrate, scope); err == nil {
		if narration, err := stages.LoadNarration(prior.FirstArtifact()); err == nil {
			input.Title = narration.Title
			input.Caption = narration.Caption
			input.Hashtags = narration.Hashtags
		}
	}
	return input, nil
}

func (w *Worker) reportProgress(ctx context.Context, jobID string, percent int) {
	if err := w.repo.UpdateProgress(ctx, jobID, percent); err != nil {
		w.logger.Warnf("job %s: failed to persist progress %d: %v", jobID, percent, err)
	}
	w.cacheStatus(ctx, jobID, models.JobStatusRunning, percent)
}

func (w *Worker) cacheStatus(ctx context.Context, jobID string, status models.JobStatus, progress int) {
	if err := w.queue.CacheProgress(ctx, jobID, status, progress); err != nil {
		w.logger.Warnf("job %s: failed to cache progress: %v", jobID, err)
	}
}

func encodeReceipt(receipt *models.PublishReceipt) (string, error) {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode publish receipt")
	}
	return string(payload), nil
}
