package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/clipforge/shorts-engine/internal/config"
	"github.com/clipforge/shorts-engine/internal/jobs"
	"github.com/clipforge/shorts-engine/internal/jobs/repository"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/pkg/logger"
)

func testLogger() logger.Logger {
	l := logger.NewApiLogger(&config.Config{Logger: config.Logger{Level: "error"}})
	l.InitLogger()
	return l
}

func testConfig() *config.Config {
	return &config.Config{
		Worker: config.WorkerConfig{MaxRetries: 3},
		Pipeline: config.PipelineConfig{
			MinClipSec: 20,
			MaxClipSec: 60,
			TopClips:   3,
			Language:   "en",
			Style:      "energetic",
		},
		Providers: config.ProvidersConfig{
			AIProvider:  "pollinations",
			TTSProvider: "pollinations-audio",
		},
	}
}

type fakeQueue struct {
	mu             sync.Mutex
	notified       []string
	cachedStatus   models.JobStatus
	cachedProgress int
	hasCached      bool
}

func (q *fakeQueue) NotifyJob(_ context.Context, _ string, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notified = append(q.notified, jobID)
	return nil
}

func (q *fakeQueue) WaitForJob(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

func (q *fakeQueue) CacheProgress(_ context.Context, _ string, status models.JobStatus, progress int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cachedStatus = status
	q.cachedProgress = progress
	q.hasCached = true
	return nil
}

func (q *fakeQueue) GetCachedProgress(context.Context, string) (models.JobStatus, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.hasCached {
		return "", 0, jobs.ErrNotFound
	}
	return q.cachedStatus, q.cachedProgress, nil
}

func newUC(t *testing.T) (jobs.UseCase, *repository.MemoryRepo, *fakeQueue) {
	t.Helper()
	repo := repository.NewMemoryRepo()
	queue := &fakeQueue{}
	return NewJobsUseCase(testConfig(), repo, queue, testLogger()), repo, queue
}

func createClip(t *testing.T, repo *repository.MemoryRepo, fingerprint string) *models.Clip {
	t.Helper()
	clip, err := repo.CreateClip(context.Background(), &models.Clip{
		SourcePath:  "/videos/source.mp4",
		LocalPath:   "/videos/source.mp4",
		Fingerprint: fingerprint,
	})
	if err != nil {
		t.Fatal(err)
	}
	return clip
}

func TestEnqueueProcessClipWithExistingClip(t *testing.T) {
	uc, repo, queue := newUC(t)
	clip := createClip(t, repo, "fp-1")

	job, err := uc.Enqueue(context.Background(), &models.EnqueueInput{
		Kind:   string(models.JobKindProcessClip),
		ClipID: clip.ClipID,
	})
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if job.Status != models.JobStatusQueued || job.ClipID != clip.ClipID {
		t.Errorf("job = %+v", job)
	}
	if job.MaxRetries != 3 {
		t.Errorf("max retries = %d, want configured 3", job.MaxRetries)
	}
	if len(queue.notified) != 1 || queue.notified[0] != job.JobID {
		t.Errorf("workers not woken: %v", queue.notified)
	}
}

func TestEnqueueRegistersSourceInline(t *testing.T) {
	uc, _, _ := newUC(t)
	ctx := context.Background()

	first, err := uc.Enqueue(ctx, &models.EnqueueInput{
		Kind:       string(models.JobKindProcessClip),
		SourcePath: "/videos/documentary.mp4",
	})
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if first.ClipID == "" {
		t.Fatal("no clip registered")
	}

	// The same source is content-addressed to the same clip record.
	second, err := uc.Enqueue(ctx, &models.EnqueueInput{
		Kind:       string(models.JobKindProcessClip),
		SourcePath: "/videos/documentary.mp4",
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.ClipID != first.ClipID {
		t.Errorf("clip ids differ for the same source: %s vs %s", first.ClipID, second.ClipID)
	}

	other, err := uc.Enqueue(ctx, &models.EnqueueInput{
		Kind:       string(models.JobKindProcessClip),
		SourcePath: "/videos/other.mp4",
	})
	if err != nil {
		t.Fatal(err)
	}
	if other.ClipID == first.ClipID {
		t.Error("different sources share a clip record")
	}
}

func TestEnqueueValidation(t *testing.T) {
	uc, repo, _ := newUC(t)
	clip := createClip(t, repo, "fp-1")

	cases := []struct {
		name  string
		input *models.EnqueueInput
	}{
		{"unknown kind", &models.EnqueueInput{Kind: "transcode", ClipID: clip.ClipID}},
		{"missing kind", &models.EnqueueInput{ClipID: clip.ClipID}},
		{"process without clip or source", &models.EnqueueInput{Kind: string(models.JobKindProcessClip)}},
		{"publish without platform", &models.EnqueueInput{Kind: string(models.JobKindPublishContent), ClipID: clip.ClipID}},
		{"publish without clip", &models.EnqueueInput{Kind: string(models.JobKindPublishContent), Platform: "youtube"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.Enqueue(context.Background(), tc.input)
			if !errors.Is(err, jobs.ErrInvalidRequest) {
				t.Errorf("error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestEnqueuePublishDedupesByReceipt(t *testing.T) {
	uc, repo, _ := newUC(t)
	ctx := context.Background()
	clip := createClip(t, repo, "fp:candidate-0")
	if _, err := repo.CreateReceipt(ctx, &models.PublishReceipt{
		ClipID:     clip.ClipID,
		Platform:   "youtube",
		ExternalID: "yt-1",
		ClipPath:   "/work/final.mp4",
	}); err != nil {
		t.Fatal(err)
	}

	_, err := uc.Enqueue(ctx, &models.EnqueueInput{
		Kind:     string(models.JobKindPublishContent),
		ClipID:   clip.ClipID,
		Platform: "youtube",
	})
	if !errors.Is(err, jobs.ErrAlreadyPublished) {
		t.Fatalf("error = %v, want ErrAlreadyPublished", err)
	}

	// Force bypasses the receipt check.
	forced, err := uc.Enqueue(ctx, &models.EnqueueInput{
		Kind:     string(models.JobKindPublishContent),
		ClipID:   clip.ClipID,
		Platform: "youtube",
		Force:    true,
	})
	if err != nil {
		t.Fatalf("forced Enqueue() error: %v", err)
	}
	if forced.Platform != "youtube" {
		t.Errorf("forced job platform = %q", forced.Platform)
	}

	// Other platforms are independent.
	if _, err := uc.Enqueue(ctx, &models.EnqueueInput{
		Kind:     string(models.JobKindPublishContent),
		ClipID:   clip.ClipID,
		Platform: "tiktok",
	}); err != nil {
		t.Errorf("publish to another platform rejected: %v", err)
	}
}

func TestGetStatusOverlaysCachedProgress(t *testing.T) {
	uc, repo, queue := newUC(t)
	ctx := context.Background()
	clip := createClip(t, repo, "fp-1")
	created, err := repo.CreateJob(ctx, &models.Job{Kind: models.JobKindProcessClip, ClipID: clip.ClipID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.ClaimJob(ctx, created.JobID); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateProgress(ctx, created.JobID, 15); err != nil {
		t.Fatal(err)
	}
	// Cache runs ahead of the store.
	queue.cachedStatus = models.JobStatusRunning
	queue.cachedProgress = 55
	queue.hasCached = true

	job, err := uc.GetStatus(ctx, created.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if job.Progress != 55 {
		t.Errorf("progress = %d, want cached 55", job.Progress)
	}

	// A stale cache entry never regresses the stored progress.
	queue.cachedProgress = 5
	job, err = uc.GetStatus(ctx, created.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if job.Progress != 15 {
		t.Errorf("progress = %d, want stored 15", job.Progress)
	}
}

func TestGetStatusUnknownJob(t *testing.T) {
	uc, _, _ := newUC(t)
	if _, err := uc.GetStatus(context.Background(), "nope"); !errors.Is(err, jobs.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestCancelQueuedJob(t *testing.T) {
	uc, repo, queue := newUC(t)
	ctx := context.Background()
	clip := createClip(t, repo, "fp-1")
	created, err := repo.CreateJob(ctx, &models.Job{Kind: models.JobKindProcessClip, ClipID: clip.ClipID})
	if err != nil {
		t.Fatal(err)
	}

	job, err := uc.Cancel(ctx, created.JobID)
	if err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if job.Status != models.JobStatusCancelled {
		t.Errorf("status = %s, want cancelled", job.Status)
	}
	if queue.cachedStatus != models.JobStatusCancelled {
		t.Errorf("cached status = %s, want cancelled", queue.cachedStatus)
	}

	// Terminal jobs cannot be cancelled again.
	if _, err := uc.Cancel(ctx, created.JobID); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Errorf("second cancel error = %v, want ErrInvalidTransition", err)
	}
}

func TestRetryRequiresErrorStatus(t *testing.T) {
	uc, repo, queue := newUC(t)
	ctx := context.Background()
	clip := createClip(t, repo, "fp-1")
	created, err := repo.CreateJob(ctx, &models.Job{
		Kind:       models.JobKindProcessClip,
		ClipID:     clip.ClipID,
		MaxRetries: 3,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := uc.Retry(ctx, created.JobID); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("retry of queued job: error = %v, want ErrInvalidTransition", err)
	}

	if _, err := repo.ClaimJob(ctx, created.JobID); err != nil {
		t.Fatal(err)
	}
	if err := repo.FailJob(ctx, created.JobID, "boom"); err != nil {
		t.Fatal(err)
	}

	requeued, err := uc.Retry(ctx, created.JobID)
	if err != nil {
		t.Fatalf("Retry() error: %v", err)
	}
	if requeued.Status != models.JobStatusQueued || requeued.RetryCount != 1 {
		t.Errorf("requeued = %+v", requeued)
	}
	if len(queue.notified) == 0 {
		t.Error("workers not woken after retry")
	}
}

func TestRetryExhaustedBudget(t *testing.T) {
	uc, repo, _ := newUC(t)
	ctx := context.Background()
	clip := createClip(t, repo, "fp-1")
	created, err := repo.CreateJob(ctx, &models.Job{
		Kind:       models.JobKindProcessClip,
		ClipID:     clip.ClipID,
		MaxRetries: 0,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.ClaimJob(ctx, created.JobID); err != nil {
		t.Fatal(err)
	}
	if err := repo.FailJob(ctx, created.JobID, "boom"); err != nil {
		t.Fatal(err)
	}

	if _, err := uc.Retry(ctx, created.JobID); !errors.Is(err, jobs.ErrRetryExhausted) {
		t.Errorf("error = %v, want ErrRetryExhausted", err)
	}
}

func TestStageResultsRequireExistingJob(t *testing.T) {
	uc, repo, _ := newUC(t)
	ctx := context.Background()

	if _, err := uc.StageResults(ctx, "nope"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	clip := createClip(t, repo, "fp-1")
	created, err := repo.CreateJob(ctx, &models.Job{Kind: models.JobKindProcessClip, ClipID: clip.ClipID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.AppendStageResult(ctx, &models.StageResult{
		JobID:       created.JobID,
		Stage:       models.StageExtract,
		Fingerprint: "fp-1",
		Success:     true,
	}); err != nil {
		t.Fatal(err)
	}

	results, err := uc.StageResults(ctx, created.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Stage != models.StageExtract {
		t.Errorf("results = %+v", results)
	}
}
