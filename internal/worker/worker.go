package worker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/clipforge/shorts-engine/internal/config"
	"github.com/clipforge/shorts-engine/internal/jobs"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/internal/pipeline"
	"github.com/clipforge/shorts-engine/internal/publish"
	"github.com/clipforge/shorts-engine/internal/remote"
	"github.com/clipforge/shorts-engine/pkg/logger"
	"github.com/clipforge/shorts-engine/pkg/utils"
)

// claimBatch bounds how many due jobs a worker scans per claim attempt.
const claimBatch = 10

// ClipRunner processes one claimed process-clip job end to end and returns
// the encoded result payload. *pipeline.Pipeline is the production runner.
type ClipRunner interface {
	Run(ctx context.Context, job *models.Job, clip *models.Clip, report pipeline.ProgressFunc) (string, error)
}

// Publishers resolves platform adapters. *publish.Registry is the production
// implementation.
type Publishers interface {
	ForPlatform(platform string) (publish.Publisher, error)
	DryRun() bool
}

// Worker owns a pool of goroutines that claim due jobs from the store and
// drive them to a terminal status. Claims go through the store's
// compare-and-set so a pool of any size across any number of processes never
// double-processes a job.
type Worker struct {
	cfg        *config.Config
	logger     logger.Logger
	repo       jobs.Repository
	queue      jobs.QueueRepository
	runner     ClipRunner
	publishers Publishers
	store      remote.Store
	wg         sync.WaitGroup
}

// NewWorker builds the pool. store may be nil when no object store is
// configured; remote-sourced clips then fail their jobs as permanent.
func NewWorker(
	cfg *config.Config,
	logger logger.Logger,
	repo jobs.Repository,
	queue jobs.QueueRepository,
	runner ClipRunner,
	publishers Publishers,
	store remote.Store,
) *Worker {
	return &Worker{
		cfg:        cfg,
		logger:     logger,
		repo:       repo,
		queue:      queue,
		runner:     runner,
		publishers: publishers,
		store:      store,
	}
}

// Start launches the worker pool. Workers run until ctx is cancelled; Wait
// blocks until they drain.
func (w *Worker) Start(ctx context.Context) {
	count := w.cfg.Worker.WorkerCount
	if count < 1 {
		count = 1
	}
	w.logger.Infof("starting %d workers", count)
	for i := 0; i < count; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Wait blocks until every worker goroutine has exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, id int) {
	defer w.wg.Done()
	poll := w.pollInterval()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if ok, usage := utils.CheckCPUUsage(w.cfg.Worker.MaxCPUUsage); !ok {
			w.logger.Infof("worker %d: cpu usage %.1f%% over limit, backing off", id, usage)
			w.sleep(ctx, poll)
			continue
		}

		job, err := w.claimNext(ctx)
		if err != nil {
			w.logger.Errorf("worker %d: claim scan failed: %v", id, err)
			w.sleep(ctx, poll)
			continue
		}
		if job == nil {
			// Nothing due. Block on the wake list until an enqueue lands or
			// the poll interval elapses, whichever comes first; scheduled
			// jobs becoming due are caught by the poll.
			if _, err := w.queue.WaitForJob(ctx, jobs.JobsWakeKey, poll); err != nil && ctx.Err() == nil {
				w.logger.Warnf("worker %d: wake wait failed: %v", id, err)
				w.sleep(ctx, poll)
			}
			continue
		}

		w.process(ctx, job)
	}
}

// claimNext scans due jobs in priority order and races for the first claim.
// Losing the compare-and-set to another worker is not an error.
func (w *Worker) claimNext(ctx context.Context) (*models.Job, error) {
	due, err := w.repo.ListDue(ctx, time.Now().UTC(), claimBatch)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list due jobs")
	}
	for _, candidate := range due {
		claimed, err := w.repo.ClaimJob(ctx, candidate.JobID)
		if err != nil {
			if errors.Is(err, jobs.ErrAlreadyClaimed) || errors.Is(err, jobs.ErrNotFound) {
				continue
			}
			return nil, errors.Wrapf(err, "failed to claim job %s", candidate.JobID)
		}
		return claimed, nil
	}
	return nil, nil
}

func (w *Worker) pollInterval() time.Duration {
	if w.cfg.Worker.PollInterval <= 0 {
		return 5 * time.Second
	}
	return time.Duration(w.cfg.Worker.PollInterval) * time.Second
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
