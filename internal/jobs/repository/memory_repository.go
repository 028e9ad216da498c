package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/shorts-engine/internal/jobs"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/pkg/utils"
)

// MemoryRepo is an in-memory Job Store used in tests and single-process
// development runs. It applies the same status compare-and-set semantics
// as the Postgres repository.
type MemoryRepo struct {
	mu           sync.Mutex
	jobs         map[string]*models.Job
	stageResults []*models.StageResult
	clips        map[string]*models.Clip
	receipts     []*models.PublishReceipt
	nextStageID  int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		jobs:  make(map[string]*models.Job),
		clips: make(map[string]*models.Clip),
	}
}

var _ jobs.Repository = (*MemoryRepo)(nil)

func (m *MemoryRepo) CreateJob(_ context.Context, job *models.Job) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	now := time.Now().UTC()
	stored := *job
	stored.Status = models.JobStatusQueued
	stored.Progress = 0
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.jobs[stored.JobID] = &stored
	cp := stored
	return &cp, nil
}

func (m *MemoryRepo) GetJobByID(_ context.Context, jobID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryRepo) ListJobs(_ context.Context, pq *utils.Pagination) (*models.JobList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*models.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		cp := *job
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	offset := pq.GetOffset()
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + pq.GetLimit()
	if end > len(all) {
		end = len(all)
	}
	return &models.JobList{
		Jobs:       all[offset:end],
		TotalCount: len(all),
		Page:       pq.GetPage(),
		PageSize:   pq.GetSize(),
		HasMore:    utils.GetHasMore(pq.GetPage(), len(all), pq.GetSize()),
	}, nil
}

func (m *MemoryRepo) ListDue(_ context.Context, now time.Time, limit int) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*models.Job
	for _, job := range m.jobs {
		if job.Status != models.JobStatusQueued {
			continue
		}
		if job.ScheduledAt != nil && job.ScheduledAt.After(now) {
			continue
		}
		cp := *job
		due = append(due, &cp)
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority < due[j].Priority
		}
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MemoryRepo) ClaimJob(_ context.Context, jobID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != models.JobStatusQueued {
		return nil, jobs.ErrAlreadyClaimed
	}
	now := time.Now().UTC()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	job.UpdatedAt = now
	cp := *job
	return &cp, nil
}

func (m *MemoryRepo) UpdateProgress(_ context.Context, jobID string, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return jobs.ErrNotFound
	}
	if job.Status != models.JobStatusRunning {
		return nil
	}
	job.SetProgress(progress)
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepo) CompleteJob(_ context.Context, jobID string, resultJSON string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != models.JobStatusRunning {
		return jobs.ErrInvalidTransition
	}
	now := time.Now().UTC()
	job.Status = models.JobStatusDone
	job.Progress = 100
	job.ResultJSON = resultJSON
	job.LastError = ""
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

func (m *MemoryRepo) FailJob(_ context.Context, jobID string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != models.JobStatusRunning {
		return jobs.ErrInvalidTransition
	}
	now := time.Now().UTC()
	job.Status = models.JobStatusError
	job.ResultJSON = ""
	job.LastError = errMsg
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

func (m *MemoryRepo) RequeueJob(_ context.Context, jobID string, runAt time.Time) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != models.JobStatusError || job.RetryCount >= job.MaxRetries {
		return nil, jobs.ErrRetryExhausted
	}
	job.ResetForRetry(runAt)
	job.UpdatedAt = time.Now().UTC()
	cp := *job
	return &cp, nil
}

func (m *MemoryRepo) CancelJob(_ context.Context, jobID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	if job.Status != models.JobStatusQueued && job.Status != models.JobStatusRunning {
		return nil, jobs.ErrInvalidTransition
	}
	now := time.Now().UTC()
	job.Status = models.JobStatusCancelled
	job.CompletedAt = &now
	job.UpdatedAt = now
	cp := *job
	return &cp, nil
}

func (m *MemoryRepo) IsCancelled(_ context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return false, jobs.ErrNotFound
	}
	return job.Status == models.JobStatusCancelled, nil
}

func (m *MemoryRepo) AppendStageResult(_ context.Context, result *models.StageResult) (*models.StageResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextStageID++
	stored := *result
	stored.ID = m.nextStageID
	stored.CreatedAt = time.Now().UTC()
	stored.EncodeArtifacts()
	m.stageResults = append(m.stageResults, &stored)
	cp := stored
	cp.DecodeArtifacts()
	return &cp, nil
}

func (m *MemoryRepo) ListStageResults(_ context.Context, jobID string) ([]*models.StageResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []*models.StageResult
	for _, r := range m.stageResults {
		if r.JobID != jobID {
			continue
		}
		cp := *r
		cp.DecodeArtifacts()
		results = append(results, &cp)
	}
	return results, nil
}

func (m *MemoryRepo) GetStageResult(_ context.Context, fingerprint, stage, scope string) (*models.StageResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.stageResults) - 1; i >= 0; i-- {
		r := m.stageResults[i]
		if r.Fingerprint == fingerprint && r.Stage == stage && r.Scope == scope && r.Success {
			cp := *r
			cp.DecodeArtifacts()
			return &cp, nil
		}
	}
	return nil, jobs.ErrNotFound
}

func (m *MemoryRepo) CreateClip(_ context.Context, clip *models.Clip) (*models.Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.clips {
		if existing.Fingerprint == clip.Fingerprint {
			existing.DurationSec = clip.DurationSec
			existing.FileSizeBytes = clip.FileSizeBytes
			cp := *existing
			return &cp, nil
		}
	}
	if clip.ClipID == "" {
		clip.ClipID = uuid.New().String()
	}
	stored := *clip
	stored.CreatedAt = time.Now().UTC()
	m.clips[stored.ClipID] = &stored
	cp := stored
	return &cp, nil
}

func (m *MemoryRepo) GetClipByID(_ context.Context, clipID string) (*models.Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clip, ok := m.clips[clipID]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	cp := *clip
	return &cp, nil
}

func (m *MemoryRepo) GetClipByFingerprint(_ context.Context, fingerprint string) (*models.Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, clip := range m.clips {
		if clip.Fingerprint == fingerprint {
			cp := *clip
			return &cp, nil
		}
	}
	return nil, jobs.ErrNotFound
}

func (m *MemoryRepo) CreateReceipt(_ context.Context, receipt *models.PublishReceipt) (*models.PublishReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if receipt.ReceiptID == "" {
		receipt.ReceiptID = uuid.New().String()
	}
	stored := *receipt
	stored.CreatedAt = time.Now().UTC()
	m.receipts = append(m.receipts, &stored)
	cp := stored
	return &cp, nil
}

func (m *MemoryRepo) GetReceipt(_ context.Context, clipID, platform string) (*models.PublishReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.receipts) - 1; i >= 0; i-- {
		if m.receipts[i].ClipID == clipID && m.receipts[i].Platform == platform {
			cp := *m.receipts[i]
			return &cp, nil
		}
	}
	return nil, jobs.ErrNotFound
}

// ReceiptCount reports how many receipts exist for a (clip, platform)
// pair; used by tests asserting at-most-one publish.
func (m *MemoryRepo) ReceiptCount(clipID, platform string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, r := range m.receipts {
		if r.ClipID == clipID && r.Platform == platform {
			count++
		}
	}
	return count
}
