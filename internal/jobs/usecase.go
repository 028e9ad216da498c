package jobs

import (
	"context"

	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/pkg/utils"
)

// UseCase is the orchestrator's boundary exposed to the API layer.
type UseCase interface {
	Enqueue(ctx context.Context, input *models.EnqueueInput) (*models.Job, error)
	GetStatus(ctx context.Context, jobID string) (*models.Job, error)
	Cancel(ctx context.Context, jobID string) (*models.Job, error)
	Retry(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, pq *utils.Pagination) (*models.JobList, error)
	StageResults(ctx context.Context, jobID string) ([]*models.StageResult, error)
}
