package http

import (
	"github.com/clipforge/shorts-engine/internal/jobs"
	"github.com/labstack/echo/v4"
)

func MapJobsRoutes(jobsGroup *echo.Group, h jobs.Handler) {
	jobsGroup.POST("", h.Enqueue())
	jobsGroup.GET("", h.ListJobs())
	jobsGroup.GET("/:job_id", h.GetStatus())
	jobsGroup.POST("/:job_id/cancel", h.Cancel())
	jobsGroup.POST("/:job_id/retry", h.Retry())
	jobsGroup.GET("/:job_id/stages", h.StageResults())
}
