package http

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/clipforge/shorts-engine/internal/jobs"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/pkg/logger"
	"github.com/clipforge/shorts-engine/pkg/utils"
	"github.com/labstack/echo/v4"
)

type jobsHandler struct {
	jobsUC jobs.UseCase
	logger logger.Logger
}

func NewJobsHandler(jobsUC jobs.UseCase, log logger.Logger) jobs.Handler {
	return &jobsHandler{jobsUC: jobsUC, logger: log}
}

func (h *jobsHandler) Enqueue() echo.HandlerFunc {
	return func(c echo.Context) error {
		input := &models.EnqueueInput{}
		if err := c.Bind(input); err != nil {
			return utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request payload")
		}
		job, err := h.jobsUC.Enqueue(c.Request().Context(), input)
		if err != nil {
			return utils.ErrorResponse(c, statusFromErr(err), err.Error())
		}
		return c.JSON(http.StatusCreated, job)
	}
}

func (h *jobsHandler) GetStatus() echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := h.jobsUC.GetStatus(c.Request().Context(), c.Param("job_id"))
		if err != nil {
			return utils.ErrorResponse(c, statusFromErr(err), err.Error())
		}
		return c.JSON(http.StatusOK, job)
	}
}

func (h *jobsHandler) Cancel() echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := h.jobsUC.Cancel(c.Request().Context(), c.Param("job_id"))
		if err != nil {
			return utils.ErrorResponse(c, statusFromErr(err), err.Error())
		}
		return c.JSON(http.StatusOK, job)
	}
}

func (h *jobsHandler) Retry() echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := h.jobsUC.Retry(c.Request().Context(), c.Param("job_id"))
		if err != nil {
			return utils.ErrorResponse(c, statusFromErr(err), err.Error())
		}
		return c.JSON(http.StatusOK, job)
	}
}

func (h *jobsHandler) ListJobs() echo.HandlerFunc {
	return func(c echo.Context) error {
		pagination, err := utils.GetPaginationFromCtx(c)
		if err != nil {
			return utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		}
		list, err := h.jobsUC.ListJobs(c.Request().Context(), pagination)
		if err != nil {
			return utils.ErrorResponse(c, statusFromErr(err), err.Error())
		}
		return c.JSON(http.StatusOK, list)
	}
}

func (h *jobsHandler) StageResults() echo.HandlerFunc {
	return func(c echo.Context) error {
		results, err := h.jobsUC.StageResults(c.Request().Context(), c.Param("job_id"))
		if err != nil {
			return utils.ErrorResponse(c, statusFromErr(err), err.Error())
		}
		return c.JSON(http.StatusOK, results)
	}
}

// statusFromErr maps use-case sentinels onto HTTP statuses.
func statusFromErr(err error) int {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrAlreadyPublished),
		errors.Is(err, jobs.ErrInvalidTransition),
		errors.Is(err, jobs.ErrRetryExhausted),
		errors.Is(err, jobs.ErrAlreadyClaimed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
