package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	jobsHttp "github.com/clipforge/shorts-engine/internal/jobs/delivery/http"
	jobsRepository "github.com/clipforge/shorts-engine/internal/jobs/repository"
	jobsUsecase "github.com/clipforge/shorts-engine/internal/jobs/usecase"
	"github.com/clipforge/shorts-engine/pkg/utils"
)

func (s *Server) MapHandlers(e *echo.Echo) error {
	jRepo := jobsRepository.NewJobsRepo(s.db)
	jQueueRepo := jobsRepository.NewJobsQueueRepo(s.redisClient)

	jobsUC := jobsUsecase.NewJobsUseCase(s.cfg, jRepo, jQueueRepo, s.logger)
	jobsHandlers := jobsHttp.NewJobsHandler(jobsUC, s.logger)

	v1 := e.Group("/api/v1")
	health := v1.Group("/health")
	jobsGroup := v1.Group("/jobs")

	jobsHttp.MapJobsRoutes(jobsGroup, jobsHandlers)
	health.GET("", func(c echo.Context) error {
		s.logger.Infof("Health check RequestID: %s", utils.GetRequestID(c))
		return c.JSON(http.StatusOK, map[string]string{"status": "OK"})
	})
	return nil
}
