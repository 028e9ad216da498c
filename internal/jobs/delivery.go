package jobs

import "github.com/labstack/echo/v4"

// Handler maps the use case onto HTTP endpoints.
type Handler interface {
	Enqueue() echo.HandlerFunc
	GetStatus() echo.HandlerFunc
	Cancel() echo.HandlerFunc
	Retry() echo.HandlerFunc
	ListJobs() echo.HandlerFunc
	StageResults() echo.HandlerFunc
}
