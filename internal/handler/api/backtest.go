package api

import (
	"context"
	"errors"

	"TokenRank/internal/domain/models"
	"TokenRank/internal/usecase"
	xhttp "TokenRank/pkg/http"
	xlogger "TokenRank/pkg/logger"

	"github.com/labstack/echo/v4"
)

type Backtester interface {
	Backtest(ctx context.Context, strategy string, limit int) (models.BacktestReport, string, error)
	GridSearch(ctx context.Context, strategy string, limit int, grid []models.GridAxis) ([]models.GridSearchResult, string, error)
}

type JobQueue interface {
	Submit(ctx context.Context, p models.BacktestJobPayload) (models.JobStatus, error)
	Status(ctx context.Context, id string) (models.JobStatus, error)
}

type backtestResponse struct {
	ReportID string                    `json:"report_id,omitempty"`
	Report   *models.BacktestReport    `json:"report,omitempty"`
	Results  []models.GridSearchResult `json:"results,omitempty"`
}

type BacktestHandler struct {
	logger      *xlogger.Logger
	backtester  Backtester
	jobs        JobQueue
	middlewares []echo.MiddlewareFunc
}

// NewBacktestHandler accepts a nil jobs queue; async requests are then refused.
func NewBacktestHandler(logger *xlogger.Logger, backtester Backtester, jobs JobQueue, mws ...echo.MiddlewareFunc) *BacktestHandler {
	return &BacktestHandler{logger: logger, backtester: backtester, jobs: jobs, middlewares: mws}
}

func (h *BacktestHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/backtests", h.middlewares...)
	g.POST("", h.Run)
	g.GET("/jobs/:id", h.JobStatus)
}

// Run executes a backtest, or a grid search when axes are given. With
// async set the run is queued and the job status is returned.
func (h *BacktestHandler) Run(c echo.Context) error {
	req := &models.BacktestHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	kind := models.JobKindBacktest
	if len(req.Grid) > 0 {
		kind = models.JobKindGrid
	}
	ctx := c.Request().Context()

	if req.Async {
		if h.jobs == nil {
			return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("async backtests are disabled"))
		}
		status, err := h.jobs.Submit(ctx, models.BacktestJobPayload{
			Kind:     kind,
			Strategy: req.Strategy,
			Limit:    req.Limit,
			Grid:     req.Grid,
		})
		if err != nil {
			h.logger.Error("submit backtest job", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("could not queue backtest").WithError(err))
		}
		return xhttp.AcceptedResponse(c, status)
	}

	if kind == models.JobKindGrid {
		results, id, err := h.backtester.GridSearch(ctx, req.Strategy, req.Limit, req.Grid)
		if err != nil {
			return h.fail(c, "grid search", err)
		}
		if !req.IncludeRounds {
			for i := range results {
				results[i].Metrics.Rounds = nil
			}
		}
		return xhttp.SuccessResponse(c, backtestResponse{ReportID: id, Results: results})
	}

	report, id, err := h.backtester.Backtest(ctx, req.Strategy, req.Limit)
	if err != nil {
		return h.fail(c, "backtest", err)
	}
	if !req.IncludeRounds {
		report.Rounds = nil
	}
	return xhttp.SuccessResponse(c, backtestResponse{ReportID: id, Report: &report})
}

func (h *BacktestHandler) JobStatus(c echo.Context) error {
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("async backtests are disabled"))
	}
	id := c.Param("id")
	status, err := h.jobs.Status(c.Request().Context(), id)
	if errors.Is(err, usecase.ErrJobNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("job %s not found", id))
	}
	if err != nil {
		h.logger.Error("read job status", xlogger.String("job_id", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("job status unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *BacktestHandler) fail(c echo.Context, op string, err error) error {
	h.logger.Error(op, xlogger.Error(err))
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError(op+" timed out").WithError(err))
	}
	return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError(op+" failed").WithError(err))
}
