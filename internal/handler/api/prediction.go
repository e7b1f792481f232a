package api

import (
	"context"
	"time"

	"TokenRank/internal/domain/models"
	"TokenRank/internal/usecase"
	xhttp "TokenRank/pkg/http"
	xlogger "TokenRank/pkg/logger"

	"github.com/labstack/echo/v4"
)

// StrategySource resolves strategies and builds their pipelines.
type StrategySource interface {
	ForStrategy(name string, opts ...usecase.PipelineOption) (*usecase.PredictionPipeline, error)
	Strategy(name string) models.StrategyConfig
	StrategyNames() []string
	DefaultStrategy() string
}

type PredictionHandler struct {
	logger      *xlogger.Logger
	strategies  StrategySource
	timeout     time.Duration
	middlewares []echo.MiddlewareFunc
	now         func() time.Time
}

func NewPredictionHandler(logger *xlogger.Logger, strategies StrategySource, timeout time.Duration, mws ...echo.MiddlewareFunc) *PredictionHandler {
	return &PredictionHandler{
		logger:      logger,
		strategies:  strategies,
		timeout:     timeout,
		middlewares: mws,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (h *PredictionHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1", h.middlewares...)
	g.POST("/predict", h.Predict)
	g.GET("/strategies", h.Strategies)
}

// Predict ranks the requested symbols. An empty result is a valid answer.
func (h *PredictionHandler) Predict(c echo.Context) error {
	req := &models.PredictHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	at := h.now()
	if req.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("timestamp must be RFC3339").WithError(err))
		}
		at = t.UTC()
	}

	pipeline, err := h.strategies.ForStrategy(req.Strategy)
	if err != nil {
		h.logger.Error("build pipeline", xlogger.String("strategy", req.Strategy), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("strategy is misconfigured").WithError(err))
	}

	ctx := c.Request().Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	results := pipeline.Predict(ctx, models.PredictRequest{
		Symbols:   req.Symbols,
		Timestamp: at,
		RoundID:   req.RoundID,
	})
	if results == nil {
		results = []models.RankedResult{}
	}
	return xhttp.SuccessResponse(c, models.PredictHTTPResponse{
		RoundID:   req.RoundID,
		Strategy:  pipeline.Strategy(),
		Timestamp: at,
		Results:   results,
	})
}

func (h *PredictionHandler) Strategies(c echo.Context) error {
	names := h.strategies.StrategyNames()
	def := h.strategies.DefaultStrategy()
	out := make([]models.StrategyView, 0, len(names))
	for _, name := range names {
		s := h.strategies.Strategy(name)
		out = append(out, models.StrategyView{
			Name:          name,
			Default:       name == def,
			Weights:       s.Weights,
			Normalization: s.Normalization,
		})
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}
