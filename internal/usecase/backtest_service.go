package usecase

import (
	"context"
	"fmt"
	"time"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	"TokenRank/pkg/logger"

	"github.com/google/uuid"
)

// StrategyResolver turns a strategy name into its config, falling back to the default.
type StrategyResolver interface {
	Strategy(name string) models.StrategyConfig
}

// BacktestService loads settled rounds, runs a backtest or grid search and
// persists the report.
type BacktestService struct {
	strategies StrategyResolver
	engine     *BacktestEngine
	grid       *GridSearchRunner
	rounds     domrepo.RoundStore
	reports    domrepo.ReportStore
	log        *logger.Logger
	now        func() time.Time
	newID      func() string
}

// NewBacktestService accepts a nil report store; reports are then not persisted.
func NewBacktestService(
	strategies StrategyResolver,
	engine *BacktestEngine,
	grid *GridSearchRunner,
	rounds domrepo.RoundStore,
	reports domrepo.ReportStore,
	log *logger.Logger,
) *BacktestService {
	if log == nil {
		log = logger.NewNop()
	}
	return &BacktestService{
		strategies: strategies,
		engine:     engine,
		grid:       grid,
		rounds:     rounds,
		reports:    reports,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// Backtest runs the named strategy over the latest limit rounds and returns
// the report and its stored id.
func (s *BacktestService) Backtest(ctx context.Context, strategy string, limit int) (models.BacktestReport, string, error) {
	cfg := s.strategies.Strategy(strategy)
	rounds, err := s.rounds.ListRounds(ctx, limit)
	if err != nil {
		return models.BacktestReport{}, "", fmt.Errorf("list rounds: %w", err)
	}

	report := s.engine.RunBacktest(ctx, rounds, cfg)
	if err := ctx.Err(); err != nil {
		return report, "", err
	}

	id := s.save(ctx, models.StoredReport{
		Kind:     models.JobKindBacktest,
		Strategy: cfg.Name,
		Payload:  report,
	})
	return report, id, nil
}

// GridSearch sweeps grid around the named strategy.
func (s *BacktestService) GridSearch(ctx context.Context, strategy string, limit int, grid []models.GridAxis) ([]models.GridSearchResult, string, error) {
	if len(grid) == 0 {
		return nil, "", fmt.Errorf("grid search needs at least one axis")
	}
	for _, axis := range grid {
		if axis.Name == "" || len(axis.Values) == 0 {
			return nil, "", fmt.Errorf("grid axis %q has no values", axis.Name)
		}
	}

	cfg := s.strategies.Strategy(strategy)
	rounds, err := s.rounds.ListRounds(ctx, limit)
	if err != nil {
		return nil, "", fmt.Errorf("list rounds: %w", err)
	}

	results := s.grid.GridSearch(ctx, rounds, cfg, grid)
	if err := ctx.Err(); err != nil {
		return results, "", err
	}

	params := make(map[string]interface{}, len(grid))
	for _, axis := range grid {
		params[axis.Name] = axis.Values
	}
	id := s.save(ctx, models.StoredReport{
		Kind:       models.JobKindGrid,
		Strategy:   cfg.Name,
		Parameters: params,
		Payload:    results,
	})
	return results, id, nil
}

// save returns "" when the report could not be stored.
func (s *BacktestService) save(ctx context.Context, r models.StoredReport) string {
	if s.reports == nil {
		return ""
	}
	r.ID = s.newID()
	r.CreatedAt = s.now()
	if err := s.reports.SaveReport(ctx, r); err != nil {
		s.log.Error("save backtest report",
			logger.String("kind", r.Kind),
			logger.String("strategy", r.Strategy),
			logger.Error(err))
		return ""
	}
	return r.ID
}
