package usecase

import (
	"context"
	"fmt"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	"TokenRank/pkg/logger"
	"TokenRank/pkg/metrics"
)

// BacktestEngine replays a strategy over settled rounds.
type BacktestEngine struct {
	builder  PipelineBuilder
	outcomes domrepo.OutcomeStore
	payoff   PayoffModel
	metrics  domrepo.Metrics
	log      *logger.Logger
}

func NewBacktestEngine(builder PipelineBuilder, outcomes domrepo.OutcomeStore, payoff PayoffModel, m domrepo.Metrics, log *logger.Logger) *BacktestEngine {
	if payoff == nil {
		payoff = BinaryPayoff{}
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &BacktestEngine{builder: builder, outcomes: outcomes, payoff: payoff, metrics: m, log: log}
}

// RunBacktest never fails; a strategy that cannot be built yields a zeroed report.
func (e *BacktestEngine) RunBacktest(ctx context.Context, rounds []models.HistoricalRound, cfg models.StrategyConfig) models.BacktestReport {
	report, err := e.run(ctx, rounds, cfg)
	if err != nil {
		e.log.Error("backtest aborted", logger.String("strategy", cfg.Name), logger.Error(err))
		return models.BacktestReport{Strategy: cfg.Name, InputRounds: len(rounds)}
	}
	return report
}

func (e *BacktestEngine) run(ctx context.Context, rounds []models.HistoricalRound, cfg models.StrategyConfig) (models.BacktestReport, error) {
	predictor, err := e.builder.BuildPredictor(cfg)
	if err != nil {
		return models.BacktestReport{}, fmt.Errorf("build predictor: %w", err)
	}

	evaluated := make([]models.BacktestRound, 0, len(rounds))
	for _, r := range rounds {
		if ctx.Err() != nil {
			e.log.Warn("backtest cancelled",
				logger.String("strategy", cfg.Name),
				logger.Int("evaluated", len(evaluated)))
			break
		}
		br, ok := e.evaluate(ctx, predictor, r)
		if ok {
			evaluated = append(evaluated, br)
		}
	}

	report := ComputeReport(cfg.Name, len(rounds), evaluated)
	e.metrics.RecordBacktest(cfg.Name, report.TotalRounds, report.WinRate)
	e.log.Info("backtest finished",
		logger.String("strategy", cfg.Name),
		logger.Int("input_rounds", len(rounds)),
		logger.Int("evaluated", report.TotalRounds),
		logger.Float64("win_rate", report.WinRate),
		logger.Float64("profit_rate", report.ProfitRate))
	return report, nil
}

// evaluate skips the round on an empty prediction, a missing outcome or a store error.
func (e *BacktestEngine) evaluate(ctx context.Context, predictor Predictor, r models.HistoricalRound) (models.BacktestRound, bool) {
	ranked := predictor.Predict(ctx, models.PredictRequest{
		Symbols:   r.Symbols,
		Timestamp: r.Timestamp,
		RoundID:   r.RoundID,
	})
	if len(ranked) == 0 {
		e.log.Debug("backtest round skipped: empty prediction", logger.String("round_id", r.RoundID))
		return models.BacktestRound{}, false
	}

	actual, err := e.outcomes.GetActualResult(ctx, r.RoundID)
	if err != nil {
		e.log.Warn("backtest round skipped: outcome lookup failed",
			logger.String("round_id", r.RoundID),
			logger.Error(err))
		return models.BacktestRound{}, false
	}
	if actual == nil {
		e.log.Debug("backtest round skipped: no outcome", logger.String("round_id", r.RoundID))
		return models.BacktestRound{}, false
	}

	ranking := make([]string, len(ranked))
	for i, rr := range ranked {
		ranking[i] = rr.Symbol
	}
	return models.BacktestRound{
		RoundID:          r.RoundID,
		Timestamp:        r.Timestamp,
		PredictedRanking: ranking,
		ActualWinner:     actual.Winner,
		ActualRank:       actual.Rankings[ranking[0]],
		Players:          len(actual.Rankings),
		PnL:              e.payoff.Payoff(ranked, actual),
	}, true
}
