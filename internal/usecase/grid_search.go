package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"TokenRank/internal/domain/models"
	"TokenRank/pkg/logger"
)

const (
	weightSuffix        = "_weight"
	normalizationSuffix = "_normalization"
)

// PromotionThresholds flag grid results good enough to become a strategy.
type PromotionThresholds struct {
	MinBreakevenRate    float64
	MinTotalRoundsRatio float64
}

func (t PromotionThresholds) Promotable(r models.BacktestReport) bool {
	if r.InputRounds == 0 || r.TotalRounds == 0 {
		return false
	}
	ratio := float64(r.TotalRounds) / float64(r.InputRounds)
	return r.BreakevenRate >= t.MinBreakevenRate && ratio >= t.MinTotalRoundsRatio
}

// GridSearchRunner sweeps a parameter grid over the backtest engine.
type GridSearchRunner struct {
	engine      *BacktestEngine
	parallelism int
	promotion   PromotionThresholds
	log         *logger.Logger
}

func NewGridSearchRunner(engine *BacktestEngine, parallelism int, promotion PromotionThresholds, log *logger.Logger) *GridSearchRunner {
	if parallelism < 1 {
		parallelism = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &GridSearchRunner{engine: engine, parallelism: parallelism, promotion: promotion, log: log}
}

// GridSearch runs one backtest per combination and returns results by win
// rate, best first. Failed combinations are left out.
func (g *GridSearchRunner) GridSearch(ctx context.Context, rounds []models.HistoricalRound, base models.StrategyConfig, grid []models.GridAxis) []models.GridSearchResult {
	combos := Combinations(grid)
	results := make([]*models.GridSearchResult, len(combos))

	sem := make(chan struct{}, g.parallelism)
	var wg sync.WaitGroup
	for i, params := range combos {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, params map[string]interface{}) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					g.log.Error("grid combination panicked", logger.Any("params", params), logger.Any("panic", r))
				}
			}()
			results[i] = g.runCombination(ctx, rounds, base, params)
		}(i, params)
	}
	wg.Wait()

	out := make([]models.GridSearchResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Metrics.WinRate > out[j].Metrics.WinRate
	})

	g.log.Info("grid search finished",
		logger.String("strategy", base.Name),
		logger.Int("combinations", len(combos)),
		logger.Int("succeeded", len(out)))
	return out
}

func (g *GridSearchRunner) runCombination(ctx context.Context, rounds []models.HistoricalRound, base models.StrategyConfig, params map[string]interface{}) *models.GridSearchResult {
	cfg, err := ApplyParameters(base, params)
	if err != nil {
		g.log.Warn("grid combination rejected", logger.Any("params", params), logger.Error(err))
		return nil
	}
	report, err := g.engine.run(ctx, rounds, cfg)
	if err != nil {
		g.log.Warn("grid combination failed", logger.Any("params", params), logger.Error(err))
		return nil
	}
	report.Rounds = nil
	return &models.GridSearchResult{
		Parameters: params,
		Strategy:   cfg,
		Metrics:    report,
		Promotable: g.promotion.Promotable(report),
	}
}

// Combinations is the cartesian product of the axes; the first axis varies slowest.
func Combinations(grid []models.GridAxis) []map[string]interface{} {
	combos := []map[string]interface{}{{}}
	for _, axis := range grid {
		next := make([]map[string]interface{}, 0, len(combos)*len(axis.Values))
		for _, c := range combos {
			for _, v := range axis.Values {
				m := make(map[string]interface{}, len(c)+1)
				for k, cv := range c {
					m[k] = cv
				}
				m[axis.Name] = v
				next = append(next, m)
			}
		}
		combos = next
	}
	return combos
}

// ApplyParameters maps "<feature>_weight" onto weights, "<feature>_normalization"
// onto normalization ids and anything else onto Params.
func ApplyParameters(base models.StrategyConfig, params map[string]interface{}) (models.StrategyConfig, error) {
	cfg := base.Clone()
	for name, value := range params {
		switch {
		case strings.HasSuffix(name, weightSuffix) && len(name) > len(weightSuffix):
			w, err := toFloat(value)
			if err != nil {
				return models.StrategyConfig{}, fmt.Errorf("parameter %s: %w", name, err)
			}
			if w < 0 {
				return models.StrategyConfig{}, fmt.Errorf("parameter %s: weight must be >= 0", name)
			}
			cfg.Weights[strings.TrimSuffix(name, weightSuffix)] = w
		case strings.HasSuffix(name, normalizationSuffix) && len(name) > len(normalizationSuffix):
			id, ok := value.(string)
			if !ok {
				return models.StrategyConfig{}, fmt.Errorf("parameter %s: expected string, got %T", name, value)
			}
			cfg.Normalization[strings.TrimSuffix(name, normalizationSuffix)] = id
		default:
			cfg.Params[name] = value
		}
	}
	return cfg, nil
}

func toFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
