package usecase

import (
	"context"
	"fmt"
	"sort"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	"TokenRank/internal/services/features"
	"TokenRank/internal/services/normalization"
	"TokenRank/pkg/logger"
)

// Predictor is what a backtest replays.
type Predictor interface {
	Predict(ctx context.Context, req models.PredictRequest) []models.RankedResult
}

// PipelineBuilder builds a predictor for a strategy variant.
type PipelineBuilder interface {
	BuildPredictor(cfg models.StrategyConfig) (Predictor, error)
}

type FactoryConfig struct {
	Registry        *features.Registry
	MarketData      domrepo.MarketDataProvider
	Sink            domrepo.ResultSink
	Metrics         domrepo.Metrics
	Strategies      map[string]models.StrategyConfig
	DefaultStrategy string
}

// PipelineFactory resolves named strategies and builds pipelines for them.
type PipelineFactory struct {
	cfg FactoryConfig
	log *logger.Logger
}

// NewPipelineFactory fails when the default strategy is missing or any
// strategy names an unknown normalization.
func NewPipelineFactory(cfg FactoryConfig, log *logger.Logger) (*PipelineFactory, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("feature registry is required")
	}
	if cfg.MarketData == nil {
		return nil, fmt.Errorf("market data provider is required")
	}
	if cfg.DefaultStrategy == "" {
		return nil, fmt.Errorf("default strategy is required")
	}
	if _, ok := cfg.Strategies[cfg.DefaultStrategy]; !ok {
		return nil, fmt.Errorf("default strategy %q is not defined", cfg.DefaultStrategy)
	}
	for name, s := range cfg.Strategies {
		if _, err := normalization.ResolveAll(s.Normalization); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", name, err)
		}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &PipelineFactory{cfg: cfg, log: log}, nil
}

// Derive returns a factory sharing strategies and features with different collaborators.
func (f *PipelineFactory) Derive(marketData domrepo.MarketDataProvider, sink domrepo.ResultSink) *PipelineFactory {
	cfg := f.cfg
	if marketData != nil {
		cfg.MarketData = marketData
	}
	cfg.Sink = sink
	return &PipelineFactory{cfg: cfg, log: f.log}
}

func (f *PipelineFactory) DefaultStrategy() string { return f.cfg.DefaultStrategy }

// StrategyNames is sorted.
func (f *PipelineFactory) StrategyNames() []string {
	out := make([]string, 0, len(f.cfg.Strategies))
	for name := range f.cfg.Strategies {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Strategy resolves a name; unknown or empty names fall back to the default.
func (f *PipelineFactory) Strategy(name string) models.StrategyConfig {
	if name == "" {
		name = f.cfg.DefaultStrategy
	}
	s, ok := f.cfg.Strategies[name]
	if !ok {
		f.log.Warn("unknown strategy, using default",
			logger.String("strategy", name),
			logger.String("default", f.cfg.DefaultStrategy))
		name = f.cfg.DefaultStrategy
		s = f.cfg.Strategies[name]
	}
	s = s.Clone()
	s.Name = name
	return s
}

func (f *PipelineFactory) Features() []string { return f.cfg.Registry.Keys() }

// Build constructs a pipeline for cfg with its own aggregator.
func (f *PipelineFactory) Build(cfg models.StrategyConfig, opts ...PipelineOption) (*PredictionPipeline, error) {
	normalizers, err := normalization.ResolveAll(cfg.Normalization)
	if err != nil {
		return nil, fmt.Errorf("build pipeline %s: %w", cfg.Name, err)
	}
	agg := NewScoreAggregator(cfg.Weights, normalizers)

	base := []PipelineOption{WithSink(f.cfg.Sink), WithMetrics(f.cfg.Metrics)}
	return NewPredictionPipeline(cfg.Name, f.cfg.MarketData, f.cfg.Registry.Providers(), agg, f.log,
		append(base, opts...)...), nil
}

// ForStrategy builds the pipeline of a named strategy.
func (f *PipelineFactory) ForStrategy(name string, opts ...PipelineOption) (*PredictionPipeline, error) {
	return f.Build(f.Strategy(name), opts...)
}

func (f *PipelineFactory) BuildPredictor(cfg models.StrategyConfig) (Predictor, error) {
	return f.Build(cfg)
}
