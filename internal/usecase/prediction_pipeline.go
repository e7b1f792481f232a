package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	domsvc "TokenRank/internal/domain/service"
	"TokenRank/internal/services/features"
	"TokenRank/pkg/logger"
	"TokenRank/pkg/metrics"
)

// prediction outcomes
const (
	OutcomeRanked = "ranked"
	OutcomeEmpty  = "empty"
	OutcomeFailed = "failed"
)

// PredictionPipeline runs fetch -> extract -> aggregate -> rank -> emit for one strategy.
type PredictionPipeline struct {
	strategy   string
	marketData domrepo.MarketDataProvider
	providers  []domsvc.FeatureProvider
	aggregator *ScoreAggregator
	sink       domrepo.ResultSink
	metrics    domrepo.Metrics
	log        *logger.Logger
	now        func() time.Time
}

type PipelineOption func(*PredictionPipeline)

// WithSink replaces the result sink; nil discards results.
func WithSink(sink domrepo.ResultSink) PipelineOption {
	return func(p *PredictionPipeline) {
		p.sink = sink
	}
}

func WithMetrics(m domrepo.Metrics) PipelineOption {
	return func(p *PredictionPipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *PredictionPipeline) {
		p.now = now
	}
}

func NewPredictionPipeline(
	strategy string,
	marketData domrepo.MarketDataProvider,
	providers []domsvc.FeatureProvider,
	aggregator *ScoreAggregator,
	log *logger.Logger,
	opts ...PipelineOption,
) *PredictionPipeline {
	if log == nil {
		log = logger.NewNop()
	}
	p := &PredictionPipeline{
		strategy:   strategy,
		marketData: marketData,
		providers:  providers,
		aggregator: aggregator,
		metrics:    metrics.Nop{},
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PredictionPipeline) Strategy() string { return p.strategy }

// Predict never fails: every error, including a panic, yields an empty result.
func (p *PredictionPipeline) Predict(ctx context.Context, req models.PredictRequest) (results []models.RankedResult) {
	at := req.Timestamp
	if at.IsZero() {
		at = p.now()
	}
	symbols := features.CanonicalSymbols(req.Symbols)
	fields := []logger.Field{
		logger.Strings("symbols", symbols),
		logger.Time("timestamp", at),
		logger.String("round_id", req.RoundID),
		logger.String("strategy", p.strategy),
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("prediction panicked", append(fields, logger.Any("panic", r))...)
			p.metrics.RecordPrediction(p.strategy, OutcomeFailed)
			results = nil
		}
	}()

	results, err := p.predict(ctx, req, symbols, at)
	switch {
	case err != nil:
		p.log.Error("prediction failed", append(fields, logger.Error(err))...)
		p.metrics.RecordPrediction(p.strategy, OutcomeFailed)
		return nil
	case len(results) == 0:
		p.metrics.RecordPrediction(p.strategy, OutcomeEmpty)
		return nil
	}
	p.metrics.RecordPrediction(p.strategy, OutcomeRanked)
	p.log.Debug("prediction ranked", append(fields, logger.String("top", results[0].Symbol))...)
	return results
}

func (p *PredictionPipeline) predict(ctx context.Context, req models.PredictRequest, symbols []string, at time.Time) ([]models.RankedResult, error) {
	if len(symbols) == 0 {
		p.log.Warn("prediction without symbols", logger.String("round_id", req.RoundID))
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	snaps, err := p.marketData.FetchSnapshots(ctx, symbols, at)
	p.metrics.ObserveStage("fetch", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("fetch snapshots: %w", err)
	}
	canonical := features.CanonicalSnapshots(models.SnapshotList(snaps))
	if len(canonical) == 0 {
		p.log.Warn("no snapshots for round",
			logger.Strings("symbols", symbols),
			logger.String("round_id", req.RoundID))
		return nil, nil
	}

	start = time.Now()
	history := models.History{At: at, Prices: req.Prices}
	matrix := p.extract(ctx, models.SnapshotList(canonical), history)
	p.metrics.ObserveStage("extract", time.Since(start))
	if matrix.Empty() {
		p.log.Warn("no feature produced a score",
			logger.Strings("symbols", symbols),
			logger.String("round_id", req.RoundID))
		return nil, nil
	}

	start = time.Now()
	scores := p.aggregator.Aggregate(matrix)
	normalized := p.aggregator.NormalizedScores(matrix)
	p.metrics.ObserveStage("aggregate", time.Since(start))

	ranked := rank(scores)

	start = time.Now()
	p.emit(ctx, req.RoundID, at, ranked, matrix, normalized)
	p.metrics.ObserveStage("emit", time.Since(start))

	return ranked, nil
}

// extract runs providers concurrently and merges their output in registry order.
func (p *PredictionPipeline) extract(ctx context.Context, snaps models.SnapshotList, h models.History) *models.FeatureMatrix {
	outputs := make([]map[string]models.FeatureScore, len(p.providers))

	var wg sync.WaitGroup
	for i, provider := range p.providers {
		wg.Add(1)
		go func(i int, provider domsvc.FeatureProvider) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					p.log.Error("feature provider panicked",
						logger.String("feature", provider.Key()),
						logger.Any("panic", r))
					outputs[i] = nil
				}
			}()
			outputs[i] = provider.ExtractFeatures(ctx, snaps, h)
		}(i, provider)
	}
	wg.Wait()

	order := make([]string, len(snaps))
	for i, s := range snaps {
		order[i] = s.Symbol
	}

	m := models.NewFeatureMatrix()
	for i, provider := range p.providers {
		out := outputs[i]
		if out == nil {
			continue
		}
		for _, s := range out {
			if s.Fallback() {
				p.metrics.RecordFeatureFallback(provider.Key())
			}
		}
		m.SetFeature(provider.Key(), out, order)
	}
	return m
}

// rank sorts by score descending; ties keep symbol-union order.
func rank(scores []models.AggregateScore) []models.RankedResult {
	sorted := append([]models.AggregateScore(nil), scores...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FinalScore > sorted[j].FinalScore
	})
	out := make([]models.RankedResult, len(sorted))
	for i, s := range sorted {
		out[i] = models.RankedResult{Symbol: s.Symbol, Score: s.FinalScore, Rank: i + 1}
	}
	return out
}

// emit writes one record per ranked symbol. A sink failure is only logged.
func (p *PredictionPipeline) emit(
	ctx context.Context,
	roundID string,
	at time.Time,
	ranked []models.RankedResult,
	m *models.FeatureMatrix,
	normalized map[string]map[string]float64,
) {
	if p.sink == nil {
		return
	}
	weights := p.aggregator.Weights()
	norms := p.aggregator.Normalizations()

	records := make([]models.PredictionRecord, 0, len(ranked))
	for _, r := range ranked {
		fv := make(map[string]models.FeatureValue)
		for _, f := range m.Features() {
			s, ok := m.Score(f, r.Symbol)
			if !ok {
				continue
			}
			fv[f] = models.FeatureValue{Raw: s.Raw, Normalized: normalized[f][r.Symbol], Fallback: s.Fallback()}
		}
		records = append(records, models.PredictionRecord{
			RoundID:       roundID,
			Symbol:        r.Symbol,
			Rank:          r.Rank,
			Score:         r.Score,
			Strategy:      p.strategy,
			Features:      fv,
			Weights:       weights,
			Normalization: norms,
			PredictedAt:   at,
		})
	}

	if err := p.sink.Write(ctx, records); err != nil {
		p.metrics.RecordSinkError(p.strategy)
		p.log.Error("write prediction results",
			logger.String("round_id", roundID),
			logger.Int("records", len(records)),
			logger.Error(err))
	}
}
