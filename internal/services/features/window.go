package features

import (
	"context"
	"math"
	"time"

	"TokenRank/internal/domain/models"
	"TokenRank/internal/domain/repository"
	"TokenRank/internal/services/stats"
	"TokenRank/pkg/logger"
)

// Windows are per-provider lookbacks in minutes.
type Windows struct {
	StReturn      int
	StTrend       int
	StVolatility  int
	DrawdownShort int
}

func DefaultWindows() Windows {
	return Windows{StReturn: 5, StTrend: 5, StVolatility: 5, DrawdownShort: 15}
}

// withDefaults replaces non-positive windows.
func (w Windows) withDefaults() Windows {
	d := DefaultWindows()
	if w.StReturn <= 0 {
		w.StReturn = d.StReturn
	}
	if w.StTrend <= 0 {
		w.StTrend = d.StTrend
	}
	if w.StVolatility <= 0 {
		w.StVolatility = d.StVolatility
	}
	if w.DrawdownShort <= 0 {
		w.DrawdownShort = d.DrawdownShort
	}
	return w
}

const stBound = 50.0

// windowScorer turns the ascending prices of one window into a raw score.
type windowScorer func(prices []float64) (raw float64, meta map[string]interface{}, ok bool)

// WindowFeature is the shared shape of the short-window providers.
type WindowFeature struct {
	key    string
	window time.Duration
	prices priceReader
	score  windowScorer
	log    *logger.Logger
}

func (p *WindowFeature) Key() string { return p.key }

func (p *WindowFeature) ExtractFeatures(ctx context.Context, snapshots models.SnapshotSource, h models.History) map[string]models.FeatureScore {
	end := anchor(h)
	out := make(map[string]models.FeatureScore)
	for _, s := range CanonicalSnapshots(snapshots) {
		samples, err := p.prices.window(ctx, h, s.Symbol, end.Add(-p.window), end)
		if err != nil {
			p.log.Warn("window history read failed",
				logger.String("feature", p.key),
				logger.String("symbol", s.Symbol),
				logger.Error(err))
			out[s.Symbol] = fallbackScore(0, 0.5, "history_error")
			continue
		}
		raw, meta, ok := p.score(pricesOf(samples))
		if !ok {
			out[s.Symbol] = fallbackScore(0, 0.5, "insufficient_samples")
			continue
		}
		if meta == nil {
			meta = map[string]interface{}{}
		}
		meta["samples"] = len(samples)
		out[s.Symbol] = models.FeatureScore{
			Raw:            raw,
			NormalizedHint: (raw + stBound) / (2 * stBound),
			Meta:           meta,
		}
	}
	return out
}

func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }

// NewStReturn scores clamp(log-return*100, +-50) over the window.
func NewStReturn(store repository.PriceHistoryStore, windowMinutes int, log *logger.Logger) *WindowFeature {
	return &WindowFeature{
		key:    KeyStReturn,
		window: minutes(windowMinutes),
		prices: priceReader{store: store},
		score:  stReturnScore,
		log:    orNop(log),
	}
}

func stReturnScore(prices []float64) (float64, map[string]interface{}, bool) {
	if len(prices) < 2 {
		return 0, nil, false
	}
	first, last := prices[0], prices[len(prices)-1]
	if first <= 0 || last <= 0 {
		return 0, nil, false
	}
	lr := math.Log(last / first)
	return stats.Clamp(lr*100, -stBound, stBound), map[string]interface{}{"log_return": lr}, true
}

// NewStTrend scores clamp(slope*1000, +-50) of log-price against index.
func NewStTrend(store repository.PriceHistoryStore, windowMinutes int, log *logger.Logger) *WindowFeature {
	return &WindowFeature{
		key:    KeyStTrend,
		window: minutes(windowMinutes),
		prices: priceReader{store: store},
		score:  stTrendScore,
		log:    orNop(log),
	}
}

func stTrendScore(prices []float64) (float64, map[string]interface{}, bool) {
	if len(prices) < 3 {
		return 0, nil, false
	}
	slope := stats.IndexSlope(trendSeries(prices))
	return stats.Clamp(slope*1000, -stBound, stBound), map[string]interface{}{"slope": slope}, true
}

// NewStVolatility scores price stability: 100 - min(100, stdev*10000), shifted by -50.
func NewStVolatility(store repository.PriceHistoryStore, windowMinutes int, log *logger.Logger) *WindowFeature {
	return &WindowFeature{
		key:    KeyStVolatility,
		window: minutes(windowMinutes),
		prices: priceReader{store: store},
		score:  stVolatilityScore,
		log:    orNop(log),
	}
}

func stVolatilityScore(prices []float64) (float64, map[string]interface{}, bool) {
	if len(prices) < 3 {
		return 0, nil, false
	}
	returns := stats.LogReturns(prices)
	if len(returns) < 2 {
		return 0, nil, false
	}
	sd := stats.StandardDeviation(returns)
	stability := 100 - math.Min(100, sd*10000)
	return stability - stBound, map[string]interface{}{"stdev": sd}, true
}

// NewDrawdownShort scores 100 - min(100, maxDrawdown*100), shifted by -50.
func NewDrawdownShort(store repository.PriceHistoryStore, windowMinutes int, log *logger.Logger) *WindowFeature {
	return &WindowFeature{
		key:    KeyDrawdownShort,
		window: minutes(windowMinutes),
		prices: priceReader{store: store},
		score:  drawdownScore,
		log:    orNop(log),
	}
}

func drawdownScore(prices []float64) (float64, map[string]interface{}, bool) {
	if len(prices) < 2 {
		return 0, nil, false
	}
	dd := MaxDrawdown(prices)
	return 100 - math.Min(100, dd*100) - stBound, map[string]interface{}{"drawdown": dd}, true
}

// MaxDrawdown is the largest peak-to-trough decline as a fraction of the peak.
func MaxDrawdown(prices []float64) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, p := range prices {
		if p > peak {
			peak = p
		}
		if peak > 0 {
			if dd := (peak - p) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
