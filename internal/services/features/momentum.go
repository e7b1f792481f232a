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

const (
	momentumLookback   = 24 * time.Hour
	momentumWinsorize  = 0.5
	momentumScoreBound = 50.0
)

// Momentum24h scores the 24h log-return of each symbol.
type Momentum24h struct {
	prices priceReader
	log    *logger.Logger
}

func NewMomentum24h(store repository.PriceHistoryStore, log *logger.Logger) *Momentum24h {
	return &Momentum24h{prices: priceReader{store: store}, log: orNop(log)}
}

func (p *Momentum24h) Key() string { return KeyMomentum }

func (p *Momentum24h) ExtractFeatures(ctx context.Context, snapshots models.SnapshotSource, h models.History) map[string]models.FeatureScore {
	end := anchor(h)
	out := make(map[string]models.FeatureScore)
	for _, s := range CanonicalSnapshots(snapshots) {
		lr, source, ok := p.logReturn(ctx, h, s, end)
		if !ok {
			out[s.Symbol] = fallbackScore(0, 0.5, "no_price_history")
			continue
		}
		lr = stats.Clamp(lr, -momentumWinsorize, momentumWinsorize)
		raw := stats.Clamp(lr*100, -momentumScoreBound, momentumScoreBound)
		out[s.Symbol] = models.FeatureScore{
			Raw:            raw,
			NormalizedHint: (raw + momentumScoreBound) / (2 * momentumScoreBound),
			Meta:           map[string]interface{}{"source": source, "log_return": lr},
		}
	}
	return out
}

// logReturn prefers stored prices and falls back to the snapshot's 24h change.
func (p *Momentum24h) logReturn(ctx context.Context, h models.History, s models.MarketSnapshot, end time.Time) (float64, string, bool) {
	latest, okLatest, err := p.prices.latestAt(ctx, h, s.Symbol, end)
	if err == nil && okLatest {
		var base models.PriceSample
		var okBase bool
		base, okBase, err = p.prices.latestAt(ctx, h, s.Symbol, end.Add(-momentumLookback))
		if err == nil && okBase && latest.Price > 0 && base.Price > 0 {
			return math.Log(latest.Price / base.Price), "history", true
		}
	}
	if err != nil {
		p.log.Warn("momentum history read failed", logger.String("symbol", s.Symbol), logger.Error(err))
	}
	if s.PriceChange24h != nil && *s.PriceChange24h > -100 {
		return math.Log1p(*s.PriceChange24h / 100), "snapshot", true
	}
	return 0, "", false
}

// sub-score weights of ShortTermMomentum
const (
	weightShortReturn  = 0.4
	weightMediumReturn = 0.2
	weightLongReturn   = 0.1
	weightShortTrend   = 0.2
	weightMediumTrend  = 0.1

	neutralScore        = 50.0
	volatilityThreshold = 0.05
	maxVolatilityDamp   = 0.2
)

// ShortTermMomentum blends 2m/5m/15m returns and trends into a 0..100 score.
type ShortTermMomentum struct {
	prices              priceReader
	short, medium, long time.Duration
	log                 *logger.Logger
}

func NewShortTermMomentum(store repository.PriceHistoryStore, log *logger.Logger) *ShortTermMomentum {
	return &ShortTermMomentum{
		prices: priceReader{store: store},
		short:  2 * time.Minute,
		medium: 5 * time.Minute,
		long:   15 * time.Minute,
		log:    orNop(log),
	}
}

func (p *ShortTermMomentum) Key() string { return KeyShortTermMomentum }

func (p *ShortTermMomentum) ExtractFeatures(ctx context.Context, snapshots models.SnapshotSource, h models.History) map[string]models.FeatureScore {
	end := anchor(h)
	out := make(map[string]models.FeatureScore)
	for _, s := range CanonicalSnapshots(snapshots) {
		samples, err := p.prices.window(ctx, h, s.Symbol, end.Add(-p.long), end)
		if err != nil {
			p.log.Warn("short term history read failed", logger.String("symbol", s.Symbol), logger.Error(err))
			out[s.Symbol] = fallbackScore(neutralScore, 0.5, "history_error")
			continue
		}
		out[s.Symbol] = p.score(samples, end)
	}
	return out
}

func (p *ShortTermMomentum) score(samples []models.PriceSample, end time.Time) models.FeatureScore {
	short := pricesSince(samples, end.Add(-p.short))
	medium := pricesSince(samples, end.Add(-p.medium))
	long := pricesOf(samples)

	shortReturn, ok := returnScore(short)
	if !ok {
		return fallbackScore(neutralScore, 0.5, "insufficient_short_window")
	}
	shortTrend, ok := trendScore(short)
	if !ok {
		shortTrend = neutralScore
	}
	mediumReturn, ok := returnScore(medium)
	if !ok {
		mediumReturn = shortReturn
	}
	mediumTrend, ok := trendScore(medium)
	if !ok {
		mediumTrend = shortTrend
	}
	longReturn, ok := returnScore(long)
	if !ok {
		longReturn = mediumReturn
	}

	score := weightShortReturn*shortReturn +
		weightMediumReturn*mediumReturn +
		weightLongReturn*longReturn +
		weightShortTrend*shortTrend +
		weightMediumTrend*mediumTrend

	vol := stats.StandardDeviation(stats.SimpleReturns(short))
	damp := 0.0
	if vol > volatilityThreshold {
		damp = math.Min(maxVolatilityDamp, (vol-volatilityThreshold)*2)
		score = neutralScore + (score-neutralScore)*(1-damp)
	}
	score = stats.Clamp(score, 0, 100)

	return models.FeatureScore{
		Raw:            score,
		NormalizedHint: score / 100,
		Meta: map[string]interface{}{
			"short_return":  shortReturn,
			"medium_return": mediumReturn,
			"long_return":   longReturn,
			"short_trend":   shortTrend,
			"medium_trend":  mediumTrend,
			"volatility":    vol,
			"damping":       damp,
		},
	}
}

func pricesSince(samples []models.PriceSample, from time.Time) []float64 {
	out := make([]float64, 0, len(samples))
	for _, s := range samples {
		if !s.Minute.Before(from) {
			out = append(out, s.Price)
		}
	}
	return out
}

// returnScore maps the simple return of the window to 50 + r*500.
func returnScore(prices []float64) (float64, bool) {
	if len(prices) < 2 || prices[0] <= 0 {
		return 0, false
	}
	r := (prices[len(prices)-1] - prices[0]) / prices[0]
	return stats.Clamp(neutralScore+r*500, 0, 100), true
}

// trendScore maps the OLS slope of log-price to 50 + slope*1000.
func trendScore(prices []float64) (float64, bool) {
	if len(prices) < 3 {
		return 0, false
	}
	slope := stats.IndexSlope(trendSeries(prices))
	return stats.Clamp(neutralScore+slope*1000, 0, 100), true
}

// trendSeries is log-price, or raw price if any price is non-positive.
func trendSeries(prices []float64) []float64 {
	if !stats.AllPositive(prices) {
		return prices
	}
	out := make([]float64, len(prices))
	for i, p := range prices {
		out[i] = math.Log(p)
	}
	return out
}
