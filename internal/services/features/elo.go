package features

import (
	"context"
	"math"

	"TokenRank/internal/domain/models"
	"TokenRank/internal/domain/service"
	"TokenRank/pkg/logger"
)

// DefaultRating is used whenever a rating cannot be read.
const DefaultRating = 1500.0

// Elo emits the current rating of each symbol.
type Elo struct {
	ratings service.RatingsProbabilityProvider
	log     *logger.Logger
}

func NewElo(ratings service.RatingsProbabilityProvider, log *logger.Logger) *Elo {
	return &Elo{ratings: ratings, log: orNop(log)}
}

func (p *Elo) Key() string { return KeyElo }

func (p *Elo) ExtractFeatures(ctx context.Context, snapshots models.SnapshotSource, _ models.History) map[string]models.FeatureScore {
	out := make(map[string]models.FeatureScore)
	for _, s := range CanonicalSnapshots(snapshots) {
		r, ok := rating(ctx, p.ratings, p.log, s.Symbol)
		if !ok {
			out[s.Symbol] = fallbackScore(DefaultRating, eloHint(DefaultRating), "rating_unavailable")
			continue
		}
		out[s.Symbol] = models.FeatureScore{Raw: r, NormalizedHint: eloHint(r)}
	}
	return out
}

// eloHint is the expected score against an average-rated opponent.
func eloHint(r float64) float64 {
	return 1 / (1 + math.Pow(10, (DefaultRating-r)/400))
}

func rating(ctx context.Context, ratings service.RatingsProbabilityProvider, log *logger.Logger, symbol string) (float64, bool) {
	if ratings == nil {
		return DefaultRating, false
	}
	r, err := ratings.GetRating(ctx, symbol)
	if err != nil {
		log.Warn("rating lookup failed", logger.String("symbol", symbol), logger.Error(err))
		return DefaultRating, false
	}
	return r, true
}

// EloProbDecayed emits the pairwise mean win probability with time decay.
type EloProbDecayed struct {
	ratings service.RatingsProbabilityProvider
	log     *logger.Logger
}

func NewEloProbDecayed(ratings service.RatingsProbabilityProvider, log *logger.Logger) *EloProbDecayed {
	return &EloProbDecayed{ratings: ratings, log: orNop(log)}
}

func (p *EloProbDecayed) Key() string { return KeyEloProbDecayed }

func (p *EloProbDecayed) ExtractFeatures(ctx context.Context, snapshots models.SnapshotSource, _ models.History) map[string]models.FeatureScore {
	symbols := symbolsOf(CanonicalSnapshots(snapshots))
	out := make(map[string]models.FeatureScore)
	if len(symbols) < 2 {
		return out
	}

	var probs map[string]float64
	var err error
	if p.ratings != nil {
		probs, err = p.ratings.Probabilities(ctx, symbols, true)
	}
	if p.ratings == nil || err != nil {
		if err != nil {
			p.log.Warn("decayed probabilities failed", logger.Strings("symbols", symbols), logger.Error(err))
		}
		for _, sym := range symbols {
			out[sym] = fallbackScore(0.5, 0.5, "probabilities_unavailable")
		}
		return out
	}

	for _, sym := range symbols {
		v, ok := probs[sym]
		if !ok || math.IsNaN(v) {
			out[sym] = fallbackScore(0.5, 0.5, "symbol_missing")
			continue
		}
		out[sym] = models.FeatureScore{Raw: v, NormalizedHint: v}
	}
	return out
}

// PTop3FromElo emits the exact probability of a top-3 finish under
// sequential Elo-strength selection.
type PTop3FromElo struct {
	ratings service.RatingsProbabilityProvider
	log     *logger.Logger
}

func NewPTop3FromElo(ratings service.RatingsProbabilityProvider, log *logger.Logger) *PTop3FromElo {
	return &PTop3FromElo{ratings: ratings, log: orNop(log)}
}

func (p *PTop3FromElo) Key() string { return KeyPTop3FromElo }

func (p *PTop3FromElo) ExtractFeatures(ctx context.Context, snapshots models.SnapshotSource, _ models.History) map[string]models.FeatureScore {
	symbols := symbolsOf(CanonicalSnapshots(snapshots))
	out := make(map[string]models.FeatureScore)
	if len(symbols) < 2 {
		return out
	}

	elos := make([]float64, len(symbols))
	fallback := make([]bool, len(symbols))
	maxElo := math.Inf(-1)
	for i, sym := range symbols {
		r, ok := rating(ctx, p.ratings, p.log, sym)
		elos[i], fallback[i] = r, !ok
		maxElo = math.Max(maxElo, r)
	}

	// shifting by the max keeps 10^x in range without changing ratios
	strengths := make([]float64, len(elos))
	for i, e := range elos {
		strengths[i] = math.Pow(10, (e-maxElo)/400)
	}

	probs := TopKProbabilities(strengths, 3)
	for i, sym := range symbols {
		s := models.FeatureScore{Raw: probs[i], NormalizedHint: probs[i]}
		if fallback[i] {
			s.Meta = map[string]interface{}{"fallback": true, "reason": "rating_unavailable"}
		}
		out[sym] = s
	}
	return out
}

// TopKProbabilities returns, per index, the probability of being picked within
// the first min(k, n) draws when each draw picks i with s_i / sum(remaining).
func TopKProbabilities(strengths []float64, k int) []float64 {
	n := len(strengths)
	probs := make([]float64, n)
	depth := k
	if n < depth {
		depth = n
	}
	if depth <= 0 {
		return probs
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	var walk func(remaining []int, mass float64, level int)
	walk = func(remaining []int, mass float64, level int) {
		if level == depth || len(remaining) == 0 {
			return
		}
		total := 0.0
		for _, i := range remaining {
			total += strengths[i]
		}
		for pos, i := range remaining {
			var pick float64
			if total > 0 {
				pick = mass * strengths[i] / total
			} else {
				pick = mass / float64(len(remaining))
			}
			probs[i] += pick

			rest := make([]int, 0, len(remaining)-1)
			rest = append(rest, remaining[:pos]...)
			rest = append(rest, remaining[pos+1:]...)
			walk(rest, pick, level+1)
		}
	}
	walk(all, 1, 0)
	return probs
}
