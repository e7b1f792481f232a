package usecase

import (
	"TokenRank/internal/domain/models"
	domsvc "TokenRank/internal/domain/service"
)

// ScoreAggregator blends normalized features into one score per symbol.
// A symbol only carries the weight of the features it has a value for.
type ScoreAggregator struct {
	weights     map[string]float64
	normalizers map[string]domsvc.NormalizationStrategy
}

func NewScoreAggregator(weights map[string]float64, normalizers map[string]domsvc.NormalizationStrategy) *ScoreAggregator {
	a := &ScoreAggregator{
		weights:     make(map[string]float64, len(weights)),
		normalizers: make(map[string]domsvc.NormalizationStrategy, len(normalizers)),
	}
	for k, v := range weights {
		a.weights[k] = v
	}
	for k, v := range normalizers {
		a.normalizers[k] = v
	}
	return a
}

// NormalizedScores normalizes every feature cross-sectionally. Features
// without a configured strategy pass through unchanged.
func (a *ScoreAggregator) NormalizedScores(m *models.FeatureMatrix) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	if m == nil {
		return out
	}
	for _, feature := range m.Features() {
		raw := m.Raw(feature)
		if n, ok := a.normalizers[feature]; ok {
			out[feature] = n.Normalize(raw)
			continue
		}
		out[feature] = raw
	}
	return out
}

// Aggregate returns one score per symbol in first-seen order.
func (a *ScoreAggregator) Aggregate(m *models.FeatureMatrix) []models.AggregateScore {
	if m == nil || m.Empty() {
		return nil
	}
	normalized := a.NormalizedScores(m)
	features := m.Features()

	out := make([]models.AggregateScore, 0, len(m.Symbols()))
	for _, sym := range m.Symbols() {
		var weighted, total float64
		breakdown := make(map[string]float64, len(features))
		for _, f := range features {
			v, ok := normalized[f][sym]
			if !ok {
				continue
			}
			breakdown[f] = v
			w := a.weights[f]
			weighted += v * w
			total += w
		}
		score := 0.0
		if total != 0 {
			score = weighted / total
		}
		out = append(out, models.AggregateScore{Symbol: sym, FinalScore: score, Normalized: breakdown})
	}
	return out
}

// Weights returns a copy of the weight vector.
func (a *ScoreAggregator) Weights() map[string]float64 {
	out := make(map[string]float64, len(a.weights))
	for k, v := range a.weights {
		out[k] = v
	}
	return out
}

// Normalizations returns feature -> strategy id.
func (a *ScoreAggregator) Normalizations() map[string]string {
	out := make(map[string]string, len(a.normalizers))
	for k, v := range a.normalizers {
		out[k] = v.ID()
	}
	return out
}
