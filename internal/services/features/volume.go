package features

import (
	"context"

	"TokenRank/internal/domain/models"
)

// Volume min-max scales the 24h volume across the round to 0..100.
// Symbols without volume are omitted.
type Volume struct{}

func NewVolume() *Volume { return &Volume{} }

func (p *Volume) Key() string { return KeyVolume }

func (p *Volume) ExtractFeatures(_ context.Context, snapshots models.SnapshotSource, _ models.History) map[string]models.FeatureScore {
	out := make(map[string]models.FeatureScore)

	var (
		vols    = make(map[string]float64)
		lo, hi  float64
		haveAny bool
	)
	for _, s := range CanonicalSnapshots(snapshots) {
		if s.Volume24h <= 0 {
			continue
		}
		vols[s.Symbol] = s.Volume24h
		if !haveAny {
			lo, hi, haveAny = s.Volume24h, s.Volume24h, true
			continue
		}
		if s.Volume24h < lo {
			lo = s.Volume24h
		}
		if s.Volume24h > hi {
			hi = s.Volume24h
		}
	}

	for sym, v := range vols {
		raw := 50.0
		if hi > lo {
			raw = (v - lo) / (hi - lo) * 100
		}
		out[sym] = models.FeatureScore{
			Raw:            raw,
			NormalizedHint: raw / 100,
			Meta:           map[string]interface{}{"volume_24h": v},
		}
	}
	return out
}
