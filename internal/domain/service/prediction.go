package service

import (
	"context"

	"TokenRank/internal/domain/models"
)

// FeatureProvider turns snapshots and price history into per-symbol scores.
// Implementations never fail; missing data degrades to a neutral value.
type FeatureProvider interface {
	Key() string
	ExtractFeatures(ctx context.Context, snapshots models.SnapshotSource, history models.History) map[string]models.FeatureScore
}

// NormalizationStrategy rescales one feature across a round's symbols.
type NormalizationStrategy interface {
	ID() string
	Normalize(values map[string]float64) map[string]float64
}

// RatingsProbabilityProvider is the read-only Elo query.
type RatingsProbabilityProvider interface {
	GetRating(ctx context.Context, symbol string) (float64, error)
	Probabilities(ctx context.Context, symbols []string, useTimeDecay bool) (map[string]float64, error)
}
