package normalization

import (
	"errors"
	"fmt"
	"sort"

	"TokenRank/internal/domain/service"
	"TokenRank/internal/services/stats"
)

var ErrUnknownStrategy = errors.New("unknown normalization strategy")

const (
	ZScoreID   = "zscore"
	MinMaxID   = "minmax"
	IdentityID = "identity"
)

// ZScore centres on the mean and divides by the population stdev.
type ZScore struct{}

func (ZScore) ID() string { return ZScoreID }

func (ZScore) Normalize(values map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	if len(values) == 0 {
		return out
	}
	v := collect(values)
	mean := stats.Mean(v)
	sd := stats.PopulationStdDev(v)
	for k, x := range values {
		if len(values) == 1 || sd == 0 {
			out[k] = 0
			continue
		}
		out[k] = (x - mean) / sd
	}
	return out
}

// MinMax maps onto [0,1]; a flat set maps to 0.5.
type MinMax struct{}

func (MinMax) ID() string { return MinMaxID }

func (MinMax) Normalize(values map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	if len(values) == 0 {
		return out
	}
	first := true
	var lo, hi float64
	for _, x := range values {
		if first {
			lo, hi = x, x
			first = false
			continue
		}
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	for k, x := range values {
		if hi == lo {
			out[k] = 0.5
			continue
		}
		out[k] = (x - lo) / (hi - lo)
	}
	return out
}

type Identity struct{}

func (Identity) ID() string { return IdentityID }

func (Identity) Normalize(values map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for k, x := range values {
		out[k] = x
	}
	return out
}

var registry = map[string]service.NormalizationStrategy{
	ZScoreID:   ZScore{},
	MinMaxID:   MinMax{},
	IdentityID: Identity{},
}

// Resolve looks a strategy up by id.
func Resolve(id string) (service.NormalizationStrategy, error) {
	s, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, id)
	}
	return s, nil
}

// ResolveAll resolves a feature -> id map, failing on the first unknown id.
func ResolveAll(ids map[string]string) (map[string]service.NormalizationStrategy, error) {
	out := make(map[string]service.NormalizationStrategy, len(ids))
	for feature, id := range ids {
		s, err := Resolve(id)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", feature, err)
		}
		out[feature] = s
	}
	return out, nil
}

// Available lists registered ids, sorted.
func Available() []string {
	out := make([]string, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// collect returns values in key order so float sums are reproducible.
func collect(values map[string]float64) []float64 {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = values[k]
	}
	return out
}
