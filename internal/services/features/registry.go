package features

import (
	"errors"
	"fmt"
	"sort"

	"TokenRank/internal/domain/repository"
	"TokenRank/internal/domain/service"
	"TokenRank/pkg/logger"
)

var ErrUnknownFeature = errors.New("unknown feature")

const (
	KeyElo               = "elo"
	KeyMomentum          = "momentum"
	KeyShortTermMomentum = "short_term_momentum"
	KeyPTop3FromElo      = "p_top3_from_elo"
	KeyStReturn          = "st_return"
	KeyStTrend           = "st_trend"
	KeyStVolatility      = "st_volatility"
	KeyDrawdownShort     = "drawdown_short"
	KeyEloProbDecayed    = "elo_prob_decayed"
	KeyVolume            = "volume"
)

// Dependencies are the read-only collaborators providers may use.
type Dependencies struct {
	Prices  repository.PriceHistoryStore
	Ratings service.RatingsProbabilityProvider
	Windows Windows
	Log     *logger.Logger
}

type factory func(d Dependencies) service.FeatureProvider

var factories = map[string]factory{
	KeyElo: func(d Dependencies) service.FeatureProvider {
		return NewElo(d.Ratings, d.Log)
	},
	KeyMomentum: func(d Dependencies) service.FeatureProvider {
		return NewMomentum24h(d.Prices, d.Log)
	},
	KeyShortTermMomentum: func(d Dependencies) service.FeatureProvider {
		return NewShortTermMomentum(d.Prices, d.Log)
	},
	KeyPTop3FromElo: func(d Dependencies) service.FeatureProvider {
		return NewPTop3FromElo(d.Ratings, d.Log)
	},
	KeyStReturn: func(d Dependencies) service.FeatureProvider {
		return NewStReturn(d.Prices, d.Windows.StReturn, d.Log)
	},
	KeyStTrend: func(d Dependencies) service.FeatureProvider {
		return NewStTrend(d.Prices, d.Windows.StTrend, d.Log)
	},
	KeyStVolatility: func(d Dependencies) service.FeatureProvider {
		return NewStVolatility(d.Prices, d.Windows.StVolatility, d.Log)
	},
	KeyDrawdownShort: func(d Dependencies) service.FeatureProvider {
		return NewDrawdownShort(d.Prices, d.Windows.DrawdownShort, d.Log)
	},
	KeyEloProbDecayed: func(d Dependencies) service.FeatureProvider {
		return NewEloProbDecayed(d.Ratings, d.Log)
	},
	KeyVolume: func(Dependencies) service.FeatureProvider {
		return NewVolume()
	},
}

// Registry is the ordered set of providers a pipeline runs.
type Registry struct {
	providers []service.FeatureProvider
}

// NewRegistry builds providers in the given order and fails on unknown or repeated keys.
func NewRegistry(keys []string, deps Dependencies) (*Registry, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("no features configured")
	}
	deps.Windows = deps.Windows.withDefaults()
	deps.Log = orNop(deps.Log)

	seen := make(map[string]struct{}, len(keys))
	r := &Registry{providers: make([]service.FeatureProvider, 0, len(keys))}
	for _, key := range keys {
		f, ok := factories[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, key)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("feature %q configured twice", key)
		}
		seen[key] = struct{}{}
		r.providers = append(r.providers, f(deps))
	}
	return r, nil
}

// NewRegistryFrom wraps already built providers, keeping their order.
func NewRegistryFrom(providers ...service.FeatureProvider) *Registry {
	return &Registry{providers: append([]service.FeatureProvider(nil), providers...)}
}

func (r *Registry) Providers() []service.FeatureProvider {
	return append([]service.FeatureProvider(nil), r.providers...)
}

func (r *Registry) Keys() []string {
	out := make([]string, len(r.providers))
	for i, p := range r.providers {
		out[i] = p.Key()
	}
	return out
}

// Has reports whether key is one of the registry's features.
func (r *Registry) Has(key string) bool {
	for _, p := range r.providers {
		if p.Key() == key {
			return true
		}
	}
	return false
}

// Available lists every known feature key, sorted.
func Available() []string {
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
