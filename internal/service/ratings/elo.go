package ratings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	domrepo "TokenRank/internal/domain/repository"
	domsvc "TokenRank/internal/domain/service"
	"TokenRank/internal/service/metrics"
	"TokenRank/pkg/cache"
	"TokenRank/pkg/logger"
)

const collaborator = "ratings"

type Config struct {
	DefaultRating    float64
	DecayRate        float64
	MinGamesForDecay int
	MaxDecayRounds   int
	CacheTTL         time.Duration
	CachePrefix      string
}

func DefaultConfig() Config {
	return Config{
		DefaultRating:    1500,
		DecayRate:        0.97,
		MinGamesForDecay: 10,
		MaxDecayRounds:   1000,
		CacheTTL:         time.Minute,
		CachePrefix:      "tokenrank",
	}
}

// EloService answers rating and pairwise win probability queries.
// Ratings are read through the cache when one is configured.
type EloService struct {
	store domrepo.RatingStore
	cache cache.Service
	cfg   Config
	log   *logger.Logger
}

func NewEloService(store domrepo.RatingStore, c cache.Service, cfg Config, log *logger.Logger) *EloService {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.DefaultRating == 0 {
		cfg.DefaultRating = 1500
	}
	return &EloService{store: store, cache: c, cfg: cfg, log: log}
}

// GetRating returns the default rating for symbols never rated.
func (s *EloService) GetRating(ctx context.Context, symbol string) (float64, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	r, err := s.ratings(ctx, []string{sym})
	if err != nil {
		return 0, err
	}
	return r[sym], nil
}

// Probabilities is each symbol's mean Elo win probability against the others.
// Fewer than two distinct symbols yield an empty map.
func (s *EloService) Probabilities(ctx context.Context, symbols []string, useTimeDecay bool) (map[string]float64, error) {
	syms := unique(symbols)
	out := make(map[string]float64, len(syms))
	if len(syms) < 2 {
		return out, nil
	}

	elo, err := s.ratings(ctx, syms)
	if err != nil {
		return nil, err
	}
	if useTimeDecay {
		for _, sym := range syms {
			adj, err := s.decayAdjustment(ctx, sym)
			if err != nil {
				s.log.Warn("time decay unavailable, using plain elo", logger.String("symbol", sym), logger.Error(err))
				continue
			}
			elo[sym] += adj
		}
	}

	for _, a := range syms {
		var sum float64
		for _, b := range syms {
			if a == b {
				continue
			}
			sum += WinProbability(elo[a], elo[b])
		}
		out[a] = sum / float64(len(syms)-1)
	}
	return out, nil
}

// WinProbability is the Elo expectation of a beating b.
func WinProbability(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/400))
}

// decayAdjustment shifts a rating by the decayed win rate (in percent,
// against a 20% baseline) and the decayed average rank (against 3).
// It is zero below MinGamesForDecay ranks.
func (s *EloService) decayAdjustment(ctx context.Context, symbol string) (float64, error) {
	start := time.Now()
	ranks, err := s.store.RecentRanks(ctx, symbol, s.cfg.MaxDecayRounds)
	metrics.CollaboratorLatency.WithLabelValues(collaborator, "recent_ranks").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues(collaborator, "recent_ranks").Inc()
		return 0, fmt.Errorf("recent ranks %s: %w", symbol, err)
	}
	winRate, avgRank, ok := DecayedStats(ranks, s.cfg.DecayRate, s.cfg.MinGamesForDecay)
	if !ok {
		return 0, nil
	}
	return (winRate-20)*10 + (3-avgRank)*100, nil
}

// DecayedStats weights ranks (newest first) by rate^i and returns the weighted
// win rate in percent and the weighted average rank.
func DecayedStats(ranks []int, rate float64, minGames int) (winRate, avgRank float64, ok bool) {
	if len(ranks) == 0 || len(ranks) < minGames {
		return 0, 0, false
	}
	var wins, rankSum, weights float64
	w := 1.0
	for _, r := range ranks {
		if r == 1 {
			wins += w
		}
		rankSum += w * float64(r)
		weights += w
		w *= rate
	}
	if weights == 0 {
		return 0, 0, false
	}
	return wins / weights * 100, rankSum / weights, true
}

func (s *EloService) ratings(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	missing := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if s.cache == nil {
			missing = append(missing, sym)
			continue
		}
		v, err := cache.GetTyped[float64](ctx, s.cache, s.key(sym))
		switch {
		case err == nil:
			out[sym] = v
		case errors.Is(err, cache.ErrCacheMiss):
			missing = append(missing, sym)
		default:
			s.log.Warn("ratings cache read", logger.String("symbol", sym), logger.Error(err))
			missing = append(missing, sym)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	start := time.Now()
	found, err := s.store.Ratings(ctx, missing)
	metrics.CollaboratorLatency.WithLabelValues(collaborator, "ratings").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues(collaborator, "ratings").Inc()
		return nil, fmt.Errorf("load ratings: %w", err)
	}

	for _, sym := range missing {
		r, ok := found[sym]
		if !ok {
			r = s.cfg.DefaultRating
		}
		out[sym] = r
		if s.cache != nil {
			if err := s.cache.Set(ctx, s.key(sym), r, s.cfg.CacheTTL); err != nil {
				s.log.Warn("ratings cache write", logger.String("symbol", sym), logger.Error(err))
			}
		}
	}
	return out, nil
}

func (s *EloService) key(symbol string) string {
	return cache.Key(s.cfg.CachePrefix, "elo", symbol)
}

func unique(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

var _ domsvc.RatingsProbabilityProvider = (*EloService)(nil)
