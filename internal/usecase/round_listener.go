package usecase

import (
	"context"
	"fmt"
	"time"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	"TokenRank/pkg/cache"
	"TokenRank/pkg/logger"
)

// RoundListener reacts to game feed rounds: a round opening for bets is
// predicted once, a settled round is stored as an outcome once.
type RoundListener struct {
	predictor Predictor
	rounds    domrepo.RoundStore
	cache     cache.Service
	prefix    string
	ttl       time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func NewRoundListener(predictor Predictor, rounds domrepo.RoundStore, c cache.Service, prefix string, log *logger.Logger) *RoundListener {
	if log == nil {
		log = logger.NewNop()
	}
	return &RoundListener{
		predictor: predictor,
		rounds:    rounds,
		cache:     c,
		prefix:    prefix,
		ttl:       6 * time.Hour,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (l *RoundListener) HandleRound(ctx context.Context, ev models.RoundEvent) error {
	if ev.RoundID == "" {
		return fmt.Errorf("round event without id")
	}
	switch {
	case ev.Status == models.RoundStatusBet:
		return l.onBet(ctx, ev)
	case ev.Settling():
		return l.onSettle(ctx, ev)
	default:
		return nil
	}
}

func (l *RoundListener) onBet(ctx context.Context, ev models.RoundEvent) error {
	if len(ev.Symbols) == 0 {
		l.log.Warn("bet round without tokens", logger.String("round_id", ev.RoundID))
		return nil
	}
	lockKey := l.key(ev.RoundID, "predicted")
	first, err := l.cache.TryLock(ctx, lockKey, l.ttl)
	if err != nil {
		return fmt.Errorf("dedupe round %s: %w", ev.RoundID, err)
	}
	if !first {
		return nil
	}

	at := ev.ReceivedAt
	if at.IsZero() {
		at = l.now()
	}
	if err := l.cache.Set(ctx, l.key(ev.RoundID, "started"), at, l.ttl); err != nil {
		l.log.Warn("remember round start", logger.String("round_id", ev.RoundID), logger.Error(err))
	}

	ranked := l.predictor.Predict(ctx, models.PredictRequest{
		Symbols:   ev.Symbols,
		Timestamp: at,
		RoundID:   ev.RoundID,
	})
	if len(ranked) == 0 {
		l.log.Warn("round prediction empty", logger.String("round_id", ev.RoundID))
		// a later bet frame for the same round retries
		if err := l.cache.Unlock(ctx, lockKey); err != nil {
			return fmt.Errorf("release round %s: %w", ev.RoundID, err)
		}
		return nil
	}
	l.log.Info("round predicted",
		logger.String("round_id", ev.RoundID),
		logger.Int("tokens", len(ranked)),
		logger.String("top", ranked[0].Symbol))
	return nil
}

func (l *RoundListener) onSettle(ctx context.Context, ev models.RoundEvent) error {
	if len(ev.Results) == 0 {
		l.log.Warn("settlement without results", logger.String("round_id", ev.RoundID))
		return nil
	}
	lockKey := l.key(ev.RoundID, "settled")
	first, err := l.cache.TryLock(ctx, lockKey, l.ttl)
	if err != nil {
		return fmt.Errorf("dedupe settlement %s: %w", ev.RoundID, err)
	}
	if !first {
		return nil
	}

	s := models.Settlement{RoundID: ev.RoundID, SettledAt: ev.SettledAt, Results: ev.Results}
	if s.SettledAt.IsZero() {
		s.SettledAt = l.now()
	}
	if started, err := cache.GetTyped[time.Time](ctx, l.cache, l.key(ev.RoundID, "started")); err == nil {
		s.StartedAt = started
	}

	if err := l.rounds.SaveSettlement(ctx, s); err != nil {
		// a later settled frame for the same round retries
		_ = l.cache.Unlock(ctx, lockKey)
		return fmt.Errorf("save settlement %s: %w", ev.RoundID, err)
	}
	l.log.Info("round settled",
		logger.String("round_id", ev.RoundID),
		logger.Int("tokens", len(ev.Results)))
	return nil
}

func (l *RoundListener) key(roundID, what string) string {
	return cache.Key(l.prefix, "round", roundID, what)
}
