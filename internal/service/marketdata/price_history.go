package marketdata

import (
	"context"
	"fmt"
	"time"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	"TokenRank/internal/service/metrics"
	"TokenRank/pkg/logger"
)

// PriceHistoryProvider derives snapshots from stored minute prices: the
// latest price at or before the round time and the change over 24 hours.
type PriceHistoryProvider struct {
	store domrepo.PriceHistoryStore
	log   *logger.Logger
}

func NewPriceHistoryProvider(store domrepo.PriceHistoryStore, log *logger.Logger) *PriceHistoryProvider {
	if log == nil {
		log = logger.NewNop()
	}
	return &PriceHistoryProvider{store: store, log: log}
}

// FetchSnapshots omits symbols without a stored price. It fails only when
// every lookup failed.
func (p *PriceHistoryProvider) FetchSnapshots(ctx context.Context, symbols []string, at time.Time) ([]models.MarketSnapshot, error) {
	start := time.Now()
	defer func() {
		metrics.CollaboratorLatency.WithLabelValues(IDPriceHistory, "snapshots").Observe(time.Since(start).Seconds())
	}()

	out := make([]models.MarketSnapshot, 0, len(symbols))
	var lastErr error
	failed := 0
	for _, sym := range symbols {
		snap, ok, err := p.snapshot(ctx, sym, at)
		if err != nil {
			failed++
			lastErr = err
			p.log.Warn("price history snapshot", logger.String("symbol", sym), logger.Error(err))
			continue
		}
		if ok {
			out = append(out, snap)
		}
	}
	if len(symbols) > 0 && failed == len(symbols) {
		metrics.CollaboratorErrors.WithLabelValues(IDPriceHistory, "snapshots").Inc()
		return nil, fmt.Errorf("price history snapshots: %w", lastErr)
	}
	return out, nil
}

func (p *PriceHistoryProvider) snapshot(ctx context.Context, symbol string, at time.Time) (models.MarketSnapshot, bool, error) {
	latest, ok, err := p.store.LatestAt(ctx, symbol, at)
	if err != nil || !ok {
		return models.MarketSnapshot{}, false, err
	}
	snap := models.MarketSnapshot{Symbol: symbol, Price: latest.Price, Timestamp: latest.Minute}

	prev, ok, err := p.store.LatestAt(ctx, symbol, at.Add(-24*time.Hour))
	if err != nil {
		p.log.Debug("24h reference price", logger.String("symbol", symbol), logger.Error(err))
		return snap, true, nil
	}
	if ok && prev.Price > 0 {
		pct := (latest.Price/prev.Price - 1) * 100
		snap.PriceChange24h = &pct
	}
	return snap, true, nil
}

var _ domrepo.MarketDataProvider = (*PriceHistoryProvider)(nil)
