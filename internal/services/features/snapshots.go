package features

import (
	"context"
	"strings"
	"time"

	"TokenRank/internal/domain/models"
	"TokenRank/internal/domain/repository"
	"TokenRank/pkg/logger"
	"TokenRank/pkg/util"
)

// CanonicalSnapshots uppercases symbols, drops blanks and keeps the first
// record of each symbol, preserving source order.
func CanonicalSnapshots(src models.SnapshotSource) []models.MarketSnapshot {
	if src == nil {
		return nil
	}
	in := src.Snapshots()
	out := make([]models.MarketSnapshot, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		sym := CanonicalSymbol(s.Symbol)
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		s.Symbol = sym
		out = append(out, s)
	}
	return out
}

func CanonicalSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// CanonicalSymbols applies CanonicalSymbol to a list with the same dedup rules.
func CanonicalSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		sym := CanonicalSymbol(s)
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

func symbolsOf(snaps []models.MarketSnapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.Symbol
	}
	return out
}

func fallbackScore(raw, hint float64, reason string) models.FeatureScore {
	return models.FeatureScore{
		Raw:            raw,
		NormalizedHint: hint,
		Meta:           map[string]interface{}{"fallback": true, "reason": reason},
	}
}

// priceReader serves preloaded samples first and the store otherwise.
type priceReader struct {
	store repository.PriceHistoryStore
}

// anchor is the minute a prediction is made for.
func anchor(h models.History) time.Time {
	if h.At.IsZero() {
		return util.MinuteFloor(time.Now().UTC())
	}
	return util.MinuteFloor(h.At)
}

// window returns ascending samples with from <= minute <= to.
func (r priceReader) window(ctx context.Context, h models.History, symbol string, from, to time.Time) ([]models.PriceSample, error) {
	if samples, ok := h.Prices[symbol]; ok {
		out := make([]models.PriceSample, 0, len(samples))
		for _, s := range samples {
			if !s.Minute.Before(from) && !s.Minute.After(to) {
				out = append(out, s)
			}
		}
		return out, nil
	}
	if r.store == nil {
		return nil, nil
	}
	return r.store.Range(ctx, symbol, from, to, repository.Ascending)
}

func (r priceReader) latestAt(ctx context.Context, h models.History, symbol string, t time.Time) (models.PriceSample, bool, error) {
	if samples, ok := h.Prices[symbol]; ok {
		var (
			best  models.PriceSample
			found bool
		)
		for _, s := range samples {
			if s.Minute.After(t) {
				continue
			}
			if !found || s.Minute.After(best.Minute) {
				best, found = s, true
			}
		}
		return best, found, nil
	}
	if r.store == nil {
		return models.PriceSample{}, false, nil
	}
	return r.store.LatestAt(ctx, symbol, t)
}

func pricesOf(samples []models.PriceSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Price
	}
	return out
}

func orNop(log *logger.Logger) *logger.Logger {
	if log == nil {
		return logger.NewNop()
	}
	return log
}
