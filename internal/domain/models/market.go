package models

import (
	"sort"
	"time"
)

// MarketSnapshot is the latest market state of one token.
type MarketSnapshot struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume24h float64   `json:"volume_24h,omitempty"` // <= 0 means unknown
	Timestamp time.Time `json:"timestamp"`
	// PriceChange24h is a percentage; nil when the source did not report it.
	PriceChange24h *float64 `json:"price_change_24h,omitempty"`
}

// PriceSample is one per-minute close.
type PriceSample struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Minute time.Time `json:"minute"`
}

// SnapshotSource is either an ordered list or a keyed collection of snapshots.
type SnapshotSource interface {
	Snapshots() []MarketSnapshot
}

type SnapshotList []MarketSnapshot

func (l SnapshotList) Snapshots() []MarketSnapshot { return l }

// SnapshotMap is keyed by symbol. Iteration is sorted by key so results are stable.
type SnapshotMap map[string]MarketSnapshot

func (m SnapshotMap) Snapshots() []MarketSnapshot {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]MarketSnapshot, 0, len(m))
	for _, k := range keys {
		s := m[k]
		if s.Symbol == "" {
			s.Symbol = k
		}
		out = append(out, s)
	}
	return out
}

// History is the temporal context of a prediction. Prices, when set, holds
// preloaded ascending per-minute samples and takes precedence over the store.
type History struct {
	At     time.Time
	Prices map[string][]PriceSample
}
