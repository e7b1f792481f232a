package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	"TokenRank/pkg/util"
)

// MemoryPriceStore keeps minute prices in process, with the same minute
// semantics as ClickHousePriceStore.
type MemoryPriceStore struct {
	mu     sync.RWMutex
	series map[string][]models.PriceSample
}

func NewMemoryPriceStore() *MemoryPriceStore {
	return &MemoryPriceStore{series: make(map[string][]models.PriceSample)}
}

// SavePrices keeps one sample per symbol and minute; the last write wins.
func (m *MemoryPriceStore) SavePrices(_ context.Context, samples []models.PriceSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range samples {
		if p.Symbol == "" || p.Minute.IsZero() {
			continue
		}
		p.Minute = util.MinuteFloor(p.Minute)
		s := m.series[p.Symbol]
		i := sort.Search(len(s), func(i int) bool { return !s[i].Minute.Before(p.Minute) })
		if i < len(s) && s[i].Minute.Equal(p.Minute) {
			s[i] = p
			continue
		}
		s = append(s, models.PriceSample{})
		copy(s[i+1:], s[i:])
		s[i] = p
		m.series[p.Symbol] = s
	}
	return nil
}

func (m *MemoryPriceStore) LatestAt(_ context.Context, symbol string, t time.Time) (models.PriceSample, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.series[symbol]
	i := sort.Search(len(s), func(i int) bool { return s[i].Minute.After(t) })
	if i == 0 {
		return models.PriceSample{}, false, nil
	}
	return s[i-1], true, nil
}

func (m *MemoryPriceStore) Range(_ context.Context, symbol string, from, to time.Time, order domrepo.SortOrder) ([]models.PriceSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.PriceSample
	for _, p := range m.series[symbol] {
		if p.Minute.Before(from) || p.Minute.After(to) {
			continue
		}
		out = append(out, p)
	}
	if order == domrepo.Descending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

var (
	_ domrepo.PriceHistoryStore = (*MemoryPriceStore)(nil)
	_ domrepo.PriceWriter       = (*MemoryPriceStore)(nil)
)
