package features

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"TokenRank/internal/domain/models"
	"TokenRank/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEnd = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeRatings struct {
	ratings map[string]float64
	probs   map[string]float64
	err     error
	probErr error
}

func (f *fakeRatings) GetRating(_ context.Context, symbol string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if r, ok := f.ratings[symbol]; ok {
		return r, nil
	}
	return DefaultRating, nil
}

func (f *fakeRatings) Probabilities(_ context.Context, symbols []string, _ bool) (map[string]float64, error) {
	if f.probErr != nil {
		return nil, f.probErr
	}
	return f.probs, nil
}

// sliceStore serves Range/LatestAt from in-memory samples.
type sliceStore struct {
	samples map[string][]models.PriceSample
	err     error
}

func (s *sliceStore) LatestAt(_ context.Context, symbol string, t time.Time) (models.PriceSample, bool, error) {
	if s.err != nil {
		return models.PriceSample{}, false, s.err
	}
	var best models.PriceSample
	found := false
	for _, p := range s.samples[symbol] {
		if !p.Minute.After(t) && (!found || p.Minute.After(best.Minute)) {
			best, found = p, true
		}
	}
	return best, found, nil
}

func (s *sliceStore) Range(_ context.Context, symbol string, from, to time.Time, _ repository.SortOrder) ([]models.PriceSample, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.PriceSample
	for _, p := range s.samples[symbol] {
		if !p.Minute.Before(from) && !p.Minute.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

// series places prices one minute apart, the last one at end.
func series(symbol string, end time.Time, prices ...float64) []models.PriceSample {
	out := make([]models.PriceSample, len(prices))
	for i, p := range prices {
		out[i] = models.PriceSample{
			Symbol: symbol,
			Price:  p,
			Minute: end.Add(-time.Duration(len(prices)-1-i) * time.Minute),
		}
	}
	return out
}

func snaps(symbols ...string) models.SnapshotList {
	out := make(models.SnapshotList, len(symbols))
	for i, s := range symbols {
		out[i] = models.MarketSnapshot{Symbol: s, Price: 1}
	}
	return out
}

func pct(v float64) *float64 { return &v }

func TestCanonicalSnapshots(t *testing.T) {
	got := CanonicalSnapshots(models.SnapshotList{
		{Symbol: "btc"}, {Symbol: " BTC "}, {Symbol: ""}, {Symbol: "eth"},
	})
	assert.Equal(t, []string{"BTC", "ETH"}, symbolsOf(got))

	m := models.SnapshotMap{"sol": {}, "ada": {Symbol: "ada"}}
	assert.Equal(t, []string{"ADA", "SOL"}, symbolsOf(CanonicalSnapshots(m)))

	assert.Equal(t, []string{"A", "B"}, CanonicalSymbols([]string{"a", " ", "A", "b"}))
	assert.Nil(t, CanonicalSnapshots(nil))
}

func TestPTop3_EqualRatings(t *testing.T) {
	p := NewPTop3FromElo(&fakeRatings{}, nil)
	out := p.ExtractFeatures(context.Background(), snaps("A", "B", "C", "D", "E"), models.History{})

	require.Len(t, out, 5)
	sum := 0.0
	for _, s := range out {
		assert.InDelta(t, 0.6, s.Raw, 1e-9)
		sum += s.Raw
	}
	assert.InDelta(t, 3.0, sum, 1e-9)
}

func TestPTop3_SumsAndSmallSets(t *testing.T) {
	r := &fakeRatings{ratings: map[string]float64{"A": 1800, "B": 1500, "C": 1400, "D": 1200}}
	p := NewPTop3FromElo(r, nil)

	out := p.ExtractFeatures(context.Background(), snaps("A", "B", "C", "D"), models.History{})
	sum := 0.0
	for _, s := range out {
		sum += s.Raw
	}
	assert.InDelta(t, 3.0, sum, 1e-9)
	assert.True(t, out["A"].Raw > out["B"].Raw)
	assert.True(t, out["C"].Raw > out["D"].Raw)

	assert.Empty(t, p.ExtractFeatures(context.Background(), snaps("A"), models.History{}))

	two := p.ExtractFeatures(context.Background(), snaps("A", "B"), models.History{})
	assert.InDelta(t, 1.0, two["A"].Raw, 1e-9)
	assert.InDelta(t, 1.0, two["B"].Raw, 1e-9)
}

func TestTopKProbabilities_Skewed(t *testing.T) {
	probs := TopKProbabilities([]float64{1, 1, 1, 1, 1000}, 1)
	assert.True(t, probs[4] > 0.99)
	assert.InDelta(t, 1.0, probs[0]+probs[1]+probs[2]+probs[3]+probs[4], 1e-9)
}

func TestElo_FallbackOnError(t *testing.T) {
	p := NewElo(&fakeRatings{err: errors.New("down")}, nil)
	out := p.ExtractFeatures(context.Background(), snaps("a", "b"), models.History{})
	require.Len(t, out, 2)
	assert.Equal(t, DefaultRating, out["A"].Raw)
	assert.True(t, out["A"].Fallback())

	ok := NewElo(&fakeRatings{ratings: map[string]float64{"A": 1620}}, nil).
		ExtractFeatures(context.Background(), snaps("A"), models.History{})
	assert.Equal(t, 1620.0, ok["A"].Raw)
	assert.False(t, ok["A"].Fallback())
}

func TestEloProbDecayed(t *testing.T) {
	ctx := context.Background()

	p := NewEloProbDecayed(&fakeRatings{probs: map[string]float64{"A": 0.7, "B": 0.3}}, nil)
	assert.Empty(t, p.ExtractFeatures(ctx, snaps("A"), models.History{}))

	out := p.ExtractFeatures(ctx, snaps("A", "B", "C"), models.History{})
	assert.Equal(t, 0.7, out["A"].Raw)
	assert.Equal(t, 0.5, out["C"].Raw)
	assert.True(t, out["C"].Fallback())

	failing := NewEloProbDecayed(&fakeRatings{probErr: errors.New("boom")}, nil)
	out = failing.ExtractFeatures(ctx, snaps("A", "B"), models.History{})
	for _, s := range out {
		assert.Equal(t, 0.5, s.Raw)
		assert.True(t, s.Fallback())
	}
}

func TestMomentum24h(t *testing.T) {
	ctx := context.Background()
	h := models.History{
		At: testEnd.Add(30 * time.Second),
		Prices: map[string][]models.PriceSample{
			"A": {
				{Symbol: "A", Price: 100, Minute: testEnd.Add(-24 * time.Hour)},
				{Symbol: "A", Price: 110, Minute: testEnd},
			},
			"B": {
				{Symbol: "B", Price: 100, Minute: testEnd.Add(-24 * time.Hour)},
				{Symbol: "B", Price: 300, Minute: testEnd},
			},
		},
	}
	src := models.SnapshotList{
		{Symbol: "A"},
		{Symbol: "B"},
		{Symbol: "C", PriceChange24h: pct(10)},
		{Symbol: "D"},
	}

	out := NewMomentum24h(nil, nil).ExtractFeatures(ctx, src, h)

	assert.InDelta(t, math.Log(1.1)*100, out["A"].Raw, 1e-9)
	assert.Equal(t, "history", out["A"].Meta["source"])
	assert.Equal(t, 50.0, out["B"].Raw, "winsorized")
	assert.InDelta(t, math.Log(1.1)*100, out["C"].Raw, 1e-9)
	assert.Equal(t, "snapshot", out["C"].Meta["source"])
	assert.Equal(t, 0.0, out["D"].Raw)
	assert.True(t, out["D"].Fallback())
}

func TestShortTermMomentum(t *testing.T) {
	ctx := context.Background()
	h := models.History{
		At: testEnd,
		Prices: map[string][]models.PriceSample{
			"FLAT": series("FLAT", testEnd, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10),
			"UP":   series("UP", testEnd, 10, 10.01, 10.02, 10.03, 10.04, 10.05, 10.06, 10.07, 10.08, 10.09, 10.1, 10.11, 10.12, 10.13, 10.14, 10.15),
			"ONE":  series("ONE", testEnd, 10),
		},
	}

	out := NewShortTermMomentum(nil, nil).ExtractFeatures(ctx, snaps("FLAT", "UP", "ONE"), h)

	assert.InDelta(t, 50, out["FLAT"].Raw, 1e-9)
	assert.True(t, out["UP"].Raw > 50)
	assert.True(t, out["UP"].Raw <= 100)
	assert.Equal(t, 50.0, out["ONE"].Raw)
	assert.True(t, out["ONE"].Fallback())
}

func TestShortTermMomentum_VolatilityDamping(t *testing.T) {
	p := NewShortTermMomentum(nil, nil)
	calm := p.score(series("X", testEnd, 10, 10.5, 11), testEnd)
	wild := p.score(series("X", testEnd, 10, 14, 11), testEnd)

	assert.Equal(t, 0.0, calm.Meta["damping"])
	assert.True(t, wild.Meta["damping"].(float64) > 0)
	assert.True(t, wild.Meta["damping"].(float64) <= maxVolatilityDamp)
}

func TestWindowFeatures(t *testing.T) {
	ctx := context.Background()
	store := &sliceStore{samples: map[string][]models.PriceSample{
		"A": series("A", testEnd, 100, 120, 90, 110),
		"B": series("B", testEnd, 50, 50, 50, 50),
		"C": series("C", testEnd, 10),
	}}
	h := models.History{At: testEnd}
	src := snaps("A", "B", "C")

	ret := NewStReturn(store, 5, nil).ExtractFeatures(ctx, src, h)
	assert.InDelta(t, math.Log(1.1)*100, ret["A"].Raw, 1e-9)
	assert.Equal(t, 0.0, ret["B"].Raw)
	assert.True(t, ret["C"].Fallback())

	trend := NewStTrend(store, 5, nil).ExtractFeatures(ctx, src, h)
	assert.Equal(t, 0.0, trend["B"].Raw)
	assert.False(t, trend["B"].Fallback())
	assert.True(t, trend["C"].Fallback())

	vol := NewStVolatility(store, 5, nil).ExtractFeatures(ctx, src, h)
	assert.Equal(t, 50.0, vol["B"].Raw)
	assert.True(t, vol["A"].Raw < vol["B"].Raw)

	dd := NewDrawdownShort(store, 15, nil).ExtractFeatures(ctx, src, h)
	assert.InDelta(t, 25.0, dd["A"].Raw, 1e-9)
	assert.Equal(t, 50.0, dd["B"].Raw)
	assert.Equal(t, 0.0, dd["C"].Raw)
	assert.True(t, dd["C"].Fallback())
}

func TestWindowFeatures_StoreError(t *testing.T) {
	store := &sliceStore{err: errors.New("clickhouse down")}
	out := NewStTrend(store, 5, nil).ExtractFeatures(context.Background(), snaps("A"), models.History{At: testEnd})
	assert.Equal(t, 0.0, out["A"].Raw)
	assert.True(t, out["A"].Fallback())
}

func TestStTrend_RawPriceRegression(t *testing.T) {
	raw, _, ok := stTrendScore([]float64{0, 0.01, 0.02})
	require.True(t, ok)
	assert.InDelta(t, 10.0, raw, 1e-9)
}

func TestVolume(t *testing.T) {
	ctx := context.Background()
	src := models.SnapshotList{
		{Symbol: "A", Volume24h: 10},
		{Symbol: "B", Volume24h: 20},
		{Symbol: "C", Volume24h: 30},
		{Symbol: "D"},
	}
	out := NewVolume().ExtractFeatures(ctx, src, models.History{})
	assert.Equal(t, 0.0, out["A"].Raw)
	assert.Equal(t, 50.0, out["B"].Raw)
	assert.Equal(t, 100.0, out["C"].Raw)
	assert.NotContains(t, out, "D")

	equal := NewVolume().ExtractFeatures(ctx, models.SnapshotList{{Symbol: "A", Volume24h: 5}, {Symbol: "B", Volume24h: 5}}, models.History{})
	assert.Equal(t, 50.0, equal["A"].Raw)
	assert.Empty(t, NewVolume().ExtractFeatures(ctx, snaps("A"), models.History{}))
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry([]string{KeyMomentum, KeyElo, KeyVolume}, Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, []string{"momentum", "elo", "volume"}, r.Keys())
	assert.True(t, r.Has("elo"))
	assert.False(t, r.Has("st_trend"))

	_, err = NewRegistry([]string{"elo", "lunar_phase"}, Dependencies{})
	assert.ErrorIs(t, err, ErrUnknownFeature)

	_, err = NewRegistry([]string{"elo", "elo"}, Dependencies{})
	assert.Error(t, err)

	_, err = NewRegistry(nil, Dependencies{})
	assert.Error(t, err)

	assert.Len(t, Available(), 10)
}
