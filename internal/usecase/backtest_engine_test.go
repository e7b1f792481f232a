package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"TokenRank/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPredictor ranks each round from a fixed script.
type scriptedPredictor map[string][]string

func (s scriptedPredictor) Predict(_ context.Context, req models.PredictRequest) []models.RankedResult {
	ranking := s[req.RoundID]
	out := make([]models.RankedResult, len(ranking))
	for i, sym := range ranking {
		out[i] = models.RankedResult{Symbol: sym, Score: float64(len(ranking) - i), Rank: i + 1}
	}
	return out
}

type builderFunc func(cfg models.StrategyConfig) (Predictor, error)

func (f builderFunc) BuildPredictor(cfg models.StrategyConfig) (Predictor, error) { return f(cfg) }

func staticBuilder(p Predictor) builderFunc {
	return func(models.StrategyConfig) (Predictor, error) { return p, nil }
}

type fakeOutcomes struct {
	results map[string]*models.ActualResult
	errs    map[string]error
}

func (f *fakeOutcomes) GetActualResult(_ context.Context, roundID string) (*models.ActualResult, error) {
	if err := f.errs[roundID]; err != nil {
		return nil, err
	}
	return f.results[roundID], nil
}

func winners(pairs ...string) *fakeOutcomes {
	f := &fakeOutcomes{results: map[string]*models.ActualResult{}, errs: map[string]error{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		f.results[pairs[i]] = &models.ActualResult{RoundID: pairs[i], Winner: pairs[i+1]}
	}
	return f
}

func roundsOf(ids ...string) []models.HistoricalRound {
	out := make([]models.HistoricalRound, len(ids))
	for i, id := range ids {
		out[i] = models.HistoricalRound{
			RoundID:   id,
			Symbols:   []string{"A", "B", "C", "X"},
			Timestamp: time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC),
		}
	}
	return out
}

func TestRunBacktest_WinAndProfitRate(t *testing.T) {
	predictor := scriptedPredictor{"r1": {"A", "B"}, "r2": {"B", "A"}, "r3": {"C", "A"}}
	engine := NewBacktestEngine(staticBuilder(predictor), winners("r1", "A", "r2", "X", "r3", "C"), nil, nil, nil)

	report := engine.RunBacktest(context.Background(), roundsOf("r1", "r2", "r3"), models.StrategyConfig{Name: "s"})

	assert.Equal(t, 3, report.TotalRounds)
	assert.Equal(t, 2, report.Wins)
	assert.InDelta(t, 2.0/3.0, report.WinRate, 1e-12)
	assert.InDelta(t, 1.0/3.0, report.ProfitRate, 1e-12)
	assert.Equal(t, 1.0, report.MaxProfit)
	assert.Equal(t, -1.0, report.MaxLoss)
	assert.Equal(t, 1.0, report.MaxDrawdown)
	assert.Equal(t, 1.0, report.AvgProfitLossRatio)
}

func TestRunBacktest_Empty(t *testing.T) {
	engine := NewBacktestEngine(staticBuilder(scriptedPredictor{}), winners(), nil, nil, nil)
	report := engine.RunBacktest(context.Background(), nil, models.StrategyConfig{Name: "s"})
	assert.Equal(t, models.BacktestReport{Strategy: "s"}, report)
}

func TestRunBacktest_SkipsFailedRounds(t *testing.T) {
	predictor := scriptedPredictor{"ok": {"A"}, "missing": {"A"}, "broken": {"A"}}
	outcomes := winners("ok", "A")
	outcomes.errs["broken"] = errors.New("timeout")

	engine := NewBacktestEngine(staticBuilder(predictor), outcomes, nil, nil, nil)
	report := engine.RunBacktest(context.Background(), roundsOf("ok", "empty", "missing", "broken"), models.StrategyConfig{Name: "s"})

	assert.Equal(t, 4, report.InputRounds)
	assert.Equal(t, 1, report.TotalRounds)
	assert.Equal(t, 1.0, report.WinRate)
	require.Len(t, report.Rounds, 1)
	assert.Equal(t, "ok", report.Rounds[0].RoundID)
}

func TestRunBacktest_BuildFailureIsZeroed(t *testing.T) {
	builder := builderFunc(func(models.StrategyConfig) (Predictor, error) { return nil, errors.New("bad normalization") })
	engine := NewBacktestEngine(builder, winners(), nil, nil, nil)
	report := engine.RunBacktest(context.Background(), roundsOf("r1"), models.StrategyConfig{Name: "s"})
	assert.Equal(t, 0, report.TotalRounds)
	assert.Equal(t, 1, report.InputRounds)
}

func TestRankGradedPayoff(t *testing.T) {
	outcomes := &fakeOutcomes{results: map[string]*models.ActualResult{
		"r1": {Winner: "A", Rankings: map[string]int{"A": 1, "B": 2, "C": 3, "D": 4}},
		"r2": {Winner: "A", Rankings: map[string]int{"A": 1, "B": 2, "C": 3, "D": 4}},
		"r3": {Winner: "A", Rankings: map[string]int{"A": 1, "B": 2, "C": 3, "D": 4}},
		"r4": {Winner: "A"},
	}}
	predictor := scriptedPredictor{"r1": {"A"}, "r2": {"C"}, "r3": {"D"}, "r4": {"B"}}
	engine := NewBacktestEngine(staticBuilder(predictor), outcomes, RankGradedPayoff{}, nil, nil)

	report := engine.RunBacktest(context.Background(), roundsOf("r1", "r2", "r3", "r4"), models.StrategyConfig{Name: "s"})

	require.Len(t, report.Rounds, 4)
	assert.Equal(t, []float64{1, 0, -1, -1}, []float64{
		report.Rounds[0].PnL, report.Rounds[1].PnL, report.Rounds[2].PnL, report.Rounds[3].PnL,
	})
	assert.Equal(t, 3, report.Rounds[1].ActualRank)
	assert.InDelta(t, 0.5, report.Top3Rate, 1e-12)
	assert.InDelta(t, 0.25, report.BreakevenRate, 1e-12)
	assert.Equal(t, 2, report.Losses)
}

func TestNewPayoffModel(t *testing.T) {
	m, err := NewPayoffModel("")
	require.NoError(t, err)
	assert.Equal(t, PayoffBinary, m.Name())

	m, err = NewPayoffModel("rank_graded")
	require.NoError(t, err)
	assert.Equal(t, PayoffRankGraded, m.Name())

	_, err = NewPayoffModel("kelly")
	assert.Error(t, err)
}

func TestComputeReport_DrawdownFromZeroPeak(t *testing.T) {
	rounds := []models.BacktestRound{
		{PredictedRanking: []string{"A"}, ActualWinner: "B", PnL: -1},
		{PredictedRanking: []string{"A"}, ActualWinner: "B", PnL: -1},
		{PredictedRanking: []string{"A"}, ActualWinner: "A", PnL: 1},
	}
	r := ComputeReport("s", 3, rounds)

	assert.Equal(t, 2.0, r.MaxDrawdown)
	assert.Equal(t, []float64{-1, -2, -1}, r.EquityCurve)
	assert.Equal(t, 2, r.MaxConsecutiveLosses)
	assert.Equal(t, 1, r.MaxConsecutiveWins)
	assert.InDelta(t, 0.5, r.ProfitFactor, 1e-12)
	assert.InDelta(t, -1.0/3.0, r.Expectancy, 1e-12)
	assert.InDelta(t, -1.0/6.0, r.CalmarRatio, 1e-12)
	assert.True(t, r.SharpeRatio < 0)
	assert.True(t, r.SortinoRatio < 0)
	assert.Equal(t, 1.0, r.MaxProfit)
	assert.Equal(t, -1.0, r.MaxLoss)
}

func TestComputeReport_AllWins(t *testing.T) {
	rounds := []models.BacktestRound{
		{PredictedRanking: []string{"A"}, ActualWinner: "A", PnL: 1},
		{PredictedRanking: []string{"A"}, ActualWinner: "A", PnL: 1},
	}
	r := ComputeReport("s", 2, rounds)
	assert.Equal(t, 0.0, r.SharpeRatio, "no variance")
	assert.Equal(t, 0.0, r.AvgProfitLossRatio, "no losses")
	assert.Equal(t, 0.0, r.MaxLoss)
	assert.Equal(t, 0.0, r.MaxDrawdown)
	assert.Equal(t, 1.0, r.BreakevenRate)
}
