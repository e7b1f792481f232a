package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	pkgch "TokenRank/pkg/clickhouse"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*pkgch.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return pkgch.NewFromDB(db), mock
}

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestPriceStore_LatestAt(t *testing.T) {
	ch, mock := newMock(t)
	store := NewClickHousePriceStore(ch, nil)

	mock.ExpectQuery(regexp.QuoteMeta("FROM token_prices FINAL")).
		WithArgs("PEPE", t0).
		WillReturnRows(sqlmock.NewRows([]string{"symbol", "minute", "price"}).AddRow("PEPE", t0.Add(-time.Minute), 1.5))

	p, ok, err := store.LatestAt(context.Background(), "PEPE", t0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1.5, p.Price)
	assert.Equal(t, t0.Add(-time.Minute), p.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("FROM token_prices FINAL")).
		WithArgs("WIF", t0).
		WillReturnRows(sqlmock.NewRows([]string{"symbol", "minute", "price"}))
	_, ok, err = store.LatestAt(context.Background(), "WIF", t0)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceStore_RangeOrder(t *testing.T) {
	ch, mock := newMock(t)
	store := NewClickHousePriceStore(ch, nil)

	mock.ExpectQuery(`ORDER BY minute DESC`).
		WithArgs("PEPE", t0.Add(-5*time.Minute), t0).
		WillReturnRows(sqlmock.NewRows([]string{"symbol", "minute", "price"}).
			AddRow("PEPE", t0, 2.0).
			AddRow("PEPE", t0.Add(-time.Minute), 1.0))

	got, err := store.Range(context.Background(), "PEPE", t0.Add(-5*time.Minute), t0, domrepo.Descending)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Price)

	mock.ExpectQuery(`ORDER BY minute ASC`).WillReturnError(errors.New("timeout"))
	_, err = store.Range(context.Background(), "PEPE", t0, t0, "sideways")
	assert.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceStore_SavePrices(t *testing.T) {
	ch, mock := newMock(t)
	store := NewClickHousePriceStore(ch, nil)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO token_prices (symbol, minute, price) VALUES (?, ?, ?),(?, ?, ?)")).
		WithArgs("PEPE", t0, 1.0, "WIF", t0, 2.0).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := store.SavePrices(context.Background(), []models.PriceSample{
		{Symbol: "PEPE", Minute: t0.Add(30 * time.Second), Price: 1},
		{Symbol: "", Minute: t0, Price: 3},
		{Symbol: "WIF", Minute: t0, Price: 2},
	})
	require.NoError(t, err)
	require.NoError(t, store.SavePrices(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutcomeStore_GetActualResult(t *testing.T) {
	ch, mock := newMock(t)
	store := NewClickHouseOutcomeStore(ch, nil)

	mock.ExpectQuery(regexp.QuoteMeta("FROM round_results FINAL")).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"symbol", "rank", "value"}).
			AddRow("B", 1, 0.9).
			AddRow("A", 2, 0.5).
			AddRow("C", 3, 0.1))

	res, err := store.GetActualResult(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "B", res.Winner)
	assert.Equal(t, "C", res.Loser)
	assert.Equal(t, 0.9, res.WinnerScore)
	assert.Equal(t, 0.1, res.LoserScore)
	assert.Equal(t, map[string]int{"A": 2, "B": 1, "C": 3}, res.Rankings)

	mock.ExpectQuery(regexp.QuoteMeta("FROM round_results FINAL")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"symbol", "rank", "value"}))
	res, err = store.GetActualResult(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, res)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutcomeStore_ListRounds(t *testing.T) {
	ch, mock := newMock(t)
	store := NewClickHouseOutcomeStore(ch, nil)

	mock.ExpectQuery(regexp.QuoteMeta("arrayStringConcat(arraySort(groupArray(symbol)), ',')")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"round_id", "started", "settled", "symbols"}).
			AddRow("r2", t0.Add(time.Minute), t0.Add(2*time.Minute), "A,B,C").
			AddRow("r1", time.Unix(0, 0).UTC(), t0, "A,B"))

	rounds, err := store.ListRounds(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, "r1", rounds[0].RoundID)
	assert.Equal(t, t0, rounds[0].Timestamp, "falls back to settle time")
	assert.Equal(t, []string{"A", "B"}, rounds[0].Symbols)
	assert.Equal(t, t0.Add(time.Minute), rounds[1].Timestamp)

	empty, err := store.ListRounds(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutcomeStore_SaveSettlement(t *testing.T) {
	ch, mock := newMock(t)
	store := NewClickHouseOutcomeStore(ch, nil)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO round_results (round_id, symbol, rank, value, started_at, settled_at) VALUES (?, ?, ?, ?, ?, ?),(?, ?, ?, ?, ?, ?)")).
		WithArgs("r1", "PEPE", 1, 0.5, t0, t0.Add(time.Minute), "r1", "WIF", 2, 0.0, t0, t0.Add(time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := store.SaveSettlement(context.Background(), models.Settlement{
		RoundID:   "r1",
		StartedAt: t0,
		SettledAt: t0.Add(time.Minute),
		Results:   []models.SymbolResult{{Symbol: "pepe", Rank: 1, Value: 0.5}, {Symbol: "WIF", Rank: 2}},
	})
	require.NoError(t, err)
	assert.Error(t, store.SaveSettlement(context.Background(), models.Settlement{RoundID: "r2"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingsStore(t *testing.T) {
	ch, mock := newMock(t)
	store := NewClickHouseRatingsStore(ch)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE symbol IN (?, ?)")).
		WithArgs("A", "B").
		WillReturnRows(sqlmock.NewRows([]string{"symbol", "elo"}).AddRow("A", 1620.0))

	ratings, err := store.Ratings(context.Background(), []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"A": 1620}, ratings)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY settled_at DESC")).
		WithArgs("A", 3).
		WillReturnRows(sqlmock.NewRows([]string{"rank"}).AddRow(1).AddRow(4).AddRow(2))
	ranks, err := store.RecentRanks(context.Background(), "A", 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 2}, ranks)

	none, err := store.Ratings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultSink_Write(t *testing.T) {
	ch, mock := newMock(t)
	sink := NewClickHouseResultSink(ch)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO prediction_results")).
		WithArgs("r1", "PEPE", 1, 0.8, "balanced",
			`{"elo":{"raw":1600,"normalized":0.8}}`, `{"elo":1}`, `{"elo":"zscore"}`, t0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := sink.Write(context.Background(), []models.PredictionRecord{{
		RoundID:       "r1",
		Symbol:        "PEPE",
		Rank:          1,
		Score:         0.8,
		Strategy:      "balanced",
		Features:      map[string]models.FeatureValue{"elo": {Raw: 1600, Normalized: 0.8}},
		Weights:       map[string]float64{"elo": 1},
		Normalization: map[string]string{"elo": "zscore"},
		PredictedAt:   t0,
	}})
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportStore_SaveReport(t *testing.T) {
	ch, mock := newMock(t)
	store := NewClickHouseReportStore(ch)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO backtest_reports")).
		WithArgs("id-1", "backtest", "balanced", "null", sqlmock.AnyArg(), t0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SaveReport(context.Background(), models.StoredReport{
		ID:        "id-1",
		Kind:      "backtest",
		Strategy:  "balanced",
		Payload:   models.BacktestReport{Strategy: "balanced"},
		CreatedAt: t0,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaIsIdempotent(t *testing.T) {
	for _, stmt := range Schema() {
		assert.Contains(t, stmt, "IF NOT EXISTS")
	}
	assert.Len(t, Schema(), 5)
}
