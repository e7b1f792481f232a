package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"TokenRank/internal/domain/models"
	"TokenRank/internal/service/ratelimit"
	"TokenRank/internal/services/features"
	"TokenRank/internal/usecase"
	xlogger "TokenRank/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type allSymbols struct{}

func (allSymbols) FetchSnapshots(_ context.Context, symbols []string, at time.Time) ([]models.MarketSnapshot, error) {
	out := make([]models.MarketSnapshot, len(symbols))
	for i, s := range symbols {
		out[i] = models.MarketSnapshot{Symbol: s, Price: 1, Timestamp: at}
	}
	return out, nil
}

type fixedFeature map[string]float64

func (fixedFeature) Key() string { return "fixed" }

func (f fixedFeature) ExtractFeatures(_ context.Context, _ models.SnapshotSource, _ models.History) map[string]models.FeatureScore {
	out := make(map[string]models.FeatureScore, len(f))
	for sym, v := range f {
		out[sym] = models.FeatureScore{Raw: v}
	}
	return out
}

func newFactory(t *testing.T) *usecase.PipelineFactory {
	t.Helper()
	f, err := usecase.NewPipelineFactory(usecase.FactoryConfig{
		Registry:   features.NewRegistryFrom(fixedFeature{"X": 1, "Y": 3, "Z": 2}),
		MarketData: allSymbols{},
		Strategies: map[string]models.StrategyConfig{
			"balanced": {Weights: map[string]float64{"fixed": 1}, Normalization: map[string]string{"fixed": "identity"}},
			"flat":     {Weights: map[string]float64{"fixed": 0.5}},
		},
		DefaultStrategy: "balanced",
	}, nil)
	require.NoError(t, err)
	return f
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func serve(t *testing.T, e *echo.Echo, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func predictionServer(t *testing.T, mws ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	NewPredictionHandler(xlogger.NewNop(), newFactory(t), time.Second, mws...).RegisterRoutes(e)
	return e
}

func TestPredict_Ranks(t *testing.T) {
	e := predictionServer(t)
	code, env := serve(t, e, http.MethodPost, "/api/v1/predict",
		`{"symbols":["x","y","z"],"round_id":"r1","timestamp":"2025-03-01T12:00:00Z"}`)
	require.Equal(t, http.StatusOK, code)

	var resp models.PredictHTTPResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "balanced", resp.Strategy)
	assert.Equal(t, "r1", resp.RoundID)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), resp.Timestamp)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "Y", resp.Results[0].Symbol)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, 3.0, resp.Results[0].Score)
	assert.Equal(t, "X", resp.Results[2].Symbol)
}

func TestPredict_UnknownStrategyFallsBack(t *testing.T) {
	e := predictionServer(t)
	code, env := serve(t, e, http.MethodPost, "/api/v1/predict", `{"symbols":["x"],"strategy":"nope"}`)
	require.Equal(t, http.StatusOK, code)

	var resp models.PredictHTTPResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "balanced", resp.Strategy)
}

func TestPredict_BadRequests(t *testing.T) {
	e := predictionServer(t)
	cases := map[string]string{
		"no symbols":     `{"symbols":[]}`,
		"blank symbol":   `{"symbols":[""]}`,
		"bad timestamp":  `{"symbols":["x"],"timestamp":"yesterday"}`,
		"malformed json": `{"symbols":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			code, _ := serve(t, e, http.MethodPost, "/api/v1/predict", body)
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}
}

func TestPredict_RateLimited(t *testing.T) {
	e := predictionServer(t, ratelimit.Middleware(ratelimit.New(), 1, 1, time.Hour))
	code, _ := serve(t, e, http.MethodPost, "/api/v1/predict", `{"symbols":["x"]}`)
	assert.Equal(t, http.StatusOK, code)
	code, _ = serve(t, e, http.MethodPost, "/api/v1/predict", `{"symbols":["x"]}`)
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestStrategies_List(t *testing.T) {
	e := predictionServer(t)
	code, env := serve(t, e, http.MethodGet, "/api/v1/strategies", "")
	require.Equal(t, http.StatusOK, code)

	var list struct {
		Rows  []models.StrategyView `json:"rows"`
		Total int64                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Equal(t, int64(2), list.Total)
	assert.Equal(t, "balanced", list.Rows[0].Name)
	assert.True(t, list.Rows[0].Default)
	assert.Equal(t, "flat", list.Rows[1].Name)
	assert.False(t, list.Rows[1].Default)
	assert.Equal(t, 0.5, list.Rows[1].Weights["fixed"])
}

type fakeBacktester struct {
	report    models.BacktestReport
	results   []models.GridSearchResult
	err       error
	lastLimit int
	lastGrid  []models.GridAxis
}

func (f *fakeBacktester) Backtest(_ context.Context, strategy string, limit int) (models.BacktestReport, string, error) {
	f.lastLimit = limit
	r := f.report
	r.Strategy = strategy
	return r, "rep-1", f.err
}

func (f *fakeBacktester) GridSearch(_ context.Context, _ string, limit int, grid []models.GridAxis) ([]models.GridSearchResult, string, error) {
	f.lastLimit = limit
	f.lastGrid = grid
	return f.results, "rep-2", f.err
}

type fakeJobs struct {
	submitted []models.BacktestJobPayload
	status    map[string]models.JobStatus
	err       error
}

func (f *fakeJobs) Submit(_ context.Context, p models.BacktestJobPayload) (models.JobStatus, error) {
	if f.err != nil {
		return models.JobStatus{}, f.err
	}
	f.submitted = append(f.submitted, p)
	return models.JobStatus{ID: "job-1", Kind: p.Kind, Status: models.JobQueued}, nil
}

func (f *fakeJobs) Status(_ context.Context, id string) (models.JobStatus, error) {
	s, ok := f.status[id]
	if !ok {
		return models.JobStatus{}, usecase.ErrJobNotFound
	}
	return s, nil
}

func backtestServer(bt Backtester, jobs JobQueue) *echo.Echo {
	e := echo.New()
	NewBacktestHandler(xlogger.NewNop(), bt, jobs).RegisterRoutes(e)
	return e
}

func TestBacktest_SyncDropsRoundsByDefault(t *testing.T) {
	bt := &fakeBacktester{report: models.BacktestReport{
		TotalRounds: 2,
		WinRate:     0.5,
		Rounds:      []models.BacktestRound{{RoundID: "r1"}, {RoundID: "r2"}},
	}}
	e := backtestServer(bt, nil)

	code, env := serve(t, e, http.MethodPost, "/api/v1/backtests", `{"strategy":"balanced"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 500, bt.lastLimit)

	var resp backtestResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "rep-1", resp.ReportID)
	require.NotNil(t, resp.Report)
	assert.Equal(t, "balanced", resp.Report.Strategy)
	assert.Equal(t, 0.5, resp.Report.WinRate)
	assert.Empty(t, resp.Report.Rounds)

	_, env = serve(t, e, http.MethodPost, "/api/v1/backtests", `{"limit":10,"include_rounds":true}`)
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Len(t, resp.Report.Rounds, 2)
	assert.Equal(t, 10, bt.lastLimit)
}

func TestBacktest_GridSearch(t *testing.T) {
	bt := &fakeBacktester{results: []models.GridSearchResult{
		{Parameters: map[string]interface{}{"elo_weight": 0.4}, Metrics: models.BacktestReport{WinRate: 0.7}, Promotable: true},
	}}
	e := backtestServer(bt, nil)

	code, env := serve(t, e, http.MethodPost, "/api/v1/backtests",
		`{"grid":[{"name":"elo_weight","values":[0.4,0.6]}]}`)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, bt.lastGrid, 1)
	assert.Equal(t, "elo_weight", bt.lastGrid[0].Name)

	var resp backtestResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "rep-2", resp.ReportID)
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].Promotable)

	code, _ = serve(t, e, http.MethodPost, "/api/v1/backtests", `{"grid":[{"name":"elo_weight","values":[]}]}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBacktest_StoreFailure(t *testing.T) {
	e := backtestServer(&fakeBacktester{err: errors.New("clickhouse down")}, nil)
	code, _ := serve(t, e, http.MethodPost, "/api/v1/backtests", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestBacktest_Async(t *testing.T) {
	jobs := &fakeJobs{status: map[string]models.JobStatus{
		"job-1": {ID: "job-1", Kind: models.JobKindBacktest, Status: models.JobDone, ReportID: "rep-9"},
	}}
	e := backtestServer(&fakeBacktester{}, jobs)

	code, env := serve(t, e, http.MethodPost, "/api/v1/backtests", `{"async":true,"strategy":"flat","limit":50}`)
	require.Equal(t, http.StatusAccepted, code)
	require.Len(t, jobs.submitted, 1)
	assert.Equal(t, models.BacktestJobPayload{Kind: models.JobKindBacktest, Strategy: "flat", Limit: 50}, jobs.submitted[0])

	var status models.JobStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, models.JobQueued, status.Status)

	code, env = serve(t, e, http.MethodGet, "/api/v1/backtests/jobs/job-1", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "rep-9", status.ReportID)

	code, _ = serve(t, e, http.MethodGet, "/api/v1/backtests/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestBacktest_AsyncDisabled(t *testing.T) {
	e := backtestServer(&fakeBacktester{}, nil)
	code, _ := serve(t, e, http.MethodPost, "/api/v1/backtests", `{"async":true}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	code, _ = serve(t, e, http.MethodGet, "/api/v1/backtests/jobs/x", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	e = backtestServer(&fakeBacktester{}, &fakeJobs{err: errors.New("redis down")})
	code, _ = serve(t, e, http.MethodPost, "/api/v1/backtests", `{"async":true}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

type probe struct{ err error }

func (p probe) Health(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	e := echo.New()
	NewHealthHandler(map[string]HealthChecker{"clickhouse": probe{}}).RegisterRoutes(e)
	code, _ := serve(t, e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)

	e = echo.New()
	NewHealthHandler(map[string]HealthChecker{"clickhouse": probe{err: errors.New("down")}}).RegisterRoutes(e)
	code, env := serve(t, e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, string(env.Data), "down")
}
