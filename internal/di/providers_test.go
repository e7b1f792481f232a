package di

import (
	"context"
	"testing"

	internalrepo "TokenRank/internal/repository"
	"TokenRank/internal/service/marketdata"
	"TokenRank/pkg/cache"
	pkgch "TokenRank/pkg/clickhouse"
	"TokenRank/pkg/config"
	"TokenRank/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
prediction:
  default_strategy: balanced
  strategies:
    balanced:
      weights: {elo: 0.5, momentum: 0.5}
      normalization: {elo: zscore}
`

func testCfg(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)
	return cfg
}

func mockClient(t *testing.T) *pkgch.Client {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return pkgch.NewFromDB(db)
}

func TestProvideResultSink(t *testing.T) {
	ch := mockClient(t)

	t.Run("defaults to clickhouse without kafka", func(t *testing.T) {
		sink, err := ProvideResultSink(testCfg(t), ch, nil)
		require.NoError(t, err)
		assert.IsType(t, &internalrepo.ClickHouseResultSink{}, sink)
	})

	t.Run("none", func(t *testing.T) {
		cfg := testCfg(t)
		cfg.Prediction.Sinks = []string{"none"}
		sink, err := ProvideResultSink(cfg, ch, nil)
		require.NoError(t, err)
		assert.IsType(t, internalrepo.NopSink{}, sink)
	})

	t.Run("kafka requires a producer", func(t *testing.T) {
		cfg := testCfg(t)
		cfg.Prediction.Sinks = []string{"clickhouse", "kafka"}
		_, err := ProvideResultSink(cfg, ch, nil)
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := testCfg(t)
		cfg.Prediction.Sinks = []string{"s3"}
		_, err := ProvideResultSink(cfg, ch, nil)
		assert.ErrorContains(t, err, "s3")
	})
}

func TestStrategiesFromConfig(t *testing.T) {
	in := map[string]config.Strategy{
		"balanced": {Weights: map[string]float64{"elo": 1}, Normalization: map[string]string{"elo": "rank"}},
	}
	out := strategiesFromConfig(in)
	require.Contains(t, out, "balanced")
	assert.Equal(t, "balanced", out["balanced"].Name)
	assert.Equal(t, 1.0, out["balanced"].Weights["elo"])

	// the copy is independent of the config maps
	in["balanced"].Weights["elo"] = 9
	assert.Equal(t, 1.0, out["balanced"].Weights["elo"])
}

func TestProvideMarketData(t *testing.T) {
	cfg := testCfg(t)
	prices := internalrepo.NewClickHousePriceStore(mockClient(t), logger.NewNop())

	md, err := ProvideMarketData(cfg, prices, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &marketdata.PriceHistoryProvider{}, md)

	cfg.Prediction.MarketDataProvider = marketdata.IDDexScreener
	md, err = ProvideMarketData(cfg, prices, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &marketdata.DexScreener{}, md)

	cfg.Prediction.MarketDataProvider = "coingecko"
	_, err = ProvideMarketData(cfg, prices, logger.NewNop())
	assert.ErrorIs(t, err, marketdata.ErrUnknownProvider)
}

func TestProvideCacheWithoutRedis(t *testing.T) {
	c, cleanup := ProvideCache(testCfg(t), nil)
	defer cleanup()
	require.IsType(t, &cache.MemoryCache{}, c)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", 0))
	v, err := cache.GetTyped[string](ctx, c, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}
