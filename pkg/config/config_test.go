package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
prediction:
  strategies:
    balanced:
      weights: {elo: 1}
`

func TestParse_AppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "dev", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 30*time.Second, c.Server.RequestTimeout)
	assert.Equal(t, "price_history", c.Prediction.MarketDataProvider)
	assert.Equal(t, "balanced", c.Prediction.DefaultStrategy)
	assert.Equal(t, DefaultFeatures(), c.Prediction.Features)
	assert.Equal(t, 15, c.Prediction.Windows.DrawdownShort)
	assert.Equal(t, 0.97, c.Prediction.Ratings.DecayRate)
	assert.Equal(t, 1500.0, c.Prediction.Ratings.DefaultRating)
	assert.Equal(t, "binary", c.Backtest.Payoff)
	assert.Equal(t, 1, c.Backtest.Parallelism)
	assert.Equal(t, 0.65, c.Backtest.Promotion.MinBreakevenRate)
	assert.Equal(t, "prediction.results", c.Kafka.Topics.Results)
	assert.Equal(t, uint32(5), c.DexScreener.Breaker.MaxFailures)
	assert.True(t, c.Server.CORS)
	assert.False(t, c.Kafka.Async)
	assert.Equal(t, 10, c.ClickHouse.Pool.MaxOpen)
	assert.Equal(t, 5*time.Minute, c.ClickHouse.Pool.MaxLifetime)
}

func TestParse_GridKeepsAxisOrder(t *testing.T) {
	c, err := Parse([]byte(minimal + `
backtest:
  parameter_grid:
    - name: momentum_weight
      values: [0.3, 0.7]
    - name: elo_normalization
      values: [zscore, minmax]
`))
	require.NoError(t, err)
	require.Len(t, c.Backtest.ParameterGrid, 2)
	assert.Equal(t, "momentum_weight", c.Backtest.ParameterGrid[0].Name)
	assert.Equal(t, []interface{}{0.3, 0.7}, c.Backtest.ParameterGrid[0].Values)
	assert.Equal(t, []interface{}{"zscore", "minmax"}, c.Backtest.ParameterGrid[1].Values)
}

func TestValidate_Errors(t *testing.T) {
	cases := map[string]string{
		"no strategies":       `prediction: {default_strategy: balanced}`,
		"missing default":     minimal + "  default_strategy: other\n",
		"negative weight":     "prediction:\n  strategies:\n    balanced:\n      weights: {elo: -1}\n",
		"bad window":          minimal + "  windows: {st_return: 0}\n",
		"kafka without hosts": minimal + "kafka: {enabled: true}\n",
		"feed without url":    minimal + "roundfeed: {enabled: true}\n",
		"bad payoff":          minimal + "backtest: {payoff: kelly}\n",
		"bad parallelism":     minimal + "backtest: {parallelism: 0}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal+`
    momentum:
      weights: {momentum: 1}
`), 0o600))

	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("PREDICTION_STRATEGY", "momentum")
	t.Setenv("BACKTEST_PARALLELISM", "3")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.Equal(t, "momentum", c.Prediction.DefaultStrategy)
	assert.Equal(t, 3, c.Backtest.Parallelism)
	assert.Equal(t, "debug", c.Log.Level)

	t.Setenv("PREDICTION_STRATEGY", "missing")
	_, err = LoadWithEnv(path)
	assert.Error(t, err)
}

func TestLoad_RepoConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, c.Prediction.Strategies, c.Prediction.DefaultStrategy)
	assert.Len(t, c.Backtest.ParameterGrid, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
