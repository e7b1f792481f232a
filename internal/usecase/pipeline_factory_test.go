package usecase

import (
	"context"
	"testing"

	"TokenRank/internal/domain/models"
	"TokenRank/internal/services/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipelineFactory_Validation(t *testing.T) {
	registry := features.NewRegistryFrom(&staticProvider{key: "a"})
	md := &fakeMarketData{}

	_, err := NewPipelineFactory(FactoryConfig{
		Registry:        registry,
		MarketData:      md,
		Strategies:      map[string]models.StrategyConfig{"s": {}},
		DefaultStrategy: "missing",
	}, nil)
	assert.Error(t, err)

	_, err = NewPipelineFactory(FactoryConfig{
		Registry:   registry,
		MarketData: md,
		Strategies: map[string]models.StrategyConfig{
			"s": {Normalization: map[string]string{"a": "robust"}},
		},
		DefaultStrategy: "s",
	}, nil)
	assert.Error(t, err)

	_, err = NewPipelineFactory(FactoryConfig{MarketData: md, DefaultStrategy: "s"}, nil)
	assert.Error(t, err)
}

func TestPipelineFactory_StrategyFallback(t *testing.T) {
	f := twoFeatureFactory(t)

	s := f.Strategy("nope")
	assert.Equal(t, "base", s.Name)
	assert.Equal(t, 1.0, s.Weights["a"])

	s.Weights["a"] = 99
	assert.Equal(t, 1.0, f.Strategy("base").Weights["a"], "strategies are handed out as copies")

	assert.Equal(t, []string{"base"}, f.StrategyNames())
	assert.Equal(t, []string{"a", "b"}, f.Features())
}

func TestPipelineFactory_DeriveSwapsSink(t *testing.T) {
	sink := &recordingSink{}
	f := twoFeatureFactory(t).Derive(nil, sink)

	p, err := f.ForStrategy("")
	require.NoError(t, err)
	assert.Equal(t, "base", p.Strategy())

	got := p.Predict(context.Background(), models.PredictRequest{Symbols: []string{"A", "B"}, RoundID: "r"})
	require.Len(t, got, 2)
	assert.Len(t, sink.records, 2)
}
