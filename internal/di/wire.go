//go:build wireinject
// +build wireinject

package di

import (
	"TokenRank/internal/usecase"
	"TokenRank/pkg/config"
	"TokenRank/pkg/server"

	"github.com/google/wire"
)

// storageSet is everything backed by ClickHouse.
var storageSet = wire.NewSet(
	ProvideClickHouseClient,
	ProvidePriceStore,
	ProvideOutcomeStore,
	ProvideRatingsStore,
	ProvideReportStore,
)

var predictionSet = wire.NewSet(
	ProvideMetrics,
	ProvideRedisClient,
	ProvideCache,
	ProvideEloService,
	ProvideFeatureRegistry,
	ProvideMarketData,
	ProvideKafkaProducer,
	ProvideResultSink,
	ProvidePipelineFactory,
)

var backtestSet = wire.NewSet(
	ProvideBacktestEngine,
	ProvideGridSearchRunner,
	ProvideBacktestService,
)

// InitializeApp builds the serve process: HTTP API, round feed, price
// ingestion and the backtest worker.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		storageSet,
		predictionSet,
		backtestSet,
		ProvideJobQueue,
		ProvideBacktestJobs,
		ProvideRoundListener,
		ProvideRoundFeed,
		ProvideKafkaConsumer,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializePipelineFactory builds what a one-shot prediction needs.
func InitializePipelineFactory(cfg *config.Config) (*usecase.PipelineFactory, func(), error) {
	wire.Build(
		ProvideLogger,
		storageSet,
		predictionSet,
	)
	return nil, nil, nil
}

// InitializeBacktestService builds what the backtest and grid commands need.
func InitializeBacktestService(cfg *config.Config) (*usecase.BacktestService, func(), error) {
	wire.Build(
		ProvideLogger,
		storageSet,
		predictionSet,
		backtestSet,
	)
	return nil, nil, nil
}
