package di

import (
	"context"
	"fmt"
	"time"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	"TokenRank/internal/handler/api"
	internalrepo "TokenRank/internal/repository"
	"TokenRank/internal/service/marketdata"
	svcmetrics "TokenRank/internal/service/metrics"
	"TokenRank/internal/service/ratelimit"
	"TokenRank/internal/service/ratings"
	"TokenRank/internal/service/roundfeed"
	"TokenRank/internal/services/features"
	"TokenRank/internal/usecase"
	"TokenRank/pkg/cache"
	pkgch "TokenRank/pkg/clickhouse"
	"TokenRank/pkg/config"
	xhttp "TokenRank/pkg/http"
	pkgkafka "TokenRank/pkg/kafka"
	"TokenRank/pkg/logger"
	"TokenRank/pkg/metrics"
	"TokenRank/pkg/queue"
	"TokenRank/pkg/server"

	"github.com/redis/go-redis/v9"
)

const (
	sinkClickHouse = "clickhouse"
	sinkKafka      = "kafka"
)

func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return log, nil
}

// ProvideMetrics creates the Prometheus recorder and registers collaborator metrics.
func ProvideMetrics() domrepo.Metrics {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideClickHouseClient connects and, when configured, creates the tables.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecTime),
		pkgch.WithPool(ch.Pool.MaxOpen, ch.Pool.MaxIdle, ch.Pool.MaxLifetime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if ch.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.Schema()); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}

	return client, func() { _ = client.Close() }, nil
}

func ProvidePriceStore(ch *pkgch.Client, log *logger.Logger) *internalrepo.ClickHousePriceStore {
	return internalrepo.NewClickHousePriceStore(ch, log)
}

func ProvideOutcomeStore(ch *pkgch.Client, log *logger.Logger) *internalrepo.ClickHouseOutcomeStore {
	return internalrepo.NewClickHouseOutcomeStore(ch, log)
}

func ProvideRatingsStore(ch *pkgch.Client) *internalrepo.ClickHouseRatingsStore {
	return internalrepo.NewClickHouseRatingsStore(ch)
}

func ProvideReportStore(ch *pkgch.Client) *internalrepo.ClickHouseReportStore {
	return internalrepo.NewClickHouseReportStore(ch)
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchTimeout(100*time.Millisecond),
		pkgkafka.WithAsync(cfg.Kafka.Async),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideRedisClient returns nil when Redis is disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := cache.NewRedisClient(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache layers an in-process cache over Redis, or stands alone without Redis.
func ProvideCache(cfg *config.Config, client *redis.Client) (cache.Service, func()) {
	if client == nil {
		mc := cache.NewMemoryCache(cache.WithMemoryDefaultTTL(cfg.Redis.TTL))
		return mc, func() { _ = mc.Close() }
	}
	lc := cache.NewLayeredCache(cache.NewRedisCache(client, cfg.Redis.Prefix), cfg.Prediction.Ratings.CacheTTL)
	return lc, func() { _ = lc.Close() }
}

func ProvideEloService(store *internalrepo.ClickHouseRatingsStore, c cache.Service, cfg *config.Config, log *logger.Logger) *ratings.EloService {
	r := cfg.Prediction.Ratings
	return ratings.NewEloService(store, c, ratings.Config{
		DefaultRating:    r.DefaultRating,
		DecayRate:        r.DecayRate,
		MinGamesForDecay: r.MinGamesForDecay,
		MaxDecayRounds:   r.MaxDecayRounds,
		CacheTTL:         r.CacheTTL,
		CachePrefix:      cfg.Redis.Prefix,
	}, log)
}

func ProvideFeatureRegistry(
	cfg *config.Config,
	prices *internalrepo.ClickHousePriceStore,
	elo *ratings.EloService,
	log *logger.Logger,
) (*features.Registry, error) {
	w := cfg.Prediction.Windows
	registry, err := features.NewRegistry(cfg.Prediction.Features, features.Dependencies{
		Prices:  prices,
		Ratings: elo,
		Windows: features.Windows{
			StReturn:      w.StReturn,
			StTrend:       w.StTrend,
			StVolatility:  w.StVolatility,
			DrawdownShort: w.DrawdownShort,
		},
		Log: log,
	})
	if err != nil {
		return nil, fmt.Errorf("feature registry: %w", err)
	}
	return registry, nil
}

func ProvideMarketData(cfg *config.Config, prices *internalrepo.ClickHousePriceStore, log *logger.Logger) (domrepo.MarketDataProvider, error) {
	d := cfg.DexScreener
	md, err := marketdata.New(cfg.Prediction.MarketDataProvider, marketdata.Dependencies{
		Prices: prices,
		DexScreener: marketdata.DexScreenerConfig{
			BaseURL:     d.BaseURL,
			Timeout:     d.Timeout,
			RPS:         d.RPS,
			Burst:       d.Burst,
			MaxFailures: d.Breaker.MaxFailures,
			OpenTimeout: d.Breaker.OpenTimeout,
		},
		Log: log,
	})
	if err != nil {
		return nil, fmt.Errorf("market data: %w", err)
	}
	return md, nil
}

// ProvideResultSink fans records out to the configured sinks. With none
// configured, records go to ClickHouse and, when enabled, Kafka.
func ProvideResultSink(cfg *config.Config, ch *pkgch.Client, producer *pkgkafka.Producer) (domrepo.ResultSink, error) {
	names := cfg.Prediction.Sinks
	if len(names) == 0 {
		names = []string{sinkClickHouse}
		if producer != nil {
			names = append(names, sinkKafka)
		}
	}

	var sinks internalrepo.MultiSink
	for _, name := range names {
		switch name {
		case sinkClickHouse:
			sinks = append(sinks, internalrepo.NewClickHouseResultSink(ch))
		case sinkKafka:
			if producer == nil {
				return nil, fmt.Errorf("sink %q needs kafka.enabled", name)
			}
			sinks = append(sinks, internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.Topics.Results))
		case "none":
		default:
			return nil, fmt.Errorf("unknown result sink %q", name)
		}
	}
	switch len(sinks) {
	case 0:
		return internalrepo.NopSink{}, nil
	case 1:
		return sinks[0], nil
	}
	return sinks, nil
}

func strategiesFromConfig(in map[string]config.Strategy) map[string]models.StrategyConfig {
	out := make(map[string]models.StrategyConfig, len(in))
	for name, s := range in {
		out[name] = models.StrategyConfig{Name: name, Weights: s.Weights, Normalization: s.Normalization}.Clone()
	}
	return out
}

func ProvidePipelineFactory(
	cfg *config.Config,
	registry *features.Registry,
	md domrepo.MarketDataProvider,
	sink domrepo.ResultSink,
	m domrepo.Metrics,
	log *logger.Logger,
) (*usecase.PipelineFactory, error) {
	f, err := usecase.NewPipelineFactory(usecase.FactoryConfig{
		Registry:        registry,
		MarketData:      md,
		Sink:            sink,
		Metrics:         m,
		Strategies:      strategiesFromConfig(cfg.Prediction.Strategies),
		DefaultStrategy: cfg.Prediction.DefaultStrategy,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("pipeline factory: %w", err)
	}
	return f, nil
}

// ProvideBacktestEngine replays rounds against stored prices and never
// writes prediction records.
func ProvideBacktestEngine(
	cfg *config.Config,
	factory *usecase.PipelineFactory,
	prices *internalrepo.ClickHousePriceStore,
	outcomes *internalrepo.ClickHouseOutcomeStore,
	m domrepo.Metrics,
	log *logger.Logger,
) (*usecase.BacktestEngine, error) {
	payoff, err := usecase.NewPayoffModel(cfg.Backtest.Payoff)
	if err != nil {
		return nil, err
	}
	builder := factory.Derive(marketdata.NewPriceHistoryProvider(prices, log), nil)
	return usecase.NewBacktestEngine(builder, outcomes, payoff, m, log), nil
}

func ProvideGridSearchRunner(cfg *config.Config, engine *usecase.BacktestEngine, log *logger.Logger) *usecase.GridSearchRunner {
	p := cfg.Backtest.Promotion
	return usecase.NewGridSearchRunner(engine, cfg.Backtest.Parallelism, usecase.PromotionThresholds{
		MinBreakevenRate:    p.MinBreakevenRate,
		MinTotalRoundsRatio: p.MinTotalRoundsRatio,
	}, log)
}

func ProvideBacktestService(
	factory *usecase.PipelineFactory,
	engine *usecase.BacktestEngine,
	grid *usecase.GridSearchRunner,
	outcomes *internalrepo.ClickHouseOutcomeStore,
	reports *internalrepo.ClickHouseReportStore,
	log *logger.Logger,
) *usecase.BacktestService {
	return usecase.NewBacktestService(factory, engine, grid, outcomes, reports, log)
}

// ProvideJobQueue returns nil without Redis.
func ProvideJobQueue(cfg *config.Config, client *redis.Client, log *logger.Logger) *queue.RedisQueue {
	if client == nil {
		return nil
	}
	q := cfg.Backtest.Queue
	return queue.NewRedisQueue(log, queue.QueueConfig{
		Workers:    q.Workers,
		RetryLimit: q.RetryLimit,
		RetryDelay: q.RetryDelay,
	}, client, queue.WithKeyPrefix(q.KeyPrefix))
}

// ProvideBacktestJobs keeps job status in Redis directly so every replica sees
// the worker's updates. Returns nil without a queue.
func ProvideBacktestJobs(
	cfg *config.Config,
	q *queue.RedisQueue,
	client *redis.Client,
	svc *usecase.BacktestService,
	log *logger.Logger,
) *usecase.BacktestJobs {
	if q == nil || client == nil {
		return nil
	}
	jobs := usecase.NewBacktestJobs(q, cache.NewRedisCache(client, cfg.Redis.Prefix), svc,
		cfg.Backtest.Queue.KeyPrefix, cfg.Backtest.JobTTL, log)
	q.RegisterJob(jobs)
	return jobs
}

func ProvideRoundListener(
	cfg *config.Config,
	factory *usecase.PipelineFactory,
	outcomes *internalrepo.ClickHouseOutcomeStore,
	c cache.Service,
	log *logger.Logger,
) (*usecase.RoundListener, error) {
	predictor, err := factory.ForStrategy("")
	if err != nil {
		return nil, fmt.Errorf("round listener: %w", err)
	}
	return usecase.NewRoundListener(predictor, outcomes, c, cfg.Redis.Prefix, log), nil
}

// ProvideRoundFeed returns nil when the feed is disabled.
func ProvideRoundFeed(cfg *config.Config, listener *usecase.RoundListener, log *logger.Logger) *roundfeed.Client {
	if !cfg.RoundFeed.Enabled {
		return nil
	}
	return roundfeed.New(roundfeed.Config{
		URL:            cfg.RoundFeed.URL,
		ReconnectDelay: cfg.RoundFeed.ReconnectDelay,
		PingInterval:   cfg.RoundFeed.PingInterval,
	}, listener, log)
}

// ProvideKafkaConsumer ingests price ticks; nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, prices *internalrepo.ClickHousePriceStore, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewPriceTicksHandler(cfg.Kafka.Topics.Prices, prices, log))
	return consumer, nil
}

func ProvideHTTPServer(
	cfg *config.Config,
	factory *usecase.PipelineFactory,
	svc *usecase.BacktestService,
	jobs *usecase.BacktestJobs,
	ch *pkgch.Client,
	log *logger.Logger,
) *xhttp.Server {
	rl := cfg.Server.RateLimit
	limit := ratelimit.Middleware(ratelimit.New(), rl.Capacity, rl.RefillRate, rl.RefillTime)

	// a nil *BacktestJobs must reach the handler as a nil interface
	var jobQueue api.JobQueue
	if jobs != nil {
		jobQueue = jobs
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	handlers := []xhttp.Handler{
		api.NewHealthHandler(map[string]api.HealthChecker{"clickhouse": ch}),
		api.NewPredictionHandler(log, factory, cfg.Server.RequestTimeout, limit),
		api.NewBacktestHandler(log, svc, jobQueue, limit),
	}
	return xhttp.NewServer(log, handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetricsPath(metricsPath),
	)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// ProvideApp registers the serve components. Optional components are nil
// pointers when disabled and are skipped here.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	srv *xhttp.Server,
	feed *roundfeed.Client,
	consumer *pkgkafka.Consumer,
	q *queue.RedisQueue,
	producer *pkgkafka.Producer,
) *server.App {
	app := server.New(log, cfg.Server.ShutdownTimeout)

	if q != nil {
		app.Add("backtest_queue", q)
	}
	if consumer != nil {
		app.Add("kafka_consumer", consumer)
	}
	if feed != nil {
		app.Add("round_feed", feed)
	}
	app.Add("http", srv)
	log.Info("components wired",
		logger.Bool("backtest_queue", q != nil),
		logger.Bool("kafka_consumer", consumer != nil),
		logger.Bool("round_feed", feed != nil),
		logger.Bool("log_collector", producer != nil))

	if producer != nil {
		log.AttachCollector(&logger.CollectorConfig{
			Topic:     cfg.Kafka.Topics.Logs,
			Publisher: producer,
		})
		app.AddCloser(closerFunc(func() error {
			log.DetachCollector()
			return nil
		}))
	}
	return app
}
