package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"TokenRank/pkg/logger"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string        `yaml:"environment" default:"dev"`
	Server      Server        `yaml:"server"`
	Metrics     Metrics       `yaml:"metrics"`
	Log         logger.Config `yaml:"log"`
	ClickHouse  ClickHouse    `yaml:"clickhouse"`
	Kafka       Kafka         `yaml:"kafka"`
	Redis       Redis         `yaml:"redis"`
	Prediction  Prediction    `yaml:"prediction"`
	Backtest    Backtest      `yaml:"backtest"`
	DexScreener DexScreener   `yaml:"dexscreener"`
	RoundFeed   RoundFeed     `yaml:"roundfeed"`
}

type Server struct {
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"30s"`
	CORS            bool          `yaml:"cors" default:"true"`
	RateLimit       struct {
		Capacity   int           `yaml:"capacity" default:"20"`
		RefillRate int           `yaml:"refill_rate" default:"5"`
		RefillTime time.Duration `yaml:"refill_time" default:"1s"`
	} `yaml:"rate_limit"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type ClickHouse struct {
	Host         string        `yaml:"host" default:"localhost"`
	Port         int           `yaml:"port" default:"9000"`
	Database     string        `yaml:"database" default:"tokenrank"`
	User         string        `yaml:"user" default:"default"`
	Password     string        `yaml:"password"`
	UseHTTP      bool          `yaml:"use_http"`
	AsyncInsert  bool          `yaml:"async_insert"`
	WaitForAsync bool          `yaml:"wait_for_async_insert"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecTime  time.Duration `yaml:"max_execution_time" default:"30s"`
	InitSchema   bool          `yaml:"init_schema" default:"true"`
	Pool         struct {
		MaxOpen     int           `yaml:"max_open" default:"10"`
		MaxIdle     int           `yaml:"max_idle" default:"5"`
		MaxLifetime time.Duration `yaml:"max_lifetime" default:"5m"`
	} `yaml:"pool"`
}

type Kafka struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip"`
	Async        bool     `yaml:"async"`
	Topics       struct {
		Results string `yaml:"results" default:"prediction.results"`
		Prices  string `yaml:"prices" default:"token.prices"`
		Logs    string `yaml:"logs" default:"prediction.logs"`
	} `yaml:"topics"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"tokenrank"`
		Workers    int           `yaml:"workers" default:"2"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic   string        `yaml:"dlq_topic"`
	} `yaml:"consumer"`
}

type Redis struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" default:"localhost:6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix" default:"tokenrank"`
	TTL      time.Duration `yaml:"ttl" default:"1m"`
}

// Strategy is a named weight/normalization combination.
type Strategy struct {
	Weights       map[string]float64 `yaml:"weights"`
	Normalization map[string]string  `yaml:"normalization"`
}

type Windows struct {
	StReturn      int `yaml:"st_return" default:"5"`
	StTrend       int `yaml:"st_trend" default:"5"`
	StVolatility  int `yaml:"st_volatility" default:"5"`
	DrawdownShort int `yaml:"drawdown_short" default:"15"`
}

type Ratings struct {
	DefaultRating    float64       `yaml:"default_rating" default:"1500"`
	DecayRate        float64       `yaml:"decay_rate" default:"0.97"`
	MinGamesForDecay int           `yaml:"min_games_for_decay" default:"10"`
	MaxDecayRounds   int           `yaml:"max_decay_rounds" default:"1000"`
	CacheTTL         time.Duration `yaml:"cache_ttl" default:"1m"`
}

type Prediction struct {
	Features           []string            `yaml:"features"`
	Windows            Windows             `yaml:"windows"`
	MarketDataProvider string              `yaml:"market_data_provider" default:"price_history"`
	DefaultStrategy    string              `yaml:"default_strategy" default:"balanced"`
	Strategies         map[string]Strategy `yaml:"strategies"`
	Sinks              []string            `yaml:"sinks"`
	Ratings            Ratings             `yaml:"ratings"`
}

// GridAxis is one swept parameter; axes keep file order.
type GridAxis struct {
	Name   string        `yaml:"name"`
	Values []interface{} `yaml:"values"`
}

type Backtest struct {
	Parallelism   int        `yaml:"parallelism" default:"1"`
	Payoff        string     `yaml:"payoff" default:"binary"`
	RoundLimit    int        `yaml:"round_limit" default:"500"`
	ParameterGrid []GridAxis `yaml:"parameter_grid"`
	Promotion     struct {
		MinBreakevenRate    float64 `yaml:"min_breakeven_rate" default:"0.65"`
		MinTotalRoundsRatio float64 `yaml:"min_total_rounds_ratio" default:"0.4"`
	} `yaml:"promotion"`
	Queue struct {
		Workers    int           `yaml:"workers" default:"1"`
		RetryLimit int           `yaml:"retry_limit" default:"1"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
		KeyPrefix  string        `yaml:"key_prefix" default:"tokenrank:backtest"`
	} `yaml:"queue"`
	JobTTL time.Duration `yaml:"job_ttl" default:"24h"`
}

type DexScreener struct {
	BaseURL string        `yaml:"base_url" default:"https://api.dexscreener.com/latest/dex/search"`
	Timeout time.Duration `yaml:"timeout" default:"10s"`
	RPS     float64       `yaml:"rps" default:"4"`
	Burst   int           `yaml:"burst" default:"4"`
	Breaker struct {
		MaxFailures uint32        `yaml:"max_failures" default:"5"`
		OpenTimeout time.Duration `yaml:"open_timeout" default:"30s"`
	} `yaml:"breaker"`
}

type RoundFeed struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
	PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
}

// Load reads a YAML file on top of the struct defaults and validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the struct defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(c.Prediction.Features) == 0 {
		c.Prediction.Features = DefaultFeatures()
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides selected fields from the environment.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("PREDICTION_STRATEGY"); v != "" {
		c.Prediction.DefaultStrategy = v
	}
	if v := os.Getenv("BACKTEST_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Backtest.Parallelism = n
		}
	}

	return c, c.Validate()
}

// DefaultFeatures is the provider order used when the config names none.
func DefaultFeatures() []string {
	return []string{
		"elo", "momentum", "short_term_momentum", "p_top3_from_elo",
		"st_return", "st_trend", "st_volatility", "drawdown_short", "elo_prob_decayed",
	}
}

func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	p := c.Prediction
	if p.DefaultStrategy == "" {
		return fmt.Errorf("prediction.default_strategy is required")
	}
	if p.MarketDataProvider == "" {
		return fmt.Errorf("prediction.market_data_provider is required")
	}
	if len(p.Strategies) == 0 {
		return fmt.Errorf("prediction.strategies cannot be empty")
	}
	if _, ok := p.Strategies[p.DefaultStrategy]; !ok {
		return fmt.Errorf("prediction.default_strategy %q is not defined in prediction.strategies", p.DefaultStrategy)
	}
	for name, s := range p.Strategies {
		for feature, w := range s.Weights {
			if w < 0 {
				return fmt.Errorf("prediction.strategies.%s.weights.%s must be >= 0", name, feature)
			}
		}
	}
	w := p.Windows
	if w.StReturn <= 0 || w.StTrend <= 0 || w.StVolatility <= 0 || w.DrawdownShort <= 0 {
		return fmt.Errorf("prediction.windows must be positive minutes")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.RoundFeed.Enabled && c.RoundFeed.URL == "" {
		return fmt.Errorf("roundfeed.url is required when the round feed is enabled")
	}
	if c.Backtest.Parallelism < 1 {
		return fmt.Errorf("backtest.parallelism must be >= 1")
	}
	switch c.Backtest.Payoff {
	case "binary", "rank_graded":
	default:
		return fmt.Errorf("backtest.payoff must be 'binary' or 'rank_graded', got '%s'", c.Backtest.Payoff)
	}
	return nil
}
