package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"TokenRank/internal/domain/models"
	domrepo "TokenRank/internal/domain/repository"
	"TokenRank/internal/service/metrics"
	pkghttp "TokenRank/pkg/http"
	"TokenRank/pkg/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	DefaultDexScreenerURL = "https://api.dexscreener.com/latest/dex/search"
	userAgent             = "tokenrank-marketdata/1.0"
)

var errNoPair = errors.New("no matching pair")

type DexScreenerConfig struct {
	BaseURL     string
	Timeout     time.Duration
	RPS         float64
	Burst       int
	MaxFailures uint32
	OpenTimeout time.Duration
}

// DexScreener looks up each symbol on the DexScreener search API. Calls are
// paced by a token bucket and guarded by a circuit breaker.
type DexScreener struct {
	client  *pkghttp.Client
	baseURL string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *logger.Logger
	now     func() time.Time
}

func NewDexScreener(cfg DexScreenerConfig, log *logger.Logger) *DexScreener {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDexScreenerURL
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 4
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}

	st := gobreaker.Settings{Name: IDDexScreener, Timeout: cfg.OpenTimeout}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= cfg.MaxFailures
	}
	st.IsSuccessful = func(err error) bool {
		if err == nil || errors.Is(err, errNoPair) {
			return true
		}
		// client errors other than throttling say nothing about upstream health
		var se *pkghttp.StatusError
		return errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn("circuit breaker state change",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()))
	}

	return &DexScreener{
		client:  pkghttp.NewClient(pkghttp.WithTimeout(cfg.Timeout), pkghttp.WithUserAgent(userAgent)),
		baseURL: cfg.BaseURL,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(st),
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type dexPair struct {
	BaseToken struct {
		Symbol string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD string `json:"priceUsd"`
	Volume   struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 *float64 `json:"h24"`
	} `json:"priceChange"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

type dexSearchResponse struct {
	Pairs []dexPair `json:"pairs"`
}

// FetchSnapshots reports current market state; at is not used since the API
// has no history. Symbols without a pair are omitted.
func (d *DexScreener) FetchSnapshots(ctx context.Context, symbols []string, _ time.Time) ([]models.MarketSnapshot, error) {
	out := make([]models.MarketSnapshot, 0, len(symbols))
	var lastErr error
	failed := 0
	for _, sym := range symbols {
		snap, err := d.lookup(ctx, sym)
		switch {
		case err == nil:
			out = append(out, snap)
		case errors.Is(err, errNoPair):
			d.log.Debug("dexscreener: no pair", logger.String("symbol", sym))
		default:
			failed++
			lastErr = err
			d.log.Warn("dexscreener lookup", logger.String("symbol", sym), logger.Error(err))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}
	if len(symbols) > 0 && failed == len(symbols) {
		return nil, fmt.Errorf("dexscreener: %w", lastErr)
	}
	return out, nil
}

func (d *DexScreener) lookup(ctx context.Context, symbol string) (models.MarketSnapshot, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return models.MarketSnapshot{}, err
	}

	start := time.Now()
	res, err := d.breaker.Execute(func() (interface{}, error) {
		var resp dexSearchResponse
		err := d.client.SendAndParse(ctx, &pkghttp.RequestOptions{
			URL:         d.baseURL,
			QueryParams: map[string][]string{"q": {symbol}},
		}, &resp)
		if err != nil {
			return nil, err
		}
		pair, ok := bestPair(resp.Pairs, symbol)
		if !ok {
			return nil, errNoPair
		}
		return pair, nil
	})
	metrics.CollaboratorLatency.WithLabelValues(IDDexScreener, "search").Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, errNoPair) {
			metrics.CollaboratorErrors.WithLabelValues(IDDexScreener, "search").Inc()
		}
		return models.MarketSnapshot{}, err
	}

	pair := res.(dexPair)
	price, err := strconv.ParseFloat(pair.PriceUSD, 64)
	if err != nil || price <= 0 {
		return models.MarketSnapshot{}, errNoPair
	}
	return models.MarketSnapshot{
		Symbol:         strings.ToUpper(symbol),
		Price:          price,
		Volume24h:      pair.Volume.H24,
		Timestamp:      d.now(),
		PriceChange24h: pair.PriceChange.H24,
	}, nil
}

// bestPair picks the most liquid pair whose base token is symbol.
func bestPair(pairs []dexPair, symbol string) (dexPair, bool) {
	var (
		best  dexPair
		found bool
	)
	for _, p := range pairs {
		if !strings.EqualFold(p.BaseToken.Symbol, symbol) || p.PriceUSD == "" {
			continue
		}
		if !found || p.Liquidity.USD > best.Liquidity.USD {
			best, found = p, true
		}
	}
	return best, found
}

var _ domrepo.MarketDataProvider = (*DexScreener)(nil)
