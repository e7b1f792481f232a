package marketdata

import (
	"errors"
	"fmt"

	domrepo "TokenRank/internal/domain/repository"
	"TokenRank/pkg/logger"
)

const (
	IDPriceHistory = "price_history"
	IDDexScreener  = "dexscreener"
)

var ErrUnknownProvider = errors.New("unknown market data provider")

type Dependencies struct {
	Prices      domrepo.PriceHistoryStore
	DexScreener DexScreenerConfig
	Log         *logger.Logger
}

// New resolves a provider id from config.
func New(id string, deps Dependencies) (domrepo.MarketDataProvider, error) {
	switch id {
	case IDPriceHistory:
		if deps.Prices == nil {
			return nil, fmt.Errorf("%s provider needs a price store", id)
		}
		return NewPriceHistoryProvider(deps.Prices, deps.Log), nil
	case IDDexScreener:
		return NewDexScreener(deps.DexScreener, deps.Log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
}
