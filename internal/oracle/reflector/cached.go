package reflector

import (
	"context"
	"log/slog"
	"time"

	"github.com/collabkale/kaledao/internal/domain"
)

// CachedOracle decorates a PriceOracle with a cache read-through for current
// prices. Historical reads bypass the cache: resolution always sees what the
// oracle actually recorded.
type CachedOracle struct {
	oracle       domain.PriceOracle
	cache        domain.PriceCache
	maxStaleness time.Duration
	logger       *slog.Logger
}

// NewCachedOracle wraps oracle with the given cache. Cached observations
// older than maxStaleness are treated as misses.
func NewCachedOracle(oracle domain.PriceOracle, cache domain.PriceCache, maxStaleness time.Duration, logger *slog.Logger) *CachedOracle {
	return &CachedOracle{
		oracle:       oracle,
		cache:        cache,
		maxStaleness: maxStaleness,
		logger:       logger.With("component", "cached_oracle"),
	}
}

// LastPrice serves from the cache when a fresh observation exists, otherwise
// queries the oracle and back-fills the cache.
func (c *CachedOracle) LastPrice(ctx context.Context, oracle, asset string) (domain.PriceData, error) {
	if price, ts, err := c.cache.GetPrice(ctx, asset); err == nil {
		if time.Since(ts) <= c.maxStaleness {
			return domain.PriceData{Price: price, Timestamp: ts}, nil
		}
	}

	pd, err := c.oracle.LastPrice(ctx, oracle, asset)
	if err != nil {
		return domain.PriceData{}, err
	}

	if err := c.cache.SetPrice(ctx, asset, pd.Price, pd.Timestamp); err != nil {
		c.logger.Warn("price cache write failed", "asset", asset, "error", err)
	}
	return pd, nil
}

// PriceAt always goes to the oracle.
func (c *CachedOracle) PriceAt(ctx context.Context, oracle, asset string, at time.Time) (domain.PriceData, error) {
	return c.oracle.PriceAt(ctx, oracle, asset, at)
}

// Compile-time interface check.
var _ domain.PriceOracle = (*CachedOracle)(nil)
