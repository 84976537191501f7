package reflector

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabkale/kaledao/internal/domain"
)

type scriptedOracle struct {
	last      domain.PriceData
	at        domain.PriceData
	lastCalls int
	atCalls   int
}

func (o *scriptedOracle) LastPrice(context.Context, string, string) (domain.PriceData, error) {
	o.lastCalls++
	return o.last, nil
}

func (o *scriptedOracle) PriceAt(context.Context, string, string, time.Time) (domain.PriceData, error) {
	o.atCalls++
	return o.at, nil
}

type mapCache struct {
	prices map[string]domain.PriceData
}

func (c *mapCache) SetPrice(_ context.Context, asset string, price int64, ts time.Time) error {
	c.prices[asset] = domain.PriceData{Price: price, Timestamp: ts}
	return nil
}

func (c *mapCache) GetPrice(_ context.Context, asset string) (int64, time.Time, error) {
	pd, ok := c.prices[asset]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return pd.Price, pd.Timestamp, nil
}

func TestCachedOracleServesFreshObservations(t *testing.T) {
	upstream := &scriptedOracle{last: domain.PriceData{Price: 42, Timestamp: time.Now()}}
	cache := &mapCache{prices: map[string]domain.PriceData{}}
	c := NewCachedOracle(upstream, cache, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// First read misses the cache and back-fills it.
	pd, err := c.LastPrice(context.Background(), oracleContract, "BTC")
	require.NoError(t, err)
	assert.Equal(t, int64(42), pd.Price)
	assert.Equal(t, 1, upstream.lastCalls)

	// Second read is served from the cache.
	_, err = c.LastPrice(context.Background(), oracleContract, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 1, upstream.lastCalls)
}

func TestCachedOracleIgnoresStaleObservations(t *testing.T) {
	upstream := &scriptedOracle{last: domain.PriceData{Price: 42, Timestamp: time.Now()}}
	cache := &mapCache{prices: map[string]domain.PriceData{
		"BTC": {Price: 41, Timestamp: time.Now().Add(-time.Hour)},
	}}
	c := NewCachedOracle(upstream, cache, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	pd, err := c.LastPrice(context.Background(), oracleContract, "BTC")
	require.NoError(t, err)
	assert.Equal(t, int64(42), pd.Price)
	assert.Equal(t, 1, upstream.lastCalls)
}

func TestCachedOracleHistoricalReadsBypassCache(t *testing.T) {
	upstream := &scriptedOracle{at: domain.PriceData{Price: 40, Timestamp: time.Now()}}
	cache := &mapCache{prices: map[string]domain.PriceData{
		"BTC": {Price: 41, Timestamp: time.Now()},
	}}
	c := NewCachedOracle(upstream, cache, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	pd, err := c.PriceAt(context.Background(), oracleContract, "BTC", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(40), pd.Price)
	assert.Equal(t, 1, upstream.atCalls)
}
