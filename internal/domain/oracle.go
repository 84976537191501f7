package domain

import (
	"context"
	"time"
)

// PriceDecimals is the fixed-point exponent of oracle prices: a quote of
// 1.0856 EUR/USD arrives as 108_560_000_000_000 (price * 10^14), the
// Reflector oracle convention.
const PriceDecimals = 14

// PriceData is one oracle observation.
type PriceData struct {
	Price     int64 // fixed-point, PriceDecimals decimals
	Timestamp time.Time
}

// PriceOracle is the narrow read interface onto the external price feed.
// Implementations must surface oracle-side failures as
// ErrOracleDataUnavailable and must never substitute synthetic values;
// deterministic fakes are a concern of the tests, not the adapter.
type PriceOracle interface {
	// LastPrice returns the most recent price for the asset as quoted by
	// the oracle contract at the given address.
	LastPrice(ctx context.Context, oracle, asset string) (PriceData, error)
	// PriceAt returns the historical price for the asset at or before the
	// given instant.
	PriceAt(ctx context.Context, oracle, asset string, at time.Time) (PriceData, error)
}
