// Package reflector is an HTTP client for a Reflector price gateway. The
// gateway exposes the on-chain oracle contract's lastprice and price history
// over REST; prices are fixed-point integers with 14 decimals.
package reflector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/collabkale/kaledao/internal/domain"
)

// Client queries a Reflector gateway. It implements domain.PriceOracle.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	limiter    domain.RateLimiter
	rateLimit  int
	rateWindow time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit throttles gateway requests through the given limiter. All
// processes sharing the limiter share the quota.
func WithRateLimit(limiter domain.RateLimiter, limit int, window time.Duration) Option {
	return func(c *Client) {
		c.limiter = limiter
		c.rateLimit = limit
		c.rateWindow = window
	}
}

// NewClient creates a new Reflector client.
//
// baseURL is the gateway endpoint, e.g. "https://reflector.network/api/v1".
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// priceResponse is the gateway's price envelope. The price is a decimal
// string so 14-decimal fixed-point values survive JSON intact.
type priceResponse struct {
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

// Symbol maps an asset pair to the oracle's quote symbol. The oracle quotes
// fiat pairs by their base currency, so "EUR/USD" is looked up as "EUR".
func Symbol(asset string) string {
	if base, _, ok := strings.Cut(asset, "/"); ok {
		return base
	}
	return asset
}

// LastPrice returns the most recent price the oracle contract has for the
// asset. A missing or non-positive quote maps to ErrOracleDataUnavailable.
func (c *Client) LastPrice(ctx context.Context, oracle, asset string) (domain.PriceData, error) {
	endpoint := fmt.Sprintf("%s/contracts/%s/lastprice/%s",
		c.baseURL, url.PathEscape(oracle), url.PathEscape(Symbol(asset)))

	return c.fetchPrice(ctx, endpoint)
}

// PriceAt returns the oracle's price for the asset at or before the given
// instant.
func (c *Client) PriceAt(ctx context.Context, oracle, asset string, at time.Time) (domain.PriceData, error) {
	endpoint := fmt.Sprintf("%s/contracts/%s/price/%s?timestamp=%d",
		c.baseURL, url.PathEscape(oracle), url.PathEscape(Symbol(asset)), at.Unix())

	return c.fetchPrice(ctx, endpoint)
}

func (c *Client) fetchPrice(ctx context.Context, endpoint string) (domain.PriceData, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, "reflector", c.rateLimit, c.rateWindow); err != nil {
			return domain.PriceData{}, fmt.Errorf("reflector: rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.PriceData{}, fmt.Errorf("reflector: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PriceData{}, fmt.Errorf("%w: %v", domain.ErrOracleDataUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PriceData{}, fmt.Errorf("reflector: read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return domain.PriceData{}, domain.ErrOracleDataUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return domain.PriceData{}, fmt.Errorf("%w: HTTP %d: %s",
			domain.ErrOracleDataUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// A response the gateway cannot be trusted to have priced correctly is
	// an oracle outage, same as a missing quote.
	var pr priceResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return domain.PriceData{}, fmt.Errorf("%w: decode price: %v", domain.ErrOracleDataUnavailable, err)
	}

	price, err := strconv.ParseInt(pr.Price, 10, 64)
	if err != nil {
		return domain.PriceData{}, fmt.Errorf("%w: parse price %q: %v", domain.ErrOracleDataUnavailable, pr.Price, err)
	}
	if price <= 0 {
		return domain.PriceData{}, domain.ErrOracleDataUnavailable
	}

	return domain.PriceData{
		Price:     price,
		Timestamp: time.Unix(pr.Timestamp, 0),
	}, nil
}

// Compile-time interface check.
var _ domain.PriceOracle = (*Client)(nil)
